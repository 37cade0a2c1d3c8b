// Package domain defines iteration domains and transformations
// between them. A domain is a set of integer points: the product of
// the variable ranges cut down by a list of conditions. The solver
// passes rewrite domains into simpler ones and report the rewrite as a
// Transform, a pair of substitutions mapping each side's variables
// into the other side. On the points satisfying the conditions the two
// substitutions are inverse to each other; outside of them they are
// unconstrained.
package domain

import (
	"sort"
	"strings"

	"github.com/sgrechanik-h/zeroelim/arith"
	"github.com/sgrechanik-h/zeroelim/expr"
)

// Subst maps variables to the expressions that replace them.
type Subst = map[*expr.Var]expr.Expr

// Domain is a conjunction of conditions over variables with known
// ranges. Ranges may contain entries for outer variables that appear
// free in the conditions, not only for Vars.
type Domain struct {
	Vars       []*expr.Var
	Conditions []expr.Expr
	Ranges     expr.Ranges
}

// New builds a domain from a single condition, factoring it into
// atomic conjuncts.
func New(vars []*expr.Var, cond expr.Expr, vranges expr.Ranges) *Domain {
	return FromConditions(vars, arith.FactorOutAtomicFormulas(cond).ToSlice(), vranges)
}

// FromConditions builds a domain from an already-split condition list.
func FromConditions(vars []*expr.Var, conds []expr.Expr, vranges expr.Ranges) *Domain {
	return &Domain{Vars: vars, Conditions: conds, Ranges: vranges}
}

// Condition conjoins the condition list back into one expression.
func (d *Domain) Condition() expr.Expr {
	return expr.AndAll(d.Conditions...)
}

// VarSet returns the domain variables as a set.
func (d *Domain) VarSet() map[*expr.Var]bool {
	out := make(map[*expr.Var]bool, len(d.Vars))
	for _, v := range d.Vars {
		out[v] = true
	}
	return out
}

// String renders the domain deterministically, with ranges sorted by
// variable. Meant for logs and test failure messages.
func (d *Domain) String() string {
	var sb strings.Builder
	sb.WriteString("Domain(vars=[")
	for i, v := range d.Vars {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.Name)
	}
	sb.WriteString("], conditions=[")
	for i, c := range d.Conditions {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.String())
	}
	sb.WriteString("], ranges{")
	rvars := make([]*expr.Var, 0, len(d.Ranges))
	for v := range d.Ranges {
		rvars = append(rvars, v)
	}
	sort.Slice(rvars, func(i, j int) bool { return expr.Compare(rvars[i], rvars[j]) < 0 })
	for i, v := range rvars {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.Name)
		sb.WriteString(": ")
		sb.WriteString(d.Ranges[v].String())
	}
	sb.WriteString("})")
	return sb.String()
}

// Transform rewrites Old into New. NewToOld maps each variable of New
// to its expression over Old's variables, so substituting it turns an
// expression over the new variables into one over the old; OldToNew is
// the other direction. On the points of Old satisfying the conditions
// the two substitutions invert each other.
type Transform struct {
	Old, New *Domain
	NewToOld Subst
	OldToNew Subst
}

// Id is the identity transformation of d.
func Id(d *Domain) *Transform {
	m := make(Subst, len(d.Vars))
	for _, v := range d.Vars {
		m[v] = v
	}
	return &Transform{Old: d, New: d, NewToOld: m, OldToNew: m}
}

// Empty transforms d into the canonical unsatisfiable domain. It is
// used when a solver proves the conditions can never hold; the old
// variables map to zero since any value works for an empty set of
// points.
func Empty(d *Domain) *Transform {
	otn := make(Subst, len(d.Vars))
	for _, v := range d.Vars {
		otn[v] = expr.Zero(v.DType())
	}
	empty := FromConditions(nil, []expr.Expr{expr.BImm(false)}, nil)
	return &Transform{Old: d, New: empty, NewToOld: Subst{}, OldToNew: otn}
}

// Compose chains two transformations: second must start at the domain
// first produced. The substitutions compose in opposite directions.
func Compose(first, second *Transform) *Transform {
	if second.Old != first.New {
		panic("domain: composing transforms over different domains")
	}
	oldAn := arith.NewAnalyzer(first.Old.Ranges)
	newAn := arith.NewAnalyzer(second.New.Ranges)
	nto := make(Subst, len(second.NewToOld))
	for v, e := range second.NewToOld {
		nto[v] = oldAn.Simplify(expr.Substitute(e, first.NewToOld))
	}
	otn := make(Subst, len(first.OldToNew))
	for v, e := range first.OldToNew {
		otn[v] = newAn.Simplify(expr.Substitute(e, second.OldToNew))
	}
	return &Transform{Old: first.Old, New: second.New, NewToOld: nto, OldToNew: otn}
}

// Then is Compose with the receiver first.
func (t *Transform) Then(second *Transform) *Transform {
	return Compose(t, second)
}
