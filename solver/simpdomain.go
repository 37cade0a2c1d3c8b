package solver

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sgrechanik-h/zeroelim/arith"
	"github.com/sgrechanik-h/zeroelim/domain"
	"github.com/sgrechanik-h/zeroelim/expr"
	"github.com/sgrechanik-h/zeroelim/logger"
)

// simplifyDomainMaxRounds bounds the equations+deskew loop. Two rounds
// settle almost every domain; the cap only guards against shapes that
// oscillate instead of converging.
const simplifyDomainMaxRounds = 4

// SimplifyDomain runs the full domain simplification pipeline:
// optionally eliminate divisions and modulos from the conditions, then
// alternate SolveSystemOfEquations and DeskewDomain until the domain
// shape stops changing or the round cap is hit.
func SimplifyDomain(d *domain.Domain, eliminateDivMod bool) *domain.Transform {
	log := logger.Logger()
	log.Trace().Stringer("domain", d).Bool("eliminateDivMod", eliminateDivMod).
		Msg("simplifying domain")

	transf := domain.Id(d)
	if eliminateDivMod {
		transf = transf.Then(EliminateDivModFromDomainConditions(transf.New))
	}
	shape := domainShape(transf.New)
	for round := 0; round < simplifyDomainMaxRounds; round++ {
		transf = transf.Then(SolveSystemOfEquations(transf.New))
		transf = transf.Then(DeskewDomain(transf.New))
		next := domainShape(transf.New)
		if next == shape {
			log.Trace().Int("rounds", round+1).Msg("domain simplification converged")
			break
		}
		shape = next
	}
	return transf
}

// domainShape renders a domain up to variable renaming. Fresh variables
// get new names every round, so the fixed point of the simplification
// loop has to be detected on a name-independent signature.
func domainShape(d *domain.Domain) string {
	ren := make(domain.Subst, len(d.Vars))
	for i, v := range d.Vars {
		ren[v] = expr.NewTypedVar("%"+strconv.Itoa(i), v.Type)
	}
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(len(d.Vars)))
	for _, v := range d.Vars {
		sb.WriteByte(';')
		if r, ok := d.Ranges[v]; ok {
			rr := expr.Range{
				Min:    expr.Substitute(r.Min, ren),
				Extent: expr.Substitute(r.Extent, ren),
			}
			sb.WriteString(rr.String())
		}
	}
	conds := make([]string, len(d.Conditions))
	for i, c := range d.Conditions {
		conds[i] = expr.Substitute(c, ren).String()
	}
	sort.Strings(conds)
	for _, c := range conds {
		sb.WriteByte(';')
		sb.WriteString(c)
	}
	return sb.String()
}

// SimplifyReductionDomain simplifies the iteration domain of a
// reduction: the condition is factored into a domain over the axes,
// SimplifyDomain is run on it, and the reduction is rebuilt over the
// resulting variables. When every axis is eliminated the reduction
// collapses to a select between the substituted source and the
// combiner's identity. Non-reductions pass through unchanged.
func SimplifyReductionDomain(e expr.Expr, outerRanges expr.Ranges, eliminateDivMod bool) expr.Expr {
	red, ok := e.(*expr.Reduce)
	if !ok {
		return e
	}
	vranges := outerRanges.Extend(expr.AxisRanges(red.Axes))
	dom := domain.FromConditions(
		expr.AxisVars(red.Axes),
		arith.FactorOutAtomicFormulas(red.Condition).ToSlice(),
		vranges)
	res := SimplifyDomain(dom, eliminateDivMod)

	newSource := make([]expr.Expr, len(red.Source))
	for i, src := range red.Source {
		newSource[i] = expr.Substitute(src, res.OldToNew)
	}
	an := arith.NewAnalyzer(nil)

	if len(res.New.Vars) == 0 {
		// Nothing left to iterate over: the value is either the sole
		// point of the old domain or the identity.
		return an.Simplify(expr.NewSelect(
			expr.AndAll(res.New.Conditions...),
			newSource[red.ValueIndex],
			red.Combiner.Identity[red.ValueIndex]))
	}

	axes := make([]*expr.IterVar, len(res.New.Vars))
	for i, v := range res.New.Vars {
		axes[i] = &expr.IterVar{Var: v, Range: res.New.Ranges[v]}
	}
	return an.Simplify(expr.NewReduce(red.Combiner, newSource, axes,
		expr.AndAll(res.New.Conditions...), red.ValueIndex))
}
