package solver

import (
	"strconv"

	"github.com/sgrechanik-h/zeroelim/arith"
	"github.com/sgrechanik-h/zeroelim/domain"
	"github.com/sgrechanik-h/zeroelim/expr"
	"github.com/sgrechanik-h/zeroelim/logger"
	"github.com/sgrechanik-h/zeroelim/utils"
)

type divMode int

const (
	truncMode divMode = iota
	floorMode
)

func divImpl(a, b expr.Expr, mode divMode) expr.Expr {
	if mode == truncMode {
		return expr.NewDiv(a, b)
	}
	return expr.NewFloorDiv(a, b)
}

func modImpl(a, b expr.Expr, mode divMode) expr.Expr {
	if mode == truncMode {
		return expr.NewMod(a, b)
	}
	return expr.NewFloorMod(a, b)
}

// divModKey identifies one divisor applied to one dividend; the same
// pair of variables serves every occurrence.
type divModKey struct {
	mode divMode
	e    expr.Expr
	val  int64
}

func (k divModKey) HashCode() uint64 {
	return expr.Hash(k.e)*31 + uint64(k.val)*13 + uint64(k.mode)
}

func (k divModKey) EqualI(o utils.Hashable) bool {
	ok, is := o.(divModKey)
	return is && k.mode == ok.mode && k.val == ok.val && expr.Equal(k.e, ok.e)
}

type varPair struct {
	div, mod *expr.Var
}

// DivModElimination is what EliminateDivMod found: the rewritten
// expression, the fresh variables with their inferred ranges, the
// defining conditions that tie them to the original arithmetic, and
// the substitution mapping each fresh variable back to the division it
// stands for.
type DivModElimination struct {
	Expr         expr.Expr
	Substitution domain.Subst
	NewVars      []*expr.Var
	Conditions   []expr.Expr
	Ranges       expr.Ranges
}

type divModEliminator struct {
	subst      domain.Subst
	newVars    []*expr.Var
	conditions []expr.Expr
	ranges     expr.Ranges
	idx        int
	memo       utils.Map[varPair]
}

// EliminateDivMod replaces every division or modulo by a nonzero
// constant inside e with a fresh variable. Equal dividends share
// variables. Negative divisors are first rewritten to positive ones
// using the sign identities of the two division conventions. An
// occurrence whose bounds cannot be inferred from vranges is left in
// place, since an unbounded variable would poison the domain.
func EliminateDivMod(e expr.Expr, vranges expr.Ranges) DivModElimination {
	m := &divModEliminator{
		subst:  make(domain.Subst),
		ranges: vranges.Clone(),
		memo:   utils.NewMap[varPair](),
	}
	out := m.mutate(e)
	return DivModElimination{
		Expr:         out,
		Substitution: m.subst,
		NewVars:      m.newVars,
		Conditions:   m.conditions,
		Ranges:       m.ranges,
	}
}

func (m *divModEliminator) mutate(e expr.Expr) expr.Expr {
	switch n := e.(type) {
	case *expr.Div:
		if c, ok := expr.ImmValue(n.B); ok && c != 0 {
			t := n.DType()
			if c < 0 {
				// x / -c == -(x / c) when truncating
				return expr.NewSub(expr.Zero(t),
					m.mutate(expr.NewDiv(n.A, expr.TypedImm(t, -c))))
			}
			if p, ok := m.memo.Find(divModKey{truncMode, n.A, c}); ok {
				return p.div
			}
			ma := m.mutate(n.A)
			if p, ok := m.addVarPair(n.A, ma, c, truncMode); ok {
				return p.div
			}
			return expr.NewDiv(ma, n.B)
		}
		return expr.NewDiv(m.mutate(n.A), m.mutate(n.B))
	case *expr.Mod:
		if c, ok := expr.ImmValue(n.B); ok && c != 0 {
			t := n.DType()
			if c < 0 {
				// x % -c == x % c when truncating
				return m.mutate(expr.NewMod(n.A, expr.TypedImm(t, -c)))
			}
			if p, ok := m.memo.Find(divModKey{truncMode, n.A, c}); ok {
				return p.mod
			}
			ma := m.mutate(n.A)
			if p, ok := m.addVarPair(n.A, ma, c, truncMode); ok {
				return p.mod
			}
			return expr.NewMod(ma, n.B)
		}
		return expr.NewMod(m.mutate(n.A), m.mutate(n.B))
	case *expr.FloorDiv:
		if c, ok := expr.ImmValue(n.B); ok && c != 0 {
			t := n.DType()
			if c < 0 {
				// floordiv(x, -c) == floordiv(-x, c)
				return m.mutate(expr.NewFloorDiv(
					expr.NewSub(expr.Zero(t), n.A), expr.TypedImm(t, -c)))
			}
			if p, ok := m.memo.Find(divModKey{floorMode, n.A, c}); ok {
				return p.div
			}
			ma := m.mutate(n.A)
			if p, ok := m.addVarPair(n.A, ma, c, floorMode); ok {
				return p.div
			}
			return expr.NewFloorDiv(ma, n.B)
		}
		return expr.NewFloorDiv(m.mutate(n.A), m.mutate(n.B))
	case *expr.FloorMod:
		if c, ok := expr.ImmValue(n.B); ok && c != 0 {
			t := n.DType()
			if c < 0 {
				// floormod(x, -c) == -floormod(-x, c)
				return m.mutate(expr.NewSub(expr.Zero(t),
					expr.NewFloorMod(expr.NewSub(expr.Zero(t), n.A), expr.TypedImm(t, -c))))
			}
			if p, ok := m.memo.Find(divModKey{floorMode, n.A, c}); ok {
				return p.mod
			}
			ma := m.mutate(n.A)
			if p, ok := m.addVarPair(n.A, ma, c, floorMode); ok {
				return p.mod
			}
			return expr.NewFloorMod(ma, n.B)
		}
		return expr.NewFloorMod(m.mutate(n.A), m.mutate(n.B))
	default:
		return expr.MapChildren(e, m.mutate)
	}
}

func (m *divModEliminator) addVarPair(orig, mut expr.Expr, val int64, mode divMode) (varPair, bool) {
	mutated := !expr.Equal(orig, mut)
	if mutated {
		if p, ok := m.memo.Find(divModKey{mode, mut, val}); ok {
			return p, true
		}
	}
	t := orig.DType()
	valE := expr.TypedImm(t, val)
	m.idx++

	an := arith.NewAnalyzer(m.ranges)
	ivs := rangeIntervals(an, m.ranges)
	divRange, divOK := an.CoverRange(an.EvalInterval(divImpl(mut, valE, mode), ivs))
	modRange, modOK := an.CoverRange(an.EvalInterval(modImpl(mut, valE, mode), ivs))
	if !divOK || !modOK {
		log := logger.Logger()
		log.Warn().Stringer("expr", divImpl(orig, valE, mode)).
			Msg("div/mod kept, bounds cannot be inferred")
		return varPair{}, false
	}

	divName, modName := "fdiv", "fmod"
	if mode == truncMode {
		divName, modName = "tdiv", "tmod"
	}
	div := expr.NewTypedVar(divName+strconv.Itoa(m.idx), t)
	mod := expr.NewTypedVar(modName+strconv.Itoa(m.idx), t)
	m.newVars = append(m.newVars, div, mod)

	// mut may already mention earlier fresh variables; the
	// substitution must map back to expressions over the original
	// variables only.
	m.subst[div] = divImpl(expr.Substitute(mut, m.subst), valE, mode)
	m.subst[mod] = modImpl(expr.Substitute(mut, m.subst), valE, mode)
	m.ranges[div] = divRange
	m.ranges[mod] = modRange

	m.conditions = append(m.conditions,
		expr.NewEQ(mut, expr.NewAdd(expr.NewMul(div, valE), mod)))
	if !arith.Prove(expr.NewLE(modRange.Extent, valE), nil) {
		// Truncated mod follows the sign of the dividend, so the
		// defining equation alone admits two (div, mod) pairs when the
		// dividend can change sign.
		log := logger.Logger()
		log.Warn().Stringer("expr", modImpl(orig, valE, mode)).
			Msg("div/mod eliminated with a sign disambiguation condition")
		m.conditions = append(m.conditions, expr.NewSelect(
			expr.NewGE(orig, expr.Zero(t)),
			expr.NewGE(mod, expr.Zero(t)),
			expr.NewLE(mod, expr.Zero(t))))
	}

	p := varPair{div: div, mod: mod}
	m.memo.Set(divModKey{mode, orig, val}, p)
	if mutated {
		m.memo.Set(divModKey{mode, mut, val}, p)
	}
	return p, true
}

// EliminateDivModFromDomainConditions rewrites the domain conditions
// with EliminateDivMod and widens the domain with the fresh variables.
// The old variables stay in place, so both substitutions of the
// returned transform are identities on them.
func EliminateDivModFromDomainConditions(d *domain.Domain) *domain.Transform {
	elim := EliminateDivMod(d.Condition(), d.Ranges)

	newVars := make([]*expr.Var, 0, len(d.Vars)+len(elim.NewVars))
	newVars = append(newVars, d.Vars...)
	newVars = append(newVars, elim.NewVars...)

	conds := append([]expr.Expr{elim.Expr}, elim.Conditions...)
	newDomain := domain.New(newVars, expr.AndAll(conds...), elim.Ranges)

	nto := make(domain.Subst, len(d.Vars)+len(elim.Substitution))
	for v, e := range elim.Substitution {
		nto[v] = e
	}
	otn := make(domain.Subst, len(d.Vars))
	for _, v := range d.Vars {
		otn[v] = v
		nto[v] = v
	}
	return &domain.Transform{Old: d, New: newDomain, NewToOld: nto, OldToNew: otn}
}

// EliminateDivModFromReductionCondition applies EliminateDivMod to a
// reduction's condition, appending the fresh variables to the axes.
// Non-reductions pass through.
func EliminateDivModFromReductionCondition(e expr.Expr, vranges expr.Ranges) expr.Expr {
	red, ok := e.(*expr.Reduce)
	if !ok {
		return e
	}
	elim := EliminateDivMod(red.Condition, vranges.Extend(expr.AxisRanges(red.Axes)))

	axes := make([]*expr.IterVar, 0, len(red.Axes)+len(elim.NewVars))
	axes = append(axes, red.Axes...)
	for _, v := range elim.NewVars {
		axes = append(axes, &expr.IterVar{Var: v, Range: elim.Ranges[v]})
	}
	conds := append([]expr.Expr{elim.Expr}, elim.Conditions...)
	return expr.NewReduce(red.Combiner, red.Source, axes, expr.AndAll(conds...), red.ValueIndex)
}
