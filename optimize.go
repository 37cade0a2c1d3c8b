package zeroelim

import (
	"github.com/sgrechanik-h/zeroelim/arith"
	"github.com/sgrechanik-h/zeroelim/expr"
	"github.com/sgrechanik-h/zeroelim/logger"
	"github.com/sgrechanik-h/zeroelim/solver"
	"github.com/sgrechanik-h/zeroelim/tensor"
)

// OptimizeAndLiftNonzeronessConditions rewrites every output of t into
// select(cond, value, 0) form with a minimized reduction domain. The
// returned tensor equals t pointwise. Helper tensors created for
// extracted reductions are appended to p; when the rewrite is rejected
// because its estimated cost grew, t itself is returned and the
// helpers stay unreferenced in the arena.
//
// The pass is idempotent: applying it to its own output changes
// nothing further.
func OptimizeAndLiftNonzeronessConditions(p *tensor.Program, t *tensor.Tensor, opts ...Option) *tensor.Tensor {
	cfg := defaultOptions()
	for _, o := range opts {
		o(&cfg)
	}
	log := logger.Logger()

	before := cfg.estimate(p, t)
	result, changed := tensor.TransformBody(p, t, func(body expr.Expr, axes []*expr.IterVar) expr.Expr {
		return optimizeBody(p, body, axes, &cfg)
	})
	if !changed {
		return t
	}
	after := cfg.estimate(p, result)
	if after > before {
		log.Debug().Str("tensor", t.Name).Int64("costBefore", before).Int64("costAfter", after).
			Msg("rewrite rejected, estimated cost grew")
		return t
	}
	log.Info().Str("tensor", t.Name).Int64("costBefore", before).Int64("costAfter", after).
		Msg("optimized tensor")
	return result
}

func optimizeBody(p *tensor.Program, e expr.Expr, axes []*expr.IterVar, cfg *options) expr.Expr {
	combined := cfg.paramRanges.Extend(expr.AxisRanges(axes))
	outerVars := expr.AxisVars(axes)
	an := arith.NewAnalyzer(combined)
	log := logger.Logger()

	// Normalize first: simplify (mostly to fold combiner templates) and
	// name nested reductions so the lifter never meets one.
	e = tensor.ExtractNonTopReductions(p, an.Simplify(e), outerVars, combined)

	var result expr.Expr
	if red, ok := e.(*expr.Reduce); ok {
		isSum := IsSumCombiner(red.Combiner, cfg.paramRanges)
		if !isSum && !CanFactorZeroFromCombiner(red.Combiner, red.ValueIndex, cfg.paramRanges) {
			// Narrowing to the nonzero region is not legal for this
			// combiner; domain simplification alone still is.
			return solver.SimplifyReductionDomain(e, combined, cfg.eliminateDivMod)
		}

		cond := red.Condition
		source := append([]expr.Expr(nil), red.Source...)
		if isSum {
			// A sum lets the source's nonzeroness condition move
			// straight into the reduction condition.
			if c, v, err := NonzeronessCondition(source[red.ValueIndex]); err == nil {
				cond = expr.NewAnd(c, cond)
				source[red.ValueIndex] = v
			} else {
				log.Debug().Err(err).Msg("leaving reduction source unlifted")
			}
		}
		newRed := expr.NewReduce(red.Combiner, source, red.Axes, cond, red.ValueIndex)
		simplified := solver.SimplifyReductionDomain(newRed, combined, cfg.eliminateDivMod)
		red2, stillRed := simplified.(*expr.Reduce)
		if !stillRed {
			// The whole domain collapsed; what is left is an ordinary
			// expression.
			return optimizeBody(p, simplified, axes, cfg)
		}

		outerCond, reduceCond := solver.LiftConditionsThroughReduction(red2.Condition, red2.Axes, axes)
		newSource := append([]expr.Expr(nil), red2.Source...)
		if !isSum {
			// For non-sum combiners the nonzeroness condition may not
			// restrict the domain, but the value slot can still be
			// guarded so the zero region costs nothing to evaluate.
			if c, v, err := NonzeronessCondition(newSource[red2.ValueIndex]); err == nil {
				nzCond := expr.NewAnd(reduceCond, c)
				outerNz, innerNz := solver.LiftConditionsThroughReduction(nzCond, red2.Axes, axes)
				outerCond = expr.NewAnd(outerCond, outerNz)
				newSource[red2.ValueIndex] = expr.SelectElseZero(innerNz, v)
			} else {
				log.Debug().Err(err).Msg("leaving reduction source unguarded")
			}
		}

		newReduce := expr.NewReduce(red2.Combiner, newSource, red2.Axes, reduceCond, red2.ValueIndex)
		extracted := tensor.ExtractAsTensorMaybe(p, newReduce, outerCond, outerVars, combined)
		result = expr.SelectElseZero(an.Simplify(outerCond), extracted)
	} else {
		c, v, err := NonzeronessCondition(e)
		if err != nil {
			log.Debug().Err(err).Msg("leaving body unoptimized")
			return e
		}
		extracted := tensor.ExtractAsTensorMaybe(p, v, c, outerVars, combined)
		result = expr.SelectElseZero(an.Simplify(c), extracted)
	}

	// The axis ranges hold at every evaluated point; conditions they
	// already imply are noise by now.
	result = an.RemoveRedundantInequalities(result, an.AxisInequalities(axes))
	// ExtractAsTensorMaybe may have declined, leaving a nested
	// reduction inside the select.
	result = an.Simplify(tensor.ExtractNonTopReductions(p, result, outerVars, combined))
	return result
}
