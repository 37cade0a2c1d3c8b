// Package zeroelim optimizes tensor expressions by eliminating
// provably zero work. Its central pass rewrites a tensor body into
// select(cond, value, 0) form, folds the condition into the enclosing
// reduction, shrinks the reduction's iteration domain with the integer
// constraint solver, and extracts the shrunken reduction into a tensor
// over the smaller domain. All passes are pure: they take immutable
// expressions and return new ones, appending any helper tensors to the
// caller's program arena.
package zeroelim

import (
	"errors"

	"github.com/sgrechanik-h/zeroelim/expr"
	"github.com/sgrechanik-h/zeroelim/tensor"
)

// ErrUnsupported reports a construct a pass does not know how to
// handle, such as a reduction nested inside a lifted expression. The
// optimizer treats it as "leave this subexpression alone", never as a
// reason to fail the whole tensor.
var ErrUnsupported = errors.New("zeroelim: unsupported construct")

// Option configures OptimizeAndLiftNonzeronessConditions.
type Option func(*options)

type options struct {
	paramRanges     expr.Ranges
	estimate        func(*tensor.Program, *tensor.Tensor) int64
	eliminateDivMod bool
}

func defaultOptions() options {
	return options{
		estimate:        tensor.EstimateCost,
		eliminateDivMod: true,
	}
}

// WithParamRanges tells the optimizer the ranges of free parameters,
// variables that appear in bodies or combiners but are not axes.
// Combiner properties and domain simplifications may hold only within
// these ranges.
func WithParamRanges(r expr.Ranges) Option {
	return func(o *options) { o.paramRanges = r }
}

// WithCostEstimator replaces the cost model deciding whether a rewrite
// is accepted.
func WithCostEstimator(f func(*tensor.Program, *tensor.Tensor) int64) Option {
	return func(o *options) { o.estimate = f }
}

// WithoutDivModElimination disables the introduction of fresh
// quotient/remainder variables during domain simplification.
func WithoutDivModElimination() Option {
	return func(o *options) { o.eliminateDivMod = false }
}
