// Package arith implements the symbolic analyzer the zero-elimination
// passes share: a canonicalizing simplifier, interval arithmetic over
// constant and symbolic bounds, linear-form detection and provability
// queries.
//
// An Analyzer carries a fixed variable-range environment and a bounded
// memoization table. Passes create one per invocation and drop it
// afterwards; there is no global cache. A single Analyzer must not be
// shared between goroutines, concurrent pipelines use one each.
package arith

import (
	"github.com/sgrechanik-h/zeroelim/expr"
	"github.com/sgrechanik-h/zeroelim/utils"
)

// cacheLimit bounds the memo table; when full it is dropped wholesale,
// which keeps the lifetime of cached nodes tied to the analyzer.
const cacheLimit = 1 << 14

// Analyzer is the explicit state of the simplifier: the range
// environment canonicalization is allowed to assume, plus the memo
// table.
type Analyzer struct {
	ranges expr.Ranges
	cache  utils.Map[expr.Expr]
}

// NewAnalyzer creates an analyzer that may assume every variable stays
// inside its range in vranges. The map is not copied; callers must not
// mutate it while the analyzer is alive.
func NewAnalyzer(vranges expr.Ranges) *Analyzer {
	return &Analyzer{ranges: vranges, cache: utils.NewMap[expr.Expr]()}
}

// Ranges returns the range environment the analyzer was created with.
func (a *Analyzer) Ranges() expr.Ranges { return a.ranges }

type exprKey struct{ e expr.Expr }

func (k exprKey) HashCode() uint64 { return expr.Hash(k.e) }

func (k exprKey) EqualI(o utils.Hashable) bool {
	ok, isKey := o.(exprKey)
	return isKey && expr.Equal(k.e, ok.e)
}

// Simplify rewrites e into the canonical form described in simplify.go.
// The result only depends on e and the analyzer's ranges, so it is
// memoized.
func (a *Analyzer) Simplify(e expr.Expr) expr.Expr {
	if res, ok := a.cache.Find(exprKey{e}); ok {
		return res
	}
	res := a.simplify(e)
	if a.cache.Len() >= cacheLimit {
		a.cache.Clear()
	}
	a.cache.Set(exprKey{e}, res)
	return res
}

// Simplify canonicalizes e assuming the given variable ranges, using a
// throwaway analyzer.
func Simplify(e expr.Expr, vranges expr.Ranges) expr.Expr {
	return NewAnalyzer(vranges).Simplify(e)
}

// Prove reports whether cond can be shown to always hold under the
// given ranges, using a throwaway analyzer. False means unknown.
func Prove(cond expr.Expr, vranges expr.Ranges) bool {
	return NewAnalyzer(vranges).Prove(cond)
}
