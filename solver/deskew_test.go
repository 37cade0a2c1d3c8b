package solver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sgrechanik-h/zeroelim/domain"
	"github.com/sgrechanik-h/zeroelim/eval"
	"github.com/sgrechanik-h/zeroelim/expr"
)

func TestDeskewDomainBand(t *testing.T) {
	k := expr.NewVar("k")
	l := expr.NewVar("l")
	vranges := expr.Ranges{
		k: expr.ConstRange(0, 5),
		l: expr.ConstRange(0, 5),
	}

	// k <= l < k+2 is a band of width two: l rewrites to k plus an
	// offset variable of extent two.
	d := domain.New([]*expr.Var{k, l},
		expr.AndAll(
			expr.NewGE(l, k),
			expr.NewLT(expr.NewSub(l, k), expr.Imm(2))),
		vranges)
	tr := DeskewDomain(d)
	require.NoError(t, eval.CheckTransformRanges(tr, nil))

	vol, err := eval.DomainVolume(tr.New, nil)
	require.NoError(t, err)
	require.EqualValues(t, 10, vol, "new domain %v", tr.New)

	shifted := false
	for _, v := range tr.New.Vars {
		if strings.HasSuffix(v.Name, ".shifted") {
			shifted = true
		}
	}
	require.True(t, shifted, "expected a shifted variable in %v", tr.New)
}

func TestDeskewDomainKeepsRectangles(t *testing.T) {
	k := expr.NewVar("k")
	l := expr.NewVar("l")
	vranges := expr.Ranges{
		k: expr.ConstRange(0, 5),
		l: expr.ConstRange(0, 7),
	}

	d := domain.New([]*expr.Var{k, l}, expr.BImm(true), vranges)
	tr := DeskewDomain(d)
	require.NoError(t, eval.CheckTransformRanges(tr, nil))

	vol, err := eval.DomainVolume(tr.New, nil)
	require.NoError(t, err)
	require.EqualValues(t, 35, vol)
	require.Empty(t, tr.New.Conditions)
}

func TestDeskewDomainNegativeBase(t *testing.T) {
	k := expr.NewVar("k")
	l := expr.NewVar("l")
	vranges := expr.Ranges{
		k: expr.ConstRange(-3, 5),
		l: expr.ConstRange(-3, 5),
	}

	d := domain.New([]*expr.Var{k, l},
		expr.AndAll(
			expr.NewGE(l, k),
			expr.NewLT(expr.NewSub(l, k), expr.Imm(2))),
		vranges)
	tr := DeskewDomain(d)
	require.NoError(t, eval.CheckTransformRanges(tr, nil))

	vol, err := eval.DomainVolume(tr.New, nil)
	require.NoError(t, err)
	require.EqualValues(t, 10, vol, "new domain %v", tr.New)
}

func TestDeskewDomainParametricBound(t *testing.T) {
	k := expr.NewVar("k")
	l := expr.NewVar("l")
	w := expr.NewVar("w")
	vranges := expr.Ranges{
		k: expr.ConstRange(0, 5),
		l: expr.ConstRange(0, 5),
		w: expr.ConstRange(0, 3),
	}

	// The band width is a parameter; the offset extent comes from the
	// parameter's own range.
	d := domain.New([]*expr.Var{k, l},
		expr.AndAll(
			expr.NewGE(l, k),
			expr.NewLT(expr.NewSub(l, k), w)),
		vranges)
	tr := DeskewDomain(d)
	require.NoError(t, eval.CheckTransformRanges(tr, expr.Ranges{w: vranges[w]}))
}
