package solver

import (
	"strconv"

	"github.com/sgrechanik-h/zeroelim/arith"
	"github.com/sgrechanik-h/zeroelim/domain"
	"github.com/sgrechanik-h/zeroelim/expr"
	"github.com/sgrechanik-h/zeroelim/logger"
)

// xgcd returns (g, x, y) such that g = x*a + y*b and g divides both a
// and b. The sign of g follows the plain Euclid remainder sequence, so
// it may be negative.
func xgcd(a, b int64) (g, x, y int64) {
	s, oldS := int64(0), int64(1)
	t, oldT := int64(1), int64(0)
	r, oldR := b, a
	for r != 0 {
		q := oldR / r
		oldR, r = r, oldR-q*r
		oldS, s = s, oldS-q*s
		oldT, t = t, oldT-q*t
	}
	return oldR, oldS, oldT
}

// SolveSystemOfEquations extracts the linear integer equations among
// the domain conditions and solves them exactly over the integers.
//
// The equations form an int64 matrix over the domain variables with
// symbolic right hand sides (the free parts may mention outer
// variables). The matrix is diagonalized with row and column
// operations built from the extended Euclidean algorithm, so every
// division performed is exact. Column operations change variables:
// they are mirrored on the old-to-new coefficient matrix and, in
// reverse, on the new-to-old expressions. Afterwards each diagonal
// entry either pins an old variable to floordiv(rhs, diag), guarded by
// a divisibility condition, or leaves a free direction that becomes a
// fresh variable. Zero rows turn into rhs == 0 conditions. A condition
// that simplifies to false collapses the result to the empty domain.
//
// Range information of the old variables does not carry over directly;
// it is re-added as conditions over the new variables, together with
// the non-equation conditions rewritten through the substitution.
func SolveSystemOfEquations(d *domain.Domain) *domain.Transform {
	log := logger.Logger()
	log.Trace().Stringer("domain", d).Msg("solving system of equations")

	an := arith.NewAnalyzer(d.Ranges)
	nvars := len(d.Vars)

	var rest []expr.Expr
	var matrix [][]int64
	var rhs []expr.Expr

	// otn holds the future old-to-new map as integer coefficient rows,
	// one per old variable; nto holds the new-to-old expressions.
	otn := make([][]int64, nvars)
	nto := make([]expr.Expr, nvars)
	for i, v := range d.Vars {
		otn[i] = make([]int64, nvars)
		otn[i][i] = 1
		nto[i] = v
	}

	for _, cond := range d.Conditions {
		if eq, ok := cond.(*expr.EQ); ok && nvars > 0 {
			diff := an.Simplify(expr.NewSub(eq.A, eq.B))
			if coefs, free, ok := an.Linearize(diff, d.Vars); ok {
				matrix = append(matrix, coefs)
				rhs = append(rhs, an.Simplify(negate(free)))
				continue
			}
		}
		rest = append(rest, cond)
	}

	// Diagonalize. The invariant is that matrix[i][j] == 0 whenever
	// i < index or j < index, except on the diagonal.
	for index := 0; index < len(matrix) && index < nvars; index++ {
		// Pick the row whose entry in this column has the smallest
		// nonzero magnitude, which keeps the coefficients tame.
		best := index
		for i := best; i < len(matrix); i++ {
			mOld, mNew := matrix[best][index], matrix[i][index]
			if mNew != 0 && (mOld == 0 || abs64(mNew) < abs64(mOld)) {
				best = i
			}
		}
		matrix[index], matrix[best] = matrix[best], matrix[index]
		rhs[index], rhs[best] = rhs[best], rhs[index]

		if matrix[index][index] == 0 {
			// Bring in a nonzero column; swapping columns swaps the
			// corresponding new variables.
			for j := index + 1; j < nvars; j++ {
				if matrix[index][j] == 0 {
					continue
				}
				for i := index; i < len(matrix); i++ {
					matrix[i][index], matrix[i][j] = matrix[i][j], matrix[i][index]
				}
				nto[index], nto[j] = nto[j], nto[index]
				for i := range otn {
					otn[i][index], otn[i][j] = otn[i][j], otn[i][index]
				}
				break
			}
		}
		if matrix[index][index] == 0 {
			// Row and column are both zero, nothing to eliminate.
			continue
		}

		// Zero the column below the diagonal with row operations. With
		// m = matrix[index][index], n = matrix[i][index] and
		// g = a*m + b*n, the row pair (index, i) is multiplied by
		//   [ a    b  ]
		//   [ n/g -m/g]
		// which is integer and unimodular up to sign, so the system
		// keeps exactly the same integer solutions.
		for i := index + 1; i < len(matrix); i++ {
			if matrix[i][index] == 0 {
				continue
			}
			var g, ca, cb int64
			if matrix[i][index]%matrix[index][index] != 0 {
				g, ca, cb = xgcd(matrix[index][index], matrix[i][index])
			} else {
				// The divisible case must leave the index-th row as is,
				// otherwise the loop may never settle.
				g, ca, cb = matrix[index][index], 1, 0
			}
			mg := matrix[index][index] / g
			ng := matrix[i][index] / g
			for j := index; j < nvars; j++ {
				rowIndexJ := ca*matrix[index][j] + cb*matrix[i][j]
				rowIJ := ng*matrix[index][j] - mg*matrix[i][j]
				matrix[index][j] = rowIndexJ
				matrix[i][j] = rowIJ
			}
			t := rhs[index].DType()
			rhsIndex := expr.NewAdd(
				expr.NewMul(expr.TypedImm(t, ca), rhs[index]),
				expr.NewMul(expr.TypedImm(t, cb), rhs[i]))
			rhsI := expr.NewSub(
				expr.NewMul(expr.TypedImm(t, ng), rhs[index]),
				expr.NewMul(expr.TypedImm(t, mg), rhs[i]))
			rhs[index], rhs[i] = rhsIndex, rhsI
		}

		// Zero the row right of the diagonal with column operations.
		// These act on variables: the same combination applies to the
		// old-to-new columns and the inverse to the new-to-old
		// expressions.
		changed := false
		for j := index + 1; j < nvars; j++ {
			if matrix[index][j] == 0 {
				continue
			}
			var g, ca, cb int64
			if matrix[index][j]%matrix[index][index] != 0 {
				g, ca, cb = xgcd(matrix[index][index], matrix[index][j])
				// The index-th column may pick up nonzeros below the
				// diagonal again; redo this index afterwards.
				changed = true
			} else {
				g, ca, cb = matrix[index][index], 1, 0
			}
			mg := matrix[index][index] / g
			ng := matrix[index][j] / g
			for i := index; i < len(matrix); i++ {
				colIIndex := ca*matrix[i][index] + cb*matrix[i][j]
				colIJ := ng*matrix[i][index] - mg*matrix[i][j]
				matrix[i][index] = colIIndex
				matrix[i][j] = colIJ
			}
			for i := range otn {
				colIIndex := ca*otn[i][index] + cb*otn[i][j]
				colIJ := ng*otn[i][index] - mg*otn[i][j]
				otn[i][index] = colIIndex
				otn[i][j] = colIJ
			}
			t := nto[index].DType()
			ntoIndex := expr.NewAdd(
				expr.NewMul(expr.TypedImm(t, mg), nto[index]),
				expr.NewMul(expr.TypedImm(t, ng), nto[j]))
			ntoJ := expr.NewSub(
				expr.NewMul(expr.TypedImm(t, cb), nto[index]),
				expr.NewMul(expr.TypedImm(t, ca), nto[j]))
			nto[index], nto[j] = ntoIndex, ntoJ
		}
		if changed {
			index--
		}
	}

	for i := range rhs {
		rhs[i] = an.Simplify(rhs[i])
	}

	// A solution exists iff every zero row has zero rhs and every
	// diagonal divides its rhs.
	var conditions []expr.Expr
	for j := range matrix {
		var cond expr.Expr
		if j >= nvars || matrix[j][j] == 0 {
			cond = expr.NewEQ(rhs[j], expr.Zero(rhs[j].DType()))
		} else {
			t := rhs[j].DType()
			cond = expr.NewEQ(
				expr.NewFloorMod(rhs[j], expr.TypedImm(t, abs64(matrix[j][j]))),
				expr.Zero(t))
		}
		cond = an.Simplify(cond)
		if constFalse(cond) {
			log.Debug().Stringer("domain", d).Msg("equations are infeasible")
			return domain.Empty(d)
		}
		if !constTrue(cond) {
			conditions = append(conditions, cond)
		}
	}

	// Solved directions become floordiv(rhs, diag); the rest become
	// fresh variables carrying the old expression they stand for.
	var newVars []*expr.Var
	ntoMap := make(domain.Subst)
	solution := make([]expr.Expr, nvars)
	for j := 0; j < nvars; j++ {
		if j >= len(matrix) || matrix[j][j] == 0 {
			toOld := an.Simplify(nto[j])
			name := "n" + strconv.Itoa(len(newVars))
			if v, isVar := toOld.(*expr.Var); isVar {
				name += "_" + v.Name
			}
			nv := expr.NewTypedVar(name, nto[j].DType())
			solution[j] = nv
			newVars = append(newVars, nv)
			ntoMap[nv] = toOld
			continue
		}
		t := rhs[j].DType()
		if matrix[j][j] >= 0 {
			solution[j] = an.Simplify(expr.NewFloorDiv(rhs[j], expr.TypedImm(t, matrix[j][j])))
		} else {
			solution[j] = an.Simplify(expr.NewFloorDiv(negate(rhs[j]), expr.TypedImm(t, -matrix[j][j])))
		}
	}

	plain := arith.NewAnalyzer(nil)
	otnMap := make(domain.Subst, nvars)
	for i, v := range d.Vars {
		e := expr.Zero(v.Type)
		for j := 0; j < nvars; j++ {
			if otn[i][j] == 0 {
				continue
			}
			e = expr.NewAdd(e, expr.NewMul(expr.TypedImm(v.Type, otn[i][j]), solution[j]))
		}
		otnMap[v] = plain.Simplify(e)
	}

	vset := d.VarSet()
	sorted := sortedRangeVars(d.Ranges)

	// Outer variables keep their ranges.
	ranges := make(expr.Ranges)
	for _, v := range sorted {
		if !vset[v] {
			ranges[v] = d.Ranges[v]
		}
	}

	// Infer ranges for the new variables from the expressions they
	// replace.
	ivs := rangeIntervals(an, d.Ranges)
	for _, nv := range newVars {
		if r, ok := an.CoverRange(an.EvalInterval(ntoMap[nv], ivs)); ok {
			ranges[nv] = r
		}
	}

	// The old ranges constrain the images of the old variables; the
	// inferred new ranges are usually wider than that, so re-state the
	// old ranges as conditions unless they are implied.
	newAn := arith.NewAnalyzer(ranges)
	for _, v := range sorted {
		image, solved := otnMap[v]
		if !solved {
			continue
		}
		r := d.Ranges[v]
		lower := newAn.Simplify(expr.NewLE(r.Min, image))
		upper := newAn.Simplify(expr.NewLT(image, expr.NewAdd(r.Min, r.Extent)))
		if !constTrue(lower) {
			conditions = append(conditions, lower)
		}
		if !constTrue(upper) {
			conditions = append(conditions, upper)
		}
	}

	for _, cond := range rest {
		conditions = append(conditions, expr.Substitute(cond, otnMap))
	}

	newDomain := domain.FromConditions(newVars, conditions, ranges)
	return &domain.Transform{Old: d, New: newDomain, NewToOld: ntoMap, OldToNew: otnMap}
}
