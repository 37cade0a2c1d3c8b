package eval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sgrechanik-h/zeroelim/domain"
	"github.com/sgrechanik-h/zeroelim/expr"
)

// EnumeratePoints lists every integer point of the domain: each
// assignment of the domain variables within their ranges that satisfies
// all conditions. Points follow the variable order of d.Vars. outer
// binds any free variables the ranges or conditions mention.
func EnumeratePoints(d *domain.Domain, outer Env) ([][]int64, error) {
	env := outer.Clone()
	var out [][]int64
	point := make([]int64, len(d.Vars))

	var walk func(i int) error
	walk = func(i int) error {
		if i == len(d.Vars) {
			for _, c := range d.Conditions {
				v, err := Eval(c, env, nil)
				if err != nil {
					return err
				}
				if !v.Bool() {
					return nil
				}
			}
			out = append(out, append([]int64(nil), point...))
			return nil
		}
		v := d.Vars[i]
		r, ok := d.Ranges[v]
		if !ok {
			return fmt.Errorf("eval: domain variable %s has no range", v.Name)
		}
		minV, err := EvalInt(r.Min, env, nil)
		if err != nil {
			return err
		}
		ext, err := EvalInt(r.Extent, env, nil)
		if err != nil {
			return err
		}
		for x := minV; x < minV+ext; x++ {
			env[v] = IntValue(v.Type, x)
			point[i] = x
			if err := walk(i + 1); err != nil {
				return err
			}
		}
		delete(env, v)
		return nil
	}
	if err := walk(0); err != nil {
		return nil, err
	}
	return out, nil
}

// DomainVolume multiplies the range extents of the domain variables.
// It counts grid points, ignoring conditions.
func DomainVolume(d *domain.Domain, outer Env) (int64, error) {
	env := outer.Clone()
	vol := int64(1)
	for _, v := range d.Vars {
		r, ok := d.Ranges[v]
		if !ok {
			return 0, fmt.Errorf("eval: domain variable %s has no range", v.Name)
		}
		ext, err := EvalInt(r.Extent, env, nil)
		if err != nil {
			return 0, err
		}
		vol *= ext
	}
	return vol, nil
}

// CheckTransform verifies that the transform is a bijection between
// the points of its old and new domains: every old point maps through
// NewToOld to a distinct point of the new domain, OldToNew maps it
// back, and the two domains have the same number of points.
func CheckTransform(tr *domain.Transform, outer Env) error {
	oldPts, err := EnumeratePoints(tr.Old, outer)
	if err != nil {
		return err
	}
	newPts, err := EnumeratePoints(tr.New, outer)
	if err != nil {
		return err
	}
	newSet := make(map[string]bool, len(newPts))
	for _, q := range newPts {
		newSet[fmt.Sprint(q)] = true
	}

	seen := make(map[string]bool, len(oldPts))
	for _, p := range oldPts {
		env := outer.Clone()
		for i, v := range tr.Old.Vars {
			env[v] = IntValue(v.Type, p[i])
		}

		q := make([]int64, len(tr.New.Vars))
		newEnv := outer.Clone()
		for i, nv := range tr.New.Vars {
			e, ok := tr.NewToOld[nv]
			if !ok {
				return fmt.Errorf("eval: no NewToOld entry for %s", nv.Name)
			}
			q[i], err = EvalInt(e, env, nil)
			if err != nil {
				return err
			}
			newEnv[nv] = IntValue(nv.Type, q[i])
		}

		key := fmt.Sprint(q)
		if !newSet[key] {
			return fmt.Errorf("eval: image %v of old point %v is not in the new domain", q, p)
		}
		if seen[key] {
			return fmt.Errorf("eval: two old points map to the same new point %v", q)
		}
		seen[key] = true

		for i, v := range tr.Old.Vars {
			e, ok := tr.OldToNew[v]
			if !ok {
				return fmt.Errorf("eval: no OldToNew entry for %s", v.Name)
			}
			back, err := EvalInt(e, newEnv, nil)
			if err != nil {
				return err
			}
			if back != p[i] {
				return fmt.Errorf("eval: round trip of point %v changed %s: %d became %d",
					p, v.Name, p[i], back)
			}
		}
	}

	if len(oldPts) != len(newPts) {
		return fmt.Errorf("eval: old domain has %d points but new domain has %d",
			len(oldPts), len(newPts))
	}
	return nil
}

// CheckTransformRanges runs CheckTransform on every assignment of the
// outer parameter ranges. Nil outer means no parameters.
func CheckTransformRanges(tr *domain.Transform, outer expr.Ranges) error {
	vars := make([]*expr.Var, 0, len(outer))
	for v := range outer {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return expr.Compare(vars[i], vars[j]) < 0 })

	env := make(Env, len(vars))
	var walk func(i int) error
	walk = func(i int) error {
		if i == len(vars) {
			if err := CheckTransform(tr, env); err != nil {
				return fmt.Errorf("%w (parameters %s)", err, renderEnv(env))
			}
			return nil
		}
		v := vars[i]
		r := outer[v]
		minV, err := EvalInt(r.Min, env, nil)
		if err != nil {
			return err
		}
		ext, err := EvalInt(r.Extent, env, nil)
		if err != nil {
			return err
		}
		for x := minV; x < minV+ext; x++ {
			env[v] = IntValue(v.Type, x)
			if err := walk(i + 1); err != nil {
				return err
			}
		}
		delete(env, v)
		return nil
	}
	return walk(0)
}

// CheckEquivalent compares two expressions on every assignment of the
// ranged variables. The first differing point is reported.
func CheckEquivalent(a, b expr.Expr, vranges expr.Ranges, calls Resolver) error {
	vars := make([]*expr.Var, 0, len(vranges))
	for v := range vranges {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return expr.Compare(vars[i], vars[j]) < 0 })

	env := make(Env, len(vars))
	var walk func(i int) error
	walk = func(i int) error {
		if i == len(vars) {
			va, err := Eval(a, env, calls)
			if err != nil {
				return err
			}
			vb, err := Eval(b, env, calls)
			if err != nil {
				return err
			}
			if !va.Equal(vb) {
				return fmt.Errorf("eval: expressions differ at %s: %s vs %s",
					renderEnv(env), va, vb)
			}
			return nil
		}
		v := vars[i]
		r := vranges[v]
		minV, err := EvalInt(r.Min, env, calls)
		if err != nil {
			return err
		}
		ext, err := EvalInt(r.Extent, env, calls)
		if err != nil {
			return err
		}
		for x := minV; x < minV+ext; x++ {
			env[v] = IntValue(v.Type, x)
			if err := walk(i + 1); err != nil {
				return err
			}
		}
		delete(env, v)
		return nil
	}
	return walk(0)
}

func renderEnv(env Env) string {
	parts := make([]string, 0, len(env))
	for v, val := range env {
		parts = append(parts, fmt.Sprintf("%s=%s", v.Name, val))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
