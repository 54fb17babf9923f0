package catalog

import (
	"fmt"
	"strconv"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/geom"
	"github.com/roach88/vellum/internal/ir"
)

// Opaque tags for values that only travel between state variables.
const (
	tagNearestPoint      = "nearestPoint"
	tagConstraint        = "constraint"
	tagSegmentAttractors = "segmentAttractors"
)

// ConstraintFunc moves coordinates onto a constrained position. ok is false
// when the constraint leaves them alone.
type ConstraintFunc func(coords []float64) (out []float64, ok bool)

// SegmentAttractor is what a line segment needs to attract both of its
// endpoints at once.
type SegmentAttractor struct {
	Candidates []geom.NearestPointFunc
	Scales     []float64
	Threshold2 float64
}

func nearestPointValue(fn geom.NearestPointFunc) ir.IRValue {
	return ir.IROpaque{Tag: tagNearestPoint, V: fn}
}

func nearestPointOf(v ir.IRValue) (geom.NearestPointFunc, bool) {
	o, ok := v.(ir.IROpaque)
	if !ok || o.Tag != tagNearestPoint {
		return nil, false
	}
	fn, ok := o.V.(geom.NearestPointFunc)
	return fn, ok
}

func constraintValue(fn ConstraintFunc) ir.IRValue {
	return ir.IROpaque{Tag: tagConstraint, V: fn}
}

func constraintOf(v ir.IRValue) (ConstraintFunc, bool) {
	o, ok := v.(ir.IROpaque)
	if !ok || o.Tag != tagConstraint {
		return nil, false
	}
	fn, ok := o.V.(ConstraintFunc)
	return fn, ok
}

func attractorsValue(as []SegmentAttractor) ir.IRValue {
	return ir.IROpaque{Tag: tagSegmentAttractors, V: as}
}

func attractorsOf(v ir.IRValue) []SegmentAttractor {
	o, ok := v.(ir.IROpaque)
	if !ok || o.Tag != tagSegmentAttractors {
		return nil
	}
	as, _ := o.V.([]SegmentAttractor)
	return as
}

// childValues collects one variable from every component matched by a
// child dependency, in document order.
func childValues(deps engine.DependencyValues, dep, variable string) []ir.IRValue {
	comps := deps.Components(dep)
	out := make([]ir.IRValue, 0, len(comps))
	for _, c := range comps {
		v, ok := c.Values[variable]
		if !ok {
			v = ir.IRNull{}
		}
		out = append(out, v)
	}
	return out
}

// nearestPoints gathers the attractor functions of matched children.
func nearestPoints(deps engine.DependencyValues, dep string) []geom.NearestPointFunc {
	var out []geom.NearestPointFunc
	for _, v := range childValues(deps, dep, "nearestPoint") {
		if fn, ok := nearestPointOf(v); ok {
			out = append(out, fn)
		}
	}
	return out
}

// scalesOf reads a scales vector; anything else means unit scales.
func scalesOf(v ir.IRValue) []float64 {
	xs, ok := ir.AsVector(v)
	if !ok {
		return nil
	}
	return xs
}

// vectorArg reads a numeric vector action argument.
func vectorArg(args ir.IRObject, name string) ([]float64, bool, error) {
	v, ok := args[name]
	if !ok || ir.IsNull(v) {
		return nil, false, nil
	}
	xs, ok := ir.AsVector(v)
	if !ok {
		return nil, false, fmt.Errorf("%s must be a list of numbers", name)
	}
	return xs, true, nil
}

func numberArg(args ir.IRObject, name string) (float64, bool, error) {
	v, ok := args[name]
	if !ok || ir.IsNull(v) {
		return 0, false, nil
	}
	f, ok := ir.AsFloat(v)
	if !ok {
		return 0, false, fmt.Errorf("%s must be a number", name)
	}
	return f, true, nil
}

func stringList(v ir.IRValue) []string {
	switch val := v.(type) {
	case ir.IRString:
		return []string{string(val)}
	case ir.IRArray:
		out := make([]string, 0, len(val))
		for _, item := range val {
			switch s := item.(type) {
			case ir.IRString:
				out = append(out, string(s))
			case ir.IRNumber:
				out = append(out, strconv.FormatFloat(float64(s), 'g', -1, 64))
			}
		}
		return out
	}
	return nil
}

func subVec(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func addVec(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// vecDeps reads two same-length vectors.
func vecDeps(deps engine.DependencyValues, a, b string) ([]float64, []float64, bool) {
	va, ok1 := deps.Vector(a)
	vb, ok2 := deps.Vector(b)
	if !ok1 || !ok2 || len(va) != len(vb) {
		return nil, nil, false
	}
	return va, vb, true
}

// vectorResult validates a vector-valued attribute.
func vectorResult(v ir.IRValue, what string) engine.Result {
	xs, ok := ir.AsVector(v)
	if !ok {
		return engine.Result{
			SetValue: ir.IRNull{},
			Warnings: []string{fmt.Sprintf("%s must be a list of numbers, not %s", what, describe(v))},
		}
	}
	return engine.Result{SetValue: ir.Vec(xs...)}
}

// keyIndex returns the position of a one-dimensional array key.
func keyIndex(k ir.ArrayKey) (int, bool) {
	idx, err := k.Indices()
	if err != nil || len(idx) != 1 {
		return 0, false
	}
	return idx[0], true
}
