package testutil

import (
	"fmt"
	"math"
	"testing"

	"github.com/roach88/vellum/internal/ir"
)

// DefaultTolerance is the absolute tolerance used when none is given.
const DefaultTolerance = 1e-9

// ApproxEqual compares values structurally, allowing numbers to differ by
// at most tol. NaN equals NaN. Strings, bools and nulls compare exactly.
func ApproxEqual(want, got ir.IRValue, tol float64) bool {
	return approxDiff(want, got, tol, "") == ""
}

// ApproxDiff describes the first difference found by ApproxEqual, or
// returns "" when the values match.
func ApproxDiff(want, got ir.IRValue, tol float64) string {
	return approxDiff(want, got, tol, "")
}

func approxDiff(want, got ir.IRValue, tol float64, at string) string {
	where := at
	if where == "" {
		where = "value"
	}

	if wf, ok := want.(ir.IRNumber); ok {
		gf, ok := got.(ir.IRNumber)
		if !ok {
			return fmt.Sprintf("%s: want number %v, got %s", where, wf, describe(got))
		}
		w, g := float64(wf), float64(gf)
		if math.IsNaN(w) && math.IsNaN(g) {
			return ""
		}
		if w == g || math.Abs(w-g) <= tol {
			return ""
		}
		return fmt.Sprintf("%s: want %v, got %v", where, w, g)
	}

	switch w := want.(type) {
	case ir.IRArray:
		g, ok := got.(ir.IRArray)
		if !ok {
			return fmt.Sprintf("%s: want array, got %s", where, describe(got))
		}
		if len(w) != len(g) {
			return fmt.Sprintf("%s: want %d entries, got %d", where, len(w), len(g))
		}
		for i := range w {
			if d := approxDiff(w[i], g[i], tol, fmt.Sprintf("%s[%d]", at, i)); d != "" {
				return d
			}
		}
		return ""
	case ir.IRObject:
		g, ok := got.(ir.IRObject)
		if !ok {
			return fmt.Sprintf("%s: want object, got %s", where, describe(got))
		}
		for _, k := range w.SortedKeys() {
			gv, ok := g[k]
			if !ok {
				return fmt.Sprintf("%s: missing key %q", where, k)
			}
			if d := approxDiff(w[k], gv, tol, joinKey(at, k)); d != "" {
				return d
			}
		}
		for _, k := range g.SortedKeys() {
			if _, ok := w[k]; !ok {
				return fmt.Sprintf("%s: unexpected key %q", where, k)
			}
		}
		return ""
	}

	if ir.IsNull(want) && ir.IsNull(got) {
		return ""
	}
	if !ir.Equal(want, got) {
		return fmt.Sprintf("%s: want %s, got %s", where, describe(want), describe(got))
	}
	return ""
}

func joinKey(at, k string) string {
	if at == "" {
		return k
	}
	return at + "." + k
}

func describe(v ir.IRValue) string {
	if v == nil {
		return "null"
	}
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return fmt.Sprintf("%T", v)
	}
	return string(data)
}

// AssertApprox fails t when got differs from want by more than tol.
func AssertApprox(t testing.TB, want, got ir.IRValue, tol float64) bool {
	t.Helper()
	if d := ApproxDiff(want, got, tol); d != "" {
		t.Errorf("values differ: %s", d)
		return false
	}
	return true
}
