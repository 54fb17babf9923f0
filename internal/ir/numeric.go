package ir

import (
	"math"
	"strconv"
)

// AsFloat extracts a number. Numeric strings are not coerced.
func AsFloat(v IRValue) (float64, bool) {
	n, ok := v.(IRNumber)
	if !ok {
		return math.NaN(), false
	}
	return float64(n), true
}

// AsVector extracts a numeric vector. A bare number is treated as a
// one-dimensional vector. Non-numeric entries become NaN and ok is false.
func AsVector(v IRValue) ([]float64, bool) {
	switch val := v.(type) {
	case IRNumber:
		return []float64{float64(val)}, true
	case IRArray:
		out := make([]float64, len(val))
		ok := true
		for i, elem := range val {
			f, isNum := AsFloat(elem)
			if !isNum {
				ok = false
			}
			out[i] = f
		}
		return out, ok
	default:
		return nil, false
	}
}

// IsNull reports whether v is absent.
func IsNull(v IRValue) bool {
	if v == nil {
		return true
	}
	_, ok := v.(IRNull)
	return ok
}

// Equal compares two values structurally. Numbers follow IEEE comparison,
// so NaN never equals anything, including NaN. Use EqualNaN when two NaNs
// should match. Opaque values are never equal.
func Equal(a, b IRValue) bool {
	return equal(a, b, false)
}

// EqualNaN is Equal except that NaN matches NaN.
func EqualNaN(a, b IRValue) bool {
	return equal(a, b, true)
}

func equal(a, b IRValue, nanEqual bool) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch av := a.(type) {
	case IRString:
		bv, ok := b.(IRString)
		return ok && av == bv
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	case IRNumber:
		bv, ok := b.(IRNumber)
		if !ok {
			return false
		}
		if nanEqual && math.IsNaN(float64(av)) && math.IsNaN(float64(bv)) {
			return true
		}
		return av == bv
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equal(av[i], bv[i], nanEqual) {
				return false
			}
		}
		return true
	case IRObject:
		bv, ok := b.(IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !equal(v, other, nanEqual) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone returns a deep copy of v. Opaque payloads are shared.
func Clone(v IRValue) IRValue {
	switch val := v.(type) {
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case IRObject:
		out := make(IRObject, len(val))
		for k, elem := range val {
			out[k] = Clone(elem)
		}
		return out
	default:
		return v
	}
}

// formatNumber renders a finite float in ECMAScript Number.toString form,
// as RFC 8785 requires: fixed notation for 1e-6 <= |f| < 1e21, otherwise
// exponent notation without a leading zero in the exponent.
func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	format := byte('f')
	if abs < 1e-6 || abs >= 1e21 {
		format = 'e'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if format == 'e' {
		n := len(s)
		if n >= 4 && s[n-4] == 'e' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
	}
	return s
}
