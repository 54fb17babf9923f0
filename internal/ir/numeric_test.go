package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsVector(t *testing.T) {
	xs, ok := AsVector(Vec(1, 2, 3))
	assert.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3}, xs)

	xs, ok = AsVector(IRNumber(7))
	assert.True(t, ok)
	assert.Equal(t, []float64{7}, xs)

	xs, ok = AsVector(IRArray{IRNumber(1), IRString("x")})
	assert.False(t, ok)
	assert.Len(t, xs, 2)
	assert.True(t, math.IsNaN(xs[1]))

	_, ok = AsVector(IRString("nope"))
	assert.False(t, ok)
}

func TestEqual_NaNSemantics(t *testing.T) {
	nan := IRNumber(math.NaN())

	assert.False(t, Equal(nan, nan), "NaN comparisons are false")
	assert.True(t, EqualNaN(nan, nan), "explicit both-NaN test matches")
	assert.False(t, EqualNaN(nan, IRNumber(1)))
	assert.True(t, EqualNaN(IRArray{nan, IRNumber(2)}, IRArray{nan, IRNumber(2)}))
}

func TestEqual_Structural(t *testing.T) {
	assert.True(t, Equal(Vec(1, 2), Vec(1, 2)))
	assert.False(t, Equal(Vec(1, 2), Vec(1, 2, 3)))
	assert.True(t, Equal(IRNull{}, nil))
	assert.False(t, Equal(IRNumber(1), IRString("1")))
	assert.True(t, Equal(IRObject{"a": Vec(1)}, IRObject{"a": Vec(1)}))
	assert.False(t, Equal(IROpaque{Tag: "f"}, IROpaque{Tag: "f"}))
}

func TestClone_IsDeep(t *testing.T) {
	orig := IRObject{"xs": Vec(1, 2)}
	cp := Clone(orig).(IRObject)
	cp["xs"].(IRArray)[0] = IRNumber(99)

	assert.Equal(t, IRNumber(1), orig["xs"].(IRArray)[0])
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{-2.5, "-2.5"},
		{0.1, "0.1"},
		{1e-6, "0.000001"},
		{1e-7, "1e-7"},
		{1e21, "1e+21"},
		{123456789, "123456789"},
		{1.5e300, "1.5e+300"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatNumber(tt.in), "input %v", tt.in)
	}
}
