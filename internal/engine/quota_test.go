package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer_WithinLimit(t *testing.T) {
	q := NewQuotaEnforcer(3)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enter("P", "x"), "level %d should be allowed", i+1)
	}
	assert.Equal(t, 3, q.Current())
	assert.Equal(t, 3, q.MaxDepth())

	q.Leave()
	q.Leave()
	assert.Equal(t, 1, q.Current())
	assert.Equal(t, 3, q.Peak())
}

func TestQuotaEnforcer_ExceedsLimit(t *testing.T) {
	q := NewQuotaEnforcer(2)
	require.NoError(t, q.Enter("P", "x"))
	require.NoError(t, q.Enter("Q", "y"))

	err := q.Enter("R", "z")
	require.Error(t, err)

	var de *DepthExceededError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "R", de.Component)
	assert.Equal(t, "z", de.Variable)
	assert.Equal(t, 3, de.Depth)
	assert.Equal(t, 2, de.Limit)
	assert.Equal(t, 2, q.Current(), "a refused Enter does not descend")
	assert.Contains(t, err.Error(), string(ErrCodeInverseDepth))
}

func TestQuotaEnforcer_LeaveAtZero(t *testing.T) {
	q := NewQuotaEnforcer(1)
	q.Leave()
	assert.Zero(t, q.Current())
	assert.NoError(t, q.Enter("P", "x"))
}

func TestDepthExceededError_Predicates(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &DepthExceededError{Component: "P", Variable: "x", Depth: 65, Limit: 64})

	assert.True(t, IsDepthExceededError(err))
	assert.True(t, IsInverseFailure(err))
	assert.False(t, IsCycleError(err))

	var de *DepthExceededError
	require.ErrorAs(t, err, &de)
	re := de.RuntimeError()
	assert.Equal(t, ErrCodeInverseDepth, re.Code)
	assert.Equal(t, "P", re.Component)
}
