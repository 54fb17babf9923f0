package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionIDDeterminism(t *testing.T) {
	args := IRObject{"x": IRNumber(4), "y": IRNumber(4)}

	id1, err := ActionID("doc-1", "r", "moveRay", args, 1)
	require.NoError(t, err)
	id2, err := ActionID("doc-1", "r", "moveRay", args, 1)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "ActionID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestActionIDChangesWithInput(t *testing.T) {
	args := IRObject{"x": IRNumber(1)}

	id1 := MustActionID("doc-1", "P", "movePoint", args, 1)
	id2 := MustActionID("doc-2", "P", "movePoint", args, 1)
	id3 := MustActionID("doc-1", "P", "movePoint", args, 2)
	id4 := MustActionID("doc-1", "Q", "movePoint", args, 1)

	assert.NotEqual(t, id1, id2)
	assert.NotEqual(t, id1, id3)
	assert.NotEqual(t, id1, id4)
}

func TestActionIDRejectsNaN(t *testing.T) {
	_, err := ActionID("doc", "P", "movePoint", IRObject{"x": IRNumber(math.NaN())}, 1)
	assert.Error(t, err)
}

func TestDomainSeparation(t *testing.T) {
	obj := IRObject{"a": IRNumber(1)}
	e, err := EssentialHash(obj)
	require.NoError(t, err)
	v, err := VariantHash(obj)
	require.NoError(t, err)
	assert.NotEqual(t, e, v, "same payload under different domains must differ")
}
