package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxInverseDepth bounds how many variables one desired write may
// pass through on its way to essential values.
const DefaultMaxInverseDepth = 64

// QuotaEnforcer bounds the depth of an inverse chain.
//
// Cycle detection catches an inverse that returns to a variable already on
// its path; the depth quota catches chains that never repeat but never
// bottom out either, such as a long run of copies of copies.
type QuotaEnforcer struct {
	maxDepth int
	current  int
	peak     int
}

// NewQuotaEnforcer creates an enforcer with the given limit.
func NewQuotaEnforcer(maxDepth int) *QuotaEnforcer {
	return &QuotaEnforcer{maxDepth: maxDepth}
}

// Enter descends one level, failing with a DepthExceededError once the
// limit is passed. Every successful Enter must be paired with Leave.
func (q *QuotaEnforcer) Enter(component, variable string) error {
	if q.current >= q.maxDepth {
		return &DepthExceededError{
			Component: component,
			Variable:  variable,
			Depth:     q.current + 1,
			Limit:     q.maxDepth,
		}
	}
	q.current++
	q.peak = max(q.peak, q.current)
	return nil
}

// Leave ascends one level.
func (q *QuotaEnforcer) Leave() {
	if q.current > 0 {
		q.current--
	}
}

// Current returns the current depth.
func (q *QuotaEnforcer) Current() int { return q.current }

// Peak returns the deepest level reached.
func (q *QuotaEnforcer) Peak() int { return q.peak }

// MaxDepth returns the limit.
func (q *QuotaEnforcer) MaxDepth() int { return q.maxDepth }

// DepthExceededError is returned when an inverse chain passes the limit.
// The branch that hit it is dropped; sibling branches still apply.
type DepthExceededError struct {
	Component string
	Variable  string
	Depth     int
	Limit     int
}

// Error implements the error interface.
func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("%s: inverse of %s.%s exceeded max depth: %d > %d",
		ErrCodeInverseDepth, e.Component, e.Variable, e.Depth, e.Limit)
}

// RuntimeError converts the error to a RuntimeError so it matches
// IsInverseFailure.
func (e *DepthExceededError) RuntimeError() *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeInverseDepth,
		Message:   fmt.Sprintf("depth %d exceeds limit %d", e.Depth, e.Limit),
		Component: e.Component,
		Variable:  e.Variable,
	}
}

// IsDepthExceededError returns true if the error is a DepthExceededError.
// Uses errors.As to handle wrapped errors.
func IsDepthExceededError(err error) bool {
	var de *DepthExceededError
	return errors.As(err, &de)
}
