package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// RuntimeError represents an error detected while evaluating or updating a
// document.
//
// Runtime errors are component-scoped: a failing component stops producing a
// value, and its dependents see an absent value, but the engine keeps going.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Component names the affected component, if any.
	Component string

	// Variable names the affected state variable, if any.
	Variable string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeCycleDetected indicates a state variable depends on itself with
	// no essential value to anchor the cycle.
	ErrCodeCycleDetected RuntimeErrorCode = "CYCLE_DETECTED"

	// ErrCodeDeclarationInvalid indicates a malformed state-variable table.
	ErrCodeDeclarationInvalid RuntimeErrorCode = "DECLARATION_INVALID"

	// ErrCodeUnknownComponent indicates a name or type that does not exist.
	ErrCodeUnknownComponent RuntimeErrorCode = "UNKNOWN_COMPONENT"

	// ErrCodeUnknownStateVariable indicates a missing state variable.
	ErrCodeUnknownStateVariable RuntimeErrorCode = "UNKNOWN_STATE_VARIABLE"

	// ErrCodeUnknownAction indicates an action the component does not expose.
	ErrCodeUnknownAction RuntimeErrorCode = "UNKNOWN_ACTION"

	// ErrCodeInverseFailed indicates no consistent upstream values were found
	// for a desired value.
	ErrCodeInverseFailed RuntimeErrorCode = "INVERSE_FAILED"

	// ErrCodeInverseDepth indicates an inverse chain exceeded its depth limit.
	ErrCodeInverseDepth RuntimeErrorCode = "INVERSE_DEPTH_EXCEEDED"

	// ErrCodeNotInitialized indicates a read before Initialize.
	ErrCodeNotInitialized RuntimeErrorCode = "NOT_INITIALIZED"

	// ErrCodeTerminated indicates use after Terminate.
	ErrCodeTerminated RuntimeErrorCode = "TERMINATED"

	// ErrCodeUnresolvedPath indicates a name path that names no component.
	ErrCodeUnresolvedPath RuntimeErrorCode = "UNRESOLVED_PATH"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.Component != "" && e.Variable != "":
		return fmt.Sprintf("%s: %s (component=%s, variable=%s)", e.Code, e.Message, e.Component, e.Variable)
	case e.Component != "":
		return fmt.Sprintf("%s: %s (component=%s)", e.Code, e.Message, e.Component)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsCycleError returns true if the error is a cycle detection error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	return hasCode(err, ErrCodeCycleDetected)
}

// IsInverseFailure returns true if an update could not be inverted, either
// because a definition refused it or because the chain ran too deep.
func IsInverseFailure(err error) bool {
	return hasCode(err, ErrCodeInverseFailed) || hasCode(err, ErrCodeInverseDepth) ||
		IsDepthExceededError(err)
}

// IsDeclarationError returns true for malformed type declarations.
func IsDeclarationError(err error) bool {
	var de *DeclarationError
	if errors.As(err, &de) {
		return true
	}
	return hasCode(err, ErrCodeDeclarationInvalid)
}

// IsNotFound returns true for unknown components, state variables, actions
// and unresolved paths.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeUnknownComponent) ||
		hasCode(err, ErrCodeUnknownStateVariable) ||
		hasCode(err, ErrCodeUnknownAction) ||
		hasCode(err, ErrCodeUnresolvedPath)
}

// NewCycleError creates a RuntimeError for an unanchored dependency cycle.
func NewCycleError(component, variable string, path []string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeCycleDetected,
		Message:   "circular dependency with no essential value: " + strings.Join(path, " -> "),
		Component: component,
		Variable:  variable,
	}
}

// NewInverseError creates a RuntimeError for a refused inverse.
func NewInverseError(component, variable, reason string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeInverseFailed,
		Message:   reason,
		Component: component,
		Variable:  variable,
	}
}

// DeclarationError reports every problem found in one component type's
// state-variable table. It is detected once, at registration.
type DeclarationError struct {
	Type     string
	Problems map[string]string // variable -> problem
}

// Error implements the error interface.
func (e *DeclarationError) Error() string {
	names := make([]string, 0, len(e.Problems))
	for name := range e.Problems {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e.Problems[name]
	}
	return fmt.Sprintf("%s: invalid declaration of %q: %s", ErrCodeDeclarationInvalid, e.Type, strings.Join(parts, "; "))
}
