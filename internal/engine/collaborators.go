package engine

import (
	"context"
	"time"

	"github.com/roach88/vellum/internal/ir"
)

// ActionRequest asks a component to perform an action.
type ActionRequest struct {
	// Component is a name path resolved from the document root.
	Component string      `json:"component" yaml:"component"`
	Action    string      `json:"action" yaml:"action"`
	Args      ir.IRObject `json:"args,omitempty" yaml:"args,omitempty"`
}

// ActionRecord is the journal entry for a processed action.
type ActionRecord struct {
	ID         string      `json:"id"`
	DocumentID string      `json:"document_id"`
	Seq        int64       `json:"seq"`
	Component  string      `json:"component"`
	Action     string      `json:"action"`
	Args       ir.IRObject `json:"args"`

	// EssentialHash fingerprints the essential values after the action.
	EssentialHash string `json:"essential_hash"`

	// Error is set when the action had no effect.
	Error string `json:"error,omitempty"`
}

// Journal persists processed actions. Implemented by the store package.
type Journal interface {
	RecordAction(ctx context.Context, rec ActionRecord) error
}

// Metrics receives engine counters. Implemented by the telemetry package.
type Metrics interface {
	Recomputed(componentType, variable string)
	Invalidated(componentType string)
	InverseApplied(outcome string)
	ActionProcessed(action, outcome string, elapsed time.Duration)
	CompositeExpanded(componentType string)
}

type noopMetrics struct{}

func (noopMetrics) Recomputed(string, string)                     {}
func (noopMetrics) Invalidated(string)                            {}
func (noopMetrics) InverseApplied(string)                         {}
func (noopMetrics) ActionProcessed(string, string, time.Duration) {}
func (noopMetrics) CompositeExpanded(string)                      {}
