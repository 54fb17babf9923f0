package harness

import "github.com/roach88/vellum/internal/ir"

// TraceEvent is one journaled action.
type TraceEvent struct {
	Seq       int64       `json:"seq"`
	Component string      `json:"component"`
	Action    string      `json:"action"`
	Args      ir.IRObject `json:"args,omitempty"`
	Error     string      `json:"error,omitempty"`

	// Setup marks actions from the setup section.
	Setup bool `json:"setup,omitempty"`
}

// Ref returns "component.action", the form assertions use.
func (e TraceEvent) Ref() string { return e.Component + "." + e.Action }

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion matched.
	Pass bool `json:"pass"`

	// Trace lists the journaled actions in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Essentials are the document's essential values after the flow.
	Essentials ir.IRObject `json:"essentials"`

	// Diagnostics are the document's diagnostics as "level: message".
	Diagnostics []string `json:"diagnostics,omitempty"`

	// Variant is the name of the variant the document initialized with.
	Variant string `json:"variant"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Trace:      []TraceEvent{},
		Errors:     []string{},
		Essentials: ir.IRObject{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
