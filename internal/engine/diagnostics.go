package engine

import (
	"fmt"
	"sync"
)

// Level is the severity of a diagnostic.
type Level string

const (
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Position is a location in the source a component was compiled from.
type Position struct {
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
	Line   int    `json:"line,omitempty" yaml:"line,omitempty"`
	Column int    `json:"column,omitempty" yaml:"column,omitempty"`
}

// IsValid reports whether the position carries a line.
func (p Position) IsValid() bool { return p.Line > 0 }

// String formats the position as file:line:column.
func (p Position) String() string {
	if !p.IsValid() {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Range is a source range.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Diagnostic is a warning (non-fatal) or error (fatal to the enclosing
// component only).
type Diagnostic struct {
	Level     Level  `json:"level"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
	Component string `json:"component,omitempty"`
	Variable  string `json:"variable,omitempty"`
	Range     Range  `json:"range"`
}

// diagnostics collects messages, dropping exact repeats so a warning
// emitted on every recomputation is reported once.
type diagnostics struct {
	mu    sync.Mutex
	list  []Diagnostic
	index map[Diagnostic]bool
}

func (d *diagnostics) add(diag Diagnostic) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.index == nil {
		d.index = make(map[Diagnostic]bool)
	}
	if d.index[diag] {
		return false
	}
	d.index[diag] = true
	d.list = append(d.list, diag)
	return true
}

func (d *diagnostics) snapshot() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Diagnostic, len(d.list))
	copy(out, d.list)
	return out
}

func (d *diagnostics) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.list = nil
	d.index = nil
}
