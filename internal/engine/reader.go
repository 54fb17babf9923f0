package engine

import (
	"fmt"

	"github.com/roach88/vellum/internal/ir"
)

// Reader gives collaborator code (composite expansion, variant selection,
// actions) read access to one component's state.
type Reader struct {
	e *Engine
	c *Component
}

// Name returns the component's name.
func (r Reader) Name() string { return r.c.name }

// TypeName returns the component's type name.
func (r Reader) TypeName() string { return r.c.typ.Name }

// Value reads a state variable (or entry) of the component. Unknown names
// read as IRNull.
func (r Reader) Value(variable string) ir.IRValue {
	sv, key, ok := lookupVar(r.c, variable)
	if !ok {
		return ir.IRNull{}
	}
	return r.e.readTarget(&target{sv: sv, key: key})
}

// Float reads a numeric state variable.
func (r Reader) Float(variable string) (float64, bool) {
	return ir.AsFloat(r.Value(variable))
}

// Vector reads a numeric vector state variable.
func (r Reader) Vector(variable string) ([]float64, bool) {
	return ir.AsVector(r.Value(variable))
}

// Attribute reads the value of an attribute the component was given.
func (r Reader) Attribute(name string) (ir.IRValue, bool) {
	attr, ok := r.c.attributes[name]
	if !ok {
		return ir.IRNull{}, false
	}
	return r.e.scalarValue(attr.vars["value"]), true
}

// Lookup reads "component.variable" or "component" (its primary
// variable), resolving the path from this component.
func (r Reader) Lookup(path string) (ir.IRValue, error) {
	return r.e.lookup(path, r.c)
}

// Warn records a warning against the component.
func (r Reader) Warn(msg string) {
	r.e.report(Diagnostic{
		Level:     LevelWarning,
		Message:   msg,
		Component: r.c.label(),
		Range:     r.c.rng,
	})
}

// lookup resolves a path to a variable and reads it.
func (e *Engine) lookup(path string, origin *Component) (ir.IRValue, error) {
	res := e.resolvePath(path, origin, true)
	if res.NodeIndex < 0 {
		return nil, &RuntimeError{Code: ErrCodeUnresolvedPath, Message: fmt.Sprintf("cannot resolve %q", path)}
	}
	comp := e.components[res.NodeIndex]
	variable := comp.typ.PrimaryVariable
	switch {
	case res.Resolved:
	case len(res.Remaining) == 1:
		variable = res.Remaining[0]
	default:
		return nil, &RuntimeError{
			Code:      ErrCodeUnresolvedPath,
			Message:   fmt.Sprintf("cannot resolve %q", path),
			Component: comp.label(),
			Details:   map[string]string{"remaining": fmt.Sprint(res.Remaining)},
		}
	}
	if variable == "" {
		return nil, &RuntimeError{
			Code:      ErrCodeUnknownStateVariable,
			Message:   "component has no primary variable",
			Component: comp.label(),
		}
	}
	sv, key, ok := lookupVar(comp, variable)
	if !ok {
		return nil, &RuntimeError{
			Code:      ErrCodeUnknownStateVariable,
			Message:   fmt.Sprintf("no state variable %q", variable),
			Component: comp.label(),
			Variable:  variable,
		}
	}
	return e.readTarget(&target{sv: sv, key: key}), nil
}

// ActionContext is passed to action handlers.
type ActionContext struct {
	Reader
	updates int
}

// RequestUpdate inverts the updates as one batch and commits every branch
// that succeeded. It returns an error only when nothing could be applied.
func (ac *ActionContext) RequestUpdate(updates ...Update) error {
	ac.updates += len(updates)
	return ac.e.requestUpdates(ac.c, updates)
}
