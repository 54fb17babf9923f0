package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/vellum/internal/ir"
)

// Update is one desired-value write requested by an action.
type Update struct {
	// Component is a name path; empty means the acting component.
	Component string
	// Variable may be an entry name such as "x2".
	Variable string
	// Key selects one entry of an array variable.
	Key   ir.ArrayKey
	Value ir.IRValue
}

// stagedWrite is an essential write waiting for its update to finish.
type stagedWrite struct {
	sv    *stateVariable
	key   ir.ArrayKey
	value ir.IRValue
}

// inversePass is the scratch state of one batch of updates.
type inversePass struct {
	workspaces map[*stateVariable]*Workspace
	path       *CycleDetector
	quota      *QuotaEnforcer
}

func (e *Engine) newInversePass() *inversePass {
	return &inversePass{
		workspaces: make(map[*stateVariable]*Workspace),
		path:       NewCycleDetector(),
		quota:      NewQuotaEnforcer(e.maxInverseDepth),
	}
}

func (p *inversePass) workspace(sv *stateVariable) *Workspace {
	ws, ok := p.workspaces[sv]
	if !ok {
		ws = newWorkspace()
		p.workspaces[sv] = ws
	}
	return ws
}

// requestUpdates inverts a batch of updates and commits every branch that
// succeeded. It fails only when no update could be applied at all.
func (e *Engine) requestUpdates(origin *Component, updates []Update) error {
	pass := e.newInversePass()
	var staged []stagedWrite
	var errs []error

	for _, u := range updates {
		sv, key, err := e.updateTarget(origin, u)
		if err == nil {
			var st []stagedWrite
			st, err = e.invert(pass, sv, key, u.Value)
			staged = append(staged, st...)
		}
		if err != nil {
			errs = append(errs, err)
			e.logger.Warn("update dropped",
				"component", origin.label(),
				"target", u.Component,
				"variable", u.Variable,
				"error", err,
			)
			e.metrics.InverseApplied("failed")
			continue
		}
		e.metrics.InverseApplied("applied")
	}

	e.commit(staged)

	if len(updates) > 0 && len(errs) == len(updates) {
		return errors.Join(errs...)
	}
	return nil
}

func (e *Engine) updateTarget(origin *Component, u Update) (*stateVariable, ir.ArrayKey, error) {
	comp := origin
	if u.Component != "" {
		res := e.resolvePath(u.Component, origin, true)
		if !res.Resolved {
			return nil, "", &RuntimeError{
				Code:    ErrCodeUnresolvedPath,
				Message: fmt.Sprintf("cannot resolve %q", u.Component),
			}
		}
		comp = e.components[res.NodeIndex]
	}
	sv, key, ok := lookupVar(comp, u.Variable)
	if !ok {
		return nil, "", &RuntimeError{
			Code:      ErrCodeUnknownStateVariable,
			Message:   fmt.Sprintf("no state variable %q", u.Variable),
			Component: comp.label(),
			Variable:  u.Variable,
		}
	}
	if u.Key != "" {
		key = u.Key
	}
	return sv, key, nil
}

// commit applies staged essential writes in order; later writes to the
// same value win.
func (e *Engine) commit(staged []stagedWrite) {
	for _, w := range staged {
		e.writeEssential(w.sv, w.key, w.value)
		e.logger.Debug("essential value written",
			"component", w.sv.comp.label(),
			"variable", w.sv.name,
			"key", string(w.key),
		)
	}
}

// invert translates a desired value for sv (one entry when key is set)
// into staged essential writes. Nothing is written until the whole batch
// has been inverted.
func (e *Engine) invert(pass *inversePass, sv *stateVariable, key ir.ArrayKey, desired ir.IRValue) ([]stagedWrite, error) {
	if sv.comp.failed != nil {
		return nil, NewInverseError(sv.comp.label(), sv.name, "component has failed")
	}
	if desired == nil {
		desired = ir.IRNull{}
	}

	f := frame{sv: sv, key: string(key)}
	if pass.path.WouldCycle(f) {
		// The chain came back to a variable it is already solving for.
		// Root it at that variable's essential value.
		if sv.hasEssential || sv.def.HasEssential {
			return []stagedWrite{{sv: sv, key: key, value: desired}}, nil
		}
		return nil, NewCycleError(sv.comp.label(), sv.name, pass.path.Path(f))
	}
	if err := pass.quota.Enter(sv.comp.label(), sv.name); err != nil {
		return nil, err
	}
	defer pass.quota.Leave()
	pass.path.Push(f)
	defer pass.path.Pop()

	if !sv.def.IsArray {
		return e.invertScalar(pass, sv, desired)
	}
	return e.invertArray(pass, sv, key, desired)
}

func (e *Engine) invertScalar(pass *inversePass, sv *stateVariable, desired ir.IRValue) ([]stagedWrite, error) {
	current := e.scalarValue(sv)
	if sv.comp.failed != nil {
		return nil, NewInverseError(sv.comp.label(), sv.name, "component has failed")
	}

	if sv.def.InverseDefinition == nil {
		if sv.usedEssential || sv.def.Definition == nil {
			return []stagedWrite{{sv: sv, value: desired}}, nil
		}
		return nil, NewInverseError(sv.comp.label(), sv.name, "no inverse definition")
	}

	req := InverseRequest{
		Desired:       desired,
		Deps:          e.collect(sv.deps),
		Current:       current,
		UsedEssential: sv.usedEssential,
		Workspace:     pass.workspace(sv),
	}
	res, err := callInverse(sv.def.InverseDefinition, req)
	if err != nil {
		e.failComponent(sv.comp, fmt.Errorf("%s: inverse definition: %w", sv.name, err))
		return nil, NewInverseError(sv.comp.label(), sv.name, err.Error())
	}
	return e.applyInverse(pass, sv, "", res)
}

func (e *Engine) invertArray(pass *inversePass, sv *stateVariable, key ir.ArrayKey, desired ir.IRValue) ([]stagedWrite, error) {
	current := e.arrayEntries(sv, nil)
	if sv.comp.failed != nil {
		return nil, NewInverseError(sv.comp.label(), sv.name, "component has failed")
	}

	var desiredByKey map[ir.ArrayKey]ir.IRValue
	if key != "" {
		desiredByKey = map[ir.ArrayKey]ir.IRValue{key: desired}
	} else {
		desiredByKey = ir.KeysFromArray(desired, sv.def.dims())
	}
	for k := range desiredByKey {
		if !ir.KeyInSize(k, sv.size) {
			e.warn(sv, fmt.Sprintf("ignoring desired value for key %s outside size %v", k, sv.size))
			delete(desiredByKey, k)
		}
	}
	if len(desiredByKey) == 0 {
		return nil, NewInverseError(sv.comp.label(), sv.name, "no desired entries inside the array")
	}

	ws := pass.workspace(sv)
	if sv.def.WholeArray {
		// Merge into the pass's accumulated vector, then complete it from
		// current values so the inverse sees every coordinate.
		for k, v := range desiredByKey {
			ws.DesiredByKey[k] = v
		}
		desiredByKey = make(map[ir.ArrayKey]ir.IRValue, len(sv.keys))
		for _, k := range sv.keys {
			if v, ok := ws.DesiredByKey[k]; ok {
				desiredByKey[k] = v
			} else {
				desiredByKey[k] = current[k]
			}
		}
	}

	usedByKey := make(map[ir.ArrayKey]bool, len(sv.entries))
	for k, en := range sv.entries {
		usedByKey[k] = en.usedEssential
	}

	if sv.def.InverseArrayDefinitionByKey == nil {
		var staged []stagedWrite
		for _, k := range sortedKeys(desiredByKey) {
			if !usedByKey[k] {
				return nil, NewInverseError(sv.comp.label(), sv.name,
					fmt.Sprintf("no inverse definition and key %s is not essential", k))
			}
			staged = append(staged, stagedWrite{sv: sv, key: k, value: desiredByKey[k]})
		}
		return staged, nil
	}

	depsByKey := make(map[ir.ArrayKey]DependencyValues, len(desiredByKey))
	for k := range desiredByKey {
		depsByKey[k] = e.collect(sv.depsByKey[k])
	}
	req := InverseRequest{
		DesiredByKey:       desiredByKey,
		Deps:               e.collect(sv.deps),
		DepsByKey:          depsByKey,
		Current:            ir.ArrayFromKeys(sv.size, current),
		UsedEssentialByKey: usedByKey,
		Size:               append([]int(nil), sv.size...),
		Workspace:          ws,
	}
	res, err := callInverse(sv.def.InverseArrayDefinitionByKey, req)
	if err != nil {
		e.failComponent(sv.comp, fmt.Errorf("%s: inverse array definition: %w", sv.name, err))
		return nil, NewInverseError(sv.comp.label(), sv.name, err.Error())
	}
	return e.applyInverse(pass, sv, key, res)
}

func callInverse(fn func(InverseRequest) InverseResult, req InverseRequest) (InverseResult, error) {
	var res InverseResult
	err := safeCall(func() error {
		res = fn(req)
		return nil
	})
	return res, err
}

// applyInverse follows the instructions of a successful inverse. Each
// instruction is a branch: a failing branch is dropped with a warning, the
// others still stage their writes.
func (e *Engine) applyInverse(pass *inversePass, sv *stateVariable, key ir.ArrayKey, res InverseResult) ([]stagedWrite, error) {
	for _, w := range res.Warnings {
		e.warn(sv, w)
	}
	if !res.Success {
		reason := "inverse definition refused the value"
		if len(res.Warnings) > 0 {
			reason = strings.Join(res.Warnings, "; ")
		}
		return nil, NewInverseError(sv.comp.label(), sv.name, reason)
	}

	var staged []stagedWrite
	var firstErr error
	applied := 0
	for _, ins := range res.Instructions {
		st, err := e.applyInstruction(pass, sv, key, ins)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			e.warn(sv, fmt.Sprintf("inverse branch dropped: %v", err))
			continue
		}
		staged = append(staged, st...)
		applied++
	}
	if len(res.Instructions) > 0 && applied == 0 {
		return nil, firstErr
	}
	return staged, nil
}

func (e *Engine) applyInstruction(pass *inversePass, sv *stateVariable, key ir.ArrayKey, ins InverseInstruction) ([]stagedWrite, error) {
	if ins.SetEssentialValue {
		return essentialWrites(sv, key, ins), nil
	}
	if ins.SetDependency == "" {
		return nil, NewInverseError(sv.comp.label(), sv.name, "instruction names neither a dependency nor the essential value")
	}

	deps := sv.deps
	if ins.ByKey != "" {
		deps = sv.depsByKey[ins.ByKey]
	}
	rd, ok := deps[ins.SetDependency]
	if !ok {
		return nil, NewInverseError(sv.comp.label(), sv.name, fmt.Sprintf("unknown dependency %q", ins.SetDependency))
	}
	t := rd.single
	if rd.grid != nil {
		if ins.ComponentIndex < 0 || ins.ComponentIndex >= len(rd.grid) ||
			ins.VariableIndex < 0 || ins.VariableIndex >= len(rd.grid[ins.ComponentIndex]) {
			return nil, NewInverseError(sv.comp.label(), sv.name,
				fmt.Sprintf("dependency %q has no component %d variable %d", ins.SetDependency, ins.ComponentIndex, ins.VariableIndex))
		}
		t = rd.grid[ins.ComponentIndex][ins.VariableIndex]
	}
	if t == nil {
		return nil, NewInverseError(sv.comp.label(), sv.name, fmt.Sprintf("dependency %q cannot be set", ins.SetDependency))
	}
	if t.size {
		return nil, NewInverseError(sv.comp.label(), sv.name, fmt.Sprintf("dependency %q reads an array size", ins.SetDependency))
	}

	if ins.DesiredByKey != nil && t.sv.def.IsArray && t.key == "" {
		var staged []stagedWrite
		for _, k := range sortedKeys(ins.DesiredByKey) {
			st, err := e.invert(pass, t.sv, k, ins.DesiredByKey[k])
			if err != nil {
				return nil, err
			}
			staged = append(staged, st...)
		}
		return staged, nil
	}
	return e.invert(pass, t.sv, t.key, ins.DesiredValue)
}

func essentialWrites(sv *stateVariable, key ir.ArrayKey, ins InverseInstruction) []stagedWrite {
	if !sv.def.IsArray {
		return []stagedWrite{{sv: sv, value: ins.DesiredValue}}
	}
	if ins.DesiredByKey != nil {
		out := make([]stagedWrite, 0, len(ins.DesiredByKey))
		for _, k := range sortedKeys(ins.DesiredByKey) {
			out = append(out, stagedWrite{sv: sv, key: k, value: ins.DesiredByKey[k]})
		}
		return out
	}
	k := ins.ByKey
	if k == "" {
		k = key
	}
	return []stagedWrite{{sv: sv, key: k, value: ins.DesiredValue}}
}
