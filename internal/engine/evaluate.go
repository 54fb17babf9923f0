package engine

import (
	"fmt"

	"github.com/roach88/vellum/internal/ir"
)

// readTarget reads a bound dependency target.
func (e *Engine) readTarget(t *target) ir.IRValue {
	switch {
	case t.size:
		return e.sizeValue(t.sv)
	case !t.sv.def.IsArray:
		return e.scalarValue(t.sv)
	case t.key == "":
		return e.arrayValue(t.sv)
	default:
		v, ok := e.arrayEntries(t.sv, []ir.ArrayKey{t.key})[t.key]
		if !ok {
			return ir.IRNull{}
		}
		return v
	}
}

// scalarValue returns the value of a scalar variable, recomputing it if
// stale. Re-entering a variable already being evaluated resolves the cycle
// at its essential value.
func (e *Engine) scalarValue(sv *stateVariable) ir.IRValue {
	if sv.comp.failed != nil {
		return ir.IRNull{}
	}
	if sv.fresh {
		return sv.value
	}
	f := frame{sv: sv}
	if e.stack.WouldCycle(f) {
		return e.cycleValue(sv, "", f)
	}
	e.stack.Push(f)
	defer e.stack.Pop()

	if !e.ensureDeps(sv) {
		return ir.IRNull{}
	}

	var value ir.IRValue
	usedEssential := false
	if sv.def.Definition == nil {
		value, usedEssential = sv.essentialOrDefault(nil), true
	} else {
		deps := e.collect(sv.deps)
		var res Result
		err := safeCall(func() error {
			res = sv.def.Definition(deps)
			return nil
		})
		if err != nil {
			e.failComponent(sv.comp, fmt.Errorf("%s: definition: %w", sv.name, err))
			return ir.IRNull{}
		}
		for _, w := range res.Warnings {
			e.warn(sv, w)
		}
		if res.UseEssentialOrDefault {
			value, usedEssential = sv.essentialOrDefault(res.DefaultValue), true
		} else {
			value = res.SetValue
		}
	}
	if value == nil {
		value = ir.IRNull{}
	}
	if sv.comp.failed != nil {
		return ir.IRNull{}
	}

	sv.value, sv.usedEssential, sv.fresh = value, usedEssential, true
	e.recomputed(sv)
	return value
}

// sizeValue returns an array's size as a vector of counts.
func (e *Engine) sizeValue(sv *stateVariable) ir.IRValue {
	if sv.comp.failed != nil || !e.ensureDeps(sv) {
		return ir.IRNull{}
	}
	sv.sizeFresh = true
	out := make([]float64, len(sv.size))
	for i, s := range sv.size {
		out[i] = float64(s)
	}
	return ir.Vec(out...)
}

// arrayValue returns the whole array, nested by dimension.
func (e *Engine) arrayValue(sv *stateVariable) ir.IRValue {
	if sv.comp.failed != nil || !e.ensureDeps(sv) {
		return ir.IRNull{}
	}
	entries := e.arrayEntries(sv, nil)
	return ir.ArrayFromKeys(sv.size, entries)
}

// arrayEntries returns the requested entries (all when keys is nil).
// In per-key mode only stale requested keys are recomputed; in whole-array
// mode any stale key recomputes the full vector.
func (e *Engine) arrayEntries(sv *stateVariable, keys []ir.ArrayKey) map[ir.ArrayKey]ir.IRValue {
	out := make(map[ir.ArrayKey]ir.IRValue, len(keys))
	if sv.comp.failed != nil || !e.ensureDeps(sv) {
		return out
	}
	if keys == nil {
		keys = sv.keys
	}
	sv.sizeFresh = true

	var stale []ir.ArrayKey
	for _, k := range keys {
		if !ir.KeyInSize(k, sv.size) {
			continue
		}
		if en, ok := sv.entries[k]; !ok || !en.fresh {
			stale = append(stale, k)
		}
	}
	if len(stale) > 0 {
		if sv.def.WholeArray {
			e.evaluateWhole(sv)
		} else {
			e.evaluateKeys(sv, stale)
		}
	}

	for _, k := range keys {
		if en, ok := sv.entries[k]; ok {
			out[k] = en.value
		}
	}
	return out
}

// evaluateWhole recomputes every key of a whole-array variable together.
func (e *Engine) evaluateWhole(sv *stateVariable) {
	f := frame{sv: sv, key: "*"}
	if e.stack.WouldCycle(f) {
		for _, k := range sv.keys {
			if en, ok := sv.entries[k]; !ok || !en.fresh {
				sv.entries[k] = &entry{value: e.cycleValue(sv, k, f)}
			}
		}
		return
	}
	e.stack.Push(f)
	defer e.stack.Pop()
	e.evaluateKeys(sv, sv.keys)
}

// evaluateKeys runs ArrayDefinitionByKey for keys. A key already being
// evaluated further up the stack takes its cycle value instead.
func (e *Engine) evaluateKeys(sv *stateVariable, keys []ir.ArrayKey) {
	var run []ir.ArrayKey
	for _, k := range keys {
		f := frame{sv: sv, key: string(k)}
		if e.stack.WouldCycle(f) {
			sv.entries[k] = &entry{value: e.cycleValue(sv, k, f)}
			continue
		}
		run = append(run, k)
	}
	if len(run) == 0 {
		return
	}
	for _, k := range run {
		e.stack.Push(frame{sv: sv, key: string(k)})
	}
	defer func() {
		for range run {
			e.stack.Pop()
		}
	}()

	global := e.collect(sv.deps)
	byKey := make(map[ir.ArrayKey]DependencyValues, len(run))
	for _, k := range run {
		byKey[k] = e.collect(sv.depsByKey[k])
	}

	var res ArrayResult
	err := safeCall(func() error {
		res = sv.def.ArrayDefinitionByKey(global, byKey, run)
		return nil
	})
	if err != nil {
		e.failComponent(sv.comp, fmt.Errorf("%s: array definition: %w", sv.name, err))
		return
	}
	for _, w := range res.Warnings {
		e.warn(sv, w)
	}
	if sv.comp.failed != nil {
		return
	}

	for _, k := range run {
		en := &entry{fresh: true}
		if v, ok := res.SetValue[k]; ok && v != nil {
			en.value = v
		} else if res.UseEssentialOrDefault[k] {
			en.value = sv.essentialOrDefaultAt(k, res.DefaultValues[k])
			en.usedEssential = true
		} else {
			en.value = ir.IRNull{}
		}
		sv.entries[k] = en
	}
	e.recomputed(sv)
}

// cycleValue is the fixed point of a forward cycle closed by re-entering
// f: the variable's essential value when it has one. Otherwise the read is
// IRNull, and the cycle is reported unless another variable on it has an
// essential value to settle it.
func (e *Engine) cycleValue(sv *stateVariable, key ir.ArrayKey, f frame) ir.IRValue {
	if !sv.def.IsArray {
		if sv.hasEssential || sv.def.HasEssential {
			return sv.essentialOrDefault(nil)
		}
	} else if _, ok := sv.essentialByKey[key]; ok || sv.hasEssential || sv.def.HasEssential {
		return sv.essentialOrDefaultAt(key, nil)
	}
	if !e.stack.Anchored(f) {
		e.reportCycle(sv, key, e.stack.Path(f))
	}
	return ir.IRNull{}
}

func (e *Engine) reportCycle(sv *stateVariable, key ir.ArrayKey, path []string) {
	err := NewCycleError(sv.comp.label(), sv.name, path)
	if e.report(Diagnostic{
		Level:     LevelError,
		Code:      string(err.Code),
		Message:   err.Message,
		Component: sv.comp.label(),
		Variable:  sv.name,
		Range:     sv.comp.rng,
	}) {
		e.logger.Error("dependency cycle",
			"component", sv.comp.label(),
			"variable", sv.name,
			"key", string(key),
			"path", path,
		)
	}
}

func (e *Engine) recomputed(sv *stateVariable) {
	sv.recomputations++
	e.recomputations++
	e.metrics.Recomputed(sv.comp.typ.Name, sv.name)
	e.logger.Debug("state variable recomputed",
		"component", sv.comp.label(),
		"variable", sv.name,
		"count", sv.recomputations,
	)
}

// warn records an evaluation warning against sv.
func (e *Engine) warn(sv *stateVariable, msg string) {
	if e.report(Diagnostic{
		Level:     LevelWarning,
		Message:   msg,
		Component: sv.comp.label(),
		Variable:  sv.name,
		Range:     sv.comp.rng,
	}) {
		e.logger.Warn("evaluation warning",
			"component", sv.comp.label(),
			"variable", sv.name,
			"message", msg,
		)
	}
}

// report adds a diagnostic, returning false for an exact repeat.
func (e *Engine) report(d Diagnostic) bool {
	return e.diags.add(d)
}
