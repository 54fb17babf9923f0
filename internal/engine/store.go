package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/vellum/internal/ir"
)

// sizeKey marks an edge that reads an array's size rather than an entry.
const sizeKey ir.ArrayKey = "#size"

// entry is one memoized array element.
type entry struct {
	value         ir.IRValue
	fresh         bool
	usedEssential bool
}

// stateVariable is the Dependency Store record for one variable of one
// component instance.
type stateVariable struct {
	comp *Component
	name string
	def  *StateVariableDefinition

	// Phase one: dependency resolution, memoized against the values of
	// the determining variables.
	depsResolved bool
	depsCheck    bool
	determining  map[string]ir.IRValue
	deps         map[string]*resolvedDep
	depsByKey    map[ir.ArrayKey]map[string]*resolvedDep
	sizeDeps     map[string]*resolvedDep
	sources      []*stateVariable

	// Arrays.
	size      []int
	keys      []ir.ArrayKey
	sizeFresh bool
	entries   map[ir.ArrayKey]*entry

	// Phase two: the value.
	value         ir.IRValue
	fresh         bool
	usedEssential bool

	essential      ir.IRValue
	hasEssential   bool
	essentialByKey map[ir.ArrayKey]ir.IRValue // written entries only
	// assigned is set once the essential value has been written by an
	// update, a restore or variant selection rather than seeded from a
	// default.
	assigned bool

	dependents []edge

	recomputations int
}

func newStateVariable(c *Component, name string, def *StateVariableDefinition) *stateVariable {
	sv := &stateVariable{comp: c, name: name, def: def}
	if def.IsArray {
		sv.entries = make(map[ir.ArrayKey]*entry)
		sv.essentialByKey = make(map[ir.ArrayKey]ir.IRValue)
	}
	return sv
}

func (sv *stateVariable) label() string {
	return sv.comp.label() + "." + sv.name
}

func (sv *stateVariable) labelKey(key ir.ArrayKey) string {
	if key == "" {
		return sv.label()
	}
	return sv.label() + "[" + string(key) + "]"
}

// edgeKind says what a dependent does when its source goes stale.
type edgeKind int

const (
	// edgeValue invalidates the dependent's value at toKey.
	edgeValue edgeKind = iota
	// edgeDetermining makes the dependent re-check its dependency set.
	edgeDetermining
	// edgeSize makes an array dependent recompute its size and keys.
	edgeSize
)

// edge is a reverse dependency held by the source variable.
type edge struct {
	to      *stateVariable
	kind    edgeKind
	fromKey ir.ArrayKey // "" means the whole source
	toKey   ir.ArrayKey // "" means the whole dependent
}

// target is a concrete read: a variable, optionally one entry or its size.
type target struct {
	sv   *stateVariable
	key  ir.ArrayKey
	size bool
}

func (t *target) fromKey() ir.ArrayKey {
	if t.size {
		return sizeKey
	}
	return t.key
}

// resolvedDep is a Dependency bound to concrete targets.
type resolvedDep struct {
	dep Dependency

	single *target

	// comps and grid are set for child and ancestor dependencies:
	// grid[i][j] reads dep.Variables[j] of comps[i], nil when missing.
	comps []*Component
	grid  [][]*target

	// value and found hold structural and literal dependencies.
	value ir.IRValue
	found bool
}

// lookupVar finds a variable by name on c. Entry names such as "x2"
// resolve to a key of an array variable declaring prefix "x".
func lookupVar(c *Component, name string) (*stateVariable, ir.ArrayKey, bool) {
	if sv, ok := c.vars[name]; ok {
		return sv, "", true
	}
	names := make([]string, 0, len(c.vars))
	for n, sv := range c.vars {
		if sv.def.IsArray && len(sv.def.EntryPrefixes) > 0 {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	for _, n := range names {
		sv := c.vars[n]
		for _, prefix := range sv.def.EntryPrefixes {
			rest, ok := strings.CutPrefix(name, prefix)
			if !ok || rest == "" {
				continue
			}
			if key, ok := parseEntrySuffix(rest, sv.def.dims()); ok {
				return sv, key, true
			}
		}
	}
	return nil, "", false
}

// parseEntrySuffix turns "2" or "2_1" (1-based) into an ArrayKey.
func parseEntrySuffix(s string, dims int) (ir.ArrayKey, bool) {
	parts := strings.Split(s, "_")
	if len(parts) != dims {
		return "", false
	}
	idx := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return "", false
		}
		idx[i] = n - 1
	}
	return ir.KeyOf(idx...), true
}

// addEdge records that to depends on from.
func (e *Engine) addEdge(from *stateVariable, ed edge) {
	from.dependents = append(from.dependents, ed)
	for _, s := range ed.to.sources {
		if s == from {
			return
		}
	}
	ed.to.sources = append(ed.to.sources, from)
}

// dropEdges removes every edge sv registered on its sources.
func (e *Engine) dropEdges(sv *stateVariable) {
	for _, src := range sv.sources {
		kept := src.dependents[:0]
		for _, ed := range src.dependents {
			if ed.to != sv {
				kept = append(kept, ed)
			}
		}
		for i := len(kept); i < len(src.dependents); i++ {
			src.dependents[i] = edge{}
		}
		src.dependents = kept
	}
	sv.sources = nil
}

// invalidateScope selects how much of a variable is marked stale.
type invalidateScope int

const (
	// invalidateValue marks the value stale, one key or all of it.
	invalidateValue invalidateScope = iota
	// invalidateDeps also makes the dependency set re-check its
	// determining variables.
	invalidateDeps
	// invalidateAll also discards resolved dependencies and array size.
	invalidateAll
)

// invalidate marks sv stale and propagates to its dependents. Propagation
// stops at variables that were already stale: a stale variable's dependents
// are stale too, since nothing can read it without refreshing it.
func (e *Engine) invalidate(sv *stateVariable, scope invalidateScope, key ir.ArrayKey) {
	switch scope {
	case invalidateDeps:
		if sv.depsResolved {
			sv.depsCheck = true
		}
		key = ""
	case invalidateAll:
		sv.depsResolved = false
		key = ""
	}
	if sv.def.WholeArray {
		key = ""
	}
	if !sv.markStale(key) {
		return
	}
	e.metrics.Invalidated(sv.comp.typ.Name)

	dependents := append([]edge(nil), sv.dependents...)
	for _, ed := range dependents {
		if key != "" && ed.fromKey != "" && ed.fromKey != key {
			continue
		}
		switch ed.kind {
		case edgeValue:
			e.invalidate(ed.to, invalidateValue, ed.toKey)
		case edgeDetermining:
			e.invalidate(ed.to, invalidateDeps, "")
		case edgeSize:
			e.invalidate(ed.to, invalidateAll, "")
		}
	}
}

// markStale clears freshness and reports whether anything was fresh.
func (sv *stateVariable) markStale(key ir.ArrayKey) bool {
	if !sv.def.IsArray {
		was := sv.fresh
		sv.fresh = false
		return was
	}
	changed := false
	if key == "" {
		if sv.sizeFresh {
			sv.sizeFresh = false
			changed = true
		}
		for _, en := range sv.entries {
			if en.fresh {
				en.fresh = false
				changed = true
			}
		}
		return changed
	}
	if en, ok := sv.entries[key]; ok && en.fresh {
		en.fresh = false
		changed = true
	}
	return changed
}

// essentialOrDefault returns the scalar essential value, creating it from
// computed or the declared default the first time.
func (sv *stateVariable) essentialOrDefault(computed ir.IRValue) ir.IRValue {
	if sv.hasEssential {
		return sv.essential
	}
	v := computed
	if v == nil {
		v = sv.def.DefaultValue
	}
	if v == nil {
		v = ir.IRNull{}
	}
	sv.essential = ir.Clone(v)
	sv.hasEssential = true
	return sv.essential
}

// essentialOrDefaultAt is essentialOrDefault for one array entry. The
// declared default may be a whole array or a per-entry scalar. Only
// written entries are stored, so reading an entry never adds a key to the
// reported essentials.
func (sv *stateVariable) essentialOrDefaultAt(key ir.ArrayKey, computed ir.IRValue) ir.IRValue {
	if v, ok := sv.essentialByKey[key]; ok {
		return v
	}
	sv.hasEssential = true
	if computed != nil {
		return ir.Clone(computed)
	}
	return ir.Clone(defaultEntry(sv.def, key))
}

func defaultEntry(def *StateVariableDefinition, key ir.ArrayKey) ir.IRValue {
	switch d := def.DefaultValue.(type) {
	case nil:
		return ir.IRNull{}
	case ir.IRArray:
		if v, ok := ir.KeysFromArray(d, def.dims())[key]; ok {
			return v
		}
		return ir.IRNull{}
	default:
		return d
	}
}

// writeEssential stores an essential value and invalidates what read it.
func (e *Engine) writeEssential(sv *stateVariable, key ir.ArrayKey, v ir.IRValue) {
	if v == nil {
		v = ir.IRNull{}
	}
	sv.assigned = true
	sv.hasEssential = true
	if !sv.def.IsArray {
		sv.essential = ir.Clone(v)
		e.invalidate(sv, invalidateValue, "")
		return
	}
	if key != "" {
		sv.essentialByKey[key] = ir.Clone(v)
		e.invalidate(sv, invalidateValue, key)
		return
	}
	for k, ev := range ir.KeysFromArray(v, sv.def.dims()) {
		sv.essentialByKey[k] = ir.Clone(ev)
	}
	e.invalidate(sv, invalidateValue, "")
}

// essentialValue reports the stored essential value in its public form:
// the value for scalars, the keyed entries as an object for arrays.
func (sv *stateVariable) essentialValue() (ir.IRValue, error) {
	if !sv.def.IsArray {
		if _, opaque := sv.essential.(ir.IROpaque); opaque {
			return nil, fmt.Errorf("opaque essential value")
		}
		return sv.essential, nil
	}
	obj := make(ir.IRObject, len(sv.essentialByKey))
	for k, v := range sv.essentialByKey {
		if _, opaque := v.(ir.IROpaque); opaque {
			return nil, fmt.Errorf("opaque essential value at %s", k)
		}
		obj[string(k)] = v
	}
	return obj, nil
}
