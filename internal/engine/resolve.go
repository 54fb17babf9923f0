package engine

import (
	"fmt"

	"github.com/roach88/vellum/internal/ir"
)

// ensureDeps runs phase one of a read: the determining variables are read,
// and the dependency set is re-derived only if their values changed since
// the last resolution. For arrays it also settles the size and keys.
func (e *Engine) ensureDeps(sv *stateVariable) bool {
	if sv.depsResolved && !sv.depsCheck {
		return true
	}
	f := frame{sv: sv, key: "#deps"}
	if e.stack.WouldCycle(f) {
		e.reportCycle(sv, "", e.stack.Path(f))
		return false
	}
	e.stack.Push(f)
	defer e.stack.Pop()

	determining := make(map[string]ir.IRValue, len(sv.def.DeterminingStateVariables))
	for _, name := range sv.def.DeterminingStateVariables {
		dsv, key, ok := lookupVar(sv.comp, name)
		if !ok {
			determining[name] = ir.IRNull{}
			continue
		}
		determining[name] = e.readTarget(&target{sv: dsv, key: key})
	}

	if sv.depsResolved && sv.depsCheck && sameValues(sv.determining, determining) {
		sv.depsCheck = false
		return true
	}

	e.dropEdges(sv)
	for _, name := range sv.def.DeterminingStateVariables {
		if dsv, key, ok := lookupVar(sv.comp, name); ok {
			e.addEdge(dsv, edge{to: sv, kind: edgeDetermining, fromKey: key})
		}
	}

	ctx := DependencyContext{StateValues: determining, Attributes: sv.comp.attrNames}
	err := safeCall(func() error {
		if !sv.def.IsArray {
			sv.deps = e.resolveAll(sv, sv.def.ReturnDependencies, ctx, edgeValue, "")
			return nil
		}
		return e.resolveArray(sv, ctx)
	})
	if err != nil {
		e.failComponent(sv.comp, fmt.Errorf("%s: dependencies: %w", sv.name, err))
		return false
	}

	sv.determining = determining
	sv.depsResolved = true
	sv.depsCheck = false
	return true
}

func (e *Engine) resolveArray(sv *stateVariable, ctx DependencyContext) error {
	sv.sizeDeps = e.resolveAll(sv, sv.def.ReturnArraySizeDependencies, ctx, edgeSize, "")
	size := sv.def.ReturnArraySize(e.collect(sv.sizeDeps))
	if len(size) != sv.def.dims() {
		e.warn(sv, fmt.Sprintf("array size %v does not match %d dimensions", size, sv.def.dims()))
		size = make([]int, sv.def.dims())
	}
	for i, s := range size {
		if s < 0 {
			size[i] = 0
		}
	}
	sv.size = size
	sv.keys = ir.KeysForSize(size)
	sv.entries = make(map[ir.ArrayKey]*entry, len(sv.keys))

	sv.deps = nil
	sv.depsByKey = make(map[ir.ArrayKey]map[string]*resolvedDep, len(sv.keys))
	if sv.def.ReturnArrayDependenciesByKey == nil {
		return nil
	}
	ctx.Keys = sv.keys
	ad := sv.def.ReturnArrayDependenciesByKey(ctx)
	sv.deps = e.bindAll(sv, ad.Global, edgeValue, "")
	for _, k := range sv.keys {
		sv.depsByKey[k] = e.bindAll(sv, ad.ByKey[k], edgeValue, k)
	}
	return nil
}

func (e *Engine) resolveAll(sv *stateVariable, fn func(DependencyContext) Dependencies, ctx DependencyContext, kind edgeKind, toKey ir.ArrayKey) map[string]*resolvedDep {
	if fn == nil {
		return nil
	}
	return e.bindAll(sv, fn(ctx), kind, toKey)
}

// bindAll binds declared dependencies to targets and registers the reverse
// edges.
func (e *Engine) bindAll(sv *stateVariable, deps Dependencies, kind edgeKind, toKey ir.ArrayKey) map[string]*resolvedDep {
	out := make(map[string]*resolvedDep, len(deps))
	for _, name := range deps.names() {
		rd := e.bind(sv, name, deps[name])
		out[name] = rd
		for _, t := range rd.targets() {
			e.addEdge(t.sv, edge{to: sv, kind: kind, fromKey: t.fromKey(), toKey: toKey})
		}
	}
	return out
}

func (rd *resolvedDep) targets() []*target {
	if rd.single != nil {
		return []*target{rd.single}
	}
	var out []*target
	for _, row := range rd.grid {
		for _, t := range row {
			if t != nil {
				out = append(out, t)
			}
		}
	}
	return out
}

// bind resolves one Dependency for the variable sv.
func (e *Engine) bind(sv *stateVariable, name string, d Dependency) *resolvedDep {
	c := sv.comp
	rd := &resolvedDep{dep: d}

	switch d.Kind {
	case DepStateVariable:
		comp, variable := c, d.Variable
		if d.Component != "" {
			res := e.resolvePath(d.Component, c, true)
			switch {
			case res.Resolved:
				comp = e.components[res.NodeIndex]
			case len(res.Remaining) == 1 && d.Variable == "" && res.NodeIndex >= 0:
				comp = e.components[res.NodeIndex]
				variable = res.Remaining[0]
			default:
				e.missing(sv, name, d, fmt.Sprintf("no component %q", d.Component))
				return rd
			}
		}
		if variable == "" {
			variable = comp.typ.PrimaryVariable
		}
		rd.single = e.targetOf(sv, name, d, comp, variable)

	case DepChild:
		e.bindGrid(sv, name, d, rd, e.groupMembers(c, d.ChildGroups))

	case DepAncestor:
		if a := ancestorOfType(c, d.AncestorType); a != nil {
			e.bindGrid(sv, name, d, rd, []*Component{a})
		} else {
			e.missing(sv, name, d, fmt.Sprintf("no ancestor of type %q", d.AncestorType))
		}

	case DepParentStateVariable:
		if c.parent == nil {
			e.missing(sv, name, d, "component has no parent")
			break
		}
		rd.single = e.targetOf(sv, name, d, c.parent, d.Variable)

	case DepShadowSource:
		src := e.shadowSourceOf(c)
		if src == nil {
			e.missing(sv, name, d, fmt.Sprintf("copy source %q not found", c.copySource))
			break
		}
		rd.single = e.targetOf(sv, name, d, src, d.Variable)

	case DepAttribute:
		if attr, ok := c.attributes[d.Attribute]; ok {
			rd.single = &target{sv: attr.vars["value"], key: d.Key, size: d.Size}
		}

	case DepCountAmongSiblings:
		rd.value, rd.found = ir.IRNumber(e.countAmongSiblings(c)), true

	case DepParentIdentity:
		if c.parent != nil {
			rd.value = ir.IRObject{
				"name": ir.IRString(c.parent.name),
				"type": ir.IRString(c.parent.typ.Name),
			}
			rd.found = true
		}

	case DepValue:
		rd.value, rd.found = d.Value, true

	default:
		e.failComponent(c, fmt.Errorf("%s: dependency %q has unknown kind %d", sv.name, name, d.Kind))
	}
	return rd
}

func (e *Engine) bindGrid(sv *stateVariable, name string, d Dependency, rd *resolvedDep, comps []*Component) {
	rd.comps = comps
	rd.grid = make([][]*target, len(comps))
	for i, comp := range comps {
		row := make([]*target, len(d.Variables))
		for j, variable := range d.Variables {
			if vsv, key, ok := lookupVar(comp, variable); ok {
				row[j] = &target{sv: vsv, key: key}
				if d.Key != "" {
					row[j].key = d.Key
				}
				row[j].size = d.Size
			}
		}
		rd.grid[i] = row
	}
}

func (e *Engine) targetOf(sv *stateVariable, name string, d Dependency, comp *Component, variable string) *target {
	tsv, key, ok := lookupVar(comp, variable)
	if !ok {
		e.missing(sv, name, d, fmt.Sprintf("%s has no state variable %q", comp.label(), variable))
		return nil
	}
	if d.Key != "" {
		key = d.Key
	}
	return &target{sv: tsv, key: key, size: d.Size}
}

func (e *Engine) missing(sv *stateVariable, name string, d Dependency, reason string) {
	if d.Optional {
		return
	}
	e.warn(sv, fmt.Sprintf("dependency %q: %s", name, reason))
}

// shadowSourceOf resolves and caches c's copy source.
func (e *Engine) shadowSourceOf(c *Component) *Component {
	if c.shadowSource != nil || c.copySource == "" {
		return c.shadowSource
	}
	res := e.resolvePath(c.copySource, c, true)
	if !res.Resolved {
		return nil
	}
	src := e.components[res.NodeIndex]
	if src == c {
		return nil
	}
	c.shadowSource = src
	return src
}

// countAmongSiblings is c's 1-based position among same-type siblings.
func (e *Engine) countAmongSiblings(c *Component) int {
	if c.parent == nil || c.isAttribute() {
		return 1
	}
	n := 0
	for _, m := range e.members(c.parent) {
		if m.typ == c.typ {
			n++
		}
		if m == c {
			return n
		}
	}
	return 1
}

// collect reads the current values of resolved dependencies.
func (e *Engine) collect(deps map[string]*resolvedDep) DependencyValues {
	out := make(DependencyValues, len(deps))
	for _, name := range sortedNames(deps) {
		rd := deps[name]
		switch {
		case rd.single != nil:
			out[name] = DependencyValue{Value: e.readTarget(rd.single), Found: true}
		case rd.grid != nil:
			comps := make([]ComponentValues, len(rd.comps))
			for i, comp := range rd.comps {
				values := make(map[string]ir.IRValue, len(rd.dep.Variables))
				for j, variable := range rd.dep.Variables {
					if t := rd.grid[i][j]; t != nil {
						values[variable] = e.readTarget(t)
					}
				}
				comps[i] = ComponentValues{Name: comp.name, Type: comp.typ.Name, Values: values}
			}
			out[name] = DependencyValue{Components: comps, Found: len(comps) > 0}
		default:
			v := rd.value
			if v == nil {
				v = ir.IRNull{}
			}
			out[name] = DependencyValue{Value: v, Found: rd.found}
		}
	}
	return out
}

func sortedNames(deps map[string]*resolvedDep) []string {
	d := make(Dependencies, len(deps))
	for name := range deps {
		d[name] = Dependency{}
	}
	return d.names()
}

func sameValues(a, b map[string]ir.IRValue) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || !ir.EqualNaN(v, w) {
			return false
		}
	}
	return true
}
