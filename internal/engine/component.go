package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/vellum/internal/ir"
	"github.com/roach88/vellum/internal/variant"
)

// NodeSpec is the serialized form of a component subtree, as produced by
// the document compiler.
//
// Attribute values are literals (numbers, strings, booleans, lists),
// references ("$P", "$P.x", "$s[1].value") or expressions ("=2*$a+1").
// A literal string starting with "$" or "=" is written with a doubled
// first character.
type NodeSpec struct {
	Type       string         `json:"type" yaml:"type"`
	Name       string         `json:"name,omitempty" yaml:"name,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Children   []NodeSpec     `json:"children,omitempty" yaml:"children,omitempty"`
	CopySource string         `json:"copySource,omitempty" yaml:"copySource,omitempty"`
	Range      Range          `json:"-" yaml:"-"`
}

// attributeTypeName is the internal type of attribute components.
const attributeTypeName = "_attribute"

// Component is a node of the document tree. All fields are owned by the
// engine's single writer.
type Component struct {
	index int
	name  string
	typ   *ComponentType
	rng   Range

	parent   *Component
	children []*Component

	// childSpecs hold a composite's unexpanded children.
	childSpecs   []NodeSpec
	expanded     bool
	replacements []*Component
	replacing    *Component

	attributes map[string]*Component
	attrNames  map[string]bool
	attrOwner  *Component

	defs map[string]*StateVariableDefinition
	vars map[string]*stateVariable

	copySource   string
	shadowSource *Component

	desiredVariant variant.Desired
	shared         *variant.Shared

	failed error
}

// Index returns the component's creation index, its node index for path
// resolution.
func (c *Component) Index() int { return c.index }

// Name returns the component's unique name.
func (c *Component) Name() string { return c.name }

// TypeName returns the component's type name.
func (c *Component) TypeName() string { return c.typ.Name }

func (c *Component) isAttribute() bool { return c.attrOwner != nil }

// label is used in diagnostics and dependency paths.
func (c *Component) label() string {
	if c.attrOwner != nil {
		return c.attrOwner.name + "@" + strings.TrimPrefix(c.name, c.attrOwner.name+"@")
	}
	return c.name
}

var attributeType = &ComponentType{Name: attributeTypeName, PrimaryVariable: "value"}

// build instantiates spec and its subtree under parent. Unknown types are
// reported and skipped; the rest of the document still builds.
func (e *Engine) build(spec NodeSpec, parent *Component) *Component {
	typeName := spec.Type
	if typeName == "" && spec.CopySource != "" {
		// A bare copy takes the type of a source built earlier.
		if res := e.resolvePath(spec.CopySource, parent, false); res.Resolved {
			typeName = e.components[res.NodeIndex].typ.Name
		}
	}
	typ, ok := e.registry.Lookup(typeName)
	if !ok {
		e.report(Diagnostic{
			Level:   LevelError,
			Code:    string(ErrCodeUnknownComponent),
			Message: fmt.Sprintf("unknown component type %q", typeName),
			Range:   spec.Range,
		})
		return nil
	}

	c := &Component{
		index:      len(e.components),
		typ:        typ,
		rng:        spec.Range,
		parent:     parent,
		attributes: make(map[string]*Component),
		attrNames:  make(map[string]bool),
		copySource: spec.CopySource,
	}
	e.components = append(e.components, c)
	e.nameComponent(c, spec.Name)

	e.buildAttributes(c, spec)
	e.buildDefinitions(c)

	if typ.IsComposite() {
		c.childSpecs = spec.Children
		return c
	}
	for _, childSpec := range spec.Children {
		child := e.build(childSpec, c)
		if child == nil {
			continue
		}
		if typ.groupOf(child.typ.Name) == "" {
			e.report(Diagnostic{
				Level:     LevelWarning,
				Message:   fmt.Sprintf("%s cannot contain a %s; it is ignored", typ.Name, child.typ.Name),
				Component: c.name,
				Range:     child.rng,
			})
		}
		c.children = append(c.children, child)
	}
	return c
}

// nameComponent assigns the requested name, or a generated one of the form
// _<type><n>. Duplicate names are reported and replaced.
func (e *Engine) nameComponent(c *Component, requested string) {
	if requested != "" {
		if _, taken := e.byName[requested]; !taken && !strings.HasPrefix(requested, "_") {
			c.name = requested
			e.byName[requested] = c
			return
		}
		e.report(Diagnostic{
			Level:   LevelError,
			Message: fmt.Sprintf("duplicate or reserved name %q", requested),
			Range:   c.rng,
		})
	}
	for {
		e.typeCounts[c.typ.Name]++
		name := fmt.Sprintf("_%s%d", c.typ.Name, e.typeCounts[c.typ.Name])
		if _, taken := e.byName[name]; !taken {
			c.name = name
			e.byName[name] = c
			return
		}
	}
}

func (e *Engine) buildAttributes(c *Component, spec NodeSpec) {
	names := make([]string, 0, len(spec.Attributes))
	for name := range spec.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, declared := c.typ.Attributes[name]; !declared {
			e.report(Diagnostic{
				Level:     LevelWarning,
				Message:   fmt.Sprintf("%s has no attribute %q; it is ignored", c.typ.Name, name),
				Component: c.name,
				Range:     spec.Range,
			})
			continue
		}
		def, err := attributeDefinition(spec.Attributes[name])
		if err != nil {
			e.report(Diagnostic{
				Level:     LevelError,
				Code:      string(ErrCodeDeclarationInvalid),
				Message:   fmt.Sprintf("attribute %q: %v", name, err),
				Component: c.name,
				Range:     spec.Range,
			})
			continue
		}
		attr := &Component{
			index:     len(e.components),
			name:      c.name + "@" + name,
			typ:       attributeType,
			rng:       spec.Range,
			parent:    c,
			attrOwner: c,
			defs:      map[string]*StateVariableDefinition{"value": def},
		}
		e.components = append(e.components, attr)
		attr.vars = map[string]*stateVariable{"value": newStateVariable(attr, "value", def)}
		c.attributes[name] = attr
		c.attrNames[name] = true
	}
}

// buildDefinitions assembles the component's table: the type's variables,
// variables synthesized from attributes, and shadow replacements for
// copies.
func (e *Engine) buildDefinitions(c *Component) {
	c.defs = make(map[string]*StateVariableDefinition, len(c.typ.StateVariables))
	for name, def := range c.typ.StateVariables {
		c.defs[name] = def
	}
	for attr, spec := range c.typ.Attributes {
		if spec.CreateStateVariable != "" {
			c.defs[spec.CreateStateVariable] = attributeBackedDefinition(attr, spec)
		}
	}
	if c.copySource != "" {
		for name, def := range c.defs {
			if def.Public {
				c.defs[name] = shadowDefinition(name, def)
			}
		}
	}
	c.vars = make(map[string]*stateVariable, len(c.defs))
	for name, def := range c.defs {
		c.vars[name] = newStateVariable(c, name, def)
	}
}

// attributeBackedDefinition is the standard attribute-or-essential
// variable.
func attributeBackedDefinition(attr string, spec AttributeSpec) *StateVariableDefinition {
	return &StateVariableDefinition{
		Public:       spec.Public,
		HasEssential: true,
		DefaultValue: spec.DefaultValue,
		ReturnDependencies: func(DependencyContext) Dependencies {
			return Dependencies{"attribute": Attribute(attr)}
		},
		Definition: func(deps DependencyValues) Result {
			if deps.Found("attribute") {
				return Result{SetValue: deps.Value("attribute")}
			}
			return Result{UseEssentialOrDefault: true}
		},
		InverseDefinition: func(req InverseRequest) InverseResult {
			if req.Deps.Found("attribute") {
				return Accept(Forward("attribute", req.Desired))
			}
			return Accept(Essential(req.Desired))
		},
	}
}

// shadowDefinition makes a copy's variable mirror the source's, with
// writes forwarded to the source.
func shadowDefinition(name string, orig *StateVariableDefinition) *StateVariableDefinition {
	if !orig.IsArray {
		return &StateVariableDefinition{
			Public: true,
			ReturnDependencies: func(DependencyContext) Dependencies {
				return Dependencies{"source": ShadowOf(name)}
			},
			Definition: func(deps DependencyValues) Result {
				return Result{SetValue: deps.Value("source")}
			},
			InverseDefinition: func(req InverseRequest) InverseResult {
				return Accept(Forward("source", req.Desired))
			},
		}
	}
	return &StateVariableDefinition{
		Public:        true,
		IsArray:       true,
		NumDimensions: orig.dims(),
		EntryPrefixes: orig.EntryPrefixes,
		ReturnArraySizeDependencies: func(DependencyContext) Dependencies {
			return Dependencies{"size": ShadowOf(name).ArraySize()}
		},
		ReturnArraySize: func(deps DependencyValues) []int {
			return sizeFromValue(deps.Value("size"))
		},
		ReturnArrayDependenciesByKey: func(ctx DependencyContext) ArrayDependencies {
			byKey := make(map[ir.ArrayKey]Dependencies, len(ctx.Keys))
			for _, k := range ctx.Keys {
				byKey[k] = Dependencies{"source": ShadowOf(name).AtKey(k)}
			}
			return ArrayDependencies{ByKey: byKey}
		},
		ArrayDefinitionByKey: func(_ DependencyValues, byKey map[ir.ArrayKey]DependencyValues, keys []ir.ArrayKey) ArrayResult {
			set := make(map[ir.ArrayKey]ir.IRValue, len(keys))
			for _, k := range keys {
				set[k] = byKey[k].Value("source")
			}
			return ArrayResult{SetValue: set}
		},
		InverseArrayDefinitionByKey: func(req InverseRequest) InverseResult {
			keys := sortedKeys(req.DesiredByKey)
			instructions := make([]InverseInstruction, 0, len(keys))
			for _, k := range keys {
				instructions = append(instructions, InverseInstruction{
					SetDependency: "source",
					ByKey:         k,
					DesiredValue:  req.DesiredByKey[k],
				})
			}
			return Accept(instructions...)
		},
	}
}

// sizeFromValue reads an array size encoded as a vector of counts.
func sizeFromValue(v ir.IRValue) []int {
	xs, ok := ir.AsVector(v)
	if !ok {
		return nil
	}
	out := make([]int, len(xs))
	for i, x := range xs {
		out[i] = int(x)
	}
	return out
}

func sortedKeys[V any](m map[ir.ArrayKey]V) []ir.ArrayKey {
	keys := make([]ir.ArrayKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
	return keys
}

// keyLess orders keys numerically, dimension by dimension.
func keyLess(a, b ir.ArrayKey) bool {
	ai, errA := a.Indices()
	bi, errB := b.Indices()
	if errA != nil || errB != nil {
		return a < b
	}
	for d := 0; d < len(ai) && d < len(bi); d++ {
		if ai[d] != bi[d] {
			return ai[d] < bi[d]
		}
	}
	return len(ai) < len(bi)
}

// members returns c's children with composites replaced by their
// replacements, expanding composites as needed.
func (e *Engine) members(c *Component) []*Component {
	var out []*Component
	for _, child := range c.children {
		out = append(out, e.flatten(child)...)
	}
	return out
}

func (e *Engine) flatten(c *Component) []*Component {
	if !c.typ.IsComposite() {
		return []*Component{c}
	}
	e.expand(c)
	var out []*Component
	for _, r := range c.replacements {
		out = append(out, e.flatten(r)...)
	}
	return out
}

// expand builds a composite's replacements once. Replacements take the
// composite's place under its parent.
func (e *Engine) expand(c *Component) {
	if c.expanded || !c.typ.IsComposite() {
		return
	}
	c.expanded = true

	var specs []NodeSpec
	err := safeCall(func() error {
		var err error
		specs, err = c.typ.Expand(ExpandContext{Reader: Reader{e: e, c: c}, Children: c.childSpecs})
		return err
	})
	if err != nil {
		e.failComponent(c, fmt.Errorf("expand: %w", err))
		return
	}

	for _, spec := range specs {
		r := e.build(spec, c.parent)
		if r == nil {
			continue
		}
		r.replacing = c
		c.replacements = append(c.replacements, r)
		e.assignReplacementVariants(c, r)
	}
	e.logger.Debug("composite expanded",
		"component", c.name,
		"type", c.typ.Name,
		"replacements", len(c.replacements),
	)
	e.metrics.CompositeExpanded(c.typ.Name)
}

// groupMembers returns the members of c in the given child groups.
func (e *Engine) groupMembers(c *Component, groups []string) []*Component {
	var out []*Component
	for _, m := range e.members(c) {
		g := c.typ.groupOf(m.typ.Name)
		if g == "" {
			continue
		}
		for _, want := range groups {
			if g == want {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// ancestorOfType finds the nearest ancestor with the given type.
func ancestorOfType(c *Component, typeName string) *Component {
	for p := c.parent; p != nil; p = p.parent {
		if p.typ.Name == typeName {
			return p
		}
	}
	return nil
}

// failComponent marks c as failed. Its variables read as IRNull from now
// on; the rest of the document is unaffected.
func (e *Engine) failComponent(c *Component, err error) {
	if c.failed != nil {
		return
	}
	c.failed = err
	e.report(Diagnostic{
		Level:     LevelError,
		Message:   err.Error(),
		Component: c.label(),
		Range:     c.rng,
	})
	for _, sv := range c.vars {
		e.invalidate(sv, invalidateAll, "")
	}
}

// safeCall runs collaborator code, turning a panic into an error so one
// faulty definition cannot take down the engine.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
