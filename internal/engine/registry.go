package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/vellum/internal/ir"
	"github.com/roach88/vellum/internal/variant"
)

// AttributeSpec declares an attribute a component type accepts.
type AttributeSpec struct {
	// CreateStateVariable, when set, synthesizes a state variable of that
	// name holding the attribute's value, or an essential value seeded
	// with DefaultValue when the attribute is absent. Writes go back to the
	// attribute when present and to the essential value otherwise.
	CreateStateVariable string
	DefaultValue        ir.IRValue
	Public              bool
}

// ChildGroup is a named partition of a component's children. A child
// belongs to the first group listing its type; "*" accepts any type.
type ChildGroup struct {
	Name  string
	Types []string
}

// ActionFunc handles an action request on a component.
type ActionFunc func(ac *ActionContext, args ir.IRObject) error

// ExpandContext is passed to a composite's Expand function.
type ExpandContext struct {
	Reader

	// Children are the unexpanded child specs the composite was given.
	Children []NodeSpec
}

// VariantCapability lets a component type take part in variant selection.
type VariantCapability struct {
	// Section reads the variant declaration of a document root.
	Section func(r Reader) variant.Config

	// StateVariable receives the selection as its essential value.
	StateVariable string

	// UniqueCount reports how many distinct selections the component can
	// make.
	UniqueCount func(r Reader) (int, bool)

	// Select picks the selection for a desired variant. desired.Index is a
	// 1-based unique index when set; otherwise draw from shared.VariantRng.
	Select func(r Reader, desired variant.Desired, shared *variant.Shared) (ir.IRValue, error)
}

// ComponentType is the capability-tagged record a component kind supplies
// to the engine: its attribute and child declarations, its state-variable
// table, and optional capabilities (actions, composite expansion, variant
// selection).
type ComponentType struct {
	Name string

	Attributes  map[string]AttributeSpec
	ChildGroups []ChildGroup

	StateVariables map[string]*StateVariableDefinition

	// PrimaryVariable is read when a reference names the component but
	// no variable.
	PrimaryVariable string

	Actions map[string]ActionFunc

	// Expand makes the type a composite: its children are not built
	// directly but handed to Expand, whose replacements take its place.
	Expand func(x ExpandContext) ([]NodeSpec, error)

	Variants *VariantCapability
}

// IsComposite reports whether the type expands into replacements.
func (t *ComponentType) IsComposite() bool { return t.Expand != nil }

// groupOf returns the child group accepting childType, or "".
func (t *ComponentType) groupOf(childType string) string {
	for _, g := range t.ChildGroups {
		for _, accepted := range g.Types {
			if accepted == childType || accepted == "*" {
				return g.Name
			}
		}
	}
	return ""
}

// Registry holds component types by name.
type Registry struct {
	types map[string]*ComponentType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*ComponentType)}
}

// Register validates t and adds it. Malformed tables are rejected with a
// *DeclarationError listing every problem.
func (r *Registry) Register(t *ComponentType) error {
	if t == nil || t.Name == "" {
		return &DeclarationError{Type: "", Problems: map[string]string{"name": "component type needs a name"}}
	}
	if strings.HasPrefix(t.Name, "_") {
		return &DeclarationError{Type: t.Name, Problems: map[string]string{"name": "names starting with _ are reserved"}}
	}
	if _, dup := r.types[t.Name]; dup {
		return &DeclarationError{Type: t.Name, Problems: map[string]string{"name": "already registered"}}
	}
	if problems := validateType(t); len(problems) > 0 {
		return &DeclarationError{Type: t.Name, Problems: problems}
	}
	r.types[t.Name] = t
	return nil
}

// MustRegister is like Register but panics on error.
// Use only for built-in catalogs known to be valid.
func (r *Registry) MustRegister(types ...*ComponentType) {
	for _, t := range types {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (*ComponentType, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Types returns registered type names in sorted order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func validateType(t *ComponentType) map[string]string {
	problems := make(map[string]string)

	for name, def := range t.StateVariables {
		if def == nil {
			problems[name] = "nil definition"
			continue
		}
		if msg := validateDefinition(name, def, t); msg != "" {
			problems[name] = msg
		}
	}

	for attr, spec := range t.Attributes {
		sv := spec.CreateStateVariable
		if sv == "" {
			continue
		}
		if _, clash := t.StateVariables[sv]; clash {
			problems[sv] = fmt.Sprintf("attribute %q creates a variable that is also declared", attr)
		}
	}

	if t.PrimaryVariable != "" && !declares(t, t.PrimaryVariable) {
		problems[t.PrimaryVariable] = "primary variable is not declared"
	}

	seen := make(map[string]bool)
	for _, g := range t.ChildGroups {
		if g.Name == "" || seen[g.Name] {
			problems["childGroups"] = fmt.Sprintf("child group %q is empty or duplicated", g.Name)
		}
		seen[g.Name] = true
	}

	if v := t.Variants; v != nil && v.Select != nil {
		def, ok := t.StateVariables[v.StateVariable]
		if !ok || !def.HasEssential {
			problems["variants"] = fmt.Sprintf("variant variable %q must be declared with an essential value", v.StateVariable)
		}
	}

	for name, fn := range t.Actions {
		if fn == nil {
			problems["action:"+name] = "nil action"
		}
	}
	return problems
}

func declares(t *ComponentType, name string) bool {
	if _, ok := t.StateVariables[name]; ok {
		return true
	}
	for _, spec := range t.Attributes {
		if spec.CreateStateVariable == name {
			return true
		}
	}
	return false
}

func validateDefinition(name string, def *StateVariableDefinition, t *ComponentType) string {
	for _, det := range def.DeterminingStateVariables {
		if det == name {
			return "a variable cannot determine its own dependencies"
		}
		if !declares(t, det) {
			return fmt.Sprintf("determining variable %q is not declared", det)
		}
	}

	if !def.IsArray {
		switch {
		case def.ReturnArraySize != nil || def.ArrayDefinitionByKey != nil ||
			def.ReturnArrayDependenciesByKey != nil || def.InverseArrayDefinitionByKey != nil ||
			def.ReturnArraySizeDependencies != nil:
			return "array functions on a non-array variable"
		case len(def.EntryPrefixes) > 0:
			return "entry prefixes on a non-array variable"
		case def.Definition == nil && !def.HasEssential:
			return "needs a definition or an essential value"
		}
		return ""
	}

	switch {
	case def.ReturnArraySize == nil:
		return "array variable needs ReturnArraySize"
	case def.ArrayDefinitionByKey == nil:
		return "array variable needs ArrayDefinitionByKey"
	case def.Definition != nil || def.InverseDefinition != nil || def.ReturnDependencies != nil:
		return "array variable uses scalar functions"
	}
	for _, prefix := range def.EntryPrefixes {
		if prefix == "" {
			return "empty entry prefix"
		}
		if _, clash := t.StateVariables[prefix]; clash {
			return fmt.Sprintf("entry prefix %q collides with a variable", prefix)
		}
	}
	return ""
}
