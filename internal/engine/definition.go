package engine

import (
	"sort"

	"github.com/roach88/vellum/internal/ir"
)

// DependencyKind tags what a Dependency points at.
type DependencyKind int

const (
	// DepStateVariable is a variable on this component or a named one.
	DepStateVariable DependencyKind = iota + 1
	// DepChild collects variables from children in the named child groups.
	DepChild
	// DepAncestor reads variables from the nearest ancestor of a type.
	DepAncestor
	// DepParentStateVariable reads a variable from the parent, whatever
	// its type.
	DepParentStateVariable
	// DepShadowSource reads a variable from the component this one was
	// copied from.
	DepShadowSource
	// DepAttribute reads the value of an attribute component.
	DepAttribute
	// DepCountAmongSiblings is the 1-based position among siblings of the
	// same type.
	DepCountAmongSiblings
	// DepParentIdentity is the parent's name and type.
	DepParentIdentity
	// DepValue is a literal.
	DepValue
)

func (k DependencyKind) String() string {
	switch k {
	case DepStateVariable:
		return "stateVariable"
	case DepChild:
		return "child"
	case DepAncestor:
		return "ancestor"
	case DepParentStateVariable:
		return "parentStateVariable"
	case DepShadowSource:
		return "shadowSource"
	case DepAttribute:
		return "attributeComponent"
	case DepCountAmongSiblings:
		return "countAmongSiblings"
	case DepParentIdentity:
		return "parentIdentity"
	case DepValue:
		return "value"
	default:
		return "unknown"
	}
}

// Dependency declares one input of a state variable. Build them with the
// constructor functions below rather than by hand.
type Dependency struct {
	Kind DependencyKind

	// Component names another component for DepStateVariable. Empty means
	// the owning component.
	Component string

	// Variable is the variable read by single-variable kinds.
	Variable string

	// Variables are read from each matched component for DepChild and
	// DepAncestor.
	Variables []string

	// ChildGroups filters DepChild by group membership.
	ChildGroups []string

	// AncestorType selects the ancestor for DepAncestor.
	AncestorType string

	// Attribute names the attribute for DepAttribute.
	Attribute string

	// Key restricts a read of an array variable to one entry.
	Key ir.ArrayKey

	// Size reads an array variable's size instead of its value.
	Size bool

	// Value is the literal for DepValue.
	Value ir.IRValue

	// Optional suppresses the warning when the target does not exist.
	Optional bool
}

// StateVar depends on a variable of the owning component. Entry names such
// as "x1" address single array entries.
func StateVar(name string) Dependency {
	return Dependency{Kind: DepStateVariable, Variable: name}
}

// StateVarOf depends on a variable of the named component.
func StateVarOf(component, name string) Dependency {
	return Dependency{Kind: DepStateVariable, Component: component, Variable: name}
}

// Children depends on variables of children belonging to the groups.
func Children(groups []string, variables ...string) Dependency {
	return Dependency{Kind: DepChild, ChildGroups: groups, Variables: variables}
}

// Ancestor depends on variables of the nearest ancestor of a type.
func Ancestor(componentType string, variables ...string) Dependency {
	return Dependency{Kind: DepAncestor, AncestorType: componentType, Variables: variables}
}

// ParentVar depends on a variable of the parent.
func ParentVar(name string) Dependency {
	return Dependency{Kind: DepParentStateVariable, Variable: name}
}

// ShadowOf depends on a variable of the shadow source.
func ShadowOf(name string) Dependency {
	return Dependency{Kind: DepShadowSource, Variable: name}
}

// Attribute depends on the value of an attribute. An absent attribute
// yields a dependency value with Found false.
func Attribute(name string) Dependency {
	return Dependency{Kind: DepAttribute, Attribute: name}
}

// CountAmongSiblings depends on the 1-based position among same-type
// siblings.
func CountAmongSiblings() Dependency {
	return Dependency{Kind: DepCountAmongSiblings}
}

// ParentIdentity depends on the parent's name and type.
func ParentIdentity() Dependency {
	return Dependency{Kind: DepParentIdentity}
}

// Literal is a constant dependency.
func Literal(v ir.IRValue) Dependency {
	return Dependency{Kind: DepValue, Value: v}
}

// AtKey restricts the dependency to one array entry.
func (d Dependency) AtKey(k ir.ArrayKey) Dependency {
	d.Key = k
	return d
}

// ArraySize turns the dependency into a read of the array size.
func (d Dependency) ArraySize() Dependency {
	d.Size = true
	return d
}

// AsOptional suppresses missing-target warnings.
func (d Dependency) AsOptional() Dependency {
	d.Optional = true
	return d
}

// Dependencies maps dependency names to declarations.
type Dependencies map[string]Dependency

// names returns the dependency names in sorted order for deterministic
// evaluation.
func (d Dependencies) names() []string {
	out := make([]string, 0, len(d))
	for name := range d {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ComponentValues is one component matched by a child or ancestor
// dependency.
type ComponentValues struct {
	Name   string
	Type   string
	Values map[string]ir.IRValue
}

// DependencyValue is the resolved value of one dependency.
type DependencyValue struct {
	// Value is set for single-value kinds.
	Value ir.IRValue

	// Components is set for DepChild and DepAncestor.
	Components []ComponentValues

	// Found is false when the target does not exist.
	Found bool
}

// DependencyValues maps dependency names to values.
type DependencyValues map[string]DependencyValue

// Value returns the single value of a dependency, or IRNull.
func (d DependencyValues) Value(name string) ir.IRValue {
	v, ok := d[name]
	if !ok || v.Value == nil {
		return ir.IRNull{}
	}
	return v.Value
}

// Has reports whether the dependency's target exists and is not null.
func (d DependencyValues) Has(name string) bool {
	v, ok := d[name]
	return ok && v.Found && !ir.IsNull(v.Value)
}

// Found reports whether the dependency's target exists.
func (d DependencyValues) Found(name string) bool {
	v, ok := d[name]
	return ok && v.Found
}

// Float returns a numeric dependency, or NaN.
func (d DependencyValues) Float(name string) (float64, bool) {
	return ir.AsFloat(d.Value(name))
}

// Vector returns a numeric vector dependency.
func (d DependencyValues) Vector(name string) ([]float64, bool) {
	return ir.AsVector(d.Value(name))
}

// Bool returns a boolean dependency, false if absent.
func (d DependencyValues) Bool(name string) bool {
	b, ok := d.Value(name).(ir.IRBool)
	return ok && bool(b)
}

// Components returns the matched components of a child or ancestor
// dependency.
func (d DependencyValues) Components(name string) []ComponentValues {
	return d[name].Components
}

// DependencyContext is what ReturnDependencies sees: the values of the
// variable's determining variables and static facts about the component.
type DependencyContext struct {
	StateValues map[string]ir.IRValue

	// Attributes lists the attributes the component was given.
	Attributes map[string]bool

	// Keys lists every key of the array when resolving array
	// dependencies. Nil for scalars.
	Keys []ir.ArrayKey
}

// HasAttribute reports whether the component was given the attribute.
func (c DependencyContext) HasAttribute(name string) bool {
	return c.Attributes[name]
}

// Result is what a scalar Definition returns. Set exactly one of SetValue
// or UseEssentialOrDefault; Warnings may accompany either.
type Result struct {
	SetValue ir.IRValue

	// UseEssentialOrDefault asks for the essential value, creating it from
	// DefaultValue (or the declared default) the first time.
	UseEssentialOrDefault bool
	DefaultValue          ir.IRValue

	Warnings []string
}

// ArrayResult is what ArrayDefinitionByKey returns. Keys not mentioned in
// SetValue or UseEssentialOrDefault are set to IRNull.
type ArrayResult struct {
	SetValue              map[ir.ArrayKey]ir.IRValue
	UseEssentialOrDefault map[ir.ArrayKey]bool
	DefaultValues         map[ir.ArrayKey]ir.IRValue
	Warnings              []string
}

// InverseRequest is what an inverse definition receives.
type InverseRequest struct {
	// Desired is the requested value for a scalar variable.
	Desired ir.IRValue

	// DesiredByKey holds requested entries for an array variable. In
	// whole-array mode it always holds every key.
	DesiredByKey map[ir.ArrayKey]ir.IRValue

	// Deps are the current values of the (global) dependencies.
	Deps DependencyValues

	// DepsByKey are the current per-key dependency values of an array.
	DepsByKey map[ir.ArrayKey]DependencyValues

	// Current is the current value of the variable.
	Current ir.IRValue

	// UsedEssential reports whether the current value came from the
	// essential value. For arrays see UsedEssentialByKey.
	UsedEssential      bool
	UsedEssentialByKey map[ir.ArrayKey]bool

	// Size is the array size.
	Size []int

	Workspace *Workspace
}

// InverseInstruction is one step of an inverse: either forward a desired
// value to a dependency or write the variable's own essential value.
type InverseInstruction struct {
	// SetDependency names the dependency to forward to.
	SetDependency string

	// ByKey selects the per-key dependency set of an array variable.
	ByKey ir.ArrayKey

	// SetEssentialValue writes the owning variable's essential value.
	SetEssentialValue bool

	DesiredValue ir.IRValue

	// DesiredByKey carries keyed desired values for array targets.
	DesiredByKey map[ir.ArrayKey]ir.IRValue

	// ComponentIndex selects among the components of a child or ancestor
	// dependency; VariableIndex selects among its variables.
	ComponentIndex int
	VariableIndex  int
}

// InverseResult is what an inverse definition returns.
type InverseResult struct {
	Success      bool
	Instructions []InverseInstruction
	Warnings     []string
}

// Refuse is an InverseResult with Success false.
func Refuse(warnings ...string) InverseResult {
	return InverseResult{Warnings: warnings}
}

// Accept builds a successful InverseResult.
func Accept(instructions ...InverseInstruction) InverseResult {
	return InverseResult{Success: true, Instructions: instructions}
}

// Forward builds an instruction sending desired to a dependency.
func Forward(dependency string, desired ir.IRValue) InverseInstruction {
	return InverseInstruction{SetDependency: dependency, DesiredValue: desired}
}

// Essential builds an instruction writing the variable's essential value.
func Essential(desired ir.IRValue) InverseInstruction {
	return InverseInstruction{SetEssentialValue: true, DesiredValue: desired}
}

// ArrayDependencies is what ReturnArrayDependenciesByKey returns.
type ArrayDependencies struct {
	Global Dependencies
	ByKey  map[ir.ArrayKey]Dependencies
}

// StateVariableDefinition is one entry of a component type's declarative
// table.
type StateVariableDefinition struct {
	// Public variables are reported by Snapshot and copied by shadows.
	Public bool

	// HasEssential declares that the variable may fall back to an
	// essential value. DefaultValue seeds it when the definition supplies
	// no computed default.
	HasEssential bool
	DefaultValue ir.IRValue

	// DeterminingStateVariables are read before ReturnDependencies, whose
	// result is reused until one of them changes.
	DeterminingStateVariables []string

	ReturnDependencies func(ctx DependencyContext) Dependencies
	Definition         func(deps DependencyValues) Result
	InverseDefinition  func(req InverseRequest) InverseResult

	// Array variables.
	IsArray       bool
	NumDimensions int
	// EntryPrefixes name single entries: prefix "x" makes "x1" key "0" of
	// a one-dimensional array and "x2_1" key "1,0" of a two-dimensional one.
	EntryPrefixes []string

	ReturnArraySizeDependencies  func(ctx DependencyContext) Dependencies
	ReturnArraySize              func(deps DependencyValues) []int
	ReturnArrayDependenciesByKey func(ctx DependencyContext) ArrayDependencies
	ArrayDefinitionByKey         func(global DependencyValues, byKey map[ir.ArrayKey]DependencyValues, keys []ir.ArrayKey) ArrayResult
	InverseArrayDefinitionByKey  func(req InverseRequest) InverseResult

	// WholeArray evaluates and inverts every key together: requesting one
	// key computes the full vector, and partial inverse writes within one
	// update are merged through the Workspace first.
	WholeArray bool
}

// dims returns the declared dimensionality, defaulting to one.
func (d *StateVariableDefinition) dims() int {
	if d.NumDimensions < 1 {
		return 1
	}
	return d.NumDimensions
}

// Workspace is scratch space that survives across repeated inverse calls
// on one variable within a single update.
type Workspace struct {
	// DesiredByKey accumulates desired entries of a whole-array variable.
	DesiredByKey map[ir.ArrayKey]ir.IRValue

	// Values is free-form storage for inverse definitions.
	Values map[string]ir.IRValue
}

func newWorkspace() *Workspace {
	return &Workspace{
		DesiredByKey: make(map[ir.ArrayKey]ir.IRValue),
		Values:       make(map[string]ir.IRValue),
	}
}
