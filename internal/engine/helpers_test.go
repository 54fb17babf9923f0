package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/vellum/internal/ir"
	"github.com/roach88/vellum/internal/variant"
)

// testRegistry registers a small catalog exercising each engine feature.
func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	for _, typ := range []*ComponentType{
		docType(), numberType(), fixedType(), pairType(), vectorType(),
		wholeType(), loopType(), deadlockType(), switchType(), boomType(),
		choiceType(), repeatType(),
	} {
		require.NoError(t, reg.Register(typ), typ.Name)
	}
	return reg
}

// newTestEngine builds and initializes doc.
func newTestEngine(t *testing.T, doc NodeSpec, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{
		WithDocumentID("doc-1"),
		WithLogger(discardLogger()),
	}, opts...)
	e := New(testRegistry(t), doc, opts...)
	require.NoError(t, e.Initialize(context.Background()))
	return e
}

// doc wraps children in a document root.
func doc(children ...NodeSpec) NodeSpec {
	return NodeSpec{Type: "doc", Name: "root", Children: children}
}

func num(name string, value any) NodeSpec {
	spec := NodeSpec{Type: "number", Name: name}
	if value != nil {
		spec.Attributes = map[string]any{"value": value}
	}
	return spec
}

func mustValue(t *testing.T, e *Engine, path string) ir.IRValue {
	t.Helper()
	v, err := e.Value(path)
	require.NoError(t, err, path)
	return v
}

func mustFloat(t *testing.T, e *Engine, path string) float64 {
	t.Helper()
	f, ok := ir.AsFloat(mustValue(t, e, path))
	require.True(t, ok, "%s is not a number", path)
	return f
}

func act(t *testing.T, e *Engine, component, action string, args ir.IRObject) *ActionRecord {
	t.Helper()
	rec, queued, err := e.Dispatch(context.Background(), ActionRequest{Component: component, Action: action, Args: args})
	require.NoError(t, err)
	require.False(t, queued)
	return rec
}

func diagnosticCodes(e *Engine) []string {
	var codes []string
	for _, d := range e.Diagnostics() {
		if d.Code != "" {
			codes = append(codes, d.Code)
		}
	}
	return codes
}

func floatOf(d DependencyValues, name string) float64 {
	f, _ := d.Float(name)
	return f
}

func setAction(variable string) ActionFunc {
	return func(ac *ActionContext, args ir.IRObject) error {
		return ac.RequestUpdate(Update{Variable: variable, Value: args["value"]})
	}
}

func docType() *ComponentType {
	return &ComponentType{
		Name: "doc",
		Attributes: map[string]AttributeSpec{
			"numVariants":    {},
			"uniqueVariants": {},
		},
		ChildGroups: []ChildGroup{{Name: "all", Types: []string{"*"}}},
		Variants: &VariantCapability{
			Section: func(r Reader) variant.Config {
				var cfg variant.Config
				if v, ok := r.Attribute("numVariants"); ok {
					if n, ok := ir.AsFloat(v); ok {
						cfg.NumVariants = int(n)
					}
				}
				if v, ok := r.Attribute("uniqueVariants"); ok {
					cfg.UniqueVariants = v == ir.IRBool(true)
				}
				return cfg
			},
		},
	}
}

// numberType holds a value from its attribute or an essential value.
func numberType() *ComponentType {
	return &ComponentType{
		Name: "number",
		Attributes: map[string]AttributeSpec{
			"value": {CreateStateVariable: "value", DefaultValue: ir.IRNumber(0), Public: true},
		},
		StateVariables: map[string]*StateVariableDefinition{
			"doubled": {
				Public: true,
				ReturnDependencies: func(DependencyContext) Dependencies {
					return Dependencies{"v": StateVar("value")}
				},
				Definition: func(d DependencyValues) Result {
					return Result{SetValue: ir.IRNumber(2 * floatOf(d, "v"))}
				},
				InverseDefinition: func(req InverseRequest) InverseResult {
					f, ok := ir.AsFloat(req.Desired)
					if !ok {
						return Refuse("doubled takes numbers")
					}
					return Accept(Forward("v", ir.IRNumber(f/2)))
				},
			},
		},
		PrimaryVariable: "value",
		Actions: map[string]ActionFunc{
			"set":        setAction("value"),
			"setDoubled": setAction("doubled"),
		},
	}
}

// fixedType always reads 42 and refuses every write.
func fixedType() *ComponentType {
	return &ComponentType{
		Name: "fixed",
		StateVariables: map[string]*StateVariableDefinition{
			"value": {
				Public: true,
				Definition: func(DependencyValues) Result {
					return Result{SetValue: ir.IRNumber(42)}
				},
				InverseDefinition: func(InverseRequest) InverseResult {
					return Refuse("fixed value")
				},
			},
		},
		PrimaryVariable: "value",
		Actions:         map[string]ActionFunc{"set": setAction("value")},
	}
}

// pairType sums two attributes; an inverse sends the remainder to each.
func pairType() *ComponentType {
	return &ComponentType{
		Name:       "pair",
		Attributes: map[string]AttributeSpec{"a": {}, "b": {}},
		StateVariables: map[string]*StateVariableDefinition{
			"total": {
				Public: true,
				ReturnDependencies: func(DependencyContext) Dependencies {
					return Dependencies{"a": Attribute("a"), "b": Attribute("b")}
				},
				Definition: func(d DependencyValues) Result {
					return Result{SetValue: ir.IRNumber(floatOf(d, "a") + floatOf(d, "b"))}
				},
				InverseDefinition: func(req InverseRequest) InverseResult {
					f, ok := ir.AsFloat(req.Desired)
					if !ok {
						return Refuse("total takes numbers")
					}
					a, b := floatOf(req.Deps, "a"), floatOf(req.Deps, "b")
					return Accept(
						Forward("a", ir.IRNumber(f-b)),
						Forward("b", ir.IRNumber(f-a)),
					)
				},
			},
		},
		PrimaryVariable: "total",
		Actions:         map[string]ActionFunc{"set": setAction("total")},
	}
}

// vectorType is a per-key essential array sized by its n attribute.
func vectorType() *ComponentType {
	return &ComponentType{
		Name: "vector",
		Attributes: map[string]AttributeSpec{
			"n": {CreateStateVariable: "n", DefaultValue: ir.IRNumber(3)},
		},
		StateVariables: map[string]*StateVariableDefinition{
			"coords": {
				Public:        true,
				IsArray:       true,
				EntryPrefixes: []string{"x"},
				HasEssential:  true,
				DefaultValue:  ir.IRNumber(0),
				ReturnArraySizeDependencies: func(DependencyContext) Dependencies {
					return Dependencies{"n": StateVar("n")}
				},
				ReturnArraySize: func(d DependencyValues) []int {
					return []int{int(floatOf(d, "n"))}
				},
				ArrayDefinitionByKey: func(_ DependencyValues, _ map[ir.ArrayKey]DependencyValues, keys []ir.ArrayKey) ArrayResult {
					use := make(map[ir.ArrayKey]bool, len(keys))
					for _, k := range keys {
						use[k] = true
					}
					return ArrayResult{UseEssentialOrDefault: use}
				},
			},
			"first": {
				Public: true,
				ReturnDependencies: func(DependencyContext) Dependencies {
					return Dependencies{"x": StateVar("x1")}
				},
				Definition: func(d DependencyValues) Result {
					return Result{SetValue: d.Value("x")}
				},
			},
			"sum": {
				Public: true,
				ReturnDependencies: func(DependencyContext) Dependencies {
					return Dependencies{"coords": StateVar("coords")}
				},
				Definition: func(d DependencyValues) Result {
					xs, _ := d.Vector("coords")
					total := 0.0
					for _, x := range xs {
						total += x
					}
					return Result{SetValue: ir.IRNumber(total)}
				},
			},
		},
		PrimaryVariable: "coords",
		Actions: map[string]ActionFunc{
			"setEntry": func(ac *ActionContext, args ir.IRObject) error {
				entry, _ := args["entry"].(ir.IRString)
				return ac.RequestUpdate(Update{Variable: string(entry), Value: args["value"]})
			},
		},
	}
}

// wholeType is a whole-array variable of size 3 whose inverse writes
// every entry it is given.
func wholeType() *ComponentType {
	return &ComponentType{
		Name: "whole",
		StateVariables: map[string]*StateVariableDefinition{
			"coords": {
				Public:        true,
				IsArray:       true,
				WholeArray:    true,
				EntryPrefixes: []string{"x"},
				HasEssential:  true,
				DefaultValue:  ir.Vec(0, 0, 0),
				ReturnArraySize: func(DependencyValues) []int {
					return []int{3}
				},
				ArrayDefinitionByKey: func(_ DependencyValues, _ map[ir.ArrayKey]DependencyValues, keys []ir.ArrayKey) ArrayResult {
					use := make(map[ir.ArrayKey]bool, len(keys))
					for _, k := range keys {
						use[k] = true
					}
					return ArrayResult{UseEssentialOrDefault: use}
				},
				InverseArrayDefinitionByKey: func(req InverseRequest) InverseResult {
					return Accept(InverseInstruction{SetEssentialValue: true, DesiredByKey: req.DesiredByKey})
				},
			},
		},
		PrimaryVariable: "coords",
		Actions: map[string]ActionFunc{
			"setFirstTwo": func(ac *ActionContext, args ir.IRObject) error {
				return ac.RequestUpdate(
					Update{Variable: "x1", Value: args["x1"]},
					Update{Variable: "x2", Value: args["x2"]},
				)
			},
		},
	}
}

// loopType is a cycle settled by a's essential value.
func loopType() *ComponentType {
	return &ComponentType{
		Name: "loop",
		StateVariables: map[string]*StateVariableDefinition{
			"a": {
				Public:       true,
				HasEssential: true,
				DefaultValue: ir.IRNumber(10),
				ReturnDependencies: func(DependencyContext) Dependencies {
					return Dependencies{"b": StateVar("b")}
				},
				Definition: func(DependencyValues) Result {
					return Result{UseEssentialOrDefault: true}
				},
			},
			"b": {
				Public: true,
				ReturnDependencies: func(DependencyContext) Dependencies {
					return Dependencies{"a": StateVar("a")}
				},
				Definition: func(d DependencyValues) Result {
					return Result{SetValue: ir.IRNumber(floatOf(d, "a") + 1)}
				},
				InverseDefinition: func(req InverseRequest) InverseResult {
					f, _ := ir.AsFloat(req.Desired)
					return Accept(Forward("a", ir.IRNumber(f-1)))
				},
			},
		},
		Actions: map[string]ActionFunc{"setB": setAction("b")},
	}
}

// deadlockType is a cycle with nothing to settle it.
func deadlockType() *ComponentType {
	mirror := func(other string) *StateVariableDefinition {
		return &StateVariableDefinition{
			Public: true,
			ReturnDependencies: func(DependencyContext) Dependencies {
				return Dependencies{"other": StateVar(other)}
			},
			Definition: func(d DependencyValues) Result {
				return Result{SetValue: d.Value("other")}
			},
		}
	}
	return &ComponentType{
		Name:           "deadlock",
		StateVariables: map[string]*StateVariableDefinition{"p": mirror("q"), "q": mirror("p")},
	}
}

// switchType reads component A or B depending on its mode.
func switchType() *ComponentType {
	return &ComponentType{
		Name: "switch",
		Attributes: map[string]AttributeSpec{
			"mode": {CreateStateVariable: "mode", DefaultValue: ir.IRString("a"), Public: true},
		},
		StateVariables: map[string]*StateVariableDefinition{
			"value": {
				Public:                    true,
				DeterminingStateVariables: []string{"mode"},
				ReturnDependencies: func(ctx DependencyContext) Dependencies {
					if ctx.StateValues["mode"] == ir.IRString("b") {
						return Dependencies{"src": StateVarOf("B", "value")}
					}
					return Dependencies{"src": StateVarOf("A", "value")}
				},
				Definition: func(d DependencyValues) Result {
					return Result{SetValue: d.Value("src")}
				},
			},
		},
		PrimaryVariable: "value",
		Actions:         map[string]ActionFunc{"setMode": setAction("mode")},
	}
}

// boomType's definition panics.
func boomType() *ComponentType {
	return &ComponentType{
		Name: "boom",
		StateVariables: map[string]*StateVariableDefinition{
			"value": {
				Public: true,
				Definition: func(DependencyValues) Result {
					panic("boom")
				},
			},
		},
		PrimaryVariable: "value",
	}
}

// choiceType picks one of its options per variant.
func choiceType() *ComponentType {
	options := func(r Reader) []ir.IRValue {
		v, _ := r.Attribute("options")
		arr, _ := v.(ir.IRArray)
		return arr
	}
	return &ComponentType{
		Name:       "choice",
		Attributes: map[string]AttributeSpec{"options": {}},
		StateVariables: map[string]*StateVariableDefinition{
			"selected": {Public: true, HasEssential: true},
		},
		PrimaryVariable: "selected",
		Variants: &VariantCapability{
			StateVariable: "selected",
			UniqueCount: func(r Reader) (int, bool) {
				return len(options(r)), true
			},
			Select: func(r Reader, desired variant.Desired, shared *variant.Shared) (ir.IRValue, error) {
				opts := options(r)
				if len(opts) == 0 {
					return nil, fmt.Errorf("no options")
				}
				if desired.Index > 0 {
					return opts[(desired.Index-1)%len(opts)], nil
				}
				return opts[shared.VariantRng.IntN(len(opts))], nil
			},
		},
	}
}

// repeatType expands into count numbers valued 1..count.
func repeatType() *ComponentType {
	return &ComponentType{
		Name:       "repeat",
		Attributes: map[string]AttributeSpec{"count": {}},
		Expand: func(x ExpandContext) ([]NodeSpec, error) {
			v, _ := x.Attribute("count")
			n, ok := ir.AsFloat(v)
			if !ok {
				return nil, fmt.Errorf("count must be a number")
			}
			specs := make([]NodeSpec, int(n))
			for i := range specs {
				specs[i] = NodeSpec{Type: "number", Attributes: map[string]any{"value": i + 1}}
			}
			return specs, nil
		},
	}
}
