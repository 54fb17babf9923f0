package catalog

import (
	"fmt"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/geom"
	"github.com/roach88/vellum/internal/ir"
)

var constraintChildren = []string{"constraints", "constrainTo", "attractTo", "constrainToGrid", "attractToGrid"}

// pointType is a draggable point. unconstrainedCoords holds where the point
// was put, one independent entry per coordinate; coords applies the
// point's constraints to the whole vector at once, so a constraint such as
// a grid can couple the coordinates.
func pointType() *engine.ComponentType {
	return &engine.ComponentType{
		Name:        "point",
		Attributes:  map[string]engine.AttributeSpec{"coords": {}},
		ChildGroups: []engine.ChildGroup{{Name: "constraints", Types: constraintChildren}},
		StateVariables: map[string]*engine.StateVariableDefinition{
			"nDimensions":         pointDimensions(),
			"unconstrainedCoords": unconstrainedCoords(),
			"coords":              constrainedCoords(),
			"nearestPoint": {
				ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
					return engine.Dependencies{"coords": engine.StateVar("coords")}
				},
				Definition: func(deps engine.DependencyValues) engine.Result {
					xs, ok := deps.Vector("coords")
					if !ok {
						return engine.Result{SetValue: ir.IRNull{}}
					}
					return engine.Result{SetValue: nearestPointValue(geom.Point(xs))}
				},
			},
		},
		PrimaryVariable: "coords",
		Actions:         map[string]engine.ActionFunc{"movePoint": movePoint},
	}
}

func pointDimensions() *engine.StateVariableDefinition {
	return &engine.StateVariableDefinition{
		Public: true,
		ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
			return engine.Dependencies{"coords": engine.Attribute("coords")}
		},
		Definition: func(deps engine.DependencyValues) engine.Result {
			if !deps.Found("coords") {
				return engine.Result{SetValue: ir.IRNumber(2)}
			}
			xs, _ := ir.AsVector(deps.Value("coords"))
			if len(xs) == 0 {
				return engine.Result{
					SetValue: ir.IRNumber(2),
					Warnings: []string{"coords has no entries; assuming two dimensions"},
				}
			}
			return engine.Result{SetValue: ir.IRNumber(float64(len(xs)))}
		},
	}
}

func arraySizeFrom(dep string) (func(engine.DependencyContext) engine.Dependencies, func(engine.DependencyValues) []int) {
	deps := func(engine.DependencyContext) engine.Dependencies {
		return engine.Dependencies{"n": engine.StateVar(dep)}
	}
	size := func(d engine.DependencyValues) []int {
		n, ok := d.Float("n")
		if !ok || n < 0 {
			return []int{0}
		}
		return []int{int(n)}
	}
	return deps, size
}

func unconstrainedCoords() *engine.StateVariableDefinition {
	sizeDeps, size := arraySizeFrom("nDimensions")
	return &engine.StateVariableDefinition{
		IsArray:                     true,
		HasEssential:                true,
		DefaultValue:                ir.IRNumber(0),
		ReturnArraySizeDependencies: sizeDeps,
		ReturnArraySize:             size,
		ReturnArrayDependenciesByKey: func(ctx engine.DependencyContext) engine.ArrayDependencies {
			if !ctx.HasAttribute("coords") {
				return engine.ArrayDependencies{}
			}
			return engine.ArrayDependencies{Global: engine.Dependencies{"coords": engine.Attribute("coords")}}
		},
		ArrayDefinitionByKey: func(global engine.DependencyValues, _ map[ir.ArrayKey]engine.DependencyValues, keys []ir.ArrayKey) engine.ArrayResult {
			res := engine.ArrayResult{
				SetValue:              make(map[ir.ArrayKey]ir.IRValue),
				UseEssentialOrDefault: make(map[ir.ArrayKey]bool),
			}
			if !global.Found("coords") {
				for _, k := range keys {
					res.UseEssentialOrDefault[k] = true
				}
				return res
			}
			xs, ok := global.Vector("coords")
			if !ok {
				res.Warnings = append(res.Warnings, fmt.Sprintf("coords must be a list of numbers, not %s", describe(global.Value("coords"))))
			}
			for _, k := range keys {
				if i, ok := keyIndex(k); ok && i < len(xs) {
					res.SetValue[k] = ir.IRNumber(xs[i])
				}
			}
			return res
		},
		InverseArrayDefinitionByKey: func(req engine.InverseRequest) engine.InverseResult {
			for _, v := range req.DesiredByKey {
				if _, ok := ir.AsFloat(v); !ok {
					return engine.Refuse(fmt.Sprintf("coordinates must be numbers, not %s", describe(v)))
				}
			}
			if !req.Deps.Found("coords") {
				return engine.Accept(engine.InverseInstruction{SetEssentialValue: true, DesiredByKey: req.DesiredByKey})
			}
			current, _ := req.Deps.Vector("coords")
			n := 0
			if len(req.Size) == 1 {
				n = req.Size[0]
			}
			xs := make([]float64, max(n, len(current)))
			copy(xs, current)
			for k, v := range req.DesiredByKey {
				if i, ok := keyIndex(k); ok && i < len(xs) {
					xs[i], _ = ir.AsFloat(v)
				}
			}
			return engine.Accept(engine.Forward("coords", ir.Vec(xs...)))
		},
	}
}

func constrainedCoords() *engine.StateVariableDefinition {
	sizeDeps, size := arraySizeFrom("nDimensions")
	return &engine.StateVariableDefinition{
		Public:                      true,
		IsArray:                     true,
		WholeArray:                  true,
		EntryPrefixes:               []string{"x"},
		ReturnArraySizeDependencies: sizeDeps,
		ReturnArraySize:             size,
		ReturnArrayDependenciesByKey: func(engine.DependencyContext) engine.ArrayDependencies {
			return engine.ArrayDependencies{Global: engine.Dependencies{
				"unconstrained": engine.StateVar("unconstrainedCoords"),
				"constraints":   engine.Children([]string{"constraints"}, "applyConstraint"),
			}}
		},
		ArrayDefinitionByKey: func(global engine.DependencyValues, _ map[ir.ArrayKey]engine.DependencyValues, keys []ir.ArrayKey) engine.ArrayResult {
			xs, _ := global.Vector("unconstrained")
			xs = applyConstraints(global, xs)
			set := make(map[ir.ArrayKey]ir.IRValue, len(keys))
			for _, k := range keys {
				if i, ok := keyIndex(k); ok && i < len(xs) {
					set[k] = ir.IRNumber(xs[i])
				}
			}
			return engine.ArrayResult{SetValue: set}
		},
		InverseArrayDefinitionByKey: func(req engine.InverseRequest) engine.InverseResult {
			n := 0
			if len(req.Size) == 1 {
				n = req.Size[0]
			}
			xs := make([]float64, n)
			for k, v := range req.DesiredByKey {
				f, ok := ir.AsFloat(v)
				if !ok {
					return engine.Refuse(fmt.Sprintf("coordinates must be numbers, not %s", describe(v)))
				}
				if i, ok := keyIndex(k); ok && i < n {
					xs[i] = f
				}
			}
			return engine.Accept(engine.Forward("unconstrained", ir.Vec(applyConstraints(req.Deps, xs)...)))
		},
	}
}

// applyConstraints runs the constraint children in document order, each
// on the output of the previous one.
func applyConstraints(deps engine.DependencyValues, xs []float64) []float64 {
	fn := composeConstraints(childValues(deps, "constraints", "applyConstraint"))
	if fn == nil {
		return xs
	}
	if out, ok := fn(xs); ok && len(out) == len(xs) {
		return out
	}
	return xs
}

func movePoint(ac *engine.ActionContext, args ir.IRObject) error {
	coords, ok, err := vectorArg(args, "coords")
	if err != nil {
		return err
	}
	if ok {
		return ac.RequestUpdate(engine.Update{Variable: "coords", Value: ir.Vec(coords...)})
	}

	var updates []engine.Update
	for i, name := range []string{"x", "y", "z"} {
		v, ok, err := numberArg(args, name)
		if err != nil {
			return err
		}
		if ok {
			updates = append(updates, engine.Update{Variable: fmt.Sprintf("x%d", i+1), Value: ir.IRNumber(v)})
		}
	}
	if len(updates) == 0 {
		return fmt.Errorf("movePoint needs coords or x, y, z")
	}
	return ac.RequestUpdate(updates...)
}
