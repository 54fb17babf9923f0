package catalog

import (
	"fmt"
	"math"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/geom"
	"github.com/roach88/vellum/internal/ir"
)

var attractorTypes = []string{"point", "line", "ray", "lineSegment", "circle"}

// composeConstraints chains constraint functions in order. It returns nil
// when there is nothing to apply.
func composeConstraints(vals []ir.IRValue) ConstraintFunc {
	var fns []ConstraintFunc
	for _, v := range vals {
		if fn, ok := constraintOf(v); ok {
			fns = append(fns, fn)
		}
	}
	if len(fns) == 0 {
		return nil
	}
	return func(xs []float64) ([]float64, bool) {
		applied := false
		for _, fn := range fns {
			if out, ok := fn(xs); ok && len(out) == len(xs) {
				xs, applied = out, true
			}
		}
		return xs, applied
	}
}

// constraintsType groups constraints so they can be shared by one point or
// segment.
func constraintsType() *engine.ComponentType {
	members := []string{"constrainTo", "attractTo", "constrainToGrid", "attractToGrid"}
	return &engine.ComponentType{
		Name:        "constraints",
		ChildGroups: []engine.ChildGroup{{Name: "constraints", Types: members}},
		StateVariables: map[string]*engine.StateVariableDefinition{
			"applyConstraint": {
				ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
					return engine.Dependencies{"constraints": engine.Children([]string{"constraints"}, "applyConstraint")}
				},
				Definition: func(deps engine.DependencyValues) engine.Result {
					fn := composeConstraints(childValues(deps, "constraints", "applyConstraint"))
					if fn == nil {
						return engine.Result{SetValue: ir.IRNull{}}
					}
					return engine.Result{SetValue: constraintValue(fn)}
				},
			},
			"segmentAttractors": {
				ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
					return engine.Dependencies{"constraints": engine.Children([]string{"constraints"}, "segmentAttractors")}
				},
				Definition: func(deps engine.DependencyValues) engine.Result {
					var all []SegmentAttractor
					for _, v := range childValues(deps, "constraints", "segmentAttractors") {
						all = append(all, attractorsOf(v)...)
					}
					return engine.Result{SetValue: attractorsValue(all)}
				},
			},
		},
	}
}

func relativeScalesAttribute() engine.AttributeSpec {
	return engine.AttributeSpec{CreateStateVariable: "relativeToGraphScales", DefaultValue: ir.IRBool(false)}
}

// scalesDefinition reads the enclosing graph's axis spans when distances
// are relative to graph scales. Its dependencies change with
// relativeToGraphScales.
func scalesDefinition() *engine.StateVariableDefinition {
	return &engine.StateVariableDefinition{
		DeterminingStateVariables: []string{"relativeToGraphScales"},
		ReturnDependencies: func(ctx engine.DependencyContext) engine.Dependencies {
			if ctx.StateValues["relativeToGraphScales"] != ir.IRBool(true) {
				return nil
			}
			return engine.Dependencies{"graph": engine.Ancestor("graph", "scales").AsOptional()}
		},
		Definition: func(deps engine.DependencyValues) engine.Result {
			if _, relative := deps["graph"]; !relative {
				return engine.Result{SetValue: ir.IRNull{}}
			}
			graphs := deps.Components("graph")
			if len(graphs) == 0 {
				return engine.Result{
					SetValue: ir.IRNull{},
					Warnings: []string{"relativeToGraphScales is set outside a graph; using unit scales"},
				}
			}
			return engine.Result{SetValue: graphs[0].Values["scales"]}
		},
	}
}

// thresholdDefinition is the attraction distance. Without a threshold
// attribute it becomes an essential value whose default depends on
// whether distances are graph-relative.
func thresholdDefinition() *engine.StateVariableDefinition {
	return &engine.StateVariableDefinition{
		Public:       true,
		HasEssential: true,
		ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
			return engine.Dependencies{
				"attribute": engine.Attribute("threshold"),
				"relative":  engine.StateVar("relativeToGraphScales"),
			}
		},
		Definition: func(deps engine.DependencyValues) engine.Result {
			def := ir.IRNumber(geom.DefaultThreshold(deps.Bool("relative")))
			if !deps.Found("attribute") {
				return engine.Result{UseEssentialOrDefault: true, DefaultValue: def}
			}
			t, ok := deps.Float("attribute")
			if !ok || t < 0 || math.IsNaN(t) {
				return engine.Result{
					SetValue: def,
					Warnings: []string{fmt.Sprintf("threshold must be a non-negative number; using %v", float64(def))},
				}
			}
			return engine.Result{SetValue: ir.IRNumber(t)}
		},
	}
}

func attractorDependencies(engine.DependencyContext) engine.Dependencies {
	return engine.Dependencies{
		"attractors": engine.Children([]string{"attractors"}, "nearestPoint"),
		"scales":     engine.StateVar("scales"),
	}
}

func attractorThresholdDependencies(ctx engine.DependencyContext) engine.Dependencies {
	deps := attractorDependencies(ctx)
	deps["threshold"] = engine.StateVar("threshold")
	return deps
}

func threshold2(deps engine.DependencyValues) float64 {
	t, ok := deps.Float("threshold")
	if !ok {
		return 0
	}
	return t * t
}

// constrainToType moves a point to the nearest of its attractors, however
// far away they are.
func constrainToType() *engine.ComponentType {
	return &engine.ComponentType{
		Name:        "constrainTo",
		Attributes:  map[string]engine.AttributeSpec{"relativeToGraphScales": relativeScalesAttribute()},
		ChildGroups: []engine.ChildGroup{{Name: "attractors", Types: attractorTypes}},
		StateVariables: map[string]*engine.StateVariableDefinition{
			"scales": scalesDefinition(),
			"applyConstraint": {
				ReturnDependencies: attractorDependencies,
				Definition: func(deps engine.DependencyValues) engine.Result {
					candidates := nearestPoints(deps, "attractors")
					scales := scalesOf(deps.Value("scales"))
					return engine.Result{SetValue: constraintValue(func(xs []float64) ([]float64, bool) {
						return geom.Constrain(xs, candidates, scales)
					})}
				},
			},
			"segmentAttractors": {
				ReturnDependencies: attractorDependencies,
				Definition: func(deps engine.DependencyValues) engine.Result {
					return engine.Result{SetValue: attractorsValue([]SegmentAttractor{{
						Candidates: nearestPoints(deps, "attractors"),
						Scales:     scalesOf(deps.Value("scales")),
						Threshold2: math.Inf(1),
					}})}
				},
			},
		},
	}
}

// attractToType moves a point to its nearest attractor only when that
// attractor is within threshold.
func attractToType() *engine.ComponentType {
	return &engine.ComponentType{
		Name: "attractTo",
		Attributes: map[string]engine.AttributeSpec{
			"relativeToGraphScales": relativeScalesAttribute(),
			"threshold":             {},
		},
		ChildGroups: []engine.ChildGroup{{Name: "attractors", Types: attractorTypes}},
		StateVariables: map[string]*engine.StateVariableDefinition{
			"scales":    scalesDefinition(),
			"threshold": thresholdDefinition(),
			"applyConstraint": {
				ReturnDependencies: attractorThresholdDependencies,
				Definition: func(deps engine.DependencyValues) engine.Result {
					candidates := nearestPoints(deps, "attractors")
					scales := scalesOf(deps.Value("scales"))
					t2 := threshold2(deps)
					return engine.Result{SetValue: constraintValue(func(xs []float64) ([]float64, bool) {
						a, ok := geom.FindAttractedPoint(xs, candidates, scales, t2)
						return a.Point, ok
					})}
				},
			},
			"segmentAttractors": {
				ReturnDependencies: attractorThresholdDependencies,
				Definition: func(deps engine.DependencyValues) engine.Result {
					return engine.Result{SetValue: attractorsValue([]SegmentAttractor{{
						Candidates: nearestPoints(deps, "attractors"),
						Scales:     scalesOf(deps.Value("scales")),
						Threshold2: threshold2(deps),
					}})}
				},
			},
		},
	}
}

func gridAttributes() map[string]engine.AttributeSpec {
	num := func(name string, def float64) engine.AttributeSpec {
		return engine.AttributeSpec{CreateStateVariable: name, DefaultValue: ir.IRNumber(def), Public: true}
	}
	return map[string]engine.AttributeSpec{
		"dx":      num("dx", 1),
		"dy":      num("dy", 1),
		"xoffset": num("xoffset", 0),
		"yoffset": num("yoffset", 0),
	}
}

// gridDefinition publishes the lattice as a nearest-point function. The
// lattice acts on both coordinates together.
func gridDefinition() *engine.StateVariableDefinition {
	return &engine.StateVariableDefinition{
		ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
			return engine.Dependencies{
				"dx":      engine.StateVar("dx"),
				"dy":      engine.StateVar("dy"),
				"xoffset": engine.StateVar("xoffset"),
				"yoffset": engine.StateVar("yoffset"),
			}
		},
		Definition: func(deps engine.DependencyValues) engine.Result {
			dx, ok1 := deps.Float("dx")
			dy, ok2 := deps.Float("dy")
			xo, ok3 := deps.Float("xoffset")
			yo, ok4 := deps.Float("yoffset")
			if !ok1 || !ok2 || !ok3 || !ok4 {
				return engine.Result{SetValue: ir.IRNull{}, Warnings: []string{"grid spacing and offsets must be numbers"}}
			}
			var warnings []string
			if dx < 0 || dy < 0 {
				warnings = append(warnings, "grid spacing must not be negative")
				dx, dy = math.Abs(dx), math.Abs(dy)
			}
			return engine.Result{
				SetValue: nearestPointValue(geom.Grid([]float64{dx, dy}, []float64{xo, yo})),
				Warnings: warnings,
			}
		},
	}
}

func noSegmentAttractors() *engine.StateVariableDefinition {
	return &engine.StateVariableDefinition{
		Definition: func(engine.DependencyValues) engine.Result {
			return engine.Result{SetValue: attractorsValue(nil)}
		},
	}
}

func constrainToGridType() *engine.ComponentType {
	return &engine.ComponentType{
		Name:       "constrainToGrid",
		Attributes: gridAttributes(),
		StateVariables: map[string]*engine.StateVariableDefinition{
			"nearestPoint": gridDefinition(),
			"applyConstraint": {
				ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
					return engine.Dependencies{"grid": engine.StateVar("nearestPoint")}
				},
				Definition: func(deps engine.DependencyValues) engine.Result {
					grid, ok := nearestPointOf(deps.Value("grid"))
					if !ok {
						return engine.Result{SetValue: ir.IRNull{}}
					}
					return engine.Result{SetValue: constraintValue(func(xs []float64) ([]float64, bool) {
						return geom.Constrain(xs, []geom.NearestPointFunc{grid}, nil)
					})}
				},
			},
			"segmentAttractors": noSegmentAttractors(),
		},
	}
}

func attractToGridType() *engine.ComponentType {
	attrs := gridAttributes()
	attrs["relativeToGraphScales"] = relativeScalesAttribute()
	attrs["threshold"] = engine.AttributeSpec{}
	return &engine.ComponentType{
		Name:       "attractToGrid",
		Attributes: attrs,
		StateVariables: map[string]*engine.StateVariableDefinition{
			"nearestPoint": gridDefinition(),
			"scales":       scalesDefinition(),
			"threshold":    thresholdDefinition(),
			"applyConstraint": {
				ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
					return engine.Dependencies{
						"grid":      engine.StateVar("nearestPoint"),
						"scales":    engine.StateVar("scales"),
						"threshold": engine.StateVar("threshold"),
					}
				},
				Definition: func(deps engine.DependencyValues) engine.Result {
					grid, ok := nearestPointOf(deps.Value("grid"))
					if !ok {
						return engine.Result{SetValue: ir.IRNull{}}
					}
					scales := scalesOf(deps.Value("scales"))
					t2 := threshold2(deps)
					return engine.Result{SetValue: constraintValue(func(xs []float64) ([]float64, bool) {
						a, ok := geom.FindAttractedPoint(xs, []geom.NearestPointFunc{grid}, scales, t2)
						return a.Point, ok
					})}
				},
			},
			"segmentAttractors": noSegmentAttractors(),
		},
	}
}
