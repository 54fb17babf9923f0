package catalog

import (
	"fmt"
	"math"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/geom"
	"github.com/roach88/vellum/internal/ir"
)

func vectorAttribute(variable string, def ...float64) engine.AttributeSpec {
	return engine.AttributeSpec{CreateStateVariable: variable, DefaultValue: ir.Vec(def...), Public: true}
}

// lineType is the infinite line through point1 and point2.
func lineType() *engine.ComponentType {
	return &engine.ComponentType{
		Name: "line",
		Attributes: map[string]engine.AttributeSpec{
			"point1": vectorAttribute("point1", 0, 0),
			"point2": vectorAttribute("point2", 1, 0),
		},
		StateVariables: map[string]*engine.StateVariableDefinition{
			"slope": {
				Public: true,
				ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
					return engine.Dependencies{"point1": engine.StateVar("point1"), "point2": engine.StateVar("point2")}
				},
				Definition: func(deps engine.DependencyValues) engine.Result {
					a, b, ok := vecDeps(deps, "point1", "point2")
					if !ok || len(a) != 2 {
						return engine.Result{SetValue: ir.IRNull{}}
					}
					if a[0] == b[0] {
						return engine.Result{SetValue: ir.IRNull{}}
					}
					return engine.Result{SetValue: ir.IRNumber((b[1] - a[1]) / (b[0] - a[0]))}
				},
			},
			"nearestPoint": {
				ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
					return engine.Dependencies{"point1": engine.StateVar("point1"), "point2": engine.StateVar("point2")}
				},
				Definition: func(deps engine.DependencyValues) engine.Result {
					a, b, ok := vecDeps(deps, "point1", "point2")
					if !ok {
						return engine.Result{SetValue: ir.IRNull{}, Warnings: []string{"line points must be vectors of the same size"}}
					}
					return engine.Result{SetValue: nearestPointValue(geom.Line(a, b))}
				},
			},
		},
		PrimaryVariable: "point1",
		Actions: map[string]engine.ActionFunc{
			"moveLine": func(ac *engine.ActionContext, args ir.IRObject) error {
				return movePair(ac, args, "point1", "point2", "moveLine")
			},
		},
	}
}

// movePair requests the given ones of two vector variables as one update.
func movePair(ac *engine.ActionContext, args ir.IRObject, first, second, action string) error {
	var updates []engine.Update
	for _, name := range []string{first, second} {
		v, ok, err := vectorArg(args, name)
		if err != nil {
			return err
		}
		if ok {
			updates = append(updates, engine.Update{Variable: name, Value: ir.Vec(v...)})
		}
	}
	if len(updates) == 0 {
		return fmt.Errorf("%s needs %s or %s", action, first, second)
	}
	return ac.RequestUpdate(updates...)
}

// lineSegmentType is a segment whose endpoints may be attracted to other
// shapes as a pair. A rigid drag along a longer attractor keeps its
// length.
func lineSegmentType() *engine.ComponentType {
	return &engine.ComponentType{
		Name: "lineSegment",
		Attributes: map[string]engine.AttributeSpec{
			"endpoint1":     {CreateStateVariable: "unconstrainedEndpoint1", DefaultValue: ir.Vec(0, 0)},
			"endpoint2":     {CreateStateVariable: "unconstrainedEndpoint2", DefaultValue: ir.Vec(1, 0)},
			"allowRotation": {CreateStateVariable: "allowRotation", DefaultValue: ir.IRBool(false)},
			"enforceRigid":  {CreateStateVariable: "enforceRigid", DefaultValue: ir.IRBool(true)},
		},
		ChildGroups: []engine.ChildGroup{{Name: "constraints", Types: []string{"constraints", "constrainTo", "attractTo"}}},
		StateVariables: map[string]*engine.StateVariableDefinition{
			"endpoints": segmentEndpoints(),
			"endpoint1": segmentEndpoint(0),
			"endpoint2": segmentEndpoint(1),
			"length": {
				Public: true,
				ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
					return engine.Dependencies{"endpoint1": engine.StateVar("endpoint1"), "endpoint2": engine.StateVar("endpoint2")}
				},
				Definition: func(deps engine.DependencyValues) engine.Result {
					a, b, ok := vecDeps(deps, "endpoint1", "endpoint2")
					if !ok {
						return engine.Result{SetValue: ir.IRNull{}}
					}
					d := subVec(b, a)
					var s float64
					for _, x := range d {
						s += x * x
					}
					return engine.Result{SetValue: ir.IRNumber(math.Sqrt(s))}
				},
			},
			"nearestPoint": {
				ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
					return engine.Dependencies{"endpoint1": engine.StateVar("endpoint1"), "endpoint2": engine.StateVar("endpoint2")}
				},
				Definition: func(deps engine.DependencyValues) engine.Result {
					a, b, ok := vecDeps(deps, "endpoint1", "endpoint2")
					if !ok {
						return engine.Result{SetValue: ir.IRNull{}}
					}
					return engine.Result{SetValue: nearestPointValue(geom.Segment(a, b))}
				},
			},
		},
		PrimaryVariable: "endpoints",
		Actions: map[string]engine.ActionFunc{
			"moveLineSegment": moveLineSegment,
		},
	}
}

func segmentEndpointDependencies(engine.DependencyContext) engine.Dependencies {
	return engine.Dependencies{
		"p1":            engine.StateVar("unconstrainedEndpoint1"),
		"p2":            engine.StateVar("unconstrainedEndpoint2"),
		"attractors":    engine.Children([]string{"constraints"}, "segmentAttractors"),
		"allowRotation": engine.StateVar("allowRotation"),
		"enforceRigid":  engine.StateVar("enforceRigid"),
	}
}

// attractSegment tries each attractor in document order and returns the
// first successful attraction, or the endpoints unchanged.
func attractSegment(deps engine.DependencyValues, p1, p2 []float64) ([]float64, []float64) {
	for _, v := range childValues(deps, "attractors", "segmentAttractors") {
		for _, a := range attractorsOf(v) {
			opts := geom.SegmentOptions{
				AllowRotation: deps.Bool("allowRotation"),
				EnforceRigid:  deps.Bool("enforceRigid"),
				Scales:        a.Scales,
				Threshold2:    a.Threshold2,
			}
			if q1, q2, ok := geom.AttractSegmentEndpoints(p1, p2, opts, a.Candidates); ok {
				return q1, q2
			}
		}
	}
	return p1, p2
}

func segmentEndpoints() *engine.StateVariableDefinition {
	return &engine.StateVariableDefinition{
		Public:             true,
		ReturnDependencies: segmentEndpointDependencies,
		Definition: func(deps engine.DependencyValues) engine.Result {
			p1, p2, ok := vecDeps(deps, "p1", "p2")
			if !ok {
				return engine.Result{SetValue: ir.IRNull{}, Warnings: []string{"endpoints must be vectors of the same size"}}
			}
			q1, q2 := attractSegment(deps, p1, p2)
			return engine.Result{SetValue: ir.IRArray{ir.Vec(q1...), ir.Vec(q2...)}}
		},
		InverseDefinition: func(req engine.InverseRequest) engine.InverseResult {
			pair, ok := req.Desired.(ir.IRArray)
			if !ok || len(pair) != 2 {
				return engine.Refuse("endpoints must be a pair of points")
			}
			p1, ok1 := ir.AsVector(pair[0])
			p2, ok2 := ir.AsVector(pair[1])
			if !ok1 || !ok2 || len(p1) != len(p2) {
				return engine.Refuse("endpoints must be points of the same size")
			}
			q1, q2 := attractSegment(req.Deps, p1, p2)
			return engine.Accept(
				engine.Forward("p1", ir.Vec(q1...)),
				engine.Forward("p2", ir.Vec(q2...)),
			)
		},
	}
}

// segmentEndpoint exposes one end. Moving one end alone moves the pair,
// so attraction still sees the whole segment.
func segmentEndpoint(i int) *engine.StateVariableDefinition {
	return &engine.StateVariableDefinition{
		Public: true,
		ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
			return engine.Dependencies{"endpoints": engine.StateVar("endpoints")}
		},
		Definition: func(deps engine.DependencyValues) engine.Result {
			pair, ok := deps.Value("endpoints").(ir.IRArray)
			if !ok || len(pair) != 2 {
				return engine.Result{SetValue: ir.IRNull{}}
			}
			return engine.Result{SetValue: pair[i]}
		},
		InverseDefinition: func(req engine.InverseRequest) engine.InverseResult {
			pair, ok := req.Deps.Value("endpoints").(ir.IRArray)
			if !ok || len(pair) != 2 {
				return engine.Refuse("segment has no endpoints")
			}
			next := ir.IRArray{pair[0], pair[1]}
			next[i] = req.Desired
			return engine.Accept(engine.Forward("endpoints", next))
		},
	}
}

func moveLineSegment(ac *engine.ActionContext, args ir.IRObject) error {
	p1, has1, err := vectorArg(args, "endpoint1")
	if err != nil {
		return err
	}
	p2, has2, err := vectorArg(args, "endpoint2")
	if err != nil {
		return err
	}
	switch {
	case has1 && has2:
		return ac.RequestUpdate(engine.Update{Variable: "endpoints", Value: ir.IRArray{ir.Vec(p1...), ir.Vec(p2...)}})
	case has1:
		return ac.RequestUpdate(engine.Update{Variable: "endpoint1", Value: ir.Vec(p1...)})
	case has2:
		return ac.RequestUpdate(engine.Update{Variable: "endpoint2", Value: ir.Vec(p2...)})
	}
	return fmt.Errorf("moveLineSegment needs endpoint1 or endpoint2")
}
