package catalog

import (
	"fmt"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/geom"
	"github.com/roach88/vellum/internal/ir"
)

// A ray is determined by two of endpoint, through and direction, where
// through = endpoint + direction. Given attributes take precedence; the
// rest come from endpoint and direction essential values. When all three
// are given, through is ignored.
//
// A variable derived from the others inverts by moving whichever of its
// inputs the author left free, keeping given attributes where it can.

func rayGiven(ctx engine.DependencyContext) (endpoint, through, direction bool) {
	endpoint = ctx.HasAttribute("endpoint")
	direction = ctx.HasAttribute("direction")
	through = ctx.HasAttribute("through") && !(endpoint && direction)
	return endpoint, through, direction
}

func rayType() *engine.ComponentType {
	return &engine.ComponentType{
		Name: "ray",
		Attributes: map[string]engine.AttributeSpec{
			"endpoint":  {},
			"through":   {},
			"direction": {},
		},
		StateVariables: map[string]*engine.StateVariableDefinition{
			"endpoint":  rayEndpoint(),
			"through":   rayThrough(),
			"direction": rayDirection(),
			"nearestPoint": {
				ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
					return engine.Dependencies{
						"endpoint": engine.StateVar("endpoint"),
						"through":  engine.StateVar("through"),
					}
				},
				Definition: func(deps engine.DependencyValues) engine.Result {
					e, t, ok := vecDeps(deps, "endpoint", "through")
					if !ok {
						return engine.Result{SetValue: ir.IRNull{}}
					}
					return engine.Result{SetValue: nearestPointValue(geom.Ray(e, t))}
				},
			},
		},
		PrimaryVariable: "endpoint",
		Actions:         map[string]engine.ActionFunc{"moveRay": moveRay},
	}
}

func rayEndpoint() *engine.StateVariableDefinition {
	return &engine.StateVariableDefinition{
		Public:       true,
		HasEssential: true,
		DefaultValue: ir.Vec(0, 0),
		ReturnDependencies: func(ctx engine.DependencyContext) engine.Dependencies {
			endpoint, through, direction := rayGiven(ctx)
			switch {
			case endpoint:
				return engine.Dependencies{"attribute": engine.Attribute("endpoint")}
			case through:
				return engine.Dependencies{
					"through":        engine.StateVar("through"),
					"direction":      engine.StateVar("direction"),
					"directionGiven": engine.Literal(ir.IRBool(direction)),
				}
			}
			return nil
		},
		Definition: func(deps engine.DependencyValues) engine.Result {
			if deps.Found("attribute") {
				return vectorResult(deps.Value("attribute"), "endpoint")
			}
			if _, derived := deps["through"]; derived {
				t, d, ok := vecDeps(deps, "through", "direction")
				if !ok {
					return engine.Result{SetValue: ir.IRNull{}, Warnings: []string{"through and direction must be vectors of the same size"}}
				}
				return engine.Result{SetValue: ir.Vec(subVec(t, d)...)}
			}
			return engine.Result{UseEssentialOrDefault: true}
		},
		InverseDefinition: func(req engine.InverseRequest) engine.InverseResult {
			e, ok := ir.AsVector(req.Desired)
			if !ok {
				return engine.Refuse("endpoint must be a list of numbers")
			}
			if req.Deps.Found("attribute") {
				return engine.Accept(engine.Forward("attribute", ir.Vec(e...)))
			}
			if _, derived := req.Deps["through"]; !derived {
				return engine.Accept(engine.Essential(ir.Vec(e...)))
			}
			t, d, ok := vecDeps(req.Deps, "through", "direction")
			if !ok || len(t) != len(e) {
				return engine.Refuse("endpoint does not match the ray's dimensions")
			}
			if req.Deps.Bool("directionGiven") {
				return engine.Accept(engine.Forward("through", ir.Vec(addVec(e, d)...)))
			}
			return engine.Accept(engine.Forward("direction", ir.Vec(subVec(t, e)...)))
		},
	}
}

func rayThrough() *engine.StateVariableDefinition {
	return &engine.StateVariableDefinition{
		Public: true,
		ReturnDependencies: func(ctx engine.DependencyContext) engine.Dependencies {
			endpoint, through, direction := rayGiven(ctx)
			if through {
				return engine.Dependencies{"attribute": engine.Attribute("through")}
			}
			return engine.Dependencies{
				"endpoint":     engine.StateVar("endpoint"),
				"direction":    engine.StateVar("direction"),
				"moveEndpoint": engine.Literal(ir.IRBool(direction && !endpoint)),
			}
		},
		Definition: func(deps engine.DependencyValues) engine.Result {
			if deps.Found("attribute") {
				return vectorResult(deps.Value("attribute"), "through")
			}
			e, d, ok := vecDeps(deps, "endpoint", "direction")
			if !ok {
				return engine.Result{SetValue: ir.IRNull{}, Warnings: []string{"endpoint and direction must be vectors of the same size"}}
			}
			return engine.Result{SetValue: ir.Vec(addVec(e, d)...)}
		},
		InverseDefinition: func(req engine.InverseRequest) engine.InverseResult {
			t, ok := ir.AsVector(req.Desired)
			if !ok {
				return engine.Refuse("through must be a list of numbers")
			}
			if req.Deps.Found("attribute") {
				return engine.Accept(engine.Forward("attribute", ir.Vec(t...)))
			}
			e, d, ok := vecDeps(req.Deps, "endpoint", "direction")
			if !ok || len(t) != len(e) {
				return engine.Refuse("through does not match the ray's dimensions")
			}
			if req.Deps.Bool("moveEndpoint") {
				return engine.Accept(engine.Forward("endpoint", ir.Vec(subVec(t, d)...)))
			}
			return engine.Accept(engine.Forward("direction", ir.Vec(subVec(t, e)...)))
		},
	}
}

func rayDirection() *engine.StateVariableDefinition {
	return &engine.StateVariableDefinition{
		Public:       true,
		HasEssential: true,
		DefaultValue: ir.Vec(1, 0),
		ReturnDependencies: func(ctx engine.DependencyContext) engine.Dependencies {
			endpoint, through, direction := rayGiven(ctx)
			switch {
			case direction:
				return engine.Dependencies{"attribute": engine.Attribute("direction")}
			case through && endpoint:
				return engine.Dependencies{
					"through":  engine.StateVar("through"),
					"endpoint": engine.StateVar("endpoint"),
				}
			}
			return nil
		},
		Definition: func(deps engine.DependencyValues) engine.Result {
			if deps.Found("attribute") {
				return vectorResult(deps.Value("attribute"), "direction")
			}
			if _, derived := deps["through"]; derived {
				t, e, ok := vecDeps(deps, "through", "endpoint")
				if !ok {
					return engine.Result{SetValue: ir.IRNull{}, Warnings: []string{"endpoint and through must be vectors of the same size"}}
				}
				return engine.Result{SetValue: ir.Vec(subVec(t, e)...)}
			}
			return engine.Result{UseEssentialOrDefault: true}
		},
		InverseDefinition: func(req engine.InverseRequest) engine.InverseResult {
			d, ok := ir.AsVector(req.Desired)
			if !ok {
				return engine.Refuse("direction must be a list of numbers")
			}
			if req.Deps.Found("attribute") {
				return engine.Accept(engine.Forward("attribute", ir.Vec(d...)))
			}
			if _, derived := req.Deps["through"]; !derived {
				return engine.Accept(engine.Essential(ir.Vec(d...)))
			}
			e, _ := req.Deps.Vector("endpoint")
			if len(e) != len(d) {
				return engine.Refuse("direction does not match the ray's dimensions")
			}
			return engine.Accept(engine.Forward("through", ir.Vec(addVec(e, d)...)))
		},
	}
}

// moveRay moves the endpoint, the through point, or both. Moving both
// writes the two values that determine the ray, so neither move is undone
// by the other.
func moveRay(ac *engine.ActionContext, args ir.IRObject) error {
	e, hasE, err := vectorArg(args, "endpoint")
	if err != nil {
		return err
	}
	t, hasT, err := vectorArg(args, "through")
	if err != nil {
		return err
	}
	switch {
	case hasE && hasT:
		if len(e) != len(t) {
			return fmt.Errorf("endpoint and through have different dimensions")
		}
		_, endpointGiven := ac.Attribute("endpoint")
		_, throughGiven := ac.Attribute("through")
		_, directionGiven := ac.Attribute("direction")
		throughGiven = throughGiven && !(endpointGiven && directionGiven)

		direction := engine.Update{Variable: "direction", Value: ir.Vec(subVec(t, e)...)}
		if !throughGiven {
			return ac.RequestUpdate(engine.Update{Variable: "endpoint", Value: ir.Vec(e...)}, direction)
		}
		through := engine.Update{Variable: "through", Value: ir.Vec(t...)}
		if endpointGiven {
			return ac.RequestUpdate(through, engine.Update{Variable: "endpoint", Value: ir.Vec(e...)})
		}
		return ac.RequestUpdate(through, direction)
	case hasE:
		return ac.RequestUpdate(engine.Update{Variable: "endpoint", Value: ir.Vec(e...)})
	case hasT:
		return ac.RequestUpdate(engine.Update{Variable: "through", Value: ir.Vec(t...)})
	}
	return fmt.Errorf("moveRay needs endpoint or through")
}
