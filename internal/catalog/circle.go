package catalog

import (
	"fmt"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/geom"
	"github.com/roach88/vellum/internal/ir"
)

func circleType() *engine.ComponentType {
	return &engine.ComponentType{
		Name: "circle",
		Attributes: map[string]engine.AttributeSpec{
			"center": vectorAttribute("center", 0, 0),
			"radius": {CreateStateVariable: "radius", DefaultValue: ir.IRNumber(1), Public: true},
		},
		StateVariables: map[string]*engine.StateVariableDefinition{
			"diameter": {
				Public: true,
				ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
					return engine.Dependencies{"radius": engine.StateVar("radius")}
				},
				Definition: func(deps engine.DependencyValues) engine.Result {
					r, ok := deps.Float("radius")
					if !ok {
						return engine.Result{SetValue: ir.IRNull{}}
					}
					return engine.Result{SetValue: ir.IRNumber(2 * r)}
				},
				InverseDefinition: func(req engine.InverseRequest) engine.InverseResult {
					d, ok := ir.AsFloat(req.Desired)
					if !ok || d < 0 {
						return engine.Refuse("diameter must be a non-negative number")
					}
					return engine.Accept(engine.Forward("radius", ir.IRNumber(d/2)))
				},
			},
			"nearestPoint": {
				ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
					return engine.Dependencies{"center": engine.StateVar("center"), "radius": engine.StateVar("radius")}
				},
				Definition: func(deps engine.DependencyValues) engine.Result {
					c, ok1 := deps.Vector("center")
					r, ok2 := deps.Float("radius")
					if !ok1 || !ok2 {
						return engine.Result{SetValue: ir.IRNull{}}
					}
					res := engine.Result{SetValue: nearestPointValue(geom.Circle(c, r))}
					if r < 0 {
						res.Warnings = []string{fmt.Sprintf("radius %v is negative; the circle attracts nothing", r)}
					}
					return res
				},
			},
		},
		PrimaryVariable: "center",
		Actions: map[string]engine.ActionFunc{
			"moveCircle": func(ac *engine.ActionContext, args ir.IRObject) error {
				c, ok, err := vectorArg(args, "center")
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("moveCircle needs a center")
				}
				return ac.RequestUpdate(engine.Update{Variable: "center", Value: ir.Vec(c...)})
			},
		},
	}
}
