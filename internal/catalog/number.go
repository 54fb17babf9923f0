package catalog

import (
	"fmt"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/ir"
)

// numberType holds a number given by its value attribute, or an essential
// value when the attribute is absent.
func numberType() *engine.ComponentType {
	return &engine.ComponentType{
		Name:       "number",
		Attributes: map[string]engine.AttributeSpec{"value": {}},
		StateVariables: map[string]*engine.StateVariableDefinition{
			"value": {
				Public:       true,
				HasEssential: true,
				DefaultValue: ir.IRNumber(0),
				ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
					return engine.Dependencies{"attribute": engine.Attribute("value")}
				},
				Definition: func(deps engine.DependencyValues) engine.Result {
					if !deps.Found("attribute") {
						return engine.Result{UseEssentialOrDefault: true}
					}
					v := deps.Value("attribute")
					if _, ok := ir.AsFloat(v); !ok {
						return engine.Result{
							SetValue: ir.IRNull{},
							Warnings: []string{fmt.Sprintf("value must be a number, not %s", describe(v))},
						}
					}
					return engine.Result{SetValue: v}
				},
				InverseDefinition: func(req engine.InverseRequest) engine.InverseResult {
					if _, ok := ir.AsFloat(req.Desired); !ok {
						return engine.Refuse(fmt.Sprintf("cannot set a number to %s", describe(req.Desired)))
					}
					if req.Deps.Found("attribute") {
						return engine.Accept(engine.Forward("attribute", req.Desired))
					}
					return engine.Accept(engine.Essential(req.Desired))
				},
			},
		},
		PrimaryVariable: "value",
		Actions: map[string]engine.ActionFunc{
			"setValue": func(ac *engine.ActionContext, args ir.IRObject) error {
				v, ok, err := numberArg(args, "value")
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("setValue needs a value")
				}
				return ac.RequestUpdate(engine.Update{Variable: "value", Value: ir.IRNumber(v)})
			},
		},
	}
}
