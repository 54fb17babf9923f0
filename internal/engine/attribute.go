package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/vellum/internal/expr"
	"github.com/roach88/vellum/internal/ir"
)

// attributeDefinition builds the "value" variable of an attribute
// component from the raw attribute value:
//
//	"$P" / "$P.x"   a reference to another component's variable
//	"=2*$a+1"       an expression over references
//	anything else   a literal, held as an essential value
//
// "$$" and "==" escape a literal leading "$" or "=".
func attributeDefinition(raw any) (*StateVariableDefinition, error) {
	if s, ok := raw.(string); ok {
		switch {
		case strings.HasPrefix(s, "$$"), strings.HasPrefix(s, "=="):
			return literalAttribute(ir.IRString(s[1:])), nil
		case strings.HasPrefix(s, "$"):
			return referenceAttribute(s[1:])
		case strings.HasPrefix(s, "="):
			return expressionAttribute(s[1:])
		}
	}
	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, err
	}
	return literalAttribute(v), nil
}

func literalAttribute(v ir.IRValue) *StateVariableDefinition {
	return &StateVariableDefinition{HasEssential: true, DefaultValue: v}
}

func referenceAttribute(path string) (*StateVariableDefinition, error) {
	if _, err := parsePath(path); err != nil {
		return nil, fmt.Errorf("reference $%s: %w", path, err)
	}
	return &StateVariableDefinition{
		ReturnDependencies: func(DependencyContext) Dependencies {
			return Dependencies{"ref": {Kind: DepStateVariable, Component: path}}
		},
		Definition: func(deps DependencyValues) Result {
			return Result{SetValue: deps.Value("ref")}
		},
		InverseDefinition: func(req InverseRequest) InverseResult {
			if !req.Deps.Found("ref") {
				return Refuse(fmt.Sprintf("$%s does not resolve", path))
			}
			return Accept(Forward("ref", req.Desired))
		},
	}, nil
}

func expressionAttribute(src string) (*StateVariableDefinition, error) {
	x, err := expr.Parse(src)
	if err != nil {
		return nil, err
	}
	refs := x.Refs()
	depName := func(i int) string { return fmt.Sprintf("ref%d", i) }
	args := func(deps DependencyValues) []ir.IRValue {
		out := make([]ir.IRValue, len(refs))
		for i := range refs {
			out[i] = deps.Value(depName(i))
		}
		return out
	}

	return &StateVariableDefinition{
		ReturnDependencies: func(DependencyContext) Dependencies {
			deps := make(Dependencies, len(refs))
			for i, ref := range refs {
				deps[depName(i)] = Dependency{Kind: DepStateVariable, Component: ref}
			}
			return deps
		},
		Definition: func(deps DependencyValues) Result {
			v, err := x.Eval(args(deps))
			if err != nil {
				return Result{SetValue: ir.IRNull{}, Warnings: []string{err.Error()}}
			}
			return Result{SetValue: v}
		},
		InverseDefinition: func(req InverseRequest) InverseResult {
			if len(refs) != 1 {
				return Refuse(fmt.Sprintf("expression %q cannot be inverted", src))
			}
			desired, ok := ir.AsFloat(req.Desired)
			if !ok {
				return Refuse(fmt.Sprintf("expression %q can only take numbers", src))
			}
			v, err := x.Invert(args(req.Deps), 0, desired)
			if err != nil {
				return Refuse(err.Error())
			}
			return Accept(Forward(depName(0), ir.IRNumber(v)))
		},
	}, nil
}
