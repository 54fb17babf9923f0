package catalog

import (
	"fmt"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/ir"
	"github.com/roach88/vellum/internal/variant"
)

var anyChild = []engine.ChildGroup{{Name: "content", Types: []string{"*"}}}

// documentType is the root. Its attributes declare the variant section.
func documentType() *engine.ComponentType {
	return &engine.ComponentType{
		Name: "document",
		Attributes: map[string]engine.AttributeSpec{
			"title":             {CreateStateVariable: "title", DefaultValue: ir.IRString(""), Public: true},
			"numVariants":       {},
			"uniqueVariants":    {},
			"variantNames":      {},
			"seeds":             {},
			"variantsToInclude": {},
			"variantsToExclude": {},
		},
		ChildGroups:     anyChild,
		PrimaryVariable: "title",
		Variants:        &engine.VariantCapability{Section: documentVariants},
	}
}

func documentVariants(r engine.Reader) variant.Config {
	var cfg variant.Config
	if v, ok := r.Attribute("numVariants"); ok {
		if n, ok := ir.AsFloat(v); ok {
			cfg.NumVariants = int(n)
		} else {
			r.Warn(fmt.Sprintf("numVariants must be a number, not %s", describe(v)))
		}
	}
	if v, ok := r.Attribute("uniqueVariants"); ok {
		cfg.UniqueVariants = v == ir.IRBool(true)
	}
	if v, ok := r.Attribute("variantNames"); ok {
		cfg.VariantNames = stringList(v)
	}
	if v, ok := r.Attribute("seeds"); ok {
		cfg.Seeds = stringList(v)
	}
	if v, ok := r.Attribute("variantsToInclude"); ok {
		cfg.VariantsToInclude = stringList(v)
	}
	if v, ok := r.Attribute("variantsToExclude"); ok {
		cfg.VariantsToExclude = stringList(v)
	}
	return cfg
}

func sectionType() *engine.ComponentType {
	return &engine.ComponentType{
		Name: "section",
		Attributes: map[string]engine.AttributeSpec{
			"title": {CreateStateVariable: "title", DefaultValue: ir.IRString(""), Public: true},
		},
		ChildGroups:     anyChild,
		PrimaryVariable: "title",
	}
}

// groupType is a composite whose replacements are its own children.
func groupType() *engine.ComponentType {
	return &engine.ComponentType{
		Name: "group",
		Expand: func(x engine.ExpandContext) ([]engine.NodeSpec, error) {
			return x.Children, nil
		},
	}
}

// graphType holds shapes and defines the axis spans that graph-relative
// constraints measure distance in.
func graphType() *engine.ComponentType {
	axis := func(name string, def float64) engine.AttributeSpec {
		return engine.AttributeSpec{CreateStateVariable: name, DefaultValue: ir.IRNumber(def), Public: true}
	}
	return &engine.ComponentType{
		Name: "graph",
		Attributes: map[string]engine.AttributeSpec{
			"xmin": axis("xmin", -10),
			"xmax": axis("xmax", 10),
			"ymin": axis("ymin", -10),
			"ymax": axis("ymax", 10),
		},
		ChildGroups: anyChild,
		StateVariables: map[string]*engine.StateVariableDefinition{
			"scales": {
				Public: true,
				ReturnDependencies: func(engine.DependencyContext) engine.Dependencies {
					return engine.Dependencies{
						"xmin": engine.StateVar("xmin"),
						"xmax": engine.StateVar("xmax"),
						"ymin": engine.StateVar("ymin"),
						"ymax": engine.StateVar("ymax"),
					}
				},
				Definition: func(deps engine.DependencyValues) engine.Result {
					xmin, ok1 := deps.Float("xmin")
					xmax, ok2 := deps.Float("xmax")
					ymin, ok3 := deps.Float("ymin")
					ymax, ok4 := deps.Float("ymax")
					if !ok1 || !ok2 || !ok3 || !ok4 {
						return engine.Result{SetValue: ir.IRNull{}, Warnings: []string{"graph limits must be numbers"}}
					}
					res := engine.Result{SetValue: ir.Vec(xmax-xmin, ymax-ymin)}
					if xmax <= xmin || ymax <= ymin {
						res.Warnings = []string{"graph limits are inverted; distances use unit scales"}
					}
					return res
				},
			},
		},
	}
}

func describe(v ir.IRValue) string {
	switch v.(type) {
	case ir.IRNull:
		return "null"
	case ir.IRString:
		return "a string"
	case ir.IRBool:
		return "a boolean"
	case ir.IRArray:
		return "a list"
	case ir.IRObject:
		return "an object"
	}
	return fmt.Sprintf("%T", v)
}
