package catalog

import "github.com/roach88/vellum/internal/engine"

// Types returns fresh copies of every built-in component type.
func Types() []*engine.ComponentType {
	return []*engine.ComponentType{
		documentType(),
		sectionType(),
		groupType(),
		graphType(),
		numberType(),
		pointType(),
		lineType(),
		rayType(),
		lineSegmentType(),
		circleType(),
		constraintsType(),
		constrainToType(),
		attractToType(),
		constrainToGridType(),
		attractToGridType(),
		selectFromSequenceType(),
	}
}

// Register adds the built-in types to reg.
func Register(reg *engine.Registry) error {
	for _, t := range Types() {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in types.
func NewRegistry() *engine.Registry {
	reg := engine.NewRegistry()
	reg.MustRegister(Types()...)
	return reg
}
