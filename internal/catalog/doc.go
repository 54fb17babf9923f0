// Package catalog provides the built-in component types: document
// structure (document, section, graph, group), geometry (point, line, ray,
// lineSegment, circle), constraints (constraints, constrainTo, attractTo,
// constrainToGrid, attractToGrid), number, and selectFromSequence.
//
// Each type is a capability-tagged engine.ComponentType. Shapes publish a
// "nearestPoint" state variable holding a geom.NearestPointFunc; constraint
// components publish "applyConstraint" and "segmentAttractors", which
// points and line segments read through child dependencies.
package catalog
