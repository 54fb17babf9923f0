// Package compiler turns CUE document sources into engine.NodeSpec trees.
//
// A document is the value at the top-level "document" field:
//
//	document: {
//		attributes: {title: "Rays", numVariants: 4}
//		children: [
//			{type: "graph", name: "g", children: [
//				{type: "ray", name: "r", attributes: {through: [1, 0], direction: [3, 4]}},
//			]},
//		]
//	}
//
// Each node has a type (defaulting to "document" at the root), an optional
// name, attributes, children, and an optional copySource naming the
// component it copies. Compilation is structural only; Validate checks a
// compiled tree against a component registry.
package compiler
