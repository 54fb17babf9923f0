// Package harness runs document scenarios as executable tests.
//
// A scenario loads a CUE document, initializes it with a fixed document ID
// and variant, dispatches a flow of actions, and checks the resulting
// values, essentials, diagnostics and action trace.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: drag_to_grid
//	description: "Dragging a point snaps it to the grid"
//	document: ../documents/grid.cue
//	document_id: grid-doc
//	variant: {index: 2}
//	setup:
//	  - component: P
//	    action: movePoint
//	    args: {x: 1, y: 1}
//	flow:
//	  - component: P
//	    action: movePoint
//	    args: {x: 4.2, y: 2.9}
//	    expect:
//	      values: {P: [5, 3]}
//	assertions:
//	  - type: value
//	    path: P.x1
//	    expect: 5
//	  - type: trace_count
//	    action: P.movePoint
//	    count: 2
//
// # Assertion Types
//
//   - value: a path resolves to the expected value (within tolerance)
//   - essential: an essential key holds the expected value
//   - diagnostic: some diagnostic message contains the given text
//   - trace_order: actions appear in the given order
//   - trace_count: an action appears exactly N times
//   - variant: the document initialized with the named variant
//
// # Deterministic Testing
//
// Every scenario runs in a fresh in-memory journal with a fixed document
// ID, so action seqs, IDs and essential hashes are identical across runs.
// The trace is read back from the journal, which makes RunWithGolden a
// check on the persisted record as well as on the engine.
package harness
