// Package engine implements the bidirectional state-variable engine for
// interactive documents.
//
// A document is a tree of components. Each component type supplies a
// declarative table of state variables (see StateVariableDefinition); the
// engine owns the Dependency Store that evaluates them.
//
// ARCHITECTURE:
//
// Forward reads are lazy and memoized in two phases:
//  1. Dependencies: determining variables are read, and the dependency set
//     is re-derived only when they changed.
//  2. Value: dependencies are read (recursively refreshed), then the
//     definition runs. Array variables run per key or, in whole-array
//     mode, over the full vector.
//
// Inverse updates walk the other way. An action requests desired values;
// each visited variable's inverse definition forwards them to its
// dependencies or to its own essential value. Writes are staged per
// branch, so a refused branch leaves state untouched while its siblings
// commit. Committing invalidates every dependent; nothing recomputes
// until the next read.
//
// Cycles are resolved explicitly: re-entering a variable that is already
// being evaluated (or inverted) stops at its essential value. A cycle with
// no essential value reads as null and is reported as CYCLE_DETECTED.
//
// Single-Writer Event Loop:
// Initialization, actions and termination are events processed one at a
// time, either by Run or by the synchronous Initialize, Dispatch and
// Terminate. Actions that arrive before initialization are held and
// replayed in arrival order.
//
// CRITICAL PATTERNS:
//
// Logical Clock
// Actions are stamped with a monotonic seq from Clock.Next() and hashed
// into content-addressed IDs. NEVER use wall-clock timestamps for ordering.
//
// Deterministic Evaluation
// Dependencies are resolved and read in sorted name order; variant seeds
// are derived from the section seed. No randomness, no concurrency.
package engine
