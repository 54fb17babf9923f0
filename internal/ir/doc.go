// Package ir provides the value model shared by every vellum package.
//
// This package contains value types and their serialization only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// value model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Numbers are float64, but canonical JSON rejects NaN and ±Inf
//   - Opaque values (closures such as nearest-point functions) never serialize
//   - Array keys are comma-joined integer tuples ("0", "1,2")
//   - All JSON tags use snake_case
package ir
