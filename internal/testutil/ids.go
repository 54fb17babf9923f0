// Package testutil holds deterministic helpers shared by scenario runs and
// package tests.
package testutil

// FixedIDGenerator returns the same document ID every time.
//
// Scenarios fix the document ID so action IDs, and therefore golden
// traces, are byte-identical across runs.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator for id.
//
// If id is empty, Generate() returns "test-document".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-document"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID.
//
// Implements engine.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
