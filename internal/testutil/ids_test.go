package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/vellum/internal/engine"
)

var _ engine.IDGenerator = (*FixedIDGenerator)(nil)

func TestFixedIDGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedIDGenerator("doc-123")

	assert.Equal(t, "doc-123", gen.Generate())
	assert.Equal(t, "doc-123", gen.Generate())
}

func TestFixedIDGenerator_EmptyIDDefault(t *testing.T) {
	assert.Equal(t, "test-document", NewFixedIDGenerator("").Generate())
}

func TestFixedIDGenerator_UsedByEngine(t *testing.T) {
	e := engine.New(engine.NewRegistry(), engine.NodeSpec{Type: "document"},
		engine.WithIDGenerator(NewFixedIDGenerator("fixed")))
	assert.Equal(t, "fixed", e.DocumentID())
}

func TestFixedIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewFixedIDGenerator("thread-safe")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, "thread-safe", gen.Generate())
			}
		}()
	}
	wg.Wait()
}
