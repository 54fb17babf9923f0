package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vellum/internal/variant"
)

func TestVariantsText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "grid.cue", gridDocument)

	out, err := execute(t, "", "variants", path)
	require.NoError(t, err)

	assert.Contains(t, out, "independent mode")
	assert.Contains(t, out, "1  alpha")
	assert.Contains(t, out, "2  beta")
}

func TestVariantsJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "grid.cue", gridDocument)

	out, err := execute(t, "", "--format", "json", "variants", path)
	require.NoError(t, err)

	resp := decodeResponse[VariantsResult](t, out)
	assert.Equal(t, variant.ModeIndependent, resp.Data.Mode)
	require.GreaterOrEqual(t, len(resp.Data.Variants), 3)
	assert.Equal(t, "alpha", resp.Data.Variants[0].Name)
	assert.Equal(t, "beta", resp.Data.Variants[1].Name)
	assert.Equal(t, "c", resp.Data.Variants[2].Name)
	assert.Equal(t, "1", resp.Data.Variants[0].Seed)
}

func TestVariantsConfiguredCount(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "grid.cue", gridDocument)
	cfg := writeFile(t, dir, "vellum.yaml", "default_num_variants: 3\n")

	out, err := execute(t, "", "--config", cfg, "--format", "json", "variants", path)
	require.NoError(t, err)

	resp := decodeResponse[VariantsResult](t, out)
	assert.Equal(t, 3, resp.Data.NumVariants)
	assert.Len(t, resp.Data.Variants, 3)
}
