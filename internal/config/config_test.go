package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_EmptyIsDefault(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 64, cfg.MaxInverseDepth)
	assert.Equal(t, 100, cfg.DefaultNumVariants)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
log_level: debug
max_inverse_depth: 12
default_num_variants: 26
database: journal.db
metrics:
  enabled: true
  namespace: lesson
`))
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, 12, cfg.MaxInverseDepth)
	assert.Equal(t, 26, cfg.DefaultNumVariants)
	assert.Equal(t, Default().UniqueVariantCap, cfg.UniqueVariantCap)
	assert.Equal(t, "journal.db", cfg.Database)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "lesson", cfg.Metrics.Namespace)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Address)
	assert.Len(t, cfg.EngineOptions(), 2)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("max_inverse_depht: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_inverse_depht")
}

func TestParse_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
		rule  string
	}{
		{"log level", "log_level: loud\n", "log_level", "oneof"},
		{"inverse depth low", "max_inverse_depth: 0\n", "max_inverse_depth", "min"},
		{"inverse depth high", "max_inverse_depth: 20000\n", "max_inverse_depth", "max"},
		{"variants", "default_num_variants: 1001\n", "default_num_variants", "max"},
		{"unique cap", "unique_variant_cap: 0\n", "unique_variant_cap", "min"},
		{"namespace", "metrics:\n  namespace: 9lives\n", "metrics.namespace", "metricname"},
		{"address", "metrics:\n  address: not an address\n", "metrics.address", "hostname_port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %T: %v", err, err)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
			assert.Equal(t, tt.rule, verr.Fields[0].Rule)
		})
	}
}

func TestValidationError_Format(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{
		{Field: "max_inverse_depth", Rule: "min", Param: "1"},
		{Field: "metrics.namespace", Rule: "metricname"},
	}}
	assert.Equal(t, "invalid config: max_inverse_depth: failed min=1; metrics.namespace: failed metricname", err.Error())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vellum.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("log_level: loud\n"), 0o644))
	_, err = Load(bad)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Contains(t, err.Error(), bad)
}

func TestIsMetricName(t *testing.T) {
	assert.True(t, isMetricName("vellum"))
	assert.True(t, isMetricName("_x9"))
	assert.False(t, isMetricName("9x"))
	assert.False(t, isMetricName("a-b"))
}
