// Package config loads the vellum runtime configuration from YAML.
//
// Unknown fields are rejected and every field is checked with
// go-playground/validator struct tags after defaults are applied.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/variant"
)

// Config is the runtime configuration.
type Config struct {
	LogLevel           string  `yaml:"log_level" validate:"oneof=debug info warn error"`
	MaxInverseDepth    int     `yaml:"max_inverse_depth" validate:"min=1,max=10000"`
	DefaultNumVariants int     `yaml:"default_num_variants" validate:"min=1,max=1000"`
	UniqueVariantCap   int     `yaml:"unique_variant_cap" validate:"min=1,max=10000000"`
	Database           string  `yaml:"database"`
	Metrics            Metrics `yaml:"metrics"`
}

// Metrics configures the Prometheus exporter.
type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"omitempty,max=64,metricname"`
	Address   string `yaml:"address" validate:"omitempty,hostname_port"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel:           "info",
		MaxInverseDepth:    engine.DefaultMaxInverseDepth,
		DefaultNumVariants: variant.DefaultNumVariants,
		UniqueVariantCap:   variant.MaxUniqueVariants,
		Metrics: Metrics{
			Namespace: "vellum",
			Address:   "127.0.0.1:9464",
		},
	}
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

// FieldError is one failed rule.
type FieldError struct {
	Field string
	Rule  string
	Param string
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		if f.Param != "" {
			parts[i] = fmt.Sprintf("%s: failed %s=%s", f.Field, f.Rule, f.Param)
		} else {
			parts[i] = fmt.Sprintf("%s: failed %s", f.Field, f.Rule)
		}
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("metricname", func(fl validator.FieldLevel) bool {
		return isMetricName(fl.Field().String())
	})
	return v
}

// isMetricName accepts Prometheus metric name components: a letter or
// underscore, then letters, digits and underscores.
func isMetricName(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Validate checks c against its struct tags.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		out.Fields = append(out.Fields, FieldError{Field: field, Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// Parse decodes YAML over the defaults and validates the result. An empty
// document yields the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// SlogLevel maps LogLevel to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// EngineOptions derives engine options from c. Collaborators (logger,
// journal, metrics) are added by the caller.
func (c Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithMaxInverseDepth(c.MaxInverseDepth),
		engine.WithVariantDefaults(c.DefaultNumVariants, c.UniqueVariantCap),
	}
}
