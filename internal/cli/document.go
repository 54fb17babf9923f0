package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/vellum/internal/config"
	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/ir"
)

// engineOptions combines the configured options with the command's
// collaborators. Later options win.
func engineOptions(cfg config.Config, logger *slog.Logger, extra ...engine.Option) []engine.Option {
	opts := append(cfg.EngineOptions(), engine.WithLogger(logger))
	return append(opts, extra...)
}

// parseVariant reads a --variant flag: a 1-based index or a variant name.
func parseVariant(s string) (engine.VariantRequest, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return engine.VariantRequest{}, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return engine.VariantRequest{}, fmt.Errorf("variant index must be at least 1, got %d", n)
		}
		return engine.VariantRequest{Index: n}, nil
	}
	return engine.VariantRequest{Name: s}, nil
}

// parseArgs decodes an --args JSON object.
func parseArgs(s string) (ir.IRObject, error) {
	if strings.TrimSpace(s) == "" {
		return ir.IRObject{}, nil
	}
	var args ir.IRObject
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, fmt.Errorf("invalid --args JSON: %w", err)
	}
	if args == nil {
		args = ir.IRObject{}
	}
	return args, nil
}

// jsonValue renders a value for output. Values with no JSON form (such as
// nearest-point functions) render as their Go description.
func jsonValue(v ir.IRValue) json.RawMessage {
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprint(ir.ToGo(v)))
	}
	return data
}
