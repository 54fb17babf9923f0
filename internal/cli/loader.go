package cli

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/vellum/internal/catalog"
	"github.com/roach88/vellum/internal/compiler"
	"github.com/roach88/vellum/internal/engine"
)

// LoadedDocument is a compiled document and where it came from.
type LoadedDocument struct {
	Path string
	Spec engine.NodeSpec

	// Hash fingerprints the compiled tree, so journals can be matched to
	// the source they were recorded against.
	Hash string
}

// LoadError represents an error that occurred while loading a document.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands. Document
// validation codes (E1xx) come from the compiler.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build or document compile failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeInitFailed  = "E008" // Document failed to initialize
	ErrCodeStore       = "E009" // Journal database error

	ErrCodeCycle       = "E201" // Unanchored dependency cycle
	ErrCodeDiagnostic  = "E202" // Error diagnostic from the engine
	ErrCodeActionError = "E203" // Action failed
)

// LoadDocument compiles the CUE document at path (a file or a package
// directory).
func LoadDocument(path string) (*LoadedDocument, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("document not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing document: %v", err)}
	}

	spec, err := compiler.LoadFile(path)
	if err != nil {
		return nil, convertCompileError(err)
	}

	hash, err := specHash(spec)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	return &LoadedDocument{Path: path, Spec: spec, Hash: hash}, nil
}

// specHash hashes the JSON form of the tree. encoding/json sorts map keys,
// so equal trees hash equally.
func specHash(spec engine.NodeSpec) (string, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("hash document: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		code := ErrCodeBuildFailed
		if compileErr.Field == "cue" {
			code = ErrCodeLoadFailed
		}
		return &LoadError{
			Code:    code,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// loadErrorResponse reports a load failure and returns the command error.
func loadErrorResponse(f *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code, message = loadErr.Code, loadErr.Error()
	}
	if outErr := f.Error(code, message, nil); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitCommandError, "failed to load document", err)
}

// newRegistry returns the component types every command builds with.
func newRegistry() *engine.Registry {
	return catalog.NewRegistry()
}
