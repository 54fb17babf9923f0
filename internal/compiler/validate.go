package compiler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/expr"
)

// Validation error codes (E100-E199)
const (
	ErrUnknownType       = "E101" // type is not registered
	ErrChildNotAccepted  = "E102" // parent has no child group for the type
	ErrUnknownAttribute  = "E103" // type declares no such attribute
	ErrDuplicateName     = "E104" // name used twice
	ErrInvalidReference  = "E105" // malformed $reference or =expression
	ErrUnknownCopySource = "E106" // copySource names no earlier component
	ErrCopyTypeMismatch  = "E107" // copy declares a different type
	ErrInvalidName       = "E108" // name is not an identifier
	ErrMissingType       = "E109" // neither type nor copySource
)

// ValidationError represents a document validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var (
	namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	pathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\[[0-9]+\])*(\.[A-Za-z_][A-Za-z0-9_]*(\[[0-9]+\])*)*$`)
)

// Validate checks a compiled document against the registered component
// types. Returns all errors found (does not fail-fast), in document order.
//
// Children of composites are checked for their own types and attributes
// but not against the composite's child groups, since the composite
// decides what becomes of them.
func Validate(root engine.NodeSpec, reg *engine.Registry) []ValidationError {
	v := &validator{reg: reg, seen: make(map[string]string)}
	v.node(root, nil, "document")
	return v.errs
}

type validator struct {
	reg  *engine.Registry
	seen map[string]string // name -> type, in document order
	errs []ValidationError
}

func (v *validator) add(spec engine.NodeSpec, field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
		Line:    spec.Range.Start.Line,
	})
}

func (v *validator) node(spec engine.NodeSpec, parent *engine.ComponentType, field string) {
	typeName := spec.Type

	if spec.CopySource != "" {
		src := refName(spec.CopySource)
		srcType, ok := v.seen[src]
		switch {
		case !ok:
			v.add(spec, field+".copySource", ErrUnknownCopySource,
				"copySource %q names no component defined before this one", spec.CopySource)
		case typeName == "":
			if spec.CopySource == src {
				typeName = srcType
			}
		case typeName != srcType && spec.CopySource == src:
			v.add(spec, field+".type", ErrCopyTypeMismatch,
				"copy of %s %q cannot be a %s", srcType, src, typeName)
		}
	} else if typeName == "" {
		v.add(spec, field+".type", ErrMissingType, "type is required unless the component copies another")
	}

	var t *engine.ComponentType
	if typeName != "" {
		var ok bool
		t, ok = v.reg.Lookup(typeName)
		if !ok {
			v.add(spec, field+".type", ErrUnknownType, "unknown component type %q", typeName)
		}
	}

	if parent != nil && !parent.IsComposite() && typeName != "" && !accepts(parent, typeName) {
		v.add(spec, field, ErrChildNotAccepted, "%s does not accept %s children", parent.Name, typeName)
	}

	if spec.Name != "" {
		if !namePattern.MatchString(spec.Name) {
			v.add(spec, field+".name", ErrInvalidName, "name %q is not an identifier", spec.Name)
		}
		if _, dup := v.seen[spec.Name]; dup {
			v.add(spec, field+".name", ErrDuplicateName, "duplicate name %q", spec.Name)
		} else {
			v.seen[spec.Name] = typeName
		}
	}

	for _, name := range sortedKeys(spec.Attributes) {
		sub := field + ".attributes." + name
		if t != nil {
			if _, declared := t.Attributes[name]; !declared {
				v.add(spec, sub, ErrUnknownAttribute, "%s has no attribute %q", t.Name, name)
			}
		}
		if s, ok := spec.Attributes[name].(string); ok {
			if err := checkAttributeSyntax(s); err != nil {
				v.add(spec, sub, ErrInvalidReference, "%v", err)
			}
		}
	}

	for i, child := range spec.Children {
		v.node(child, t, fmt.Sprintf("%s.children[%d]", field, i))
	}
}

func accepts(t *engine.ComponentType, childType string) bool {
	for _, g := range t.ChildGroups {
		for _, accepted := range g.Types {
			if accepted == childType || accepted == "*" {
				return true
			}
		}
	}
	return false
}

// checkAttributeSyntax checks the reference or expression in a string
// attribute. Escaped literals ("$$", "==") and plain strings pass.
func checkAttributeSyntax(s string) error {
	switch {
	case strings.HasPrefix(s, "$$"), strings.HasPrefix(s, "=="):
		return nil
	case strings.HasPrefix(s, "$"):
		if !pathPattern.MatchString(s[1:]) {
			return fmt.Errorf("malformed reference %q", s)
		}
	case strings.HasPrefix(s, "="):
		if _, err := expr.Parse(s[1:]); err != nil {
			return err
		}
	}
	return nil
}

// refName is the component name a reference path starts from.
func refName(path string) string {
	if i := strings.IndexAny(path, ".["); i >= 0 {
		return path[:i]
	}
	return path
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
