package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vellum/internal/catalog"
	"github.com/roach88/vellum/internal/engine"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValidDocument(t *testing.T) {
	root, err := CompileSource("ray.cue", []byte(rayDocument))
	require.NoError(t, err)

	errs := Validate(root, catalog.NewRegistry())
	assert.Empty(t, errs, "valid document should have no errors")
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name  string
		child engine.NodeSpec
		code  string
		field string
	}{
		{
			name:  "unknown type",
			child: engine.NodeSpec{Type: "hexagon"},
			code:  ErrUnknownType,
			field: "document.children[1].type",
		},
		{
			name:  "unknown attribute",
			child: engine.NodeSpec{Type: "point", Attributes: map[string]any{"colour": "red"}},
			code:  ErrUnknownAttribute,
			field: "document.children[1].attributes.colour",
		},
		{
			name:  "duplicate name",
			child: engine.NodeSpec{Type: "number", Name: "n"},
			code:  ErrDuplicateName,
			field: "document.children[1].name",
		},
		{
			name:  "bad name",
			child: engine.NodeSpec{Type: "number", Name: "two words"},
			code:  ErrInvalidName,
			field: "document.children[1].name",
		},
		{
			name:  "malformed reference",
			child: engine.NodeSpec{Type: "number", Attributes: map[string]any{"value": "$n..value"}},
			code:  ErrInvalidReference,
			field: "document.children[1].attributes.value",
		},
		{
			name:  "malformed expression",
			child: engine.NodeSpec{Type: "number", Attributes: map[string]any{"value": "=2*("}},
			code:  ErrInvalidReference,
			field: "document.children[1].attributes.value",
		},
		{
			name:  "copy of a later component",
			child: engine.NodeSpec{CopySource: "later"},
			code:  ErrUnknownCopySource,
			field: "document.children[1].copySource",
		},
		{
			name:  "copy with another type",
			child: engine.NodeSpec{Type: "point", CopySource: "n"},
			code:  ErrCopyTypeMismatch,
			field: "document.children[1].type",
		},
		{
			name:  "no type",
			child: engine.NodeSpec{Name: "x"},
			code:  ErrMissingType,
			field: "document.children[1].type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := engine.NodeSpec{Type: "document", Children: []engine.NodeSpec{
				{Type: "number", Name: "n"},
				tt.child,
			}}

			errs := Validate(root, catalog.NewRegistry())
			require.Len(t, errs, 1, "%v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidateChildGroups(t *testing.T) {
	root := engine.NodeSpec{Type: "document", Children: []engine.NodeSpec{
		{Type: "point", Name: "P", Children: []engine.NodeSpec{
			{Type: "constrainToGrid"},
			{Type: "number"},
		}},
		{Type: "group", Children: []engine.NodeSpec{
			{Type: "constrainToGrid"},
		}},
	}}

	errs := Validate(root, catalog.NewRegistry())
	require.Len(t, errs, 1, "composites decide what their children become")
	assert.Equal(t, ErrChildNotAccepted, errs[0].Code)
	assert.Equal(t, "document.children[0].children[1]", errs[0].Field)
	assert.Contains(t, errs[0].Message, "point does not accept number children")
}

func TestValidateCollectsAll(t *testing.T) {
	root := engine.NodeSpec{Type: "document", Children: []engine.NodeSpec{
		{Type: "hexagon", Name: "a", Range: engine.Range{Start: engine.Position{Line: 4}}},
		{Type: "number", Name: "a", Attributes: map[string]any{"value": "$$literal", "size": 2}},
	}}

	errs := Validate(root, catalog.NewRegistry())
	assert.Equal(t, []string{ErrUnknownType, ErrDuplicateName, ErrUnknownAttribute}, codes(errs))
	assert.Equal(t, 4, errs[0].Line)
	assert.Equal(t, `[E101] line 4: document.children[0].type: unknown component type "hexagon"`, errs[0].Error())
}

func TestValidateCopyInheritsType(t *testing.T) {
	root := engine.NodeSpec{Type: "document", Children: []engine.NodeSpec{
		{Type: "point", Name: "P", Attributes: map[string]any{"coords": []any{1, 2}}},
		{CopySource: "P", Name: "Q", Attributes: map[string]any{"coords": []any{3, 4}}},
		{CopySource: "P", Name: "R", Attributes: map[string]any{"radius": 1}},
	}}

	errs := Validate(root, catalog.NewRegistry())
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownAttribute, errs[0].Code)
	assert.Equal(t, "document.children[2].attributes.radius", errs[0].Field)
}
