package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/vellum/internal/engine"
)

// CompileSource compiles CUE source text holding a top-level document
// field. filename is used in positions only.
func CompileSource(filename string, src []byte) (engine.NodeSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return engine.NodeSpec{}, formatCUEError(err, "cue")
	}
	return CompileDocument(v)
}

// LoadFile compiles a single .cue file, or the CUE package in a
// directory.
func LoadFile(path string) (engine.NodeSpec, error) {
	info, err := os.Stat(path)
	if err != nil {
		return engine.NodeSpec{}, fmt.Errorf("document %s: %w", path, err)
	}
	if info.IsDir() {
		return loadDir(path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return engine.NodeSpec{}, fmt.Errorf("document %s: %w", path, err)
	}
	return CompileSource(path, src)
}

func loadDir(dir string) (engine.NodeSpec, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return engine.NodeSpec{}, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return engine.NodeSpec{}, formatCUEError(inst.Err, "cue")
	}
	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return engine.NodeSpec{}, formatCUEError(err, "cue")
	}
	return CompileDocument(v)
}

// CompileDocument compiles the "document" field of v.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`document: {children: [{type: "point", name: "P"}]}`)
//	root, err := CompileDocument(v)
func CompileDocument(v cue.Value) (engine.NodeSpec, error) {
	if err := v.Err(); err != nil {
		return engine.NodeSpec{}, formatCUEError(err, "cue")
	}
	doc := v.LookupPath(cue.ParsePath("document"))
	if !doc.Exists() {
		return engine.NodeSpec{}, &CompileError{
			Field:   "document",
			Message: "document is required",
			Pos:     v.Pos(),
		}
	}
	return compileNode(doc, "document", "document")
}

// compileNode reads one node. defaultType applies when the node names no
// type; below the root only copies may omit it.
func compileNode(v cue.Value, field, defaultType string) (engine.NodeSpec, error) {
	if err := v.Err(); err != nil {
		return engine.NodeSpec{}, formatCUEError(err, field)
	}
	if v.IncompleteKind() != cue.StructKind {
		return engine.NodeSpec{}, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("a component must be a struct, not %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}

	spec := engine.NodeSpec{Range: rangeOf(v)}
	iter, err := v.Fields()
	if err != nil {
		return engine.NodeSpec{}, formatCUEError(err, field)
	}
	for iter.Next() {
		label := iter.Label()
		val := iter.Value()
		sub := field + "." + label
		switch label {
		case "type":
			spec.Type, err = stringField(val, sub)
		case "name":
			spec.Name, err = stringField(val, sub)
		case "copySource":
			spec.CopySource, err = stringField(val, sub)
		case "attributes":
			spec.Attributes, err = compileAttributes(val, sub)
		case "children":
			spec.Children, err = compileChildren(val, sub)
		default:
			err = &CompileError{
				Field:   sub,
				Message: fmt.Sprintf("unknown field %q; components have type, name, copySource, attributes and children", label),
				Pos:     val.Pos(),
			}
		}
		if err != nil {
			return engine.NodeSpec{}, err
		}
	}

	if spec.Type == "" && spec.CopySource == "" {
		spec.Type = defaultType
	}
	if spec.Type == "" && spec.CopySource == "" {
		return engine.NodeSpec{}, &CompileError{
			Field:   field + ".type",
			Message: "type is required unless the component copies another",
			Pos:     v.Pos(),
		}
	}
	return spec, nil
}

func compileChildren(v cue.Value, field string) ([]engine.NodeSpec, error) {
	if v.IncompleteKind() != cue.ListKind {
		return nil, &CompileError{Field: field, Message: "children must be a list", Pos: v.Pos()}
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err, field)
	}
	var children []engine.NodeSpec
	for i := 0; iter.Next(); i++ {
		child, err := compileNode(iter.Value(), fmt.Sprintf("%s[%d]", field, i), "")
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func compileAttributes(v cue.Value, field string) (map[string]any, error) {
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: field, Message: "attributes must be a struct", Pos: v.Pos()}
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err, field)
	}
	attrs := make(map[string]any)
	for iter.Next() {
		val, err := decodeValue(iter.Value(), field+"."+iter.Label())
		if err != nil {
			return nil, err
		}
		attrs[iter.Label()] = val
	}
	return attrs, nil
}

// decodeValue converts a concrete CUE value to the plain Go values
// engine.NodeSpec attributes hold.
func decodeValue(v cue.Value, field string) (any, error) {
	var (
		out any
		err error
	)
	switch v.IncompleteKind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		out, err = v.Bool()
	case cue.IntKind:
		out, err = v.Int64()
	case cue.FloatKind, cue.NumberKind:
		out, err = v.Float64()
	case cue.StringKind:
		out, err = v.String()
	case cue.ListKind:
		iter, lerr := v.List()
		if lerr != nil {
			return nil, formatCUEError(lerr, field)
		}
		list := []any{}
		for i := 0; iter.Next(); i++ {
			item, err := decodeValue(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil
	case cue.StructKind:
		iter, ferr := v.Fields()
		if ferr != nil {
			return nil, formatCUEError(ferr, field)
		}
		obj := make(map[string]any)
		for iter.Next() {
			item, err := decodeValue(iter.Value(), field+"."+iter.Label())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = item
		}
		return obj, nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("attribute value must be concrete, not %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
	if err != nil {
		return nil, formatCUEError(err, field)
	}
	return out, nil
}

func stringField(v cue.Value, field string) (string, error) {
	s, err := v.String()
	if err != nil {
		return "", formatCUEError(err, field)
	}
	return s, nil
}

// rangeOf is the source span of v, collapsed to its start when CUE
// cannot say where it ends.
func rangeOf(v cue.Value) engine.Range {
	r := engine.Range{Start: positionOf(v.Pos())}
	if n := v.Source(); n != nil {
		r.End = positionOf(n.End())
	}
	if !r.End.IsValid() {
		r.End = r.Start
	}
	return r
}
