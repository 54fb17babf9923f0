package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/vellum/internal/ir"
)

// ComponentInfo describes one component of the tree.
type ComponentInfo struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Parent    string `json:"parent,omitempty"`
	Replacing string `json:"replacing,omitempty"`
	Failed    string `json:"failed,omitempty"`
}

// Components lists the components built so far in creation order,
// without attribute components.
func (e *Engine) Components() []ComponentInfo {
	out := make([]ComponentInfo, 0, len(e.components))
	for _, c := range e.components {
		if c.isAttribute() {
			continue
		}
		info := ComponentInfo{Index: c.index, Name: c.name, Type: c.typ.Name}
		if c.parent != nil {
			info.Parent = c.parent.name
		}
		if c.replacing != nil {
			info.Replacing = c.replacing.name
		}
		if c.failed != nil {
			info.Failed = c.failed.Error()
		}
		out = append(out, info)
	}
	return out
}

// ExpandAll expands every composite, including composites produced by
// expansion.
func (e *Engine) ExpandAll() error {
	if err := e.ready(); err != nil {
		return err
	}
	for i := 0; i < len(e.components); i++ {
		if c := e.components[i]; c.typ.IsComposite() {
			e.expand(c)
		}
	}
	return nil
}

// Snapshot reads every public variable of every component, keyed by
// component name then variable name. Composites are expanded first.
// Opaque values have no serialized form and are left out.
func (e *Engine) Snapshot() (ir.IRObject, error) {
	if err := e.ExpandAll(); err != nil {
		return nil, err
	}
	out := make(ir.IRObject)
	for _, c := range e.components {
		if c.isAttribute() || c.typ.IsComposite() {
			continue
		}
		vars := make(ir.IRObject)
		for _, name := range sortedVarNames(c) {
			sv := c.vars[name]
			if !sv.def.Public {
				continue
			}
			v := e.readTarget(&target{sv: sv})
			if containsOpaque(v) {
				continue
			}
			vars[name] = v
		}
		out[c.name] = vars
	}
	return out, nil
}

func sortedVarNames(c *Component) []string {
	names := make([]string, 0, len(c.vars))
	for name := range c.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func containsOpaque(v ir.IRValue) bool {
	switch val := v.(type) {
	case ir.IROpaque:
		return true
	case ir.IRArray:
		for _, elem := range val {
			if containsOpaque(elem) {
				return true
			}
		}
	case ir.IRObject:
		for _, elem := range val {
			if containsOpaque(elem) {
				return true
			}
		}
	}
	return false
}

// Essentials returns the essential values written by updates, restores or
// variant selection, keyed "component.variable". Values only seeded from
// defaults are left out, so the result depends on what was done to the
// document and not on what was read. Array variables map keys to entries.
func (e *Engine) Essentials() ir.IRObject {
	out := make(ir.IRObject)
	for _, c := range e.components {
		for _, name := range sortedVarNames(c) {
			sv := c.vars[name]
			if !sv.assigned {
				continue
			}
			v, err := sv.essentialValue()
			if err != nil {
				continue
			}
			out[c.name+"."+name] = v
		}
	}
	return out
}

// RestoreEssentials writes saved essential values back, as produced by
// Essentials. Composites are expanded so replacements can be restored.
func (e *Engine) RestoreEssentials(values ir.IRObject) error {
	if err := e.ExpandAll(); err != nil {
		return err
	}
	var problems []string
	for _, key := range values.SortedKeys() {
		i := strings.LastIndexByte(key, '.')
		if i < 0 {
			problems = append(problems, fmt.Sprintf("%q is not component.variable", key))
			continue
		}
		comp, ok := e.byName[key[:i]]
		if !ok {
			comp = e.attributeByLabel(key[:i])
		}
		if comp == nil {
			problems = append(problems, fmt.Sprintf("no component %q", key[:i]))
			continue
		}
		sv, ok := comp.vars[key[i+1:]]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s has no state variable %q", key[:i], key[i+1:]))
			continue
		}
		v := values[key]
		if sv.def.IsArray {
			obj, ok := v.(ir.IRObject)
			if !ok {
				problems = append(problems, fmt.Sprintf("%s: array essentials must be an object", key))
				continue
			}
			for _, k := range obj.SortedKeys() {
				e.writeEssential(sv, ir.ArrayKey(k), obj[k])
			}
			continue
		}
		e.writeEssential(sv, "", v)
	}
	if len(problems) > 0 {
		return &RuntimeError{
			Code:    ErrCodeUnknownStateVariable,
			Message: "cannot restore essential values: " + strings.Join(problems, "; "),
		}
	}
	return nil
}

func (e *Engine) attributeByLabel(label string) *Component {
	owner, attr, ok := strings.Cut(label, "@")
	if !ok {
		return nil
	}
	c, ok := e.byName[owner]
	if !ok {
		return nil
	}
	return c.attributes[attr]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
