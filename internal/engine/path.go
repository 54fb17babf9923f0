package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// PathResult is the outcome of resolving a name path.
type PathResult struct {
	// NodeIndex is the component reached: the target when Resolved, the
	// last component reached otherwise (-1 if none).
	NodeIndex int `json:"node_index"`

	Resolved bool `json:"resolved"`

	// Remaining holds the unresolved segments.
	Remaining []string `json:"remaining,omitempty"`
}

// pathSegment is one dotted segment: a name and 1-based indices.
type pathSegment struct {
	raw     string
	name    string
	indices []int
}

// parsePath splits "a.b[2].c" into segments.
func parsePath(path string) ([]pathSegment, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	raw := strings.Split(path, ".")
	segs := make([]pathSegment, 0, len(raw))
	for _, r := range raw {
		seg := pathSegment{raw: r}
		name, rest, _ := strings.Cut(r, "[")
		seg.name = name
		if rest != "" {
			rest = "[" + rest
		}
		for rest != "" {
			if rest[0] != '[' {
				return nil, fmt.Errorf("malformed segment %q", r)
			}
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("unclosed index in %q", r)
			}
			n, err := strconv.Atoi(rest[1:end])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("index in %q must be a positive integer", r)
			}
			seg.indices = append(seg.indices, n)
			rest = rest[end+1:]
		}
		if seg.name == "" && len(seg.indices) == 0 {
			return nil, fmt.Errorf("empty segment in %q", path)
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// ResolvePath resolves a dotted, bracketed name path such as "s[2].P"
// starting from the component with index origin. Composites are expanded
// when the path needs their replacements; already-resolved paths are not
// affected. An unresolved result carries the remaining segments and the
// component reached so far.
func (e *Engine) ResolvePath(path string, origin int) (PathResult, error) {
	if err := e.ready(); err != nil {
		return PathResult{NodeIndex: -1}, err
	}
	var from *Component
	if origin >= 0 && origin < len(e.components) {
		from = e.components[origin]
	}
	if _, err := parsePath(path); err != nil {
		return PathResult{NodeIndex: -1}, &RuntimeError{Code: ErrCodeUnresolvedPath, Message: err.Error()}
	}
	return e.resolvePath(path, from, true), nil
}

// resolvePath walks path from origin. With force unset, composites that
// have not expanded yet stop the walk.
func (e *Engine) resolvePath(path string, origin *Component, force bool) PathResult {
	segs, err := parsePath(path)
	if err != nil {
		return PathResult{NodeIndex: -1, Remaining: []string{path}}
	}

	remaining := func(i int) []string {
		out := make([]string, 0, len(segs)-i)
		for _, s := range segs[i:] {
			out = append(out, s.raw)
		}
		return out
	}

	var cur *Component
	for i, seg := range segs {
		if seg.name != "" {
			next := e.lookupName(seg.name, cur, origin, force)
			if next == nil {
				idx := -1
				if cur != nil {
					idx = cur.index
				} else if origin != nil && i == 0 {
					idx = origin.index
				}
				return PathResult{NodeIndex: idx, Remaining: remaining(i)}
			}
			cur = next
		} else if cur == nil {
			if origin == nil {
				return PathResult{NodeIndex: -1, Remaining: remaining(i)}
			}
			cur = origin
		}

		for _, n := range seg.indices {
			next := e.nthMember(cur, n, force)
			if next == nil {
				r := remaining(i)
				r[0] = indexSuffix(seg.indices)
				return PathResult{NodeIndex: cur.index, Remaining: r}
			}
			cur = next
		}
	}
	return PathResult{NodeIndex: cur.index, Resolved: true}
}

func indexSuffix(indices []int) string {
	var b strings.Builder
	for _, n := range indices {
		fmt.Fprintf(&b, "[%d]", n)
	}
	return b.String()
}

// lookupName finds a component by name. The first segment is looked up
// document-wide; later segments must name a descendant of cur.
func (e *Engine) lookupName(name string, cur, origin *Component, force bool) *Component {
	c, ok := e.byName[name]
	if !ok && force {
		scope := cur
		if scope == nil {
			scope = e.root
		}
		e.expandWithin(scope, func() bool {
			_, ok = e.byName[name]
			return ok
		})
		c = e.byName[name]
	}
	if c == nil || c.isAttribute() {
		return nil
	}
	if cur != nil && !isDescendant(c, cur) {
		return nil
	}
	return c
}

// nthMember returns the 1-based nth replacement of a composite or the nth
// member of any other component.
func (e *Engine) nthMember(c *Component, n int, force bool) *Component {
	var list []*Component
	if c.typ.IsComposite() {
		if !c.expanded && !force {
			return nil
		}
		e.expand(c)
		list = c.replacements
	} else {
		if !force && hasUnexpanded(c) {
			return nil
		}
		list = e.members(c)
	}
	if n > len(list) {
		return nil
	}
	return list[n-1]
}

func hasUnexpanded(c *Component) bool {
	for _, child := range c.children {
		if child.typ.IsComposite() && !child.expanded {
			return true
		}
	}
	return false
}

// isDescendant reports whether c sits below ancestor, through parents or
// through the composites it replaces.
func isDescendant(c, ancestor *Component) bool {
	for n := c; n != nil; {
		next := n.parent
		if n.replacing != nil {
			if n.replacing == ancestor {
				return true
			}
			next = n.replacing
		}
		if next == ancestor {
			return true
		}
		n = next
	}
	return false
}

// expandWithin expands composites under scope, breadth first, until found
// reports success or nothing is left to expand.
func (e *Engine) expandWithin(scope *Component, found func() bool) {
	if scope == nil {
		return
	}
	queue := []*Component{scope}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c.typ.IsComposite() && !c.expanded {
			e.expand(c)
			if found() {
				return
			}
		}
		queue = append(queue, c.children...)
		queue = append(queue, c.replacements...)
	}
}
