package engine

// frame is one variable (or one array key, or a dependency-resolution
// phase) currently being evaluated or inverted.
type frame struct {
	sv  *stateVariable
	key string
}

func (f frame) label() string {
	switch f.key {
	case "":
		return f.sv.label()
	case "#deps":
		return f.sv.label() + "(dependencies)"
	case "*":
		return f.sv.label() + "[*]"
	}
	return f.sv.label() + "[" + f.key + "]"
}

// CycleDetector tracks the frames on the current evaluation (or inverse)
// path so re-entry can be detected.
//
// Unlike the static analysis in analysis.go, this sees the dependency
// graph as it is actually walked, including dependencies re-derived from
// determining variables.
type CycleDetector struct {
	frames []frame
	index  map[frame]int
}

// NewCycleDetector creates an empty detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{index: make(map[frame]int)}
}

// WouldCycle reports whether f is already on the path.
func (c *CycleDetector) WouldCycle(f frame) bool {
	_, ok := c.index[f]
	return ok
}

// Push enters f.
func (c *CycleDetector) Push(f frame) {
	c.index[f] = len(c.frames)
	c.frames = append(c.frames, f)
}

// Pop leaves the innermost frame.
func (c *CycleDetector) Pop() {
	if len(c.frames) == 0 {
		return
	}
	f := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	if i, ok := c.index[f]; ok && i == len(c.frames) {
		delete(c.index, f)
	}
}

// Path returns the cycle closed by re-entering f: the frames from f's
// first occurrence to the top, then f again.
func (c *CycleDetector) Path(f frame) []string {
	start, ok := c.index[f]
	if !ok {
		return []string{f.label()}
	}
	path := make([]string, 0, len(c.frames)-start+1)
	for _, fr := range c.frames[start:] {
		path = append(path, fr.label())
	}
	return append(path, f.label())
}

// Anchored reports whether the cycle closed by re-entering f passes
// through a variable that can fall back to an essential value.
func (c *CycleDetector) Anchored(f frame) bool {
	start, ok := c.index[f]
	if !ok {
		return false
	}
	for _, fr := range c.frames[start+1:] {
		if fr.key == "#deps" || fr.sv == f.sv {
			continue
		}
		if fr.sv.hasEssential || fr.sv.def.HasEssential {
			return true
		}
	}
	return false
}

// Depth returns the number of frames on the path.
func (c *CycleDetector) Depth() int {
	return len(c.frames)
}

// Reset empties the path.
func (c *CycleDetector) Reset() {
	c.frames = nil
	c.index = make(map[frame]int)
}
