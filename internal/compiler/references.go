package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/expr"
)

// CycleWarning represents a potential cycle among component references.
//
// Cycles are warnings, not errors: components referencing each other are
// fine as long as the variables involved do not form a loop, which only
// the engine's analysis of the built document can tell.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeReferences performs static cycle analysis on a document's
// references before it is built.
//
// The algorithm:
//  1. Build component → referenced components from $references,
//     =expressions and copySource
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a potential cycle warning
//
// Unnamed components are not reachable by reference and are skipped.
func AnalyzeReferences(root engine.NodeSpec) []CycleWarning {
	graph := make(referenceGraph)
	collectReferences(root, graph)
	if len(graph) == 0 {
		return []CycleWarning{}
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	sort.Slice(warnings, func(i, j int) bool {
		return strings.Join(warnings[i].Path, ",") < strings.Join(warnings[j].Path, ",")
	})
	return warnings
}

// referenceGraph maps component name → names it references, sorted.
type referenceGraph map[string][]string

func collectReferences(spec engine.NodeSpec, graph referenceGraph) {
	if spec.Name != "" {
		targets := make(map[string]bool)
		if spec.CopySource != "" {
			targets[refName(spec.CopySource)] = true
		}
		for _, raw := range spec.Attributes {
			for _, ref := range attributeRefs(raw) {
				targets[refName(ref)] = true
			}
		}
		edges := make([]string, 0, len(targets))
		for name := range targets {
			edges = append(edges, name)
		}
		sort.Strings(edges)
		graph[spec.Name] = append(graph[spec.Name], edges...)
	}
	for _, child := range spec.Children {
		collectReferences(child, graph)
	}
}

// attributeRefs lists the paths a raw attribute value refers to.
func attributeRefs(raw any) []string {
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	switch {
	case strings.HasPrefix(s, "$$"), strings.HasPrefix(s, "=="):
		return nil
	case strings.HasPrefix(s, "$"):
		return []string{s[1:]}
	case strings.HasPrefix(s, "="):
		x, err := expr.Parse(s[1:])
		if err != nil {
			return nil
		}
		return x.Refs()
	}
	return nil
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph referenceGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results are deterministic.
func tarjanSCC(graph referenceGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func cycleSCCToWarning(scc []string, graph referenceGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Component references itself: %s → %s", name, name),
			Level:   "info",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Potential reference cycle: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC, starting at its
// smallest name and following edges within the SCC back to the start.
func reconstructCyclePath(scc []string, graph referenceGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	for _, node := range scc {
		if node < start {
			start = node
		}
	}
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && neighbor != current && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)

		if next == start {
			break
		}

		current = next
	}

	return path
}
