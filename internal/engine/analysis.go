package engine

import (
	"fmt"
	"sort"
	"strings"
)

// CycleWarning describes a cycle in the resolved dependency graph.
//
// A cycle is legal when one of its variables has an essential value: the
// forward read stops there (see cycleValue). Unanchored cycles read as
// null and are reported with level "error".
type CycleWarning struct {
	Path     []string `json:"path"`
	Message  string   `json:"message"`
	Level    Level    `json:"level"`
	Anchored bool     `json:"anchored"`
}

// AnalyzeCycles resolves every variable's dependencies and reports the
// strongly connected components of the resulting graph.
//
// The algorithm:
//  1. Expand composites and resolve every dependency set
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
func (e *Engine) AnalyzeCycles() ([]CycleWarning, error) {
	if err := e.ExpandAll(); err != nil {
		return nil, err
	}
	graph, vars := e.dependencyGraph()

	var warnings []CycleWarning
	for _, scc := range tarjanSCC(graph) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], graph) {
			continue
		}
		sort.Strings(scc)
		anchored := false
		for _, node := range scc {
			if sv := vars[node]; sv.def.HasEssential || sv.hasEssential {
				anchored = true
				break
			}
		}
		path := reconstructCyclePath(scc, graph)
		w := CycleWarning{Path: path, Anchored: anchored, Level: LevelWarning}
		if anchored {
			w.Message = fmt.Sprintf("cycle resolved at an essential value: %s", strings.Join(path, " -> "))
		} else {
			w.Level = LevelError
			w.Message = fmt.Sprintf("cycle with no essential value: %s", strings.Join(path, " -> "))
		}
		warnings = append(warnings, w)
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Path[0] < warnings[j].Path[0] })
	return warnings, nil
}

// dependencyGraph maps variable label → labels of the variables it reads.
type dependencyGraph map[string][]string

func (e *Engine) dependencyGraph() (dependencyGraph, map[string]*stateVariable) {
	graph := make(dependencyGraph)
	vars := make(map[string]*stateVariable)
	for i := 0; i < len(e.components); i++ {
		c := e.components[i]
		if c.failed != nil {
			continue
		}
		for _, name := range sortedVarNames(c) {
			sv := c.vars[name]
			e.ensureDeps(sv)
			label := sv.label()
			vars[label] = sv
			if graph[label] == nil {
				graph[label] = []string{}
			}
			for _, src := range sv.sources {
				graph[label] = append(graph[label], src.label())
			}
			sort.Strings(graph[label])
		}
	}
	return graph, vars
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results are deterministic.
func tarjanSCC(graph dependencyGraph) [][]string {
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

// reconstructCyclePath walks from the smallest member of scc along edges
// inside the SCC until it returns to the start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}
	inSCC := make(map[string]bool, len(scc))
	for _, n := range scc {
		inSCC[n] = true
	}
	start := scc[0]
	path := []string{start}
	visited := map[string]bool{start: true}
	cur := start
	for {
		next := ""
		for _, w := range graph[cur] {
			if w == start && len(path) > 1 {
				return append(path, start)
			}
			if inSCC[w] && !visited[w] && next == "" {
				next = w
			}
		}
		if next == "" {
			return append(path, start)
		}
		visited[next] = true
		path = append(path, next)
		cur = next
	}
}
