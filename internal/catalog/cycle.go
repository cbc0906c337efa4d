package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/docmap/internal/model"
)

// CycleWarning describes models that reach themselves through relations.
// Pipelines over such models fail with a cyclic model error whenever every
// relation on the cycle is visible under the requested views.
type CycleWarning struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// relationGraph maps a model name to the models its relation columns target,
// in column order.
type relationGraph struct {
	nodes []string
	edges map[string][]string
}

// AnalyzeCycles finds relation cycles in the catalog using Tarjan's
// strongly connected components algorithm. Results follow declaration order.
func AnalyzeCycles(cat *Catalog) []CycleWarning {
	g := buildRelationGraph(cat)

	var warnings []CycleWarning
	for _, scc := range tarjanSCC(g) {
		if len(scc) == 1 && !slices.Contains(g.edges[scc[0]], scc[0]) {
			continue
		}
		warnings = append(warnings, sccToWarning(scc, g))
	}
	return warnings
}

func buildRelationGraph(cat *Catalog) relationGraph {
	g := relationGraph{nodes: cat.Names(), edges: make(map[string][]string)}
	for _, m := range cat.Models() {
		g.edges[m.Name] = []string{}
		for _, col := range m.Columns() {
			if col.Relation() == model.RelationNone {
				continue
			}
			target := col.Target().Name
			if !slices.Contains(g.edges[m.Name], target) {
				g.edges[m.Name] = append(g.edges[m.Name], target)
			}
		}
	}
	return g
}

// tarjanSCC returns the strongly connected components of g. Each component
// is ordered by declaration order so its first member is stable.
func tarjanSCC(g relationGraph) [][]string {
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

		for _, w := range g.edges[v] {
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

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	rank := make(map[string]int, len(g.nodes))
	for i, n := range g.nodes {
		rank[n] = i
	}
	for _, scc := range sccs {
		slices.SortFunc(scc, func(a, b string) int { return rank[a] - rank[b] })
	}
	slices.SortFunc(sccs, func(a, b []string) int { return rank[a[0]] - rank[b[0]] })
	return sccs
}

func sccToWarning(scc []string, g relationGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Self-referencing model: %s → %s", name, name),
			Level:   "warning",
		}
	}
	path := reconstructCyclePath(scc, g)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Relation cycle: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks edges inside the component from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, g relationGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		var next string
		for _, w := range g.edges[current] {
			if members[w] && (!visited[w] || w == start) {
				next = w
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
