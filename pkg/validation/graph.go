// Package validation checks plan configurations for graph-level problems that
// structural config validation cannot see, most importantly dependency cycles.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gantry/gantry/pkg/types"
)

// ValidateGraph checks the dependency structure of a plan configuration.
// Hard edges (dependsOn, outcomeDependsOn) and soft edges (runAfter) must
// together form a directed acyclic graph; finalizer edges are excluded because
// a finalizer may legitimately finalize work it also depends on.
func ValidateGraph(cfg *types.PlanConfig) error {
	edges := make(map[string][]string)
	for _, node := range cfg.Nodes {
		deps := make([]string, 0, len(node.DependsOn)+len(node.OutcomeDependsOn)+len(node.RunAfter))
		deps = append(deps, node.DependsOn...)
		deps = append(deps, node.OutcomeDependsOn...)
		deps = append(deps, node.RunAfter...)
		for _, dep := range deps {
			if dep == node.Name {
				return fmt.Errorf("node '%s' depends on itself", node.Name)
			}
		}
		edges[node.Name] = deps
	}

	if cycle := findCycle(edges); cycle != nil {
		return fmt.Errorf("dependency cycle detected: %s", strings.Join(cycle, " -> "))
	}
	return nil
}

// findCycle runs a depth-first search over the edge map and returns the first
// cycle found as a closed path, nil when the graph is acyclic. Nodes are
// visited in sorted order so the reported cycle is deterministic.
func findCycle(edges map[string][]string) []string {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		visiting[name] = true
		stack = append(stack, name)
		for _, dep := range edges[name] {
			if visiting[dep] {
				return closeCycle(stack, dep)
			}
			if !visited[dep] {
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		delete(visiting, name)
		visited[name] = true
		return nil
	}

	names := make([]string, 0, len(edges))
	for name := range edges {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !visited[name] {
			if cycle := visit(name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// closeCycle trims the DFS stack to the portion forming the cycle and repeats
// the entry node at the end
func closeCycle(stack []string, entry string) []string {
	for i, name := range stack {
		if name == entry {
			cycle := append([]string{}, stack[i:]...)
			return append(cycle, entry)
		}
	}
	return append([]string{}, entry, entry)
}
