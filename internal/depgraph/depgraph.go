// Package depgraph builds the issue dependency graph (explicit dependency
// edges plus implicit decomposed-parent edges) and runs bounded cycle
// detection and blocked-issue reporting over it.
package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cat-dev/cat/internal/issuestore"
)

// DefaultMaxDepth bounds the cycle-detection DFS, per the spec's requirement
// that unbounded recursion fail explicitly rather than stack-overflow.
const DefaultMaxDepth = 1000

// DependencyStatus classifies one unresolved dependency for the
// blocked-issue report.
type DependencyStatus string

const (
	DepClosed     DependencyStatus = "closed"
	DepOpen       DependencyStatus = "open"
	DepInProgress DependencyStatus = "in-progress"
	DepUnknown    DependencyStatus = "unknown"
	DepNotFound   DependencyStatus = "not_found"
)

// Graph is the dependency graph over a Store's issues, built once and then
// queried for cycles and blocking.
type Graph struct {
	store *issuestore.Store
	edges map[string][]string // qualifiedName -> qualifiedNames it depends on (explicit + implicit)
	order []string
}

// Build constructs the dependency graph from store. Only open/in-progress
// issues contribute explicit edges (closed issues cannot block); implicit
// decomposed-parent edges are added regardless of the parent's status.
func Build(store *issuestore.Store) *Graph {
	g := &Graph{store: store, edges: map[string][]string{}}

	for _, issue := range store.All() {
		g.order = append(g.order, issue.QualifiedName)
		var deps []string

		if issue.Status == issuestore.StatusOpen || issue.Status == issuestore.StatusInProgress {
			for _, dep := range issue.Dependencies {
				candidates, found := store.Resolve(dep)
				if !found {
					continue // not_found dependencies don't contribute graph edges
				}
				deps = append(deps, candidates...)
			}
		}

		for _, sub := range issue.DecomposedInto {
			if _, ok := store.Get(sub); ok {
				deps = append(deps, sub)
			}
		}

		if len(deps) > 0 {
			g.edges[issue.QualifiedName] = deps
		}
	}

	return g
}

// Cycles runs bounded DFS over the graph and returns every distinct cycle,
// each rendered in canonical "A -> B -> C -> A" form, deduplicated.
func (g *Graph) Cycles(maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	visited := map[string]bool{}
	onPath := map[string]bool{}
	path := []string{}
	seen := map[string]bool{}
	var cycles []string

	var dfs func(node string, depth int) error
	dfs = func(node string, depth int) error {
		if depth > maxDepth {
			return fmt.Errorf("dependency graph cycle detection exceeded max depth %d", maxDepth)
		}
		visited[node] = true
		onPath[node] = true
		path = append(path, node)

		for _, next := range g.edges[node] {
			if onPath[next] {
				cyc := canonicalCycle(path, next)
				if !seen[cyc] {
					seen[cyc] = true
					cycles = append(cycles, cyc)
				}
				continue
			}
			if visited[next] {
				continue
			}
			if err := dfs(next, depth+1); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		onPath[node] = false
		return nil
	}

	names := append([]string(nil), g.order...)
	sort.Strings(names)
	for _, n := range names {
		if !visited[n] {
			if err := dfs(n, 1); err != nil {
				return nil, err
			}
		}
	}

	sort.Strings(cycles)
	return cycles, nil
}

// canonicalCycle renders the cycle starting at the point in path where
// repeatNode first appears, closing the loop back to that node.
func canonicalCycle(path []string, repeatNode string) string {
	start := 0
	for i, n := range path {
		if n == repeatNode {
			start = i
			break
		}
	}
	cyc := append([]string(nil), path[start:]...)
	cyc = append(cyc, repeatNode)

	// Canonicalize rotation: start from the lexicographically smallest node
	// so the same cycle discovered from different entry points dedupes.
	minIdx := 0
	loopLen := len(cyc) - 1
	for i := 1; i < loopLen; i++ {
		if cyc[i] < cyc[minIdx] {
			minIdx = i
		}
	}
	rotated := append(append([]string(nil), cyc[minIdx:loopLen]...), cyc[:minIdx]...)
	rotated = append(rotated, rotated[0])

	return strings.Join(rotated, " -> ")
}

// InCycle reports whether qualifiedName participates in any cycle.
func (g *Graph) InCycle(qualifiedName string, cycles []string) bool {
	marker := " " + qualifiedName + " "
	for _, c := range cycles {
		if strings.Contains(" "+c+" ", marker) || strings.HasPrefix(c, qualifiedName+" ") {
			return true
		}
	}
	return false
}

// BlockedDependency is one unresolved dependency of a blocked issue.
type BlockedDependency struct {
	DependencyName string
	Status         DependencyStatus
}

// Blocked reports, for every open/in-progress issue, its unresolved
// dependencies and their statuses.
func (g *Graph) Blocked() map[string][]BlockedDependency {
	result := map[string][]BlockedDependency{}

	for _, issue := range g.store.All() {
		if !issue.Executable() {
			continue
		}
		var unresolved []BlockedDependency
		for _, dep := range issue.Dependencies {
			candidates, found := g.store.Resolve(dep)
			if !found {
				unresolved = append(unresolved, BlockedDependency{DependencyName: dep, Status: DepNotFound})
				continue
			}
			// A bare name may be ambiguous; report the worst-case status
			// among candidates (closed only if ALL candidates are closed).
			status := g.worstStatus(candidates)
			if status != DepClosed {
				unresolved = append(unresolved, BlockedDependency{DependencyName: dep, Status: status})
			}
		}
		if len(unresolved) > 0 {
			result[issue.QualifiedName] = unresolved
		}
	}

	return result
}

func (g *Graph) worstStatus(qualifiedNames []string) DependencyStatus {
	allClosed := true
	worst := DepClosed
	for _, qn := range qualifiedNames {
		dep, ok := g.store.Get(qn)
		if !ok {
			return DepNotFound
		}
		switch dep.Status {
		case issuestore.StatusClosed:
			continue
		case issuestore.StatusOpen:
			allClosed = false
			worst = DepOpen
		case issuestore.StatusInProgress:
			allClosed = false
			if worst != DepOpen {
				worst = DepInProgress
			}
		default:
			allClosed = false
			worst = DepUnknown
		}
	}
	if allClosed {
		return DepClosed
	}
	return worst
}

// IsBlocked reports whether a specific issue has any unresolved dependency.
func (g *Graph) IsBlocked(qualifiedName string) ([]BlockedDependency, bool) {
	blocked := g.Blocked()
	deps, ok := blocked[qualifiedName]
	return deps, ok
}
