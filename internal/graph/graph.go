// Package graph implements the directed-graph machinery shared by the
// cycle-breaking and topological-sort passes: a generic node/edge graph
// keyed by model.ChangesetID, Kahn's-algorithm topological sort, and DFS
// cycle extraction for the splitting heuristics. Nodes are held in a map
// keyed by changeset id, and each node records its dependency edges in both
// directions as slices of changeset ids rather than pointers.
//
// SPDX-License-Identifier: BSD-2-Clause
package graph

import (
	"fmt"

	"github.com/emirpasic/gods/sets/linkedhashset"

	"gitlab.com/esr/cvs2svn/internal/model"
)

// Node is one changeset in the dependency graph: it depends on (must commit
// after) every changeset in Depends, and is depended on by every changeset
// in DependedBy.
type Node struct {
	ID         model.ChangesetID
	Depends    []model.ChangesetID
	DependedBy []model.ChangesetID
}

// Graph is a directed graph over changeset ids, built fresh for each
// cycle-breaking or topological-sort pass (SPEC_FULL.md's "one graph at a
// time" memory discipline — a pass loads only the subgraph it needs, acts
// on it, and discards it).
type Graph struct {
	nodes map[model.ChangesetID]*Node
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[model.ChangesetID]*Node)}
}

// AddNode ensures a node for id exists, returning it.
func (g *Graph) AddNode(id model.ChangesetID) *Node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &Node{ID: id}
	g.nodes[id] = n
	return n
}

// AddEdge records that `from` must commit before `to` (to depends on from).
func (g *Graph) AddEdge(from, to model.ChangesetID) {
	fn := g.AddNode(from)
	tn := g.AddNode(to)
	tn.Depends = append(tn.Depends, from)
	fn.DependedBy = append(fn.DependedBy, to)
}

// Node returns the node for id, or nil.
func (g *Graph) Node(id model.ChangesetID) *Node { return g.nodes[id] }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// TopologicalSort runs Kahn's algorithm, breaking ties among simultaneously
// ready nodes with less, a caller-supplied comparator (e.g. "lower
// timestamp first"). It returns the sorted order and, if the graph has a
// cycle, the ids still unreachable when no node is ready — the entry point
// for ExtractCycle.
func (g *Graph) TopologicalSort(less func(a, b model.ChangesetID) bool) (order []model.ChangesetID, remaining []model.ChangesetID) {
	indegree := make(map[model.ChangesetID]int, len(g.nodes))
	for id, n := range g.nodes {
		indegree[id] = len(n.Depends)
	}

	ready := linkedhashset.New()
	for id, deg := range indegree {
		if deg == 0 {
			ready.Add(id)
		}
	}

	order = make([]model.ChangesetID, 0, len(g.nodes))
	for ready.Size() > 0 {
		next := pickLeast(ready, less)
		ready.Remove(next)
		order = append(order, next)
		for _, dependent := range g.nodes[next].DependedBy {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready.Add(dependent)
			}
		}
	}

	if len(order) == len(g.nodes) {
		return order, nil
	}
	for id, deg := range indegree {
		if deg > 0 {
			remaining = append(remaining, id)
		}
	}
	return order, remaining
}

func pickLeast(set *linkedhashset.Set, less func(a, b model.ChangesetID) bool) model.ChangesetID {
	var best model.ChangesetID
	first := true
	for _, v := range set.Values() {
		id := v.(model.ChangesetID)
		if first || less(id, best) {
			best = id
			first = false
		}
	}
	return best
}

// ExtractCycle performs a DFS from an arbitrary unfinished node (any member
// of remaining) and returns the first cycle found as an ordered list of
// node ids, each cycle[i] depending on cycle[i+1] and the last element
// depending on cycle[0]. Used by the
// cycle-breaking passes to decide which changeset to split.
func (g *Graph) ExtractCycle(remaining []model.ChangesetID) ([]model.ChangesetID, error) {
	if len(remaining) == 0 {
		return nil, fmt.Errorf("graph: no remaining nodes to search for a cycle")
	}
	inStack := make(map[model.ChangesetID]int) // id -> position in stack
	var stack []model.ChangesetID
	visited := make(map[model.ChangesetID]bool)

	var visit func(id model.ChangesetID) []model.ChangesetID
	visit = func(id model.ChangesetID) []model.ChangesetID {
		if pos, onStack := inStack[id]; onStack {
			return append([]model.ChangesetID(nil), stack[pos:]...)
		}
		if visited[id] {
			return nil
		}
		visited[id] = true
		inStack[id] = len(stack)
		stack = append(stack, id)
		n := g.nodes[id]
		if n != nil {
			for _, dep := range n.Depends {
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		delete(inStack, id)
		return nil
	}

	for _, start := range remaining {
		if cycle := visit(start); cycle != nil {
			return cycle, nil
		}
	}
	return nil, fmt.Errorf("graph: no cycle found among %d supposedly-cyclic nodes", len(remaining))
}
