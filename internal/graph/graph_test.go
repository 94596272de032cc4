package graph

import (
	"testing"

	"gitlab.com/esr/cvs2svn/internal/model"
)

func TestTopologicalSortLinearChain(t *testing.T) {
	g := New()
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)

	order, remaining := g.TopologicalSort(func(a, b model.ChangesetID) bool { return a < b })
	if remaining != nil {
		t.Fatalf("an acyclic graph must not report remaining nodes, got %v", remaining)
	}
	want := []model.ChangesetID{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order length: got %d, want %d", len(order), len(want))
	}
	for i, id := range want {
		if order[i] != id {
			t.Errorf("order[%d] = %d, want %d (full order %v)", i, order[i], id, order)
		}
	}
}

func TestTopologicalSortTieBreak(t *testing.T) {
	g := New()
	// 3, 1, 2 are all independently ready; the comparator should pick
	// them in ascending id order regardless of insertion order.
	g.AddNode(3)
	g.AddNode(1)
	g.AddNode(2)

	order, _ := g.TopologicalSort(func(a, b model.ChangesetID) bool { return a < b })
	want := []model.ChangesetID{1, 2, 3}
	for i, id := range want {
		if order[i] != id {
			t.Errorf("order[%d] = %d, want %d", i, order[i], id)
		}
	}
}

func TestTopologicalSortDetectsCycle(t *testing.T) {
	g := New()
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(3, 1)

	order, remaining := g.TopologicalSort(func(a, b model.ChangesetID) bool { return a < b })
	if len(order) != 0 {
		t.Fatalf("a graph that is entirely one cycle should produce no sorted prefix, got %v", order)
	}
	if len(remaining) != 3 {
		t.Fatalf("remaining should list all three cyclic nodes, got %v", remaining)
	}
}

func TestExtractCycle(t *testing.T) {
	g := New()
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(3, 1)

	_, remaining := g.TopologicalSort(func(a, b model.ChangesetID) bool { return a < b })
	cycle, err := g.ExtractCycle(remaining)
	if err != nil {
		t.Fatalf("ExtractCycle: %v", err)
	}
	if len(cycle) != 3 {
		t.Fatalf("cycle length: got %d, want 3 (%v)", len(cycle), cycle)
	}
	seen := make(map[model.ChangesetID]bool)
	for _, id := range cycle {
		seen[id] = true
	}
	for _, id := range []model.ChangesetID{1, 2, 3} {
		if !seen[id] {
			t.Errorf("cycle %v is missing expected member %d", cycle, id)
		}
	}
}

func TestExtractCycleNoRemaining(t *testing.T) {
	g := New()
	if _, err := g.ExtractCycle(nil); err == nil {
		t.Fatalf("ExtractCycle with no remaining nodes should return an error")
	}
}

func TestGraphAddNodeIdempotent(t *testing.T) {
	g := New()
	a := g.AddNode(5)
	b := g.AddNode(5)
	if a != b {
		t.Fatalf("AddNode should return the same node for a repeated id")
	}
	if g.Len() != 1 {
		t.Errorf("Len: got %d, want 1", g.Len())
	}
	if g.Node(99) != nil {
		t.Errorf("Node for an unknown id should return nil")
	}
}
