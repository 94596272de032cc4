package pass

import (
	"gitlab.com/esr/cvs2svn/internal/graph"
	"gitlab.com/esr/cvs2svn/internal/model"
)

// buildChangesetGraph builds a graph.Graph over changeset ids from the
// item-level dependency edges (CVSRevision.Predecessor, CVSBranch/CVSTag
// .Source, and any CVSBranch.SproutSource recorded by FilterSymbols's
// preferred-parent adjustment), restricted to changesets for which include
// returns true. Edges whose endpoints land in the same changeset are
// skipped (that would be an internal, not inter-changeset, edge, and
// InitializeChangesets already guarantees none remain in a
// RevisionChangeset).
func buildChangesetGraph(items map[model.ItemID]*model.Item, itemChangeset map[model.ItemID]model.ChangesetID, include func(model.ChangesetID) bool) *graph.Graph {
	g := graph.New()
	for id, it := range items {
		to, ok := itemChangeset[id]
		if !ok || !include(to) {
			continue
		}
		g.AddNode(to)
		addDependencyEdge(g, items, itemChangeset, include, to, it.Predecessor)
		addDependencyEdge(g, items, itemChangeset, include, to, it.Source)
		addDependencyEdge(g, items, itemChangeset, include, to, it.SproutSource)
	}
	return g
}

func addDependencyEdge(g *graph.Graph, items map[model.ItemID]*model.Item, itemChangeset map[model.ItemID]model.ChangesetID, include func(model.ChangesetID) bool, to model.ChangesetID, dep model.ItemID) {
	if dep == model.NoItem {
		return
	}
	from, ok := itemChangeset[dep]
	if !ok || from == to || !include(from) {
		return
	}
	g.AddEdge(from, to)
}
