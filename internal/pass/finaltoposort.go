package pass

import (
	"fmt"
	"path/filepath"
	"time"

	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/model"
	"gitlab.com/esr/cvs2svn/internal/store"
)

// FinalTopologicalSortPass builds the whole (now acyclic) changeset graph,
// repeatedly extracts a dependency-free changeset preferring symbol
// changesets over revision changesets, and assigns each a monotonic commit
// timestamp (SPEC_FULL.md §4.11).
type FinalTopologicalSortPass struct{}

func NewFinalTopologicalSortPass() *FinalTopologicalSortPass { return &FinalTopologicalSortPass{} }

func (p *FinalTopologicalSortPass) Name() string { return "FinalTopologicalSort" }

func (p *FinalTopologicalSortPass) Run(ctrl *control.Control, dataDir string) error {
	items, err := loadAllItems(dataDir)
	if err != nil {
		return err
	}
	changesets, err := readChangesetStore(dataDir)
	if err != nil {
		return err
	}
	var itemChangeset map[model.ItemID]model.ChangesetID
	if err := loadGob(filepath.Join(dataDir, fileItemChangesetMap), &itemChangeset); err != nil {
		return err
	}

	includeAll := func(model.ChangesetID) bool { return true }
	g := buildChangesetGraph(items, itemChangeset, includeAll)

	preferSymbols := func(a, b model.ChangesetID) bool {
		aSym := changesets.Lookup(a).Kind == model.SymbolChangesetKind
		bSym := changesets.Lookup(b).Kind == model.SymbolChangesetKind
		if aSym != bSym {
			return aSym
		}
		return timestampOf(changesets, items, a) < timestampOf(changesets, items, b)
	}
	order, remaining := g.TopologicalSort(preferSymbols)
	if len(remaining) > 0 {
		return fmt.Errorf("FinalTopologicalSort: %d changesets still cyclic; cycle-breaking passes did not converge", len(remaining))
	}

	assigned := make(map[model.ChangesetID]int64, len(order))
	writer, err := store.CreateWriter(filepath.Join(dataDir, fileCommitOrder))
	if err != nil {
		return err
	}

	var prev int64
	now := time.Now().Unix()
	for _, id := range order {
		cs := changesets.Lookup(id)
		nominal := p.nominalTimestamp(cs, items, itemChangeset, assigned)
		if nominal <= prev {
			nominal = prev + 1
		}
		if nominal > now {
			nominal = prev + 1
		}
		assigned[id] = nominal
		prev = nominal
		if err := writer.Write(store.Record{Key: fmt.Sprintf("%020d", id), Payload: fmt.Sprintf("%d", nominal)}); err != nil {
			writer.Abort()
			return err
		}
	}
	if err := writer.Commit(); err != nil {
		return err
	}

	ctrl.Logit(control.LogTopology, "FinalTopologicalSort: %d changesets committed", len(order))
	return nil
}

// nominalTimestamp is the max CVS timestamp of a revision changeset's
// members, or for a symbol changeset the max already-assigned commit time
// of its members' source changesets (their dependency edges guarantee
// those have already been assigned, since the graph is acyclic and the
// traversal is topological).
func (p *FinalTopologicalSortPass) nominalTimestamp(cs *model.Changeset, items map[model.ItemID]*model.Item, itemChangeset map[model.ItemID]model.ChangesetID, assigned map[model.ChangesetID]int64) int64 {
	var max int64
	for _, m := range cs.Items() {
		it, ok := items[m]
		if !ok {
			continue
		}
		var ts int64
		if cs.Kind == model.SymbolChangesetKind {
			if srcCS, ok := itemChangeset[it.Source]; ok {
				ts = assigned[srcCS]
			}
		} else {
			ts = it.Timestamp
		}
		if ts > max {
			max = ts
		}
	}
	return max
}
