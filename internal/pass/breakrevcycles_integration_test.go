package pass

import (
	"path/filepath"
	"testing"

	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/model"
	"gitlab.com/esr/cvs2svn/internal/store"
)

func writeItemsFixture(t *testing.T, dataDir string, items map[model.ItemID]*model.Item) {
	t.Helper()
	w, err := store.CreateKeyedWriter(filepath.Join(dataDir, fileItems))
	if err != nil {
		t.Fatalf("CreateKeyedWriter: %v", err)
	}
	for id, it := range items {
		data, err := model.EncodeItem(it)
		if err != nil {
			t.Fatalf("EncodeItem: %v", err)
		}
		if err := w.Put(uint64(id), data); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

// TestBreakRevisionChangesetCyclesPassBreaksACycle builds two revision
// changesets that depend on each other (A -> B via item3's predecessor,
// B -> A via item2's predecessor) and checks the pass bisects the larger
// changeset until the dependency graph is acyclic.
func TestBreakRevisionChangesetCyclesPassBreaksACycle(t *testing.T) {
	dataDir := t.TempDir()

	items := map[model.ItemID]*model.Item{
		1: {ID: 1, Kind: model.RevisionItem, Timestamp: 10, Predecessor: model.NoItem},
		2: {ID: 2, Kind: model.RevisionItem, Timestamp: 30, Predecessor: 3},
		3: {ID: 3, Kind: model.RevisionItem, Timestamp: 20, Predecessor: 1},
	}
	writeItemsFixture(t, dataDir, items)

	table := model.NewChangesetTable()
	csA := table.New(model.RevisionChangesetKind, 0, 1, 2)
	csB := table.New(model.RevisionChangesetKind, 0, 3)
	if err := writeChangesetStore(dataDir, table); err != nil {
		t.Fatalf("writeChangesetStore: %v", err)
	}

	itemChangeset := map[model.ItemID]model.ChangesetID{1: csA.ID, 2: csA.ID, 3: csB.ID}
	if err := saveGob(filepath.Join(dataDir, fileItemChangesetMap), itemChangeset); err != nil {
		t.Fatalf("saveGob: %v", err)
	}

	ctrl := control.New(false)
	defer ctrl.Close()

	p := NewBreakRevisionChangesetCyclesPass()
	if err := p.Run(ctrl, dataDir); err != nil {
		t.Fatalf("Run: %v", err)
	}

	finalTable, err := readChangesetStore(dataDir)
	if err != nil {
		t.Fatalf("readChangesetStore: %v", err)
	}
	var finalMap map[model.ItemID]model.ChangesetID
	if err := loadGob(filepath.Join(dataDir, fileItemChangesetMap), &finalMap); err != nil {
		t.Fatalf("loadGob: %v", err)
	}

	if finalMap[1] == finalMap[2] {
		t.Errorf("items 1 and 2 should have landed in different changesets after the split, both got %d", finalMap[1])
	}

	isRevision := func(id model.ChangesetID) bool {
		cs := finalTable.Lookup(id)
		return cs != nil && cs.Kind == model.RevisionChangesetKind
	}
	g := buildChangesetGraph(items, finalMap, isRevision)
	_, remaining := g.TopologicalSort(func(a, b model.ChangesetID) bool { return a < b })
	if len(remaining) != 0 {
		t.Errorf("expected the changeset graph to be acyclic after Run, got remaining=%v", remaining)
	}
}

func TestBreakRevisionChangesetCyclesPassName(t *testing.T) {
	if NewBreakRevisionChangesetCyclesPass().Name() != "BreakRevisionChangesetCycles" {
		t.Errorf("Name: got %q", NewBreakRevisionChangesetCyclesPass().Name())
	}
}
