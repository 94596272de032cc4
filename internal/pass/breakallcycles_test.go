package pass

import (
	"path/filepath"
	"testing"

	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/model"
)

func TestLargestSplittableChangesetSkipsNonSplittable(t *testing.T) {
	table := model.NewChangesetTable()
	revCS := table.New(model.RevisionChangesetKind, 0, 1, 2, 3, 4, 5) // bigger, but not splittable here
	symCS := table.New(model.SymbolChangesetKind, 1, 6, 7)

	splittable := func(id model.ChangesetID) bool {
		cs := table.Lookup(id)
		return cs != nil && cs.Kind == model.SymbolChangesetKind
	}

	got := largestSplittableChangeset([]model.ChangesetID{revCS.ID, symCS.ID}, table, splittable)
	if got == nil || got.ID != symCS.ID {
		t.Errorf("largestSplittableChangeset should only ever pick a symbol changeset, got %v", got)
	}
}

func TestLargestSplittableChangesetNoneEligible(t *testing.T) {
	table := model.NewChangesetTable()
	revCS := table.New(model.RevisionChangesetKind, 0, 1)
	splittable := func(model.ChangesetID) bool { return false }
	if got := largestSplittableChangeset([]model.ChangesetID{revCS.ID}, table, splittable); got != nil {
		t.Errorf("expected nil when nothing is splittable, got %v", got)
	}
}

func TestBreakAllChangesetCyclesPassBreaksSymbolCycle(t *testing.T) {
	dataDir := t.TempDir()

	items := map[model.ItemID]*model.Item{
		1: {ID: 1, Kind: model.RevisionItem, Timestamp: 10, Predecessor: model.NoItem},
		2: {ID: 2, Kind: model.BranchItem, Timestamp: 30, Predecessor: model.NoItem},
		3: {ID: 3, Kind: model.BranchItem, Timestamp: 20, Predecessor: 1}, // csA -> csSym
		4: {ID: 4, Kind: model.RevisionItem, Timestamp: 25, Predecessor: 2}, // csSym -> csA
	}
	writeItemsFixture(t, dataDir, items)

	table := model.NewChangesetTable()
	csA := table.New(model.RevisionChangesetKind, 0, 1, 4)
	csSym := table.New(model.SymbolChangesetKind, 1, 2, 3)
	if err := writeChangesetStore(dataDir, table); err != nil {
		t.Fatalf("writeChangesetStore: %v", err)
	}

	itemChangeset := map[model.ItemID]model.ChangesetID{1: csA.ID, 4: csA.ID, 2: csSym.ID, 3: csSym.ID}
	if err := saveGob(filepath.Join(dataDir, fileItemChangesetMap), itemChangeset); err != nil {
		t.Fatalf("saveGob: %v", err)
	}

	ctrl := control.New(false)
	defer ctrl.Close()

	if err := NewBreakAllChangesetCyclesPass().Run(ctrl, dataDir); err != nil {
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

	includeAll := func(model.ChangesetID) bool { return true }
	g := buildChangesetGraph(items, finalMap, includeAll)
	_, remaining := g.TopologicalSort(func(a, b model.ChangesetID) bool { return a < b })
	if len(remaining) != 0 {
		t.Errorf("expected the full changeset graph to be acyclic after Run, got remaining=%v", remaining)
	}
	if finalTable.Lookup(csA.ID) == nil {
		t.Errorf("the revision changeset should survive untouched")
	}
}
