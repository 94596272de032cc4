package pass

import (
	"path/filepath"
	"testing"

	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/model"
	"gitlab.com/esr/cvs2svn/internal/store"
)

func TestSplitDraftNoInternalDependency(t *testing.T) {
	items := map[model.ItemID]*model.Item{
		1: {ID: 1, Predecessor: model.NoItem},
		2: {ID: 2, Predecessor: model.NoItem},
	}
	got := splitDraft([]model.ItemID{1, 2}, items)
	if len(got) != 1 || len(got[0]) != 2 {
		t.Errorf("a draft with no internal dependency should not be split, got %v", got)
	}
}

func TestSplitDraftBreaksInternalDependency(t *testing.T) {
	// Item 2 depends on item 1, both in the same draft: this must split.
	items := map[model.ItemID]*model.Item{
		1: {ID: 1, Predecessor: model.NoItem},
		2: {ID: 2, Predecessor: 1},
	}
	got := splitDraft([]model.ItemID{1, 2}, items)
	if len(got) != 2 {
		t.Fatalf("expected the draft to split into 2 pieces, got %v", got)
	}
	if len(got[0]) != 1 || got[0][0] != 1 || len(got[1]) != 1 || got[1][0] != 2 {
		t.Errorf("unexpected split result: %v", got)
	}
}

func TestSplitDraftSingleMemberNeverSplits(t *testing.T) {
	got := splitDraft([]model.ItemID{1}, map[model.ItemID]*model.Item{1: {ID: 1}})
	if len(got) != 1 || len(got[0]) != 1 {
		t.Errorf("a single-member draft should pass through unchanged, got %v", got)
	}
}

func writeStreamFixture(t *testing.T, dataDir, name string, records []store.Record) {
	t.Helper()
	w, err := store.CreateWriter(filepath.Join(dataDir, name))
	if err != nil {
		t.Fatalf("CreateWriter(%s): %v", name, err)
	}
	for _, r := range records {
		if err := w.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestInitializeChangesetsPassGroupsByMetadataAndThreshold(t *testing.T) {
	dataDir := t.TempDir()

	items := map[model.ItemID]*model.Item{
		1: {ID: 1, Kind: model.RevisionItem, Metadata: 1, Timestamp: 100, Predecessor: model.NoItem},
		2: {ID: 2, Kind: model.RevisionItem, Metadata: 1, Timestamp: 150, Predecessor: model.NoItem}, // within threshold, same author
		3: {ID: 3, Kind: model.RevisionItem, Metadata: 1, Timestamp: 500, Predecessor: model.NoItem}, // gap exceeds threshold
		4: {ID: 4, Kind: model.TagItem, Symbol: 7, Source: 1},
	}
	writeItemsFixture(t, dataDir, items)

	// The sorted revision stream, keyed "metadata:timestamp", in sorted order.
	writeStreamFixture(t, dataDir, fileRevisionsSorted, []store.Record{
		{Key: "00000000000000000001:00000000000000000100", Payload: "1"},
		{Key: "00000000000000000001:00000000000000000150", Payload: "2"},
		{Key: "00000000000000000001:00000000000000000500", Payload: "3"},
	})
	writeStreamFixture(t, dataDir, fileSymbolStreamSorted, []store.Record{
		{Key: "00000000000000000007", Payload: "4"},
	})

	ctrl := control.New(false)
	defer ctrl.Close()

	p := NewInitializeChangesetsPass(300)
	if err := p.Run(ctrl, dataDir); err != nil {
		t.Fatalf("Run: %v", err)
	}

	table, err := readChangesetStore(dataDir)
	if err != nil {
		t.Fatalf("readChangesetStore: %v", err)
	}
	var revisionChangesets, symbolChangesets int
	for _, cs := range table.All() {
		switch cs.Kind {
		case model.RevisionChangesetKind:
			revisionChangesets++
		case model.SymbolChangesetKind:
			symbolChangesets++
			if cs.Symbol != 7 {
				t.Errorf("symbol changeset should carry symbol id 7, got %d", cs.Symbol)
			}
		}
	}
	if revisionChangesets != 2 {
		t.Errorf("expected 2 revision changesets (items 1+2 grouped, item 3 separated by the threshold gap), got %d", revisionChangesets)
	}
	if symbolChangesets != 1 {
		t.Errorf("expected 1 symbol changeset, got %d", symbolChangesets)
	}

	var itemChangeset map[model.ItemID]model.ChangesetID
	if err := loadGob(filepath.Join(dataDir, fileItemChangesetMap), &itemChangeset); err != nil {
		t.Fatalf("loadGob: %v", err)
	}
	if itemChangeset[1] != itemChangeset[2] {
		t.Errorf("items 1 and 2 should share a changeset, got %d and %d", itemChangeset[1], itemChangeset[2])
	}
	if itemChangeset[3] == itemChangeset[1] {
		t.Errorf("item 3 should be in a separate changeset from items 1/2 due to the threshold gap")
	}
}
