package pass

import (
	"path/filepath"
	"strconv"

	"gitlab.com/esr/cvs2svn/internal/checkout"
	"gitlab.com/esr/cvs2svn/internal/model"
	"gitlab.com/esr/cvs2svn/internal/store"
)

// The functions below re-export just enough of the pass package's
// checkpoint-reading machinery for an out-of-process inspector
// (cmd/cvs2svn-shell) to browse a data directory's intermediate state
// without duplicating knowledge of the on-disk file layout.

// LoadItems reads every surviving Item from dataDir's item store, whatever
// pass last wrote it.
func LoadItems(dataDir string) (map[model.ItemID]*model.Item, error) {
	return loadAllItems(dataDir)
}

// LoadChangesets reads dataDir's changeset store, if InitializeChangesets
// or a later pass has run.
func LoadChangesets(dataDir string) (*model.ChangesetTable, error) {
	return readChangesetStore(dataDir)
}

// LoadSymbols reads dataDir's symbol table.
func LoadSymbols(dataDir string) ([]*model.Symbol, error) {
	var symbols []*model.Symbol
	if err := loadGob(filepath.Join(dataDir, fileSymbols), &symbols); err != nil {
		return nil, err
	}
	return symbols, nil
}

// CommitEntry is one row of the FinalTopologicalSort commit order.
type CommitEntry struct {
	Changeset model.ChangesetID
	Timestamp int64
}

// LoadCommitOrder reads the final commit order FinalTopologicalSort wrote,
// in commit order.
func LoadCommitOrder(dataDir string) ([]CommitEntry, error) {
	reader, err := store.OpenReader(filepath.Join(dataDir, fileCommitOrder))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var entries []CommitEntry
	for {
		rec, err := reader.Next()
		if err != nil {
			break
		}
		id, err := strconv.ParseUint(rec.Key, 10, 64)
		if err != nil {
			continue
		}
		ts, err := strconv.ParseInt(rec.Payload, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, CommitEntry{Changeset: model.ChangesetID(id), Timestamp: ts})
	}
	return entries, nil
}

// LoadCheckoutCache reads dataDir's checkout-cache snapshot, for a caller
// that wants to reconstruct revision content outside of Output.
func LoadCheckoutCache(dataDir string) (*checkout.Cache, error) {
	return checkout.Load(filepath.Join(dataDir, fileCheckoutCache))
}

// PassNames returns the registered pipeline's pass names, in order,
// without requiring the caller to construct a Manager.
func PassNames() []string {
	return []string{
		"Collect", "CleanMetadata", "CollateSymbols", "FilterSymbols", "Sort",
		"InitializeChangesets", "BreakRevisionChangesetCycles", "RevisionTopologicalSort",
		"BreakSymbolChangesetCycles", "BreakAllChangesetCycles", "FinalTopologicalSort", "Output",
	}
}
