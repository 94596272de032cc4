package pass

import (
	"path/filepath"

	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/store"
)

// SortPass runs the external merge sort (SPEC_FULL.md §4.5) over both
// FilterSymbols streams: revisions by (metadata id, timestamp), symbols by
// symbol id. Both streams already carry their sort key as the Record.Key
// (FilterSymbols built it that way), so this pass is a thin wrapper around
// store.External.
type SortPass struct {
	Options store.SortOptions
}

func NewSortPass(opts store.SortOptions) *SortPass {
	return &SortPass{Options: opts}
}

func (p *SortPass) Name() string { return "Sort" }

func (p *SortPass) Run(ctrl *control.Control, dataDir string) error {
	if err := store.External(
		filepath.Join(dataDir, fileRevisions),
		filepath.Join(dataDir, fileRevisionsSorted),
		p.Options,
	); err != nil {
		return err
	}
	if err := store.External(
		filepath.Join(dataDir, fileSymbolStream),
		filepath.Join(dataDir, fileSymbolStreamSorted),
		p.Options,
	); err != nil {
		return err
	}
	ctrl.Logit(control.LogFilter, "Sort: revision and symbol streams sorted")
	return nil
}
