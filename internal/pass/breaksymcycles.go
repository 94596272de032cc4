package pass

import (
	"path/filepath"

	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/cvserrors"
	"gitlab.com/esr/cvs2svn/internal/model"
)

// BreakSymbolChangesetCyclesPass applies the same stall-and-split strategy
// as BreakRevisionChangesetCycles, restricted to edges between symbol
// changesets (SPEC_FULL.md §4.9). A single symbol may end up split across
// several SymbolChangesets committed at different points; that is allowed.
type BreakSymbolChangesetCyclesPass struct{}

func NewBreakSymbolChangesetCyclesPass() *BreakSymbolChangesetCyclesPass {
	return &BreakSymbolChangesetCyclesPass{}
}

func (p *BreakSymbolChangesetCyclesPass) Name() string { return "BreakSymbolChangesetCycles" }

func (p *BreakSymbolChangesetCyclesPass) Run(ctrl *control.Control, dataDir string) error {
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

	isSymbol := func(id model.ChangesetID) bool {
		cs := changesets.Lookup(id)
		return cs != nil && cs.Kind == model.SymbolChangesetKind
	}

	var splits int
	for i := 0; i < maxCycleBreakIterations; i++ {
		g := buildChangesetGraph(items, itemChangeset, isSymbol)
		_, remaining := g.TopologicalSort(func(a, b model.ChangesetID) bool {
			return timestampOf(changesets, items, a) < timestampOf(changesets, items, b)
		})
		if len(remaining) == 0 {
			if err := writeChangesetStore(dataDir, changesets); err != nil {
				return err
			}
			if err := saveGob(filepath.Join(dataDir, fileItemChangesetMap), itemChangeset); err != nil {
				return err
			}
			ctrl.Logit(control.LogCycle, "BreakSymbolChangesetCycles: acyclic after %d splits", splits)
			return nil
		}
		cycle, err := g.ExtractCycle(remaining)
		if err != nil {
			return err
		}
		target := largestChangeset(cycle, changesets)
		if target == nil || len(target.Items()) <= 1 {
			return &cvserrors.UnbreakableCycleError{Changesets: toU64(cycle)}
		}
		bisectChangeset(changesets, itemChangeset, items, target)
		splits++
	}
	return &cvserrors.UnbreakableCycleError{Changesets: nil}
}
