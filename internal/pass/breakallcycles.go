package pass

import (
	"path/filepath"

	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/cvserrors"
	"gitlab.com/esr/cvs2svn/internal/model"
)

// BreakAllChangesetCyclesPass loads the full graph (the frozen
// OrderedChangeset chain plus all symbol changesets) and breaks any
// remaining cycles by splitting symbol changesets only: revision order is
// already frozen, and a CVSTag changeset can never be on a cycle (nothing
// can depend on a tag) so only CVSBranch-bearing symbol changesets are ever
// chosen as a split target (SPEC_FULL.md §4.10).
type BreakAllChangesetCyclesPass struct{}

func NewBreakAllChangesetCyclesPass() *BreakAllChangesetCyclesPass {
	return &BreakAllChangesetCyclesPass{}
}

func (p *BreakAllChangesetCyclesPass) Name() string { return "BreakAllChangesetCycles" }

func (p *BreakAllChangesetCyclesPass) Run(ctrl *control.Control, dataDir string) error {
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
	splittable := func(id model.ChangesetID) bool {
		cs := changesets.Lookup(id)
		return cs != nil && cs.Kind == model.SymbolChangesetKind
	}

	var splits int
	for i := 0; i < maxCycleBreakIterations; i++ {
		g := buildChangesetGraph(items, itemChangeset, includeAll)
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
			ctrl.Logit(control.LogCycle, "BreakAllChangesetCycles: acyclic after %d splits", splits)
			return nil
		}
		cycle, err := g.ExtractCycle(remaining)
		if err != nil {
			return err
		}
		target := largestSplittableChangeset(cycle, changesets, splittable)
		if target == nil || len(target.Items()) <= 1 {
			return &cvserrors.UnbreakableCycleError{Changesets: toU64(cycle)}
		}
		bisectChangeset(changesets, itemChangeset, items, target)
		splits++
	}
	return &cvserrors.UnbreakableCycleError{Changesets: nil}
}

func largestSplittableChangeset(ids []model.ChangesetID, table *model.ChangesetTable, splittable func(model.ChangesetID) bool) *model.Changeset {
	var best *model.Changeset
	for _, id := range ids {
		if !splittable(id) {
			continue
		}
		cs := table.Lookup(id)
		if cs == nil {
			continue
		}
		if best == nil || cs.Members.Len() > best.Members.Len() {
			best = cs
		}
	}
	return best
}
