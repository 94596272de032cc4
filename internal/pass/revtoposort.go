package pass

import (
	"fmt"
	"path/filepath"

	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/model"
)

// RevisionTopologicalSortPass fixes the commit order of the now-acyclic
// revision-changeset graph (timestamp tie-break) and freezes it by
// rewriting every RevisionChangeset into an OrderedChangeset whose only
// dependencies are its immediate chain neighbors (SPEC_FULL.md §4.8).
type RevisionTopologicalSortPass struct{}

func NewRevisionTopologicalSortPass() *RevisionTopologicalSortPass {
	return &RevisionTopologicalSortPass{}
}

func (p *RevisionTopologicalSortPass) Name() string { return "RevisionTopologicalSort" }

func (p *RevisionTopologicalSortPass) Run(ctrl *control.Control, dataDir string) error {
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

	isRevision := func(id model.ChangesetID) bool {
		cs := changesets.Lookup(id)
		return cs != nil && cs.Kind == model.RevisionChangesetKind
	}
	g := buildChangesetGraph(items, itemChangeset, isRevision)
	order, remaining := g.TopologicalSort(func(a, b model.ChangesetID) bool {
		return timestampOf(changesets, items, a) < timestampOf(changesets, items, b)
	})
	if len(remaining) > 0 {
		return fmt.Errorf("RevisionTopologicalSort: %d revision changesets still cyclic; BreakRevisionChangesetCycles did not converge", len(remaining))
	}

	for i, id := range order {
		cs := changesets.Lookup(id)
		if cs == nil {
			continue
		}
		var pred, succ model.ChangesetID
		if i > 0 {
			pred = order[i-1]
		} else {
			pred = model.NoChangeset
		}
		if i < len(order)-1 {
			succ = order[i+1]
		} else {
			succ = model.NoChangeset
		}
		cs.Freeze(pred, succ)
	}

	if err := writeChangesetStore(dataDir, changesets); err != nil {
		return err
	}
	if err := saveGob(filepath.Join(dataDir, fileRevisionChain), order); err != nil {
		return err
	}

	ctrl.Logit(control.LogTopology, "RevisionTopologicalSort: %d changesets frozen into commit order", len(order))
	return nil
}
