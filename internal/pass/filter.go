package pass

import (
	"fmt"
	"path/filepath"
	"sort"

	"gitlab.com/esr/cvs2svn/internal/checkout"
	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/model"
	"gitlab.com/esr/cvs2svn/internal/store"
)

// FilterSymbolsPass applies each symbol's CollateSymbols classification to
// the item set, picks each symbol's project-wide preferred parent line of
// development, computes per-revision opens/closes, and flattens the
// surviving items into the two sortable streams the Sort pass consumes
// (SPEC_FULL.md §4.4).
type FilterSymbolsPass struct{}

func NewFilterSymbolsPass() *FilterSymbolsPass { return &FilterSymbolsPass{} }

func (p *FilterSymbolsPass) Name() string { return "FilterSymbols" }

func (p *FilterSymbolsPass) Run(ctrl *control.Control, dataDir string) error {
	var symbolList []*model.Symbol
	if err := loadGob(filepath.Join(dataDir, fileSymbols), &symbolList); err != nil {
		return err
	}
	symbols := model.LoadSymbolTable(symbolList)

	items, err := loadAllItems(dataDir)
	if err != nil {
		return err
	}
	texts, err := checkout.Load(filepath.Join(dataDir, fileCheckoutCache))
	if err != nil {
		return err
	}

	excluded := make(map[model.SymbolID]bool)
	for _, s := range symbolList {
		if s.Classification == model.Excluded {
			excluded[s.ID] = true
		}
	}

	// Drop items belonging to excluded symbols: CVSBranch/CVSTag items for
	// an excluded symbol, and CVSRevisions whose LOD is an excluded branch.
	var dropped int
	for id, it := range items {
		switch it.Kind {
		case model.BranchItem, model.TagItem:
			if excluded[it.Symbol] {
				delete(items, id)
				dropped++
			}
		case model.RevisionItem:
			if it.LOD != model.NoSymbol && excluded[it.LOD] {
				delete(items, id)
				texts.Exclude(id)
				dropped++
			}
		}
	}
	repairChains(items)

	// Reinterpret remaining branch/tag items whose classification disagrees
	// with their recorded role.
	var reinterpreted int
	for _, it := range items {
		if it.Kind != model.BranchItem && it.Kind != model.TagItem {
			continue
		}
		sym := symbols.ByID(it.Symbol)
		if sym == nil {
			continue
		}
		want := model.TagItem
		if sym.IsBranch() {
			want = model.BranchItem
		}
		if it.Kind != want {
			it.Kind = want
			reinterpreted++
		}
	}

	adjusted := pickPreferredParents(items, symbols)

	// Opens/closes: a symbol opens at its Source revision, and closes at
	// that revision's successor on the same line of development (the
	// commit that overwrote the state the symbol copied).
	for _, it := range items {
		if it.Kind != model.BranchItem && it.Kind != model.TagItem {
			continue
		}
		src, ok := items[it.Source]
		if !ok {
			continue
		}
		src.Opens = append(src.Opens, it.Symbol)
		if succ, ok := items[src.Successor]; ok {
			succ.Closes = append(succ.Closes, it.Symbol)
		}
	}

	if err := saveAllItems(dataDir, items); err != nil {
		return err
	}
	if err := texts.Save(filepath.Join(dataDir, fileCheckoutCache)); err != nil {
		return err
	}

	if err := p.emitStreams(dataDir, items); err != nil {
		return err
	}

	ctrl.Logit(control.LogFilter, "FilterSymbols: dropped %d items, reinterpreted %d, sprout-adjusted %d", dropped, reinterpreted, adjusted)
	return nil
}

// pickPreferredParents implements SPEC_FULL.md §4.4 bullet 3. For every
// surviving CVSBranch it consults its symbol's possible-parents histogram
// (built during Collect, §4.1) and compares the project-wide preferred
// line of development against the line this particular file actually
// forked from. When they disagree it records a sprout-adjustment edge
// (Item.SproutSource) pointing at the revision that was current on the
// preferred line at the moment this file's branch was cut, so the
// dependency graph still orders this branch's changeset after the
// project's chosen parent commits even though the file's own history
// forked somewhere else.
func pickPreferredParents(items map[model.ItemID]*model.Item, symbols *model.SymbolTable) int {
	type fileLOD struct {
		file model.PathID
		lod  model.SymbolID
	}
	byFileLOD := make(map[fileLOD][]*model.Item)
	for _, it := range items {
		if it.Kind != model.RevisionItem {
			continue
		}
		key := fileLOD{it.File, it.LOD}
		byFileLOD[key] = append(byFileLOD[key], it)
	}
	for _, revs := range byFileLOD {
		sort.Slice(revs, func(i, j int) bool { return revs[i].Timestamp < revs[j].Timestamp })
	}

	var adjusted int
	for _, it := range items {
		if it.Kind != model.BranchItem {
			continue
		}
		sym := symbols.ByID(it.Symbol)
		if sym == nil {
			continue
		}
		preferred, ok := sym.PreferredParent()
		if !ok || preferred == it.LOD {
			continue
		}
		src, ok := items[it.Source]
		if !ok {
			continue
		}
		candidate := nearestRevisionAtOrBefore(byFileLOD[fileLOD{it.File, preferred}], src.Timestamp)
		if candidate == model.NoItem {
			continue
		}
		it.SproutSource = candidate
		adjusted++
	}
	return adjusted
}

// nearestRevisionAtOrBefore returns the id of the last revision in revs
// (sorted oldest first) whose timestamp does not exceed ts, or NoItem if
// revs has no such revision (the preferred line didn't exist yet in this
// file at the relevant time).
func nearestRevisionAtOrBefore(revs []*model.Item, ts int64) model.ItemID {
	best := model.NoItem
	for _, r := range revs {
		if r.Timestamp > ts {
			break
		}
		best = r.ID
	}
	return best
}

func (p *FilterSymbolsPass) emitStreams(dataDir string, items map[model.ItemID]*model.Item) error {
	revWriter, err := store.CreateWriter(filepath.Join(dataDir, fileRevisions))
	if err != nil {
		return err
	}
	symWriter, err := store.CreateWriter(filepath.Join(dataDir, fileSymbolStream))
	if err != nil {
		revWriter.Abort()
		return err
	}

	for id, it := range items {
		switch it.Kind {
		case model.RevisionItem:
			key := fmt.Sprintf("%020d:%020d", it.Metadata, it.Timestamp)
			if err := revWriter.Write(store.Record{Key: key, Payload: fmt.Sprintf("%d", id)}); err != nil {
				revWriter.Abort()
				symWriter.Abort()
				return err
			}
		case model.BranchItem, model.TagItem:
			key := fmt.Sprintf("%020d", it.Symbol)
			if err := symWriter.Write(store.Record{Key: key, Payload: fmt.Sprintf("%d", id)}); err != nil {
				revWriter.Abort()
				symWriter.Abort()
				return err
			}
		}
	}

	if err := revWriter.Commit(); err != nil {
		symWriter.Abort()
		return err
	}
	return symWriter.Commit()
}

// repairChains severs a revision's Predecessor link (sets it to NoItem) when
// that predecessor has been deleted from the map, and strips dangling ids
// from Branches/Shadows lists. Successor links are left as they are.
func repairChains(items map[model.ItemID]*model.Item) {
	for _, it := range items {
		if it.Kind != model.RevisionItem {
			continue
		}
		for !isLive(items, it.Predecessor) && it.Predecessor != model.NoItem {
			it.Predecessor = predecessorOf(items, it.Predecessor)
		}
	}
	for _, it := range items {
		it.Branches = filterLive(items, it.Branches)
		it.Shadows = filterLive(items, it.Shadows)
	}
}

func isLive(items map[model.ItemID]*model.Item, id model.ItemID) bool {
	if id == model.NoItem {
		return true
	}
	_, ok := items[id]
	return ok
}

func predecessorOf(items map[model.ItemID]*model.Item, id model.ItemID) model.ItemID {
	// id is known missing from items; its predecessor cannot be recovered
	// once deleted, so the chain is simply severed here.
	return model.NoItem
}

func filterLive(items map[model.ItemID]*model.Item, ids []model.ItemID) []model.ItemID {
	if len(ids) == 0 {
		return ids
	}
	out := ids[:0]
	for _, id := range ids {
		if isLive(items, id) {
			out = append(out, id)
		}
	}
	return out
}

func loadAllItems(dataDir string) (map[model.ItemID]*model.Item, error) {
	reader, err := store.OpenKeyedReader(filepath.Join(dataDir, fileItems))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	items := make(map[model.ItemID]*model.Item)
	for _, id := range reader.IDs() {
		data, ok, err := reader.Get(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		it, err := model.DecodeItem(data)
		if err != nil {
			return nil, err
		}
		items[it.ID] = it
	}
	return items, nil
}

func saveAllItems(dataDir string, items map[model.ItemID]*model.Item) error {
	writer, err := store.CreateKeyedWriter(filepath.Join(dataDir, fileItems))
	if err != nil {
		return err
	}
	for id, it := range items {
		data, err := model.EncodeItem(it)
		if err != nil {
			writer.Abort()
			return err
		}
		if err := writer.Put(uint64(id), data); err != nil {
			writer.Abort()
			return err
		}
	}
	return writer.Commit()
}
