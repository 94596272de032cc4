package pass

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	cmap "github.com/orcaman/concurrent-map"

	"gitlab.com/esr/cvs2svn/internal/checkout"
	"gitlab.com/esr/cvs2svn/internal/config"
	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/model"
	"gitlab.com/esr/cvs2svn/internal/rcs"
	"gitlab.com/esr/cvs2svn/internal/store"
)

// CollectPass walks every configured project's CVS repository, parses
// each RCS file, normalizes its revision graph (SPEC_FULL.md §4.1), and
// builds the item/symbol/metadata tables every later pass reads from.
//
// Per-file parsing is embarrassingly parallel and is the one place in the
// pipeline that uses goroutines: Run dispatches every discovered RCS file
// to a bounded worker pool, which parses and normalizes each file
// independently and tallies its branch/tag symbol occurrences directly
// into a concurrent-map (safe to update from any worker, with no
// ordering requirement since the tally is just a sum). Only the parsed
// graph itself — the part later interning depends on — travels back to a
// single accumulating goroutine (Run itself) that owns paths/symbols
// /metadata/items/texts and applies results in dispatch order, so the
// item store's on-disk layout stays deterministic regardless of worker
// scheduling. See SPEC_FULL.md §5's concurrency model.
type CollectPass struct {
	Config *config.Config

	paths   *model.PathTable
	symbols *model.SymbolTable
	metas   *model.MetadataTable
	items   *model.ItemTable
	texts   *checkout.Cache
}

// NewCollectPass returns a CollectPass configured from cfg.
func NewCollectPass(cfg *config.Config) *CollectPass {
	return &CollectPass{
		Config:  cfg,
		paths:   model.NewPathTable(),
		symbols: model.NewSymbolTable(),
		metas:   model.NewMetadataTable(),
		items:   model.NewItemTable(),
		texts:   checkout.New(),
	}
}

func (p *CollectPass) Name() string { return "Collect" }

// fileTask is one RCS file queued for a worker, tagged with its dispatch
// index so the accumulator can restore dispatch order from the workers'
// out-of-order completions.
type fileTask struct {
	index     int
	projectID model.ProjectID
	repoRoot  string
	path      string
}

// fileOutcome is a worker's result for one fileTask.
type fileOutcome struct {
	index     int
	projectID model.ProjectID
	repoRoot  string
	path      string
	graph     *rcs.Graph
	err       error
}

// symbolTally is a concurrent-map value: running branch/tag occurrence
// counts for one (project, symbol name) pair, accumulated across whatever
// files workers happen to be parsing concurrently.
type symbolTally struct {
	Branch int
	Tag    int
}

// Run implements Pass.
func (p *CollectPass) Run(ctrl *control.Control, dataDir string) error {
	writer, err := store.CreateKeyedWriter(filepath.Join(dataDir, fileItems))
	if err != nil {
		return err
	}

	tallies := cmap.New()

	var tasks []fileTask
	for projIdx, pc := range p.Config.Projects {
		projectID := model.ProjectID(projIdx + 1)
		err := filepath.Walk(pc.CVSRepositoryPath, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || !strings.HasSuffix(path, ",v") {
				return nil
			}
			tasks = append(tasks, fileTask{index: len(tasks), projectID: projectID, repoRoot: pc.CVSRepositoryPath, path: path})
			return nil
		})
		if err != nil {
			writer.Abort()
			return fmt.Errorf("collect: walking %s: %w", pc.CVSRepositoryPath, err)
		}
	}

	outcomes := p.parseConcurrently(ctrl, tasks, tallies)

	var skipped int
	pending := make(map[int]*fileOutcome, len(tasks))
	next := 0
	drain := func(o *fileOutcome) error {
		ctrl.Baton().Twirl()
		if o.err != nil {
			ctrl.Logit(control.LogCollect, "skipping %s: %v", o.path, o.err)
			skipped++
			return nil
		}
		return p.accumulate(o.projectID, o.repoRoot, o.path, o.graph)
	}
	for o := range outcomes {
		if ctrl.GetAbort() {
			writer.Abort()
			return fmt.Errorf("collect: aborted")
		}
		oc := o
		pending[oc.index] = &oc
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := drain(ready); err != nil {
				writer.Abort()
				return err
			}
			next++
		}
	}

	p.applyTallies(tallies)

	for _, it := range p.items.All() {
		data, err := model.EncodeItem(it)
		if err != nil {
			writer.Abort()
			return err
		}
		if err := writer.Put(uint64(it.ID), data); err != nil {
			writer.Abort()
			return err
		}
	}
	if err := writer.Commit(); err != nil {
		return err
	}

	if err := saveGob(filepath.Join(dataDir, fileSymbols), p.symbols.All()); err != nil {
		return err
	}
	if err := saveGob(filepath.Join(dataDir, fileMetadata), p.metas.All()); err != nil {
		return err
	}
	if err := saveGob(filepath.Join(dataDir, filePaths), p.paths.All()); err != nil {
		return err
	}
	if err := p.texts.Save(filepath.Join(dataDir, fileCheckoutCache)); err != nil {
		return err
	}

	ctrl.Logit(control.LogCollect, "collected %d items, skipped %d files", len(p.items.All()), skipped)
	return nil
}

// parseConcurrently dispatches tasks to a bounded pool of parser
// goroutines (GOMAXPROCS workers) and returns a channel of their results.
// Each worker also tallies its file's branch/tag symbol occurrences
// directly into tallies as it parses, since that's a commutative count
// with no ordering dependency.
func (p *CollectPass) parseConcurrently(ctrl *control.Control, tasks []fileTask, tallies cmap.ConcurrentMap) <-chan fileOutcome {
	results := make(chan fileOutcome, len(tasks))
	work := make(chan fileTask)

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > len(tasks) && len(tasks) > 0 {
		workers = len(tasks)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range work {
				if ctrl.GetAbort() {
					results <- fileOutcome{index: t.index, projectID: t.projectID, repoRoot: t.repoRoot, path: t.path, err: fmt.Errorf("aborted")}
					continue
				}
				g, err := parseRCSFile(t.path)
				if err == nil {
					tallySymbols(t.projectID, g, tallies)
				}
				results <- fileOutcome{index: t.index, projectID: t.projectID, repoRoot: t.repoRoot, path: t.path, graph: g, err: err}
			}
		}()
	}

	go func() {
		for _, t := range tasks {
			work <- t
		}
		close(work)
		wg.Wait()
		close(results)
	}()

	return results
}

// parseRCSFile parses and normalizes one RCS file. It touches no shared
// state, so it's safe to call from any number of concurrent workers.
func parseRCSFile(rcsPath string) (*rcs.Graph, error) {
	data, err := os.ReadFile(rcsPath)
	if err != nil {
		return nil, fmt.Errorf("reading: %w", err)
	}
	sink, g := rcs.NewCollectingSink()
	var reader rcs.FileReader
	if err := reader.Parse(data, sink); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	return g, nil
}

// tallySymbols counts g's branch and tag occurrences by symbolic name and
// upserts the deltas into tallies, keyed by "projectID:name". Mirrors the
// classification signals CollateSymbols later reads off model.Symbol's
// BranchCount/TagCount, computed here from the raw RCS graph instead of
// from items, since no model.Symbol exists yet at parse time.
func tallySymbols(projectID model.ProjectID, g *rcs.Graph, tallies cmap.ConcurrentMap) {
	for num, rev := range g.Revisions {
		for _, branchStart := range rev.Branches {
			branchNum := branchNumber(branchStart)
			name := symbolNameForRevision(g, branchNum, true)
			if name == "" {
				continue
			}
			upsertTally(tallies, projectID, name, 1, 0)
		}
		_ = num
	}
	for name, revNum := range g.Symbols {
		if branchNumber(revNum) != "" || g.Revisions[revNum] == nil {
			continue
		}
		if isBranchRevisionNumber(g, revNum) {
			continue
		}
		upsertTally(tallies, projectID, name, 0, 1)
	}
}

func upsertTally(tallies cmap.ConcurrentMap, projectID model.ProjectID, name string, branch, tag int) {
	key := fmt.Sprintf("%d:%s", projectID, name)
	tallies.Upsert(key, symbolTally{Branch: branch, Tag: tag}, func(exists bool, valueInMap, newValue interface{}) interface{} {
		delta := newValue.(symbolTally)
		if !exists {
			return delta
		}
		cur := valueInMap.(symbolTally)
		return symbolTally{Branch: cur.Branch + delta.Branch, Tag: cur.Tag + delta.Tag}
	})
}

// applyTallies seeds every symbol the concurrent tally observed into
// p.symbols, in a stable (project, name) order so symbol ids are assigned
// deterministically regardless of worker scheduling.
func (p *CollectPass) applyTallies(tallies cmap.ConcurrentMap) {
	type keyed struct {
		key string
		val symbolTally
	}
	var all []keyed
	for t := range tallies.IterBuffered() {
		all = append(all, keyed{key: t.Key, val: t.Val.(symbolTally)})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].key < all[j].key })
	for _, k := range all {
		var projIdx int
		var name string
		if _, err := fmt.Sscanf(k.key, "%d:", &projIdx); err != nil {
			continue
		}
		name = k.key[strings.Index(k.key, ":")+1:]
		sym := p.symbols.Intern(model.ProjectID(projIdx), name)
		sym.BranchCount += k.val.Branch
		sym.TagCount += k.val.Tag
	}
}

// accumulate applies one parsed file's graph to the shared tables: it is
// always called from the single goroutine draining Run's results channel,
// so everything it touches (p.paths, p.symbols, p.metas, p.items, p.texts)
// is mutated without synchronization.
func (p *CollectPass) accumulate(projectID model.ProjectID, repoRoot, rcsPath string, g *rcs.Graph) error {
	rcs.Normalize(g, p.Config.TrunkOnly)

	cvsPath := strings.TrimSuffix(relPath(repoRoot, rcsPath), ",v")
	cvsPath = strings.Replace(cvsPath, string(filepath.Separator)+"Attic"+string(filepath.Separator), string(filepath.Separator), 1)
	pathID := p.paths.Intern(projectID, filepath.ToSlash(cvsPath), false)

	revItems := make(map[string]*model.Item) // revision number -> its CVSRevision item

	// Trunk chain, oldest first: Head is the newest, .Next walks to older.
	var trunkOrder []string
	for cur := g.Head; cur != ""; {
		rev, ok := g.Revisions[cur]
		if !ok {
			break
		}
		trunkOrder = append(trunkOrder, cur)
		cur = rev.Next
	}
	for i, j := 0, len(trunkOrder)-1; i < j; i, j = i+1, j-1 {
		trunkOrder[i], trunkOrder[j] = trunkOrder[j], trunkOrder[i]
	}
	p.buildChain(projectID, pathID, model.NoSymbol, model.NoItem, g, trunkOrder, revItems, model.NoItem)

	// One chain per branch, forward from its first revision.
	for num, rev := range g.Revisions {
		for _, branchStart := range rev.Branches {
			branchNum := branchNumber(branchStart)
			symbolName := symbolNameForRevision(g, branchNum, true)
			if symbolName == "" {
				continue
			}
			sym := p.symbols.Intern(projectID, symbolName)
			var chain []string
			for cur := branchStart; cur != ""; {
				r, ok := g.Revisions[cur]
				if !ok {
					break
				}
				chain = append(chain, cur)
				cur = r.Next
			}
			parentItem := revItems[num]

			branch := p.items.New(model.BranchItem)
			branch.File = pathID
			branch.LOD = parentItemLOD(parentItem)
			branch.Symbol = sym.ID
			branch.Source = itemIDOrZero(parentItem)
			sym.VoteParent(branch.LOD)

			p.buildChain(projectID, pathID, sym.ID, branch.ID, g, chain, revItems, itemIDOrZero(parentItem))
			if parentItem != nil {
				parentItem.Branches = append(parentItem.Branches, branch.ID)
			}
			if branchRoot := revItems[branchStart]; branchRoot != nil {
				branch.Shadows = append(branch.Shadows, branchRoot.ID)
			}
		}
	}

	// Tags: every symbol whose target is a plain revision number (not a
	// branch number) becomes a CVSTag on that revision.
	for name, revNum := range g.Symbols {
		if branchNumber(revNum) != "" || g.Revisions[revNum] == nil {
			continue // handled as a branch above, or dangling
		}
		if isBranchRevisionNumber(g, revNum) {
			continue
		}
		sym := p.symbols.Intern(projectID, name)
		src := revItems[revNum]
		if src == nil {
			continue
		}
		tag := p.items.New(model.TagItem)
		tag.File = pathID
		tag.LOD = sym.ID
		tag.Symbol = sym.ID
		tag.Source = src.ID
	}

	return nil
}

func itemIDOrZero(it *model.Item) model.ItemID {
	if it == nil {
		return model.NoItem
	}
	return it.ID
}

// parentItemLOD returns the line-of-development a CVSBranch item forked
// from: the line its fork-point revision itself lives on.
func parentItemLOD(parent *model.Item) model.SymbolID {
	if parent == nil {
		return model.NoSymbol
	}
	return parent.LOD
}

// buildChain creates one CVSRevision item per revision number in order
// (oldest to newest), chaining Predecessor/Successor within the line of
// development lod, with the first item's Predecessor set to parent, and
// records each revision's reconstructable text in p.texts. forkParent is
// the CVSRevision item this chain branched from (model.NoItem for trunk),
// which anchors the forward delta chain a branch's own revisions are
// stored as (see the package doc on internal/checkout.Cache.RecordDelta).
func (p *CollectPass) buildChain(projectID model.ProjectID, pathID model.PathID, lod model.SymbolID, parent model.ItemID, g *rcs.Graph, order []string, revItems map[string]*model.Item, forkParent model.ItemID) {
	var prev model.ItemID = parent
	for _, num := range order {
		r := g.Revisions[num]
		it := p.items.New(model.RevisionItem)
		it.File = pathID
		it.LOD = lod
		it.Predecessor = prev
		it.Dead = r.IsDead()
		it.Timestamp = r.Date.Unix()

		digest := model.DigestKey(r.Author, r.Log, projectID, p.Config.CrossProjectCommits, symbolNameOrEmpty(lod, g), p.Config.CrossBranchCommits)
		it.Metadata = p.metas.Intern(digest, r.Author, r.Log)

		if prevItem := revItems[prevNum(order, num)]; prevItem != nil {
			prevItem.Successor = it.ID
		}
		revItems[num] = it
		prev = it.ID
	}
	if lod == model.NoSymbol {
		p.recordTrunkText(g, order, revItems)
	} else {
		p.recordBranchText(g, order, revItems, forkParent)
	}
}

// recordTrunkText walks order (oldest to newest) from the tip backward:
// RCS stores the head revision's full text literally under its own
// number, and every older trunk revision's own stored text is the reverse
// diff that reconstructs it by being applied to its immediate newer
// neighbor's already-reconstructed text.
func (p *CollectPass) recordTrunkText(g *rcs.Graph, order []string, revItems map[string]*model.Item) {
	for i := len(order) - 1; i >= 0; i-- {
		it := revItems[order[i]]
		if i == len(order)-1 {
			p.texts.RecordFullText(it.ID, g.Revisions[order[i]].Text)
		} else {
			newer := revItems[order[i+1]]
			p.texts.RecordDelta(it.ID, newer.ID, g.Revisions[order[i]].Text, true)
			p.texts.AddRef(newer.ID)
		}
		// Output fetches every surviving revision's content exactly once,
		// when it materializes the corresponding dumpfile node.
		p.texts.AddRef(it.ID)
	}
}

// recordBranchText walks order (oldest to newest, i.e. forward from the
// branch point): each branch revision's stored delta is a forward diff
// from its predecessor's text to its own, starting from forkParent's text
// at the branch's first revision.
func (p *CollectPass) recordBranchText(g *rcs.Graph, order []string, revItems map[string]*model.Item, forkParent model.ItemID) {
	prev := forkParent
	for _, num := range order {
		it := revItems[num]
		r := g.Revisions[num]
		if r.IsDelta {
			p.texts.RecordDelta(it.ID, prev, r.Text, false)
			p.texts.AddRef(prev)
		} else {
			p.texts.RecordFullText(it.ID, r.Text)
		}
		p.texts.AddRef(it.ID)
		prev = it.ID
	}
}

// symbolNameOrEmpty is a placeholder: the branch-name disambiguator for the
// metadata digest is resolved by the caller's symbol table in a later,
// simpler form (by id) once cross_branch_commits wiring lands in
// CleanMetadata; Collect only needs a stable per-LOD string here.
func symbolNameOrEmpty(lod model.SymbolID, g *rcs.Graph) string {
	if lod == model.NoSymbol {
		return ""
	}
	return fmt.Sprintf("%d", lod)
}

func prevNum(order []string, num string) string {
	for i, n := range order {
		if n == num && i > 0 {
			return order[i-1]
		}
	}
	return ""
}

func relPath(root, path string) string {
	r, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return r
}

func branchNumber(revisionNumber string) string {
	parts := strings.Split(revisionNumber, ".")
	if len(parts) <= 2 {
		return ""
	}
	return strings.Join(parts[:len(parts)-1], ".")
}

// isBranchRevisionNumber reports whether revNum names an actual
// on-the-chain revision that some other revision's Branches list also
// reaches as a branch point — i.e. revNum is a branch fork rather than an
// ordinary committed revision, so a symbol pointing at it is a branch tag.
func isBranchRevisionNumber(g *rcs.Graph, revNum string) bool {
	for _, r := range g.Revisions {
		for _, b := range r.Branches {
			if b == revNum {
				return true
			}
		}
	}
	return false
}

// symbolNameForRevision finds the symbolic name RCS associates with the
// branch containing branchNum, if any. wantBranch is always true here;
// kept as a parameter for readability at call sites.
func symbolNameForRevision(g *rcs.Graph, branchNum string, wantBranch bool) string {
	for name, revNum := range g.Symbols {
		if branchNumber(revNum) == branchNum || revNum == branchNum {
			return name
		}
		if normalized := stripMagicBranch(revNum); normalized == branchNum {
			return name
		}
	}
	return ""
}

// stripMagicBranch converts RCS's pre-5.7 magic-branch symbol encoding
// ("1.3.0.2") to the real branch number it denotes ("1.3.2").
func stripMagicBranch(revNum string) string {
	parts := strings.Split(revNum, ".")
	if len(parts) >= 2 && parts[len(parts)-2] == "0" {
		out := append(append([]string{}, parts[:len(parts)-2]...), parts[len(parts)-1])
		return strings.Join(out, ".")
	}
	return ""
}
