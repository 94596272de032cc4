package pass

import (
	"path/filepath"
	"regexp"

	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/cvserrors"
	"gitlab.com/esr/cvs2svn/internal/model"
	"gitlab.com/esr/cvs2svn/internal/store"
)

// CollateSymbolsPass classifies every symbol observed during Collect as
// Branch, Tag, or Excluded (SPEC_FULL.md §4.3), via an ordered strategy-rule
// chain: forced overrides first, then the usage-count heuristic.
type CollateSymbolsPass struct {
	ForcedBranches  []string
	ForcedTags      []string
	ExcludedSymbols []string
	SymbolDefault   string // "branch" or "tag", tie-break when counts are equal
}

func NewCollateSymbolsPass(forcedBranches, forcedTags, excluded []string, symbolDefault string) *CollateSymbolsPass {
	return &CollateSymbolsPass{
		ForcedBranches:  forcedBranches,
		ForcedTags:      forcedTags,
		ExcludedSymbols: excluded,
		SymbolDefault:   symbolDefault,
	}
}

// LoadSymbolNames reads the symbol names Collect discovered, for a caller
// (cmd/cvs2svn) that needs to evaluate a Starlark rules file against them
// before constructing the CollateSymbols pass.
func LoadSymbolNames(dataDir string) ([]string, error) {
	var symbols []*model.Symbol
	if err := loadGob(filepath.Join(dataDir, fileSymbols), &symbols); err != nil {
		return nil, err
	}
	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = s.Name
	}
	return names, nil
}

func (p *CollateSymbolsPass) Name() string { return "CollateSymbols" }

func (p *CollateSymbolsPass) Run(ctrl *control.Control, dataDir string) error {
	var symbols []*model.Symbol
	symPath := filepath.Join(dataDir, fileSymbols)
	if err := loadGob(symPath, &symbols); err != nil {
		return err
	}
	table := model.LoadSymbolTable(symbols)

	forceBranch, err := compileAny(p.ForcedBranches)
	if err != nil {
		return err
	}
	forceTag, err := compileAny(p.ForcedTags)
	if err != nil {
		return err
	}
	exclude, err := compileAny(p.ExcludedSymbols)
	if err != nil {
		return err
	}

	blockers, err := p.computeBlockers(dataDir, table)
	if err != nil {
		return err
	}

	for _, s := range symbols {
		switch {
		case forceBranch.MatchString(s.Name):
			s.Classification = model.Branch
			s.Forced = true
		case forceTag.MatchString(s.Name):
			s.Classification = model.Tag
			s.Forced = true
		case exclude.MatchString(s.Name):
			s.Classification = model.Excluded
			s.Forced = true
		case s.BranchCount > 0 && s.TagCount == 0:
			s.Classification = model.Branch
		case s.TagCount > 0 && s.BranchCount == 0:
			s.Classification = model.Tag
		case s.TagCount > s.BranchCount:
			s.Classification = model.Tag
		case s.BranchCount > s.TagCount:
			s.Classification = model.Branch
		case p.SymbolDefault == "branch":
			s.Classification = model.Branch
		default:
			s.Classification = model.Tag
		}
	}

	// A symbol may be excluded only if every one of its blockers is also
	// excluded; two passes so forced exclusions are visible when checking.
	for _, s := range symbols {
		if s.Classification != model.Excluded {
			continue
		}
		for _, blockerID := range blockers[s.ID] {
			blocker := table.ByID(blockerID)
			if blocker != nil && blocker.Classification != model.Excluded {
				return &cvserrors.SymbolPolicyError{Symbol: s.Name, Blockers: []string{blocker.Name}}
			}
		}
	}

	if err := saveGob(symPath, symbols); err != nil {
		return err
	}

	var branches, tags, excluded int
	for _, s := range symbols {
		switch s.Classification {
		case model.Branch:
			branches++
		case model.Tag:
			tags++
		case model.Excluded:
			excluded++
		}
	}
	ctrl.Logit(control.LogCollate, "CollateSymbols: %d branches, %d tags, %d excluded", branches, tags, excluded)
	return nil
}

// computeBlockers scans the item store once to find, per symbol, the set of
// symbols whose branches fork directly off it: excluding a symbol while one
// of its children remains included would leave that child's branch rooted
// on content that no longer exists in the conversion.
func (p *CollateSymbolsPass) computeBlockers(dataDir string, table *model.SymbolTable) (map[model.SymbolID][]model.SymbolID, error) {
	reader, err := store.OpenKeyedReader(filepath.Join(dataDir, fileItems))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	blockers := make(map[model.SymbolID][]model.SymbolID)
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
		if it.Kind != model.BranchItem || it.LOD == model.NoSymbol {
			continue
		}
		blockers[it.LOD] = append(blockers[it.LOD], it.Symbol)
	}
	return blockers, nil
}

// compileAny builds a single regexp matching any of patterns, defaulting to
// a never-matching pattern when patterns is empty.
func compileAny(patterns []string) (*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return regexp.MustCompile(`\A\z.`), nil
	}
	combined := "^(?:" + patterns[0] + ")$"
	for _, pat := range patterns[1:] {
		combined += "|^(?:" + pat + ")$"
	}
	return regexp.Compile(combined)
}
