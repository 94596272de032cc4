package model

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// SymbolTransform rewrites a symbol name as it is collected, mirroring the
// original project's --symbol-transform option (project.py's
// symbol_transforms list of (regexp, replacement) rules).
type SymbolTransform struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Apply returns name with every match of the pattern replaced, or name
// unchanged if the pattern matches nowhere in it.
func (t SymbolTransform) Apply(name string) string {
	if !t.Pattern.MatchString(name) {
		return name
	}
	return t.Pattern.ReplaceAllString(name, t.Replacement)
}

// Project is a root within the CVS archive, with the three SVN path
// prefixes its revisions, branches, and tags are rooted under. Grounded in
// cvs2svn_lib/project.py's Project class.
type Project struct {
	ID              ProjectID
	CVSRepositoryPath string
	TrunkPath       string
	BranchesPath    string
	TagsPath        string
	SymbolTransforms []SymbolTransform
	TrunkOnly       bool
}

// NewProject normalizes the trunk/branches/tags paths (strip leading,
// trailing, and duplicated '/') and verifies they are pairwise disjoint,
// exactly as project.py's normalize_ttb_path/verify_paths_disjoint do.
func NewProject(id ProjectID, cvsRepositoryPath, trunk, branches, tags string, trunkOnly bool, transforms []SymbolTransform) (*Project, error) {
	p := &Project{
		ID:                id,
		CVSRepositoryPath: cvsRepositoryPath,
		TrunkPath:         normalizeTTBPath(trunk),
		SymbolTransforms:  transforms,
		TrunkOnly:         trunkOnly,
	}
	if p.TrunkPath == "" {
		return nil, fmt.Errorf("project %d: trunk path must not be empty", id)
	}
	if !trunkOnly {
		p.BranchesPath = normalizeTTBPath(branches)
		p.TagsPath = normalizeTTBPath(tags)
		if p.BranchesPath == "" || p.TagsPath == "" {
			return nil, fmt.Errorf("project %d: branches and tags paths are required unless trunk-only", id)
		}
		if err := verifyPathsDisjoint(p.TrunkPath, p.BranchesPath, p.TagsPath); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func normalizeTTBPath(p string) string {
	parts := strings.Split(p, "/")
	kept := parts[:0]
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return path.Join(kept...)
}

func verifyPathsDisjoint(paths ...string) error {
	type splitPath struct {
		segments []string
		original string
	}
	split := make([]splitPath, len(paths))
	for i, p := range paths {
		if p == "" {
			split[i] = splitPath{nil, p}
			continue
		}
		split[i] = splitPath{strings.Split(p, "/"), p}
	}
	for i := range split {
		for j := range split {
			if i == j {
				continue
			}
			a, b := split[i], split[j]
			if len(a.segments) > len(b.segments) {
				continue
			}
			if len(a.segments) == 0 {
				continue
			}
			if samePrefix(a.segments, b.segments) {
				return fmt.Errorf("paths %q and %q are not disjoint", a.original, b.original)
			}
		}
	}
	return nil
}

func samePrefix(prefix, full []string) bool {
	if len(prefix) > len(full) {
		return false
	}
	for i, seg := range prefix {
		if full[i] != seg {
			return false
		}
	}
	return true
}

// TransformSymbol applies this project's symbol transforms in order.
func (p *Project) TransformSymbol(name string) string {
	for _, t := range p.SymbolTransforms {
		name = t.Apply(name)
	}
	return name
}

// IsSource reports whether svnPath is a legitimate copy source: the trunk
// path, or a directory directly under branches. Must not be called for a
// trunk-only project.
func (p *Project) IsSource(svnPath string) bool {
	if svnPath == p.TrunkPath {
		return true
	}
	head := path.Dir(svnPath)
	return head == p.BranchesPath
}

// BranchPath returns the SVN path under which a branch's files live.
func (p *Project) BranchPath(cleanSymbolName string, components ...string) string {
	return path.Join(append([]string{p.BranchesPath, cleanSymbolName}, components...)...)
}

// TagPath returns the SVN path under which a tag's files live.
func (p *Project) TagPath(cleanSymbolName string, components ...string) string {
	return path.Join(append([]string{p.TagsPath, cleanSymbolName}, components...)...)
}
