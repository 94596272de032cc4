package pass

import (
	"os"
	"path/filepath"
	"testing"

	cmap "github.com/orcaman/concurrent-map"

	"gitlab.com/esr/cvs2svn/internal/config"
	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/model"
	"gitlab.com/esr/cvs2svn/internal/rcs"
)

func TestBranchNumber(t *testing.T) {
	cases := map[string]string{
		"1.2":     "",
		"1.2.2":   "1.2",
		"1.2.2.1": "1.2.2",
	}
	for in, want := range cases {
		if got := branchNumber(in); got != want {
			t.Errorf("branchNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripMagicBranch(t *testing.T) {
	if got := stripMagicBranch("1.3.0.2"); got != "1.3.2" {
		t.Errorf("stripMagicBranch(1.3.0.2) = %q, want 1.3.2", got)
	}
	if got := stripMagicBranch("1.3.2"); got != "" {
		t.Errorf("stripMagicBranch(1.3.2) = %q, want empty (not a magic-branch encoding)", got)
	}
}

func newCollectTestGraph() *rcs.Graph {
	return &rcs.Graph{
		Revisions: map[string]*rcs.Revision{
			"1.2": {Number: "1.2"},
			"1.1": {Number: "1.1"},
		},
		Symbols: map[string]string{},
		Head:    "1.2",
	}
}

func TestIsBranchRevisionNumber(t *testing.T) {
	g := newCollectTestGraph()
	g.Revisions["1.2"].Branches = []string{"1.2.2.1"}
	if !isBranchRevisionNumber(g, "1.2.2.1") {
		t.Errorf("1.2.2.1 should be recognized as a branch fork point")
	}
	if isBranchRevisionNumber(g, "1.2") {
		t.Errorf("1.2 is an ordinary revision, not a branch fork point")
	}
}

func TestSymbolNameForRevision(t *testing.T) {
	g := newCollectTestGraph()
	g.Symbols["REL1_0-branch"] = "1.2.0.2"
	if got := symbolNameForRevision(g, "1.2.2", true); got != "REL1_0-branch" {
		t.Errorf("symbolNameForRevision: got %q, want REL1_0-branch", got)
	}
	if got := symbolNameForRevision(g, "9.9", true); got != "" {
		t.Errorf("an unmatched branch number should yield no name, got %q", got)
	}
}

func TestRelPath(t *testing.T) {
	if got := relPath("/cvsroot/mod", "/cvsroot/mod/sub/foo.c,v"); got != filepath.Join("sub", "foo.c,v") {
		t.Errorf("relPath: got %q", got)
	}
}

func TestPrevNum(t *testing.T) {
	order := []string{"1.1", "1.2", "1.3"}
	if got := prevNum(order, "1.2"); got != "1.1" {
		t.Errorf("prevNum: got %q, want 1.1", got)
	}
	if got := prevNum(order, "1.1"); got != "" {
		t.Errorf("the first element has no predecessor, got %q", got)
	}
}

func TestItemIDOrZeroAndParentItemLOD(t *testing.T) {
	if itemIDOrZero(nil) != model.NoItem {
		t.Errorf("itemIDOrZero(nil) should be NoItem")
	}
	it := &model.Item{ID: 5, LOD: 3}
	if itemIDOrZero(it) != 5 {
		t.Errorf("itemIDOrZero should return the item's id")
	}
	if parentItemLOD(nil) != model.NoSymbol {
		t.Errorf("parentItemLOD(nil) should be NoSymbol")
	}
	if parentItemLOD(it) != 3 {
		t.Errorf("parentItemLOD should return the parent's own LOD")
	}
}

func TestUpsertTallyAndApplyTallies(t *testing.T) {
	tallies := cmap.New()
	upsertTally(tallies, 1, "REL1_0", 0, 1)
	upsertTally(tallies, 1, "REL1_0", 0, 1)
	upsertTally(tallies, 1, "work-branch", 2, 0)

	p := NewCollectPass(&config.Config{Projects: []config.ProjectConfig{{}}})
	p.applyTallies(tallies)

	tag := findSymbol(p.symbols, "REL1_0")
	if tag == nil || tag.TagCount != 2 {
		t.Fatalf("REL1_0: expected TagCount 2, got %+v", tag)
	}
	branch := findSymbol(p.symbols, "work-branch")
	if branch == nil || branch.BranchCount != 2 {
		t.Fatalf("work-branch: expected BranchCount 2, got %+v", branch)
	}
}

func findSymbol(t *model.SymbolTable, name string) *model.Symbol {
	for _, s := range t.All() {
		if s.Name == name {
			return s
		}
	}
	return nil
}

const sampleCollectRCSFile = `head	1.2;
access;
symbols
	REL1_0:1.2;
locks; strict;
comment	@# @;


1.2
date	2020.01.02.03.04.05;	author esr;	state Exp;
branches;
next	1.1;

1.1
date	2020.01.01.00.00.00;	author esr;	state Exp;
branches;
next	;


desc
@@


1.2
log
@second commit@
text
@line one
line two
@
1.1
log
@first commit@
text
@line one
@
`

// TestCollectPassRunParsesAndInterns drives CollectPass.Run against a real
// on-disk RCS file and checks the resulting item/symbol/checkout-cache
// state, the same way cmd/cvs2svn's convert command would see it.
func TestCollectPassRunParsesAndInterns(t *testing.T) {
	repoRoot := t.TempDir()
	if err := os.MkdirAll(filepath.Join(repoRoot, "sub"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	rcsPath := filepath.Join(repoRoot, "sub", "foo.c,v")
	if err := os.WriteFile(rcsPath, []byte(sampleCollectRCSFile), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := &config.Config{
		Projects: []config.ProjectConfig{{CVSRepositoryPath: repoRoot}},
	}
	dataDir := t.TempDir()
	ctrl := control.New(false)
	defer ctrl.Close()

	p := NewCollectPass(cfg)
	if err := p.Run(ctrl, dataDir); err != nil {
		t.Fatalf("Run: %v", err)
	}

	items, err := loadAllItems(dataDir)
	if err != nil {
		t.Fatalf("loadAllItems: %v", err)
	}
	var revisions, tags int
	for _, it := range items {
		switch it.Kind {
		case model.RevisionItem:
			revisions++
		case model.TagItem:
			tags++
		}
	}
	if revisions != 2 {
		t.Errorf("expected 2 trunk revisions (1.1, 1.2), got %d", revisions)
	}
	if tags != 1 {
		t.Errorf("expected 1 tag item for REL1_0, got %d", tags)
	}

	names, err := LoadSymbolNames(dataDir)
	if err != nil {
		t.Fatalf("LoadSymbolNames: %v", err)
	}
	if len(names) != 1 || names[0] != "REL1_0" {
		t.Errorf("expected the REL1_0 symbol to be interned, got %v", names)
	}
}
