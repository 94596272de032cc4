package pass

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"gitlab.com/esr/cvs2svn/internal/checkout"
	"gitlab.com/esr/cvs2svn/internal/config"
	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/model"
	"gitlab.com/esr/cvs2svn/internal/sink"
	"gitlab.com/esr/cvs2svn/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Projects: []config.ProjectConfig{
			{CVSRepositoryPath: "/cvsroot/mod", TrunkPath: "trunk", BranchesPath: "branches", TagsPath: "tags"},
		},
	}
}

func TestSvnPathForTrunkAndBranchAndTag(t *testing.T) {
	cfg := testConfig()
	paths := model.NewPathTable()
	fileID := paths.Intern(1, "foo.c", false)

	symbols := model.LoadSymbolTable([]*model.Symbol{
		{ID: 1, Name: "REL1_0-branch", Classification: model.Branch},
		{ID: 2, Name: "REL1_0", Classification: model.Tag},
	})

	if got := svnPathFor(cfg, paths, symbols, fileID, model.NoSymbol); got != "trunk/foo.c" {
		t.Errorf("trunk path: got %q", got)
	}
	if got := svnPathFor(cfg, paths, symbols, fileID, 1); got != "branches/REL1_0-branch/foo.c" {
		t.Errorf("branch path: got %q", got)
	}
	if got := svnPathFor(cfg, paths, symbols, fileID, 2); got != "tags/REL1_0/foo.c" {
		t.Errorf("tag path: got %q", got)
	}
}

func TestSvnPathForUnknownPathOrSymbol(t *testing.T) {
	cfg := testConfig()
	paths := model.NewPathTable()
	symbols := model.LoadSymbolTable(nil)

	if got := svnPathFor(cfg, paths, symbols, 999, model.NoSymbol); got != "" {
		t.Errorf("an unknown path id should yield an empty svn path, got %q", got)
	}
	fileID := paths.Intern(1, "foo.c", false)
	if got := svnPathFor(cfg, paths, symbols, fileID, 42); got != "" {
		t.Errorf("an unknown symbol id should yield an empty svn path, got %q", got)
	}
}

func TestOutputPassEmitsRevisionAndSymbolCommits(t *testing.T) {
	dataDir := t.TempDir()

	pathList := []*model.CVSPath{{ID: 1, Project: 1, Path: "foo.c"}}
	if err := saveGob(filepath.Join(dataDir, filePaths), pathList); err != nil {
		t.Fatalf("saveGob(paths): %v", err)
	}
	symbolList := []*model.Symbol{{ID: 1, Name: "REL1_0", Classification: model.Tag}}
	writeSymbolsFixture(t, dataDir, symbolList)
	metaList := []*model.Metadata{{ID: 1, Author: "esr", Log: "initial import"}}
	if err := saveGob(filepath.Join(dataDir, fileMetadata), metaList); err != nil {
		t.Fatalf("saveGob(metadata): %v", err)
	}

	items := map[model.ItemID]*model.Item{
		1: {ID: 1, Kind: model.RevisionItem, File: 1, LOD: model.NoSymbol, Metadata: 1, Timestamp: 100},
		2: {ID: 2, Kind: model.TagItem, File: 1, Symbol: 1, Source: 1},
	}
	writeItemsFixture(t, dataDir, items)

	cache := checkout.New()
	cache.RecordFullText(1, "hello\n")
	cache.AddRef(1)
	if err := cache.Save(filepath.Join(dataDir, fileCheckoutCache)); err != nil {
		t.Fatalf("cache.Save: %v", err)
	}

	table := model.NewChangesetTable()
	csRev := table.New(model.RevisionChangesetKind, 0, 1)
	csRev.Freeze(model.NoChangeset, model.NoChangeset)
	csSym := table.New(model.SymbolChangesetKind, 1, 2)
	if err := writeChangesetStore(dataDir, table); err != nil {
		t.Fatalf("writeChangesetStore: %v", err)
	}

	writeStreamFixture(t, dataDir, fileCommitOrder, []store.Record{
		{Key: fmt.Sprintf("%d", csRev.ID), Payload: "100"},
		{Key: fmt.Sprintf("%d", csSym.ID), Payload: "150"},
	})

	var buf bytes.Buffer
	outSink := sink.NewDumpfileSink(&buf)
	p := NewOutputPass(testConfig(), outSink)

	ctrl := control.New(false)
	defer ctrl.Close()

	if err := p.Run(ctrl, dataDir); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Node-path: trunk/foo.c") {
		t.Errorf("expected the revision commit to write trunk/foo.c, got:\n%s", out)
	}
	if !strings.Contains(out, "Node-path: tags/REL1_0/foo.c") {
		t.Errorf("expected the tag commit to write tags/REL1_0/foo.c, got:\n%s", out)
	}
	if !strings.Contains(out, "manufactured to create tag 'REL1_0'") {
		t.Errorf("expected the manufactured tag commit's log message, got:\n%s", out)
	}
	if !strings.Contains(out, "cvs2svn") {
		t.Errorf("expected the default SymbolAuthor 'cvs2svn' to appear as the tag commit's author, got:\n%s", out)
	}
}
