package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cvs2svn.yml", `
projects:
  - cvs_repository_path: /cvsroot/mod
    trunk_path: trunk
    branches_path: branches
    tags_path: tags
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CommitThresholdSeconds != 300 {
		t.Errorf("CommitThresholdSeconds default: got %d, want 300", cfg.CommitThresholdSeconds)
	}
	if cfg.SymbolDefault != "tag" {
		t.Errorf("SymbolDefault default: got %q, want %q", cfg.SymbolDefault, "tag")
	}
	if len(cfg.Encodings) != 1 || cfg.Encodings[0] != "utf-8" {
		t.Errorf("Encodings default: got %v", cfg.Encodings)
	}
	if len(cfg.Projects) != 1 || cfg.Projects[0].TrunkPath != "trunk" {
		t.Errorf("Projects: got %+v", cfg.Projects)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cvs2svn.yml", `
projects:
  - cvs_repository_path: /cvsroot/mod
    trunk_path: trunk
    branches_path: branches
    tags_path: tags
commit_threshold_seconds: 60
symbol_default: branch
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CommitThresholdSeconds != 60 {
		t.Errorf("CommitThresholdSeconds: got %d, want 60", cfg.CommitThresholdSeconds)
	}
	if cfg.SymbolDefault != "branch" {
		t.Errorf("SymbolDefault: got %q, want branch", cfg.SymbolDefault)
	}
}

func TestValidateRejectsNoProjects(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate should reject a configuration with no projects")
	}
}

func TestValidateRejectsBadSymbolDefault(t *testing.T) {
	cfg := Default()
	cfg.Projects = []ProjectConfig{{CVSRepositoryPath: "/cvsroot", TrunkPath: "trunk", BranchesPath: "branches", TagsPath: "tags"}}
	cfg.SymbolDefault = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate should reject an unrecognized symbol_default")
	}
}

func TestValidateAllowsTrunkOnlyWithoutBranchesTags(t *testing.T) {
	cfg := Default()
	cfg.TrunkOnly = true
	cfg.Projects = []ProjectConfig{{CVSRepositoryPath: "/cvsroot", TrunkPath: "trunk"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate should accept a trunk-only project missing branches/tags: %v", err)
	}
}

func TestEvalRulesStaticLists(t *testing.T) {
	dir := t.TempDir()
	rulesPath := writeFile(t, dir, "rules.star", `
forced_branches = ["REL1_0-branch"]
forced_tags = ["REL1_0"]
excluded_symbols = ["dead-experiment"]
`)
	cfg := Default()
	cfg.RulesFile = rulesPath
	if err := cfg.EvalRules([]string{"REL1_0-branch", "REL1_0", "dead-experiment"}); err != nil {
		t.Fatalf("EvalRules: %v", err)
	}
	if len(cfg.ForcedBranches) != 1 || cfg.ForcedBranches[0] != "REL1_0-branch" {
		t.Errorf("ForcedBranches: got %v", cfg.ForcedBranches)
	}
	if len(cfg.ForcedTags) != 1 || cfg.ForcedTags[0] != "REL1_0" {
		t.Errorf("ForcedTags: got %v", cfg.ForcedTags)
	}
	if len(cfg.ExcludedSymbols) != 1 || cfg.ExcludedSymbols[0] != "dead-experiment" {
		t.Errorf("ExcludedSymbols: got %v", cfg.ExcludedSymbols)
	}
}

func TestEvalRulesClassifyFunction(t *testing.T) {
	dir := t.TempDir()
	rulesPath := writeFile(t, dir, "rules.star", `
def classify(name):
    if name.startswith("vendor-"):
        return "exclude"
    if name.endswith("-branch"):
        return "branch"
    return None
`)
	cfg := Default()
	cfg.RulesFile = rulesPath
	names := []string{"vendor-import", "REL1_0-branch", "REL1_0"}
	if err := cfg.EvalRules(names); err != nil {
		t.Fatalf("EvalRules: %v", err)
	}
	if len(cfg.ExcludedSymbols) != 1 || cfg.ExcludedSymbols[0] != "vendor-import" {
		t.Errorf("ExcludedSymbols: got %v", cfg.ExcludedSymbols)
	}
	if len(cfg.ForcedBranches) != 1 || cfg.ForcedBranches[0] != "REL1_0-branch" {
		t.Errorf("ForcedBranches: got %v", cfg.ForcedBranches)
	}
	if len(cfg.ForcedTags) != 0 {
		t.Errorf("ForcedTags should be empty when classify returns None for REL1_0, got %v", cfg.ForcedTags)
	}
}

func TestEvalRulesNoRulesFileIsNoop(t *testing.T) {
	cfg := Default()
	if err := cfg.EvalRules([]string{"anything"}); err != nil {
		t.Fatalf("EvalRules with no RulesFile set should be a no-op: %v", err)
	}
}

func TestEvalRulesCannotTouchFilesystem(t *testing.T) {
	dir := t.TempDir()
	rulesPath := writeFile(t, dir, "rules.star", `
excluded_symbols = []
x = open   # any attempt to reference a filesystem builtin must fail to resolve
`)
	cfg := Default()
	cfg.RulesFile = rulesPath
	if err := cfg.EvalRules(nil); err == nil {
		t.Fatalf("a script referencing a non-Starlark builtin like open() should fail to evaluate")
	}
}
