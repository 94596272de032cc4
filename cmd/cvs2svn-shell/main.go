// Command cvs2svn-shell is an interactive inspector for a cvs2svn
// pipeline's intermediate data directory: a REPL for browsing the item,
// symbol, changeset, and commit-order checkpoints any pass has written, for
// diagnosing a conversion without re-running the whole pipeline.
//
// SPDX-License-Identifier: BSD-2-Clause
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	trie "github.com/acomagu/trie"
	shlex "github.com/anmitsu/go-shlex"
	difflib "github.com/ianbruene/go-difflib/difflib"
	shellquote "github.com/kballard/go-shellquote"
	"gitlab.com/ianbruene/kommandant"
	"golang.org/x/crypto/ssh/terminal"

	"gitlab.com/esr/cvs2svn/internal/model"
	"gitlab.com/esr/cvs2svn/internal/pass"
)

// Shell implements kommandant's command-table interface: one DoXxx method
// per command, one HelpXxx method per command's help text, named the way
// the teacher's own interpreter names them.
type Shell struct {
	cmd     *kommandant.Kmdt
	dataDir string

	branchTrie trie.Tree
}

// SetCore is kommandant's housekeeping hook, called once at startup.
func (sh *Shell) SetCore(k *kommandant.Kmdt) { sh.cmd = k }

// PreLoop builds the prompt before the first command is read.
func (sh *Shell) PreLoop(ctx context.Context) {
	sh.setPrompt()
}

func (sh *Shell) setPrompt() {
	if sh.cmd == nil {
		return
	}
	if sh.dataDir == "" {
		sh.cmd.SetPrompt("cvs2svn-shell> ")
	} else {
		sh.cmd.SetPrompt(fmt.Sprintf("cvs2svn-shell[%s]> ", sh.dataDir))
	}
}

func (sh *Shell) HelpLoad() {
	fmt.Println("load DIR -- open a pipeline data directory for inspection")
}

func (sh *Shell) DoLoad(line string) bool {
	dir := strings.TrimSpace(line)
	if dir == "" {
		fmt.Println("load: a data directory is required")
		return false
	}
	if _, err := os.Stat(dir); err != nil {
		fmt.Println("load:", err)
		return false
	}
	sh.dataDir = dir
	sh.branchTrie = nil
	sh.setPrompt()
	return false
}

// branchtrie lazily builds a trie over every known branch symbol's name,
// for longest-prefix lookups by DoBranch. Grounded in
// surgeon/svnread.go's StreamParser.branchtrie, which builds exactly this
// structure (github.com/acomagu/trie.New over [][]byte keys) to resolve
// which declared branch a dump path falls under.
func (sh *Shell) branchtrie() (trie.Tree, error) {
	if sh.branchTrie != nil {
		return sh.branchTrie, nil
	}
	symbols, err := pass.LoadSymbols(sh.dataDir)
	if err != nil {
		return nil, err
	}
	var names [][]byte
	var values []interface{}
	for _, s := range symbols {
		if !s.IsBranch() {
			continue
		}
		names = append(names, []byte(s.Name))
		values = append(values, true)
	}
	if len(names) == 0 {
		return nil, nil
	}
	sh.branchTrie = trie.New(names, values)
	return sh.branchTrie, nil
}

// longestPrefix returns the longest prefix of key that names a complete
// branch in t, or nil if none does. Identical in structure to
// surgeon/svnread.go's package-level longestPrefix.
func longestPrefix(t trie.Tree, key []byte) []byte {
	var prefix []byte
	if t == nil {
		return prefix
	}
	for i, c := range key {
		if t = t.TraceByte(c); t == nil {
			break
		}
		if _, ok := t.Terminal(); ok {
			prefix = key[:i+1]
		}
	}
	return prefix
}

func (sh *Shell) HelpPasses() {
	fmt.Println("passes -- list the pipeline's passes in order")
}

func (sh *Shell) DoPasses(line string) bool {
	for i, name := range pass.PassNames() {
		fmt.Printf("%2d. %s\n", i+1, name)
	}
	return false
}

func (sh *Shell) HelpItems() {
	fmt.Println("items [ID] -- show one item by id, or a summary of all items")
}

func (sh *Shell) DoItems(line string) bool {
	if !sh.requireLoaded() {
		return false
	}
	items, err := pass.LoadItems(sh.dataDir)
	if err != nil {
		fmt.Println("items:", err)
		return false
	}
	arg := strings.TrimSpace(line)
	if arg == "" {
		sh.summarizeItems(items)
		return false
	}
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		fmt.Println("items: not a numeric item id:", arg)
		return false
	}
	it, ok := items[model.ItemID(id)]
	if !ok {
		fmt.Println("items: no such item", arg)
		return false
	}
	fmt.Printf("%+v\n", *it)
	return false
}

func (sh *Shell) summarizeItems(items map[model.ItemID]*model.Item) {
	var revisions, branches, tags int
	for _, it := range items {
		switch it.Kind {
		case model.RevisionItem:
			revisions++
		case model.BranchItem:
			branches++
		case model.TagItem:
			tags++
		}
	}
	fmt.Printf("%d items: %d revisions, %d branches, %d tags\n", len(items), revisions, branches, tags)
}

func (sh *Shell) HelpSymbols() {
	fmt.Println("symbols [PATTERN] -- list symbols and their branch/tag classification, optionally filtered")
}

func (sh *Shell) DoSymbols(line string) bool {
	if !sh.requireLoaded() {
		return false
	}
	symbols, err := pass.LoadSymbols(sh.dataDir)
	if err != nil {
		fmt.Println("symbols:", err)
		return false
	}
	// shellquote lets a filter pattern be quoted if it contains spaces,
	// e.g. symbols "release branch".
	args, err := shellquote.Split(line)
	if err != nil {
		fmt.Println("symbols:", err)
		return false
	}
	var filter string
	if len(args) > 0 {
		filter = args[0]
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i].Name < symbols[j].Name })
	for _, s := range symbols {
		if filter != "" && !strings.Contains(s.Name, filter) {
			continue
		}
		fmt.Printf("%-30s %-9s branches=%d tags=%d\n", s.Name, s.Classification, s.BranchCount, s.TagCount)
	}
	return false
}

func (sh *Shell) HelpBranch() {
	fmt.Println("branch NAME -- find the longest known branch name that is a prefix of NAME")
}

// DoBranch answers which declared branch (if any) a dotted or slash-joined
// name, such as a symbol variant or a path component seen in a log, falls
// under, via longest-prefix lookup against every branch symbol Collect
// discovered.
func (sh *Shell) DoBranch(line string) bool {
	if !sh.requireLoaded() {
		return false
	}
	key := strings.TrimSpace(line)
	if key == "" {
		fmt.Println("branch: a name is required")
		return false
	}
	t, err := sh.branchtrie()
	if err != nil {
		fmt.Println("branch:", err)
		return false
	}
	prefix := longestPrefix(t, []byte(key))
	if len(prefix) == 0 {
		fmt.Println("branch: no known branch is a prefix of", key)
		return false
	}
	fmt.Println(string(prefix))
	return false
}

func (sh *Shell) HelpChangesets() {
	fmt.Println("changesets -- summarize the changeset store's contents by kind")
}

func (sh *Shell) DoChangesets(line string) bool {
	if !sh.requireLoaded() {
		return false
	}
	table, err := pass.LoadChangesets(sh.dataDir)
	if err != nil {
		fmt.Println("changesets:", err)
		return false
	}
	counts := map[model.ChangesetKind]int{}
	for _, cs := range table.All() {
		counts[cs.Kind]++
	}
	for kind, n := range counts {
		fmt.Printf("%-20s %d\n", kind, n)
	}
	return false
}

func (sh *Shell) HelpCommits() {
	fmt.Println("commits [N] -- show the first N rows (default 20) of the final commit order")
}

func (sh *Shell) DoCommits(line string) bool {
	if !sh.requireLoaded() {
		return false
	}
	limit := 20
	if arg := strings.TrimSpace(line); arg != "" {
		if n, err := strconv.Atoi(arg); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := pass.LoadCommitOrder(sh.dataDir)
	if err != nil {
		fmt.Println("commits:", err)
		return false
	}
	for i, e := range entries {
		if i >= limit {
			fmt.Printf("... %d more\n", len(entries)-limit)
			break
		}
		fmt.Printf("%6d  changeset=%d  ts=%d\n", i+1, e.Changeset, e.Timestamp)
	}
	return false
}

func (sh *Shell) HelpDiff() {
	fmt.Println("diff ID1 ID2 -- unified diff between two items' reconstructed text")
}

func (sh *Shell) DoDiff(line string) bool {
	if !sh.requireLoaded() {
		return false
	}
	args := strings.Fields(line)
	if len(args) != 2 {
		fmt.Println("diff: usage: diff ID1 ID2")
		return false
	}
	id1, err1 := strconv.ParseUint(args[0], 10, 64)
	id2, err2 := strconv.ParseUint(args[1], 10, 64)
	if err1 != nil || err2 != nil {
		fmt.Println("diff: item ids must be numeric")
		return false
	}
	cache, err := pass.LoadCheckoutCache(sh.dataDir)
	if err != nil {
		fmt.Println("diff:", err)
		return false
	}
	text1, err := cache.Peek(model.ItemID(id1))
	if err != nil {
		fmt.Println("diff:", err)
		return false
	}
	text2, err := cache.Peek(model.ItemID(id2))
	if err != nil {
		fmt.Println("diff:", err)
		return false
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(text1),
		B:        difflib.SplitLines(text2),
		FromFile: args[0],
		ToFile:   args[1],
		Context:  3,
	}
	out, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		fmt.Println("diff:", err)
		return false
	}
	fmt.Print(out)
	return false
}

func (sh *Shell) HelpShell() {
	fmt.Println("shell COMMAND -- run an external command directly, without invoking $SHELL")
}

// DoShell runs an external command via shlex-tokenized argv rather than
// through $SHELL, so a stray quoting mistake can't be reinterpreted by a
// second shell layer.
func (sh *Shell) DoShell(line string) bool {
	argv, err := shlex.Split(line, true)
	if err != nil {
		fmt.Println("shell:", err)
		return false
	}
	if len(argv) == 0 {
		fmt.Println("shell: nothing to run")
		return false
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Println("shell:", err)
	}
	return false
}

func (sh *Shell) HelpQuit() { fmt.Println("quit -- leave the shell") }
func (sh *Shell) DoQuit(line string) bool { return true }

func (sh *Shell) HelpEOF() {}
func (sh *Shell) DoEOF(line string) bool {
	fmt.Println()
	return true
}

func (sh *Shell) requireLoaded() bool {
	if sh.dataDir == "" {
		fmt.Println("no data directory loaded; try: load DIR")
		return false
	}
	return true
}

func main() {
	ctx := context.Background()
	shell := &Shell{}
	if len(os.Args) > 1 {
		shell.dataDir = os.Args[1]
	}
	interpreter := kommandant.NewKommandant(shell)
	interpreter.EnableReadline(terminal.IsTerminal(0))
	interpreter.PreLoop(ctx)
	interpreter.CmdLoop(ctx, "")
	interpreter.PostLoop(ctx)
}
