package rcs

import "strings"

// Graph is the parsed, but not yet normalized, revision tree of one RCS
// file: every Revision keyed by number, plus the symbolic names announced
// for it and the head/default-branch pointers from the admin header.
type Graph struct {
	Revisions map[string]*Revision
	Symbols   map[string]string // symbol name -> revision number
	Head      string
	DefaultBranch string // e.g. "1.1.1" for a vendor branch; "" if none
}

// collectingSink implements Sink by building a Graph, so rcs.Reader's
// parse-event stream can be turned back into a tree Collect's normalization
// step can walk and rewrite.
type collectingSink struct {
	g *Graph
}

// NewCollectingSink returns a Sink that accumulates parse events into a
// fresh Graph, retrievable afterward via Graph().
func NewCollectingSink() (Sink, *Graph) {
	g := &Graph{
		Revisions: make(map[string]*Revision),
		Symbols:   make(map[string]string),
	}
	return &collectingSink{g: g}, g
}

func (s *collectingSink) DefineSymbol(name, revisionNumber string) {
	s.g.Symbols[name] = revisionNumber
}

func (s *collectingSink) DefineRevision(rev Revision) {
	r := rev
	s.g.Revisions[rev.Number] = &r
}

func (s *collectingSink) SetRevisionInfo(number, log, text string, isDelta bool) {
	r, ok := s.g.Revisions[number]
	if !ok {
		return
	}
	r.Log = log
	r.Text = text
	r.IsDelta = isDelta
}

func (s *collectingSink) Finish(head, defaultBranch string) {
	s.g.Head = head
	s.g.DefaultBranch = defaultBranch
}

// branchNumber returns the branch-number prefix a revision number belongs
// to: "1.3.2.1" is on branch "1.3.2". A top-level trunk revision ("1.3")
// has no branch prefix and returns "".
func branchNumber(revisionNumber string) string {
	parts := strings.Split(revisionNumber, ".")
	if len(parts) <= 2 {
		return ""
	}
	return strings.Join(parts[:len(parts)-1], ".")
}

// isVendorBranchRevision reports whether revisionNumber sits on the
// conventional vendor-import branch "1.1.1".
func isVendorBranchRevision(revisionNumber string) bool {
	return branchNumber(revisionNumber) == "1.1.1"
}

// Normalize applies the vendor-branch, added-on-branch, and
// late-added-on-branch rewrites of SPEC_FULL.md §4.1, and (if trunkOnly) the
// trunk-only graft-and-prune rewrite. It mutates g in place and is
// idempotent.
func Normalize(g *Graph, trunkOnly bool) {
	normalizeVendorBranch(g)
	normalizeAddedOnBranch(g)
	normalizeLateAddedOnBranch(g)
	if trunkOnly {
		normalizeTrunkOnly(g)
	}
}

// normalizeVendorBranch handles the case where 1.1 is a synthetic
// placeholder for a vendor import: trunk's true first content is the tip of
// the 1.1.1.x chain. Trunk revisions are rewired to chain through the
// vendor branch instead of through the bare 1.1, and 1.1 itself is dropped
// unless it carries its own distinct log message (meaning a real, separate
// commit happened to coincide with the import).
func normalizeVendorBranch(g *Graph) {
	one1 := g.Revisions["1.1"]
	if one1 == nil {
		return
	}
	var vendorTip string
	for _, branchStart := range one1.Branches {
		if isVendorBranchRevision(branchStart) {
			vendorTip = tipOfChain(g, branchStart)
		}
	}
	if vendorTip == "" {
		return
	}
	if one1.Log != "" && !one1.IsDead() {
		// 1.1 is a distinct, non-placeholder commit; leave the graph as is
		// except for recording the vendor tip as 1.1's extra dependency so
		// downstream passes know trunk content descends from the import.
		for _, b := range one1.Branches {
			if b == vendorTip {
				return
			}
		}
		one1.Branches = append(one1.Branches, vendorTip)
		return
	}
	// 1.1 is the synthetic cvs-add placeholder: the first real trunk
	// revision (1.2, if any) should chain from the vendor tip instead of
	// from 1.1, and 1.1 is dropped from the graph entirely.
	if next := findRevisionWithNext(g, "1.1"); next != nil {
		next.Next = vendorTip
	}
	delete(g.Revisions, "1.1")
}

// normalizeAddedOnBranch handles a file that was never added on trunk: its
// 1.1 is a dead placeholder whose sole purpose is to root a branch. The
// placeholder is dropped and the branch is detached from trunk (it has no
// trunk predecessor).
func normalizeAddedOnBranch(g *Graph) {
	one1 := g.Revisions["1.1"]
	if one1 == nil || !one1.IsDead() {
		return
	}
	if len(one1.Branches) == 0 {
		return
	}
	delete(g.Revisions, "1.1")
}

// normalizeLateAddedOnBranch handles newer CVS clients, which insert an
// extra dead revision at the point a branch is first created from an
// already-existing trunk revision, purely so the branch has a distinct fork
// point to hang off of. That extra dead revision is elided and the branch's
// root revision is rewired to point directly at its true trunk parent.
func normalizeLateAddedOnBranch(g *Graph) {
	for num, rev := range g.Revisions {
		if !rev.IsDead() || len(rev.Branches) == 0 {
			continue
		}
		if num == "1.1" {
			continue // handled by normalizeAddedOnBranch
		}
		parentNum := rev.Next
		if parentNum == "" {
			continue
		}
		// The branch(es) rooted at this dead placeholder now fork directly
		// from its trunk parent instead.
		if parent := g.Revisions[parentNum]; parent != nil {
			parent.Branches = append(parent.Branches, rev.Branches...)
		}
		delete(g.Revisions, num)
	}
}

// normalizeTrunkOnly grafts every default-branch revision onto trunk (the
// view `cvs checkout` itself would show without -r/-D) and discards every
// other branch, tag, and their revisions.
func normalizeTrunkOnly(g *Graph) {
	if g.DefaultBranch != "" {
		tip := tipOfChain(g, firstRevisionOnBranch(g, g.DefaultBranch))
		if tip != "" {
			if trunkHead := g.Revisions[g.Head]; trunkHead != nil {
				trunkHead.Next = tip
			}
		}
	}
	for num, rev := range g.Revisions {
		if branchNumber(num) != "" && branchNumber(num) != g.DefaultBranch {
			delete(g.Revisions, num)
			continue
		}
		rev.Branches = nil
	}
	for name := range g.Symbols {
		delete(g.Symbols, name)
	}
}

func tipOfChain(g *Graph, start string) string {
	if start == "" {
		return ""
	}
	cur := start
	for {
		rev, ok := g.Revisions[cur]
		if !ok || rev.Next == "" {
			return cur
		}
		cur = rev.Next
	}
}

func firstRevisionOnBranch(g *Graph, branch string) string {
	best := ""
	for num := range g.Revisions {
		if branchNumber(num) == branch {
			if best == "" || num < best {
				best = num
			}
		}
	}
	return best
}

func findRevisionWithNext(g *Graph, target string) *Revision {
	for _, rev := range g.Revisions {
		if rev.Next == target {
			return rev
		}
	}
	return nil
}
