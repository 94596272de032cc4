// Package rcs parses RCS ",v" files and normalizes their revision graphs
// into the shapes Collect needs (vendor branches folded in, added-on-branch
// and late-added-on-branch placeholders removed). The parser drives a Sink
// much as the teacher's dumpfile reader drives repo-building callbacks
// (surgeon/svnread.go): token-level parsing is kept separate from the
// decision of what an RCS construct means for the conversion.
//
// SPDX-License-Identifier: BSD-2-Clause
package rcs

import "time"

// Revision is one entry of an RCS file's revision tree, keyed by its
// dotted revision number (e.g. "1.3", "1.3.2.1").
type Revision struct {
	Number   string
	Date     time.Time
	Author   string
	State    string // usually "Exp"; "dead" marks a deletion
	Next     string // next revision in RCS's chain: the older one on trunk, the newer one on a branch
	Branches []string // revision numbers that are the first commit of a branch rooted here
	Log      string
	Text     string // full text for the head revision, a diff for every other one (see IsDelta)
	IsDelta  bool
}

// IsDead reports whether this revision represents a file deletion.
func (r *Revision) IsDead() bool { return r.State == "dead" }

// Sink receives parse events in file order: first every symbolic name and
// the admin header, then one DefineRevision/SetRevisionInfo pair per
// revision in the order revisions physically appear in the file (newest
// trunk revision first, by RCS convention).
type Sink interface {
	// DefineSymbol records a tag/branch -> revision-number association as
	// announced in the "symbols" header section.
	DefineSymbol(name, revisionNumber string)

	// DefineRevision records a revision's graph position and metadata, from
	// the delta section (before log/text have been read).
	DefineRevision(rev Revision)

	// SetRevisionInfo attaches the log message and text to a previously
	// defined revision: full text for the head revision (isDelta false), a
	// delta for every other revision.
	SetRevisionInfo(number, log, text string, isDelta bool)

	// Finish is called once the whole file has been parsed, with the head
	// revision number (the tip of trunk) and the name of the default
	// branch (vendor branch), if the file has one.
	Finish(head, defaultBranch string)
}

// Reader parses RCS ",v" content into Sink callbacks.
type Reader interface {
	Parse(data []byte, sink Sink) error
}
