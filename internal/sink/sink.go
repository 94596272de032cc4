// Package sink defines the RepositorySink interface Output drives, and a
// CountingSink/MultiSink pair for fan-out and dry-run counting, mirroring
// the teacher's practice of keeping its Subversion and git emission
// behind a narrow interface (surgeon/reposurgeon.go's repo-writing helpers)
// so the pipeline's final pass is not hard-wired to one wire format.
//
// SPDX-License-Identifier: BSD-2-Clause
package sink

// NodeKind is an SVN dumpfile node's kind.
type NodeKind int

const (
	FileNode NodeKind = iota
	DirNode
)

func (k NodeKind) String() string {
	if k == DirNode {
		return "dir"
	}
	return "file"
}

// NodeAction is an SVN dumpfile node's action.
type NodeAction int

const (
	ActionChange NodeAction = iota
	ActionAdd
	ActionDelete
	ActionReplace
)

func (a NodeAction) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionDelete:
		return "delete"
	case ActionReplace:
		return "replace"
	default:
		return "change"
	}
}

// Node is one node-path mutation within a revision, grounded in the SVN
// dumpfile node grammar (node-header/node-content).
type Node struct {
	Path           string
	Kind           NodeKind
	Action         NodeAction
	CopyFromRev    int // 0 means "not a copy"
	CopyFromPath   string
	Properties     map[string]string
	Content        []byte // nil for a directory node or a pure copy with no content change
	HasTextContent bool
}

// Revision is one SVN revision: a sequence of node mutations committed
// together, with author/log/date properties.
type Revision struct {
	Number    int
	Author    string
	LogMsg    string
	Timestamp int64 // Unix seconds
	Nodes     []Node
}

// RepositorySink is the external interface Output drives: one call per
// changeset, in the commit order Final TopologicalSort produced.
type RepositorySink interface {
	// StartRevision begins a new revision; returns the SVN revision number
	// assigned (sinks that renumber, e.g. to skip r0, decide it here).
	StartRevision(rev Revision) (revnum int, err error)
	// WriteNode emits one node mutation within the currently open revision.
	WriteNode(revnum int, node Node) error
	// EndRevision closes out the currently open revision.
	EndRevision(revnum int) error
	// Close flushes and finalizes the sink.
	Close() error
}

// CountingSink is a no-op RepositorySink used for --dry-run style counting
// and for tests that want to drive Output without materializing a dumpfile.
type CountingSink struct {
	Revisions int
	Nodes     int
	nextRev   int
}

// NewCountingSink returns a CountingSink starting at revision 1.
func NewCountingSink() *CountingSink { return &CountingSink{nextRev: 1} }

func (s *CountingSink) StartRevision(rev Revision) (int, error) {
	s.Revisions++
	revnum := s.nextRev
	s.nextRev++
	return revnum, nil
}

func (s *CountingSink) WriteNode(revnum int, node Node) error {
	s.Nodes++
	return nil
}

func (s *CountingSink) EndRevision(revnum int) error { return nil }
func (s *CountingSink) Close() error                 { return nil }

// MultiSink fans every call out to each of its members, in order, so a run
// can e.g. write a dumpfile and update a CountingSink's statistics in the
// same pass.
type MultiSink struct {
	Sinks []RepositorySink
}

func (m *MultiSink) StartRevision(rev Revision) (int, error) {
	var revnum int
	for i, s := range m.Sinks {
		n, err := s.StartRevision(rev)
		if err != nil {
			return 0, err
		}
		if i == 0 {
			revnum = n
		}
	}
	return revnum, nil
}

func (m *MultiSink) WriteNode(revnum int, node Node) error {
	for _, s := range m.Sinks {
		if err := s.WriteNode(revnum, node); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) EndRevision(revnum int) error {
	for _, s := range m.Sinks {
		if err := s.EndRevision(revnum); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) Close() error {
	for _, s := range m.Sinks {
		if err := s.Close(); err != nil {
			return err
		}
	}
	return nil
}
