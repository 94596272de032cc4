package model

import "gitlab.com/esr/cvs2svn/internal/setutil"

// ChangesetKind discriminates RevisionChangeset, SymbolChangeset, and
// OrderedChangeset. Like Item, changesets share one id space and are
// represented as a tagged variant rather than a type hierarchy.
type ChangesetKind int

const (
	RevisionChangesetKind ChangesetKind = iota
	SymbolChangesetKind
	OrderedChangesetKind
)

func (k ChangesetKind) String() string {
	switch k {
	case RevisionChangesetKind:
		return "revision-changeset"
	case SymbolChangesetKind:
		return "symbol-changeset"
	case OrderedChangesetKind:
		return "ordered-changeset"
	default:
		return "unknown-changeset"
	}
}

// Changeset is a set of Items intended to commit together. A
// RevisionChangeset holds CVSRevisions destined for one commit; a
// SymbolChangeset holds the CVSBranch or CVSTag items for one symbol; an
// OrderedChangeset is a RevisionChangeset that has been assigned its fixed
// position in the final commit order (RevisionTopologicalSort freezes this
// by rewriting its Predecessor/Successor fields rather than
// allocating a new id, so OrderedChangesetKind changesets keep their
// originating RevisionChangeset's ID).
type Changeset struct {
	ID      ChangesetID
	Kind    ChangesetKind
	Symbol  SymbolID // meaningful only for SymbolChangesetKind
	Members *setutil.OrderedSet

	// Predecessor/Successor hold the fixed commit-order neighbors once this
	// changeset has been frozen into an OrderedChangeset; both are
	// NoChangeset beforehand.
	Predecessor ChangesetID
	Successor   ChangesetID
}

// NewChangeset allocates an unfrozen changeset of the given kind.
func NewChangeset(id ChangesetID, kind ChangesetKind, symbol SymbolID, members ...ItemID) *Changeset {
	set := setutil.NewOrderedSet()
	for _, m := range members {
		set.Add(setutil.ID(m))
	}
	return &Changeset{
		ID:          id,
		Kind:        kind,
		Symbol:      symbol,
		Members:     set,
		Predecessor: NoChangeset,
		Successor:   NoChangeset,
	}
}

// Items returns the changeset's member item ids.
func (c *Changeset) Items() []ItemID {
	vals := c.Members.Values()
	out := make([]ItemID, len(vals))
	for i, v := range vals {
		out[i] = ItemID(v)
	}
	return out
}

// Contains reports whether item is a member of c.
func (c *Changeset) Contains(item ItemID) bool {
	return c.Members.Contains(setutil.ID(item))
}

// Freeze converts a RevisionChangeset into an OrderedChangeset in place,
// recording its fixed predecessor and successor in the final commit order.
// Per SPEC_FULL.md §4.8, this is the only transition into
// OrderedChangesetKind; it is irreversible for the lifetime of the run.
func (c *Changeset) Freeze(predecessor, successor ChangesetID) {
	if c.Kind != RevisionChangesetKind {
		panic("model: only a RevisionChangeset can be frozen into an OrderedChangeset")
	}
	c.Kind = OrderedChangesetKind
	c.Predecessor = predecessor
	c.Successor = successor
}

// ChangesetTable owns the Changeset arena, analogous to ItemTable.
type ChangesetTable struct {
	changesets map[ChangesetID]*Changeset
	nextID     ChangesetID
}

// NewChangesetTable returns an empty arena.
func NewChangesetTable() *ChangesetTable {
	return &ChangesetTable{changesets: make(map[ChangesetID]*Changeset), nextID: 1}
}

// New allocates a fresh changeset of the given kind and members.
func (t *ChangesetTable) New(kind ChangesetKind, symbol SymbolID, members ...ItemID) *Changeset {
	c := NewChangeset(t.nextID, kind, symbol, members...)
	t.changesets[c.ID] = c
	t.nextID++
	return c
}

// Lookup returns the changeset with the given id, or nil.
func (t *ChangesetTable) Lookup(id ChangesetID) *Changeset {
	return t.changesets[id]
}

// Delete removes a changeset from the arena, e.g. after a split replaces it
// with two new changesets.
func (t *ChangesetTable) Delete(id ChangesetID) {
	delete(t.changesets, id)
}

// Adopt inserts a changeset decoded from disk (DecodeChangeset) into the
// arena as-is, advancing nextID past it so subsequently-allocated
// changesets (e.g. from a split) never collide with a loaded id.
func (t *ChangesetTable) Adopt(c *Changeset) {
	t.changesets[c.ID] = c
	if c.ID >= t.nextID {
		t.nextID = c.ID + 1
	}
}

// All returns every live changeset, in an unspecified order.
func (t *ChangesetTable) All() []*Changeset {
	out := make([]*Changeset, 0, len(t.changesets))
	for _, c := range t.changesets {
		out = append(out, c)
	}
	return out
}
