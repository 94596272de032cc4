package model

import "crypto/sha1"

// Digest is a 20-byte SHA-1 digest used to intern (author, log message)
// pairs without storing the text on every revision that shares them.
type Digest [sha1.Size]byte

// Metadata is an interned (author, log message) pair, optionally scoped by
// project and/or branch name when cross-project or cross-branch commits are
// disallowed (SPEC_FULL.md §4.1 "Metadata interning").
type Metadata struct {
	ID     MetadataID
	Author string
	Log    string
}

// DigestKey builds the digest cvs2svn_lib hashes metadata by: author + log
// text, plus project id when cross-project commits are disallowed, plus
// branch name when cross-branch commits are disallowed. Each disambiguator
// is hashed only when its include flag is set; a zero value whose flag is
// set is still hashed.
func DigestKey(author, log string, project ProjectID, includeProject bool, branch string, includeBranch bool) Digest {
	h := sha1.New()
	h.Write([]byte(author))
	h.Write([]byte{0})
	h.Write([]byte(log))
	if includeProject {
		h.Write([]byte{0})
		var buf [4]byte
		for i := range buf {
			buf[i] = byte(project >> (8 * i))
		}
		h.Write(buf[:])
	}
	if includeBranch {
		h.Write([]byte{0})
		h.Write([]byte(branch))
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// MetadataTable interns Metadata by Digest, handing out stable MetadataIDs.
type MetadataTable struct {
	byDigest map[Digest]MetadataID
	byID     []*Metadata
}

// NewMetadataTable returns an empty table.
func NewMetadataTable() *MetadataTable {
	return &MetadataTable{
		byDigest: make(map[Digest]MetadataID),
		byID:     []*Metadata{nil},
	}
}

// Intern returns the MetadataID for (digest, author, log), allocating a new
// entry only the first time digest is seen.
func (t *MetadataTable) Intern(digest Digest, author, log string) MetadataID {
	if id, ok := t.byDigest[digest]; ok {
		return id
	}
	id := MetadataID(len(t.byID))
	t.byID = append(t.byID, &Metadata{ID: id, Author: author, Log: log})
	t.byDigest[digest] = id
	return id
}

// Lookup returns the interned Metadata, or nil if id is unknown.
func (t *MetadataTable) Lookup(id MetadataID) *Metadata {
	if int(id) >= len(t.byID) {
		return nil
	}
	return t.byID[id]
}

// All returns every interned Metadata (index 0 is always nil and is
// skipped).
func (t *MetadataTable) All() []*Metadata {
	if len(t.byID) == 0 {
		return nil
	}
	return t.byID[1:]
}

// LoadMetadataTable rebuilds a MetadataTable from a flat list (as returned
// by All), recomputing the digest index from author+log with the same
// disambiguators used when the table was first built.
func LoadMetadataTable(metas []*Metadata, digestOf func(*Metadata) Digest) *MetadataTable {
	t := NewMetadataTable()
	for _, m := range metas {
		t.byID = append(t.byID, m)
		t.byDigest[digestOf(m)] = m.ID
	}
	return t
}
