// Package model defines the stable-identity data model shared by every
// pass of the pipeline: Project, CVSPath, Symbol, Metadata, the tagged
// CVSRevision/CVSBranch/CVSTag item variant, and the three changeset kinds.
//
// SPDX-License-Identifier: BSD-2-Clause
package model

// Entity ids are narrow distinct integer types, following the teacher
// repository's convention (revidx/markidx/blobidx) of avoiding bare ints
// or strings for identities that are allocated once in Collect and never
// change afterward. Keeping them distinct types, not aliases, makes it a
// compile error to pass a SymbolID where an ItemID is expected.

// ProjectID identifies a root within the archive.
type ProjectID uint32

// PathID identifies a file or directory in the archive.
type PathID uint32

// SymbolID identifies a named tag or branch observed in one project.
type SymbolID uint32

// MetadataID identifies an interned (author, log message) pair.
type MetadataID uint32

// ItemID identifies one CVSRevision, CVSBranch, or CVSTag. Items share one
// id space, per the "polymorphic item set" design note.
type ItemID uint64

// ChangesetID identifies a RevisionChangeset, SymbolChangeset, or
// OrderedChangeset. Changesets share one id space distinct from item ids.
type ChangesetID uint64

// NoItem is the zero value meaning "no such item" (e.g. a revision with no
// predecessor).
const NoItem ItemID = 0

// NoSymbol is the zero value meaning "trunk" when used as a line-of-
// development reference.
const NoSymbol SymbolID = 0

// NoChangeset is the zero value meaning "not yet assigned to a changeset".
const NoChangeset ChangesetID = 0
