// Package cvserrors defines the typed error taxonomy of SPEC_FULL.md §7:
// which failures are file-level and recoverable, and which abort a pass
// before it finalizes its outputs so the next run can resume cleanly from
// the prior pass boundary.
//
// SPDX-License-Identifier: BSD-2-Clause
package cvserrors

import "fmt"

// CollectError wraps a structural failure parsing one RCS file. It is
// recoverable: Collect logs it and skips the file, continuing with the
// rest of the project.
type CollectError struct {
	File string
	Err  error
}

func (e *CollectError) Error() string {
	return fmt.Sprintf("collect: %s: %v", e.File, e.Err)
}

func (e *CollectError) Unwrap() error { return e.Err }

// SymbolPolicyError reports a symbol marked excluded despite one of its
// blockers remaining included. It aborts CollateSymbols before any
// downstream file is written.
type SymbolPolicyError struct {
	Symbol   string
	Blockers []string
}

func (e *SymbolPolicyError) Error() string {
	return fmt.Sprintf("collate: symbol %q excluded but blocker(s) %v are not", e.Symbol, e.Blockers)
}

// EncodingError reports metadata text that could not be re-encoded in any
// configured candidate encoding. It aborts CleanMetadata.
type EncodingError struct {
	MetadataID uint32
	Tried      []string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("cleanmetadata: metadata id %d unencodable in any of %v", e.MetadataID, e.Tried)
}

// UnbreakableCycleError reports a changeset cycle that no further split
// could reduce — a programmer error or an archive pathology, never
// silently worked around. It aborts the cycle-breaking pass.
type UnbreakableCycleError struct {
	Changesets []uint64
}

func (e *UnbreakableCycleError) Error() string {
	return fmt.Sprintf("cycle-breaking exhausted without reducing cycle over changesets %v", e.Changesets)
}

// IntegrityError reports an internal consistency violation: a reference to
// an unknown id, or changeset membership disagreeing with the item to
// changeset map. These are invariant violations, not user-facing errors,
// and always abort the pass.
type IntegrityError struct {
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s", e.Detail)
}
