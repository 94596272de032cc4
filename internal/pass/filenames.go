package pass

// Intermediate file names, relative to the pass manager's data directory.
// Each is written by exactly one pass and read thereafter, per
// SPEC_FULL.md §5's "Shared resources" rule.
const (
	fileItems     = "items.store"      // ItemID -> gob Item, from Collect (keyed store)
	fileSymbols   = "symbols.gob"      // []*model.Symbol, from Collect, classified in place by CollateSymbols
	fileMetadata  = "metadata.gob"     // []*model.Metadata, from Collect, re-encoded in place by CleanMetadata
	filePaths     = "paths.gob"        // []*model.CVSPath, from Collect

	fileRevisions       = "revisions.stream"        // unsorted revision-stream records, from FilterSymbols
	fileRevisionsSorted  = "revisions.sorted.stream" // sorted by (metadata_id, timestamp), from Sort
	fileSymbolStream     = "symbols.stream"          // unsorted symbol-stream records, from FilterSymbols
	fileSymbolStreamSorted = "symbols.sorted.stream"  // sorted by symbol id, from Sort

	fileChangesets       = "changesets.store"   // ChangesetID -> gob Changeset, from InitializeChangesets onward
	fileItemChangesetMap = "item-changeset.gob"  // map[ItemID]ChangesetID, from InitializeChangesets onward
	fileRevisionChain    = "revision-chain.gob"  // []ChangesetID in final revision-changeset commit order, from RevisionTopologicalSort

	fileCommitOrder = "commits.stream" // final CHANGESET_ID TIMESTAMP lines, from FinalTopologicalSort

	fileCheckoutCache = "checkout.cache.gob" // internal/checkout.Cache snapshot, from Collect, pruned in place by FilterSymbols
)
