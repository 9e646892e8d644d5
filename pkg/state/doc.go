// Package state persists the runtime pairs of resolver contexts so they can
// be restored when a context is created or reinitialised.
//
// A Store loads and saves one Snapshot per Ref. A Ref names a context by its
// mapping file, the same value resolver contexts use for identity, so two
// contexts sharing a mapping file share a snapshot.
//
// Data flow:
//
//	Capture(ctx, store, ref, rc) -> Store.Save
//	Store.Load -> Seeder.Initialize -> rc.AddMappingPair / rc.AddCachingPair
//
// Concurrency control:
//
//	Meta.ETag is recomputed on every save. Passing the ETag from a previous
//	load to Save or Mutate rejects the write with ErrETagMismatch when the
//	stored snapshot changed in between.
package state
