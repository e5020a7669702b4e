// Package reconcile keeps the metadata cache in step with the media server.
//
// A run loads the item IDs the cache believes are in the library, scans the
// server, and diffs the two. New titles and series whose seasons or episodes
// were added or removed are queued for enrichment against TMDB; movies and
// series that disappeared from the server are marked offline together with
// their children. Queued titles are processed in batches: provider details
// are fetched with bounded concurrency, rows are written one savepoint at a
// time, and children of each reprocessed series that were not written in the
// batch are marked offline.
package reconcile
