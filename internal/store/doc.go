// Package store persists the metadata cache, the cleanup index, and app
// settings in SQLite.
//
// media_metadata is keyed by (tmdb_id, item_type) and holds one row per movie,
// series, season, and episode with the media server item IDs and per-version
// asset details observed at the last reconcile. cleanup_index holds the
// duplicate-removal decisions produced by scans; scans replace only the
// pending rows so ignored and processed entries survive. app_settings stores
// arbitrary JSON values by key.
//
// Every logical write runs in its own transaction. WriteBatch isolates each
// row behind a savepoint so one bad row does not abort the batch.
//
// Schema changes bump the version in schema.go. Additive changes ship as
// numbered files under migrations/.
package store
