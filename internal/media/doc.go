// Package media defines the title, version, and cleanup-entry types shared by
// the cleanup engine, the reconciler, and the SQLite store.
//
// The Winner type is the only place that knows how a kept-version decision is
// written to the cleanup index: a bare version ID for the classic keep-one
// mode, or a JSON array when one version is kept per resolution bucket.
package media
