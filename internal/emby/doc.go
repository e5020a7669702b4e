// Package emby talks to an Emby (or API-compatible Jellyfin) server: paged
// item listings scoped to libraries, single item lookups, version deletion,
// metadata refresh triggers, and the conversion of an item's media sources
// into the per-version asset details the cleanup engine ranks.
package emby
