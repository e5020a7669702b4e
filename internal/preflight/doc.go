// Package preflight provides readiness checks for the media server, the
// metadata provider and the state directory reelkeep depends on.
//
// The daemon runs RunAll once at startup and logs failures. The CLI
// "reelkeep status" command prints every result.
package preflight
