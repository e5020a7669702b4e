// Package main hosts the reelkeep CLI entrypoint and command graph.
//
// Commands operate on the local state database directly: scans, cleanup
// executions and reconciles run in the foreground through the same task
// runner the daemon uses, so the runner's lock file keeps a CLI run from
// overlapping with a scheduled one. "reelkeep daemon" starts the HTTP API and
// scheduler in the foreground.
//
// Keep this package lean: add new functionality in the internal packages
// first, then surface it through dedicated commands or flags here.
package main
