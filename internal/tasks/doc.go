// Package tasks runs reelkeep's long operations (library scans, cleanup
// execution and reconciles) one at a time, tracking progress for the API.
//
// A Runner serialises tasks in-process and through a lock file in the state
// directory, so a CLI invocation and the daemon never mutate the library at
// the same time.
package tasks
