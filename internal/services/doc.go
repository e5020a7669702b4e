// Package services defines shared utilities consumed by the cleanup engine,
// the reconciler, and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, task names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified into HTTP responses and task statuses consistently.
package services
