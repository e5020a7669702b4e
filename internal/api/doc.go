// Package api exposes reelkeep's operations to the CLI and over HTTP.
//
// # Service
//
// Service wraps the store, media server client, metadata provider and task
// runner. Quick operations (listing, ignore, delete, settings) run inline.
// Scans, cleanup executions and reconciles are built as tasks.Func values:
// the CLI runs them synchronously through Runner.Run while the daemon queues
// them with Runner.Submit.
//
// # HTTP
//
// NewHandler serves the /api routes behind optional bearer authentication
// and /metrics without it. Long operations answer 202 with the task ID;
// 409 means another task holds the runner. Errors are classified with
// services.HTTPStatus and written as {"error": "..."}.
//
// DTOs use snake_case JSON to match the web UI that consumes them.
package api
