// Package daemon coordinates the long-running reelkeep process.
//
// It serves the HTTP API, fires scheduled reconciles and scans through
// robfig/cron, and holds a flock-based lock so only one daemon runs per state
// directory. Tasks themselves go through the shared tasks.Runner, whose own
// lock keeps CLI invocations from overlapping with scheduled work.
//
// Keep orchestration here: scanning, execution and reconciliation live in
// their own packages while the daemon handles startup, shutdown and timing.
package daemon
