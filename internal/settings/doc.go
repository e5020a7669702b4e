// Package settings loads and saves the cleanup preferences kept in the
// app_settings table: the ranking rules, the library scope, and the
// keep-one-per-resolution flag.
//
// Load always returns a complete rule set. Saved rules are merged over the
// defaults, legacy priority spellings are migrated, and rules introduced
// after the settings were saved are appended with their defaults. Callers
// load once per task and pass the result down by value.
package settings
