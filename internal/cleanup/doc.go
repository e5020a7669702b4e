// Package cleanup ranks competing versions of one title and turns the
// ranking into keep/delete decisions.
//
// Normalize maps loosely typed asset details onto comparable Version values
// and never fails. Compare walks an ordered RuleSet and returns the first
// decisive verdict; scalar rules have tolerance bands, categorical rules rank
// by a priority list. SelectBest picks one winner, or one winner per
// resolution bucket.
//
// Scanner applies the selector to every multi-version title in the metadata
// cache and replaces the pending cleanup entries. Executor deletes the losing
// versions of approved entries through the media server and marks the
// entries processed.
package cleanup
