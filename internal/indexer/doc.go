// Package indexer folds raw link observations into the per-target link index.
//
// The index is never patched: every pass loads the full observation history
// of a target, reduces it, and replaces the target's rows. This keeps
// first-seen, last-seen and scan counts consistent with the stored scans at
// the cost of re-reading history on every pass.
package indexer
