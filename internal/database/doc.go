// Package database provides SQLite-based storage for backlinkscan.
//
// This package implements the LinkDB, which stores:
//   - Targets (monitored domains) and their last-indexed time
//   - Scans and the raw link observations each scan produced
//   - The aggregated backlink index rebuilt by the reindex job
//   - Account data: daily quota usage, subscriptions, monitored domains,
//     report delivery log and API keys
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of a
// database server because:
//  1. No external dependencies - the database is a single file
//  2. CGO-free implementation allows easy cross-compilation
//  3. WAL mode gives enough concurrent read throughput for the API
//
// Timestamps are stored as fixed-width UTC RFC 3339 text so that string
// comparison in SQL matches chronological order.
package database
