// Package model defines the core data structures used throughout backlinkscan.
//
// This package contains the following main types:
//   - Target: A domain being monitored for links
//   - Scan: One crawl execution against a Target
//   - LinkObservation: One off-domain anchor discovered during a Scan
//   - IndexedLink: The deduplicated aggregate of observations for a link
//   - QuotaUsage, Subscription, Caller: Account-side state consumed by the scan pipeline
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, indexer, database and report packages all need
// these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for API responses and
// report output.
package model
