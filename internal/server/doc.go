// Package server exposes the scan pipeline, the batch jobs and the backlink
// index over a JSON HTTP API.
//
// Routes:
//   - POST /api/v1/scan: on-demand scan
//   - GET  /api/v1/targets/{domain}/links: indexed links with a summary
//   - GET  /api/v1/quota: the caller's daily usage
//   - POST /api/v1/cron/reindex and /api/v1/cron/reports: batch triggers,
//     authorized by the cron secret
//   - GET  /healthz and /metrics
//
// Every API response is a JSON object with an "ok" field. Failures carry a
// machine-readable "error" code and a "message" that is safe to show to end
// users.
package server
