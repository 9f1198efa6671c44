// Package log provides the structured logging helpers shared by every
// backlinkscan component, built on top of the standard slog package.
//
// # Redaction
//
// SecureHandler wraps any slog.Handler and masks sensitive attributes before
// they reach the output:
//   - HTTP credentials (Authorization, Cookie, X-Api-Key)
//   - API keys handed to the HTTP API
//   - the rendering service token, cron secret and SMTP password
//   - values that look like bearer tokens, JWTs or long random keys
//
// Verbose mode never disables redaction. Logs from a scan service end up in
// shared aggregation systems and must never carry a subscriber's key.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Info("render request", "url", target, "render_token", token) // token is masked
//
// # Best-effort writes
//
// BestEffort runs a non-critical write, such as a scan history row, and only
// logs a warning when it fails. The caller's result never depends on it.
package log
