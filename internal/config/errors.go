package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling.
var (
	// ErrInvalidTimeout is returned when a fetch, render or scan timeout is
	// not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDepth is returned when the crawl depth is negative.
	ErrInvalidCrawlDepth = errors.New("invalid crawl depth: must be non-negative")

	// ErrInvalidCrawlBounds is returned when max pages or max links is not positive.
	ErrInvalidCrawlBounds = errors.New("invalid crawl bounds: max pages and max links must be positive")

	// ErrInvalidBatchSize is returned when a reindex or report batch size is
	// not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidInterval is returned when the stale-after or report interval
	// is not positive.
	ErrInvalidInterval = errors.New("invalid interval: must be positive")

	// ErrInvalidReportFormat is returned for a report format other than
	// text, json or markdown.
	ErrInvalidReportFormat = errors.New("invalid report format: must be text, json or markdown")

	// ErrInvalidRateLimit is returned when the API rate or burst is not positive.
	ErrInvalidRateLimit = errors.New("invalid rate limit: rate and burst must be positive")

	// ErrNoListenAddr is returned when the API listen address is empty.
	ErrNoListenAddr = errors.New("no listen address specified")

	// ErrInvalidSchedule is returned when a cron schedule in the
	// configuration file cannot be parsed.
	ErrInvalidSchedule = errors.New("invalid schedule")
)
