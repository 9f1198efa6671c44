package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/backlinkscan/internal/report"
)

// Default configuration values.
// Crawl bounds are small on purpose: an on-demand scan runs inside one HTTP
// request, so it must finish well under the API scan timeout.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "backlinkscan"

	// DefaultTimeout is the per-fetch timeout for direct page requests.
	DefaultTimeout = 15 * time.Second

	// DefaultRenderTimeout is the per-page timeout for the rendering service.
	// Headless rendering waits for the network to go idle, so it is slower
	// than a direct fetch.
	DefaultRenderTimeout = 45 * time.Second

	// DefaultCrawlDepth allows the seed page plus two levels of same-site links.
	DefaultCrawlDepth = 2

	// DefaultMaxPages is the maximum number of pages fetched per scan.
	DefaultMaxPages = 10

	// DefaultMaxLinks caps the off-site anchors collected per scan.
	DefaultMaxLinks = 1000

	// DefaultCrawlDelay is the pause between fetches of the same scan.
	DefaultCrawlDelay = 250 * time.Millisecond

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultReindexBatchSize is the number of targets reindexed per pass.
	DefaultReindexBatchSize = 5

	// DefaultReportBatchSize is the number of subscribers reported per pass.
	DefaultReportBatchSize = 3

	// DefaultStaleAfter is how long an index stays fresh without new scans.
	DefaultStaleAfter = 24 * time.Hour

	// DefaultReportInterval is the minimum time between two reports to one user.
	DefaultReportInterval = 7 * 24 * time.Hour

	// DefaultListenAddr is the address the HTTP API binds to.
	DefaultListenAddr = ":8080"

	// DefaultScanTimeout bounds one on-demand scan served by the API.
	DefaultScanTimeout = 90 * time.Second

	// DefaultRateLimit is the sustained API request rate per client, per second.
	DefaultRateLimit = 2.0

	// DefaultRateBurst is the API request burst per client.
	DefaultRateBurst = 10

	// DefaultReindexSchedule runs a reindex pass every 15 minutes.
	DefaultReindexSchedule = "*/15 * * * *"

	// DefaultReportSchedule runs a report pass every hour.
	DefaultReportSchedule = "0 * * * *"
)

// Report output formats accepted by Config.ReportFormat.
const (
	FormatText     = report.FormatText
	FormatJSON     = report.FormatJSON
	FormatMarkdown = report.FormatMarkdown
)

// Config holds all configuration options for backlinkscan.
// This struct is populated from CLI flags, the optional YAML file and the
// environment, and passed through the application via dependency injection
// rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, ServerConfig) for simplicity. Secrets loaded from the
// environment live in Env so they are never confused with flag values.
type Config struct {
	// Timeout is the per-fetch timeout for direct page requests.
	Timeout time.Duration

	// RenderTimeout is the per-page timeout for the rendering service.
	RenderTimeout time.Duration

	// CrawlDepth is the maximum same-site link depth from the seed page.
	// Depth 0 means only fetch the seed page.
	CrawlDepth int

	// CrawlDepthSet marks CrawlDepth as given explicitly on the command
	// line. It then wins over depths from the config file.
	CrawlDepthSet bool

	// MaxPages is the maximum number of pages fetched per scan.
	MaxPages int

	// MaxLinks caps the number of off-site anchors collected per scan.
	MaxLinks int

	// CrawlDelay is the delay between HTTP requests during one crawl.
	CrawlDelay time.Duration

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .backlinkscan in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// File holds plan overrides, site settings and schedules loaded from the
	// configuration file. Nil when no file was found.
	File *File

	// Env holds secrets read from the environment.
	Env Env

	// DBDir is the directory path for storing the SQLite database.
	// Defaults to XDG data directory (~/.local/share/backlinkscan on Linux).
	DBDir string

	// ReportFormat selects the report writer: text, json or markdown.
	ReportFormat string

	// ReportFile is the output file path for a report preview.
	// When empty, the report is written to stdout.
	ReportFile string

	// ReindexBatchSize is the number of targets reindexed per pass.
	ReindexBatchSize int

	// ReportBatchSize is the number of subscribers reported per pass.
	ReportBatchSize int

	// StaleAfter is how long an index stays fresh without new scans.
	StaleAfter time.Duration

	// ReportInterval is the minimum time between two reports to one user.
	ReportInterval time.Duration

	// ListenAddr is the address the HTTP API binds to.
	ListenAddr string

	// ScanTimeout bounds one on-demand scan served by the API.
	ScanTimeout time.Duration

	// RateLimit is the sustained API request rate per client, per second.
	RateLimit float64

	// RateBurst is the API request burst per client.
	RateBurst int

	// TrustProxy makes the API take the client address from X-Forwarded-For.
	TrustProxy bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero. This also serves as
// documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Timeout:          DefaultTimeout,
		RenderTimeout:    DefaultRenderTimeout,
		CrawlDepth:       DefaultCrawlDepth,
		MaxPages:         DefaultMaxPages,
		MaxLinks:         DefaultMaxLinks,
		CrawlDelay:       DefaultCrawlDelay,
		MaxBodySize:      DefaultMaxBodySize,
		DBDir:            XDGDataDir(),
		ReportFormat:     FormatText,
		ReindexBatchSize: DefaultReindexBatchSize,
		ReportBatchSize:  DefaultReportBatchSize,
		StaleAfter:       DefaultStaleAfter,
		ReportInterval:   DefaultReportInterval,
		ListenAddr:       DefaultListenAddr,
		ScanTimeout:      DefaultScanTimeout,
		RateLimit:        DefaultRateLimit,
		RateBurst:        DefaultRateBurst,
	}
}

// XDGDataDir returns the XDG data directory for backlinkscan.
// On Linux: ~/.local/share/backlinkscan
// On macOS: ~/Library/Application Support/backlinkscan
// On Windows: %LOCALAPPDATA%\backlinkscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for backlinkscan.
// The .env file is looked up here after the current directory.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first sentinel error found.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
func (c *Config) Validate() error {
	if c.Timeout <= 0 || c.RenderTimeout <= 0 || c.ScanTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDepth < 0 {
		return ErrInvalidCrawlDepth
	}
	if c.MaxPages <= 0 || c.MaxLinks <= 0 {
		return ErrInvalidCrawlBounds
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.ReindexBatchSize <= 0 || c.ReportBatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.StaleAfter <= 0 || c.ReportInterval <= 0 {
		return ErrInvalidInterval
	}
	switch c.ReportFormat {
	case FormatText, FormatJSON, FormatMarkdown:
	default:
		return ErrInvalidReportFormat
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return ErrInvalidRateLimit
	}
	if c.ListenAddr == "" {
		return ErrNoListenAddr
	}
	return nil
}
