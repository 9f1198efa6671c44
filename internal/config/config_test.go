package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/backlinkscan/internal/plan"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// Changes to defaults must be intentional, so each one is pinned here.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Timeout is 15 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 15*time.Second {
			t.Errorf("expected Timeout to be 15s, got %v", cfg.Timeout)
		}
	})

	t.Run("default crawl bounds", func(t *testing.T) {
		t.Parallel()
		if cfg.CrawlDepth != 2 {
			t.Errorf("expected CrawlDepth to be 2, got %d", cfg.CrawlDepth)
		}
		if cfg.MaxPages != 10 {
			t.Errorf("expected MaxPages to be 10, got %d", cfg.MaxPages)
		}
		if cfg.MaxLinks != 1000 {
			t.Errorf("expected MaxLinks to be 1000, got %d", cfg.MaxLinks)
		}
	})

	t.Run("default batch sizes", func(t *testing.T) {
		t.Parallel()
		if cfg.ReindexBatchSize != 5 {
			t.Errorf("expected ReindexBatchSize to be 5, got %d", cfg.ReindexBatchSize)
		}
		if cfg.ReportBatchSize != 3 {
			t.Errorf("expected ReportBatchSize to be 3, got %d", cfg.ReportBatchSize)
		}
	})

	t.Run("default report interval is 7 days", func(t *testing.T) {
		t.Parallel()
		if cfg.ReportInterval != 7*24*time.Hour {
			t.Errorf("expected ReportInterval to be 168h, got %v", cfg.ReportInterval)
		}
	})

	t.Run("default DBDir is the XDG data dir", func(t *testing.T) {
		t.Parallel()
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir %q, got %q", XDGDataDir(), cfg.DBDir)
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected defaults to validate, got %v", err)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case breaks exactly one rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative render timeout", func(c *Config) { c.RenderTimeout = -time.Second }, ErrInvalidTimeout},
		{"zero scan timeout", func(c *Config) { c.ScanTimeout = 0 }, ErrInvalidTimeout},
		{"negative crawl depth", func(c *Config) { c.CrawlDepth = -1 }, ErrInvalidCrawlDepth},
		{"zero max pages", func(c *Config) { c.MaxPages = 0 }, ErrInvalidCrawlBounds},
		{"zero max links", func(c *Config) { c.MaxLinks = 0 }, ErrInvalidCrawlBounds},
		{"negative crawl delay", func(c *Config) { c.CrawlDelay = -time.Millisecond }, ErrInvalidCrawlDelay},
		{"negative body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"zero reindex batch", func(c *Config) { c.ReindexBatchSize = 0 }, ErrInvalidBatchSize},
		{"negative report batch", func(c *Config) { c.ReportBatchSize = -1 }, ErrInvalidBatchSize},
		{"zero stale after", func(c *Config) { c.StaleAfter = 0 }, ErrInvalidInterval},
		{"zero report interval", func(c *Config) { c.ReportInterval = 0 }, ErrInvalidInterval},
		{"unknown report format", func(c *Config) { c.ReportFormat = "html" }, ErrInvalidReportFormat},
		{"zero rate limit", func(c *Config) { c.RateLimit = 0 }, ErrInvalidRateLimit},
		{"zero burst", func(c *Config) { c.RateBurst = 0 }, ErrInvalidRateLimit},
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }, ErrNoListenAddr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("zero crawl depth and delay are valid", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.CrawlDepth = 0
		cfg.CrawlDelay = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	for _, format := range []string{FormatText, FormatJSON, FormatMarkdown} {
		t.Run("format "+format+" is valid", func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig()
			cfg.ReportFormat = format
			if err := cfg.Validate(); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("nil file yields empty config", func(t *testing.T) {
		t.Parallel()

		var file *File
		cfg := file.GetSiteConfig("example.com")
		if cfg.Depth != 0 || cfg.Cookie != "" || cfg.Headers != nil {
			t.Errorf("expected empty site config, got %+v", cfg)
		}
	})

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{Depth: 3, Cookie: "consent=yes"},
			Sites:    map[string]SiteConfig{},
		}

		cfg := file.GetSiteConfig("unknown.com")
		if cfg.Depth != 3 {
			t.Errorf("expected depth 3, got %d", cfg.Depth)
		}
		if cfg.Cookie != "consent=yes" {
			t.Errorf("expected default cookie, got %q", cfg.Cookie)
		}
	})

	t.Run("site values override defaults", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{Depth: 3, Cookie: "consent=yes", IgnorePatterns: []string{"/tag/*"}},
			Sites: map[string]SiteConfig{
				"example.com": {Depth: 1, Cookie: "session=xyz", IgnorePatterns: []string{"/search*"}},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.Depth != 1 {
			t.Errorf("expected depth 1, got %d", cfg.Depth)
		}
		if cfg.Cookie != "session=xyz" {
			t.Errorf("expected site cookie, got %q", cfg.Cookie)
		}
		if len(cfg.IgnorePatterns) != 1 || cfg.IgnorePatterns[0] != "/search*" {
			t.Errorf("expected site ignore patterns, got %v", cfg.IgnorePatterns)
		}
	})

	t.Run("merges headers without mutating defaults", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{Headers: map[string]string{"Accept-Language": "en"}},
			Sites: map[string]SiteConfig{
				"example.com": {Headers: map[string]string{"X-Preview": "1"}},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if len(cfg.Headers) != 2 {
			t.Fatalf("expected 2 headers, got %v", cfg.Headers)
		}
		if len(file.Defaults.Headers) != 1 {
			t.Errorf("defaults were mutated: %v", file.Defaults.Headers)
		}
	})
}

func TestConfigSpiderOptionsAndClient(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Env.Proxy = "127.0.0.1:1080"
	cfg.File = &File{
		Sites: map[string]SiteConfig{
			"example.com": {
				Depth:          1,
				Cookie:         "consent=yes",
				Headers:        map[string]string{"X-Preview": "1"},
				FollowPatterns: []string{"/blog/*"},
			},
		},
	}

	t.Run("site with patterns gets extra options", func(t *testing.T) {
		t.Parallel()
		if got := len(cfg.SpiderOptions("example.com")); got != 5 {
			t.Errorf("expected 5 options, got %d", got)
		}
		if got := len(cfg.SpiderOptions("other.com")); got != 4 {
			t.Errorf("expected 4 options, got %d", got)
		}
	})

	t.Run("client config carries proxy and site transport settings", func(t *testing.T) {
		t.Parallel()
		cc := cfg.ClientConfig("example.com")
		if cc.Proxy != "127.0.0.1:1080" {
			t.Errorf("expected proxy, got %q", cc.Proxy)
		}
		if cc.Site != "example.com" {
			t.Errorf("expected cookie and headers scoped to example.com, got %q", cc.Site)
		}
		if cc.Cookie != "consent=yes" || cc.Headers["X-Preview"] != "1" {
			t.Errorf("expected site cookie and headers, got %+v", cc)
		}
		if !cfg.File.GetSiteConfig("example.com").HasTransportSettings() {
			t.Error("expected example.com to need its own client")
		}
		if cfg.File.GetSiteConfig("other.com").HasTransportSettings() {
			t.Error("expected other.com to use the shared client")
		}
	})
}

func TestConfigCrawlDepthFor(t *testing.T) {
	t.Parallel()

	file := &File{
		Defaults: SiteConfig{Depth: 2},
		Sites:    map[string]SiteConfig{"example.com": {Depth: 4}},
	}

	tests := []struct {
		name   string
		depth  int
		set    bool
		domain string
		want   int
	}{
		{"site entry beats defaults", DefaultCrawlDepth, false, "example.com", 4},
		{"file defaults beat flag default", 1, false, "other.com", 2},
		{"explicit flag beats site entry", 5, true, "example.com", 5},
		{"explicit zero keeps home page only", 0, true, "other.com", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig()
			cfg.File = file
			cfg.CrawlDepth = tt.depth
			cfg.CrawlDepthSet = tt.set
			if got := cfg.CrawlDepthFor(tt.domain); got != tt.want {
				t.Errorf("expected depth %d, got %d", tt.want, got)
			}
		})
	}

	t.Run("no file uses flag value", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.CrawlDepth = 3
		if got := cfg.CrawlDepthFor("example.com"); got != 3 {
			t.Errorf("expected depth 3, got %d", got)
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.backlinkscan")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads plans sites and schedules", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)

		content := `plans:
  starter:
    daily_scans: 40
    reports: true
    sample_links: 150
    monitored_domains: 8
defaults:
  depth: 2
sites:
  example.com:
    depth: 1
    cookie: "consent=yes"
    headers:
      X-Preview: "1"
    ignorePatterns:
      - "/search*"
schedules:
  reindex: "*/5 * * * *"
  reports: ""
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		site, ok := cf.Sites["example.com"]
		if !ok {
			t.Fatal("expected example.com in sites")
		}
		if site.Depth != 1 || site.Headers["X-Preview"] != "1" || len(site.IgnorePatterns) != 1 {
			t.Errorf("unexpected site config: %+v", site)
		}

		sched := cf.Schedule()
		if sched.Reindex != "*/5 * * * *" {
			t.Errorf("expected reindex schedule, got %q", sched.Reindex)
		}
		if sched.Reports != "" {
			t.Errorf("expected reports job disabled, got %q", sched.Reports)
		}

		catalog, err := cf.Catalog()
		if err != nil {
			t.Fatalf("unexpected catalog error: %v", err)
		}
		starter := catalog.Get(plan.TierStarter)
		if starter.DailyScans != 40 || starter.SampleLinks != 150 || starter.MonitoredDomains != 8 {
			t.Errorf("expected starter override, got %+v", starter)
		}
		if catalog.Get(plan.TierPro).DailyScans != plan.DefaultCatalog().Get(plan.TierPro).DailyScans {
			t.Error("expected pro plan to keep its defaults")
		}
	})

	t.Run("unknown plan is rejected by Catalog", func(t *testing.T) {
		t.Parallel()
		cf := &File{Plans: map[string]plan.Plan{"platinum": {DailyScans: 1}}}
		if _, err := cf.Catalog(); err == nil {
			t.Error("expected error for unknown plan")
		}
	})

	t.Run("invalid schedule is rejected", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := "schedules:\n  reindex: \"every minute\"\n"
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfigFile(configPath)
		if !errors.Is(err, ErrInvalidSchedule) {
			t.Fatalf("expected ErrInvalidSchedule, got %v", err)
		}
		if !strings.Contains(err.Error(), "reindex") {
			t.Errorf("expected job name in error, got %v", err)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Sites map and default schedules", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(configPath, []byte("defaults:\n  depth: 1\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
		if got := cf.Schedule(); got.Reindex != DefaultReindexSchedule || got.Reports != DefaultReportSchedule {
			t.Errorf("expected default schedules, got %+v", got)
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()
		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

func TestLoadEnv(t *testing.T) {
	t.Parallel()

	writeEnv := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		return path
	}
	noEnv := func(string) (string, bool) { return "", false }

	t.Run("reads values from the dotenv file", func(t *testing.T) {
		t.Parallel()
		path := writeEnv(t, "BACKLINKSCAN_RENDER_URL=https://render.example.com\n"+
			"BACKLINKSCAN_CRON_SECRET=s3cret\n"+
			"BACKLINKSCAN_SMTP_HOST=smtp.example.com\n"+
			"BACKLINKSCAN_SMTP_PORT=2525\n"+
			"BACKLINKSCAN_SMTP_FROM=reports@example.com\n")

		env, err := LoadEnv(noEnv, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.RenderURL != "https://render.example.com" || env.CronSecret != "s3cret" {
			t.Errorf("unexpected env: %+v", env)
		}
		if env.SMTP.Port != 2525 || !env.SMTP.Configured() {
			t.Errorf("expected configured smtp on port 2525, got %+v", env.SMTP)
		}
	})

	t.Run("process environment wins over the file", func(t *testing.T) {
		t.Parallel()
		path := writeEnv(t, "BACKLINKSCAN_CRON_SECRET=from-file\nBACKLINKSCAN_PROXY=127.0.0.1:1080\n")
		lookup := func(key string) (string, bool) {
			if key == EnvCronSecret {
				return "from-process", true
			}
			return "", false
		}

		env, err := LoadEnv(lookup, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.CronSecret != "from-process" {
			t.Errorf("expected process value, got %q", env.CronSecret)
		}
		if env.Proxy != "127.0.0.1:1080" {
			t.Errorf("expected file value for proxy, got %q", env.Proxy)
		}
	})

	t.Run("first file wins", func(t *testing.T) {
		t.Parallel()
		first := writeEnv(t, "BACKLINKSCAN_RENDER_TOKEN=first\n")
		second := writeEnv(t, "BACKLINKSCAN_RENDER_TOKEN=second\n")

		env, err := LoadEnv(noEnv, first, second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.RenderToken != "first" {
			t.Errorf("expected first file to win, got %q", env.RenderToken)
		}
	})

	t.Run("missing files are skipped", func(t *testing.T) {
		t.Parallel()
		env, err := LoadEnv(noEnv, filepath.Join(t.TempDir(), "missing.env"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.SMTP.Configured() {
			t.Error("expected smtp to be unconfigured")
		}
	})

	t.Run("invalid smtp port is rejected", func(t *testing.T) {
		t.Parallel()
		path := writeEnv(t, "BACKLINKSCAN_SMTP_PORT=smtp\n")
		if _, err := LoadEnv(noEnv, path); err == nil {
			t.Error("expected error for invalid port")
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if dir := XDGDataDir(); !strings.HasSuffix(dir, AppName) {
		t.Errorf("expected data dir ending in %q, got %q", AppName, dir)
	}
	if dir := XDGConfigDir(); !strings.HasSuffix(dir, AppName) {
		t.Errorf("expected config dir ending in %q, got %q", AppName, dir)
	}
}
