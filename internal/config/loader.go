package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/nao1215/backlinkscan/internal/plan"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".backlinkscan"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// scheduleParser accepts standard five-field cron expressions.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Schedules holds the cron expressions of the background jobs run by serve.
type Schedules struct {
	// Reindex triggers a reindex pass. Empty disables the job.
	Reindex string `yaml:"reindex,omitempty"`

	// Reports triggers a report pass. Empty disables the job.
	Reports string `yaml:"reports,omitempty"`
}

// File represents the structure of the .backlinkscan configuration file.
type File struct {
	// Plans overrides the built-in plan limits by tier name.
	Plans map[string]plan.Plan `yaml:"plans,omitempty"`

	// Sites maps target domains to their site-specific configurations.
	// Keys are normalized domains (e.g., "example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Schedules configures the background jobs of the API server.
	// A nil value means the built-in schedules.
	Schedules *Schedules `yaml:"schedules,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	if err := cf.Schedule().Validate(); err != nil {
		return nil, err
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .backlinkscan in the current directory
// 3. Look for .backlinkscan in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// Catalog returns the built-in plans with the file's overrides applied.
// A nil File yields the built-in plans.
func (cf *File) Catalog() (plan.Catalog, error) {
	if cf == nil || len(cf.Plans) == 0 {
		return plan.DefaultCatalog(), nil
	}
	return plan.DefaultCatalog().Merge(cf.Plans)
}

// Schedule returns the configured schedules, or the built-in ones when the
// file has no schedules section.
func (cf *File) Schedule() Schedules {
	if cf == nil || cf.Schedules == nil {
		return Schedules{Reindex: DefaultReindexSchedule, Reports: DefaultReportSchedule}
	}
	return *cf.Schedules
}

// Validate checks that every non-empty schedule parses.
func (s Schedules) Validate() error {
	jobs := []struct{ name, spec string }{
		{"reindex", s.Reindex},
		{"reports", s.Reports},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		if _, err := scheduleParser.Parse(job.spec); err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrInvalidSchedule, job.name, job.spec, err)
		}
	}
	return nil
}

// ScheduleParser returns the parser used to validate schedules, so the
// scheduler accepts exactly what the configuration accepts.
func ScheduleParser() cron.Parser {
	return scheduleParser
}
