package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/nao1215/backlinkscan/internal/report"
)

// Environment variables read by LoadEnv.
const (
	EnvRenderURL    = "BACKLINKSCAN_RENDER_URL"
	EnvRenderToken  = "BACKLINKSCAN_RENDER_TOKEN"
	EnvCronSecret   = "BACKLINKSCAN_CRON_SECRET"
	EnvSMTPHost     = "BACKLINKSCAN_SMTP_HOST"
	EnvSMTPPort     = "BACKLINKSCAN_SMTP_PORT"
	EnvSMTPUsername = "BACKLINKSCAN_SMTP_USERNAME"
	EnvSMTPPassword = "BACKLINKSCAN_SMTP_PASSWORD"
	EnvSMTPFrom     = "BACKLINKSCAN_SMTP_FROM"
	EnvProxy        = "BACKLINKSCAN_PROXY"
)

// DefaultEnvFile is the dotenv file looked up by DefaultEnvFiles.
const DefaultEnvFile = ".env"

// Env holds secrets and endpoints that never appear on the command line.
type Env struct {
	// RenderURL is the rendering service endpoint used by pro scans.
	// Empty means pro scans fall back to direct fetching.
	RenderURL string

	// RenderToken authenticates against the rendering service.
	RenderToken string

	// CronSecret protects the cron endpoints. Empty disables them.
	CronSecret string

	// SMTP configures report delivery. When not configured, reports are
	// logged instead of sent.
	SMTP report.SMTPConfig

	// Proxy is an optional SOCKS5 egress proxy for direct fetches.
	Proxy string
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// DefaultEnvFiles returns the dotenv files read by the CLI: one in the
// current directory and one in the XDG config directory. The first file
// that defines a key wins.
func DefaultEnvFiles() []string {
	return []string{DefaultEnvFile, filepath.Join(XDGConfigDir(), "env")}
}

// LoadEnv reads Env from the process environment, falling back to the given
// dotenv files. Missing files are skipped. The process environment always
// wins so deployments can override a checked-in .env file.
//
// Design decision: files are parsed with godotenv.Read instead of
// godotenv.Load so that loading never mutates the process environment,
// which keeps tests independent of each other.
func LoadEnv(lookup LookupFunc, files ...string) (Env, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	fromFiles := make(map[string]string)
	for _, f := range files {
		values, err := godotenv.Read(f)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Env{}, fmt.Errorf("failed to read %s: %w", f, err)
		}
		for k, v := range values {
			if _, ok := fromFiles[k]; !ok {
				fromFiles[k] = v
			}
		}
	}

	get := func(key string) string {
		if v, ok := lookup(key); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(fromFiles[key])
	}

	env := Env{
		RenderURL:   get(EnvRenderURL),
		RenderToken: get(EnvRenderToken),
		CronSecret:  get(EnvCronSecret),
		Proxy:       get(EnvProxy),
		SMTP: report.SMTPConfig{
			Host:     get(EnvSMTPHost),
			Username: get(EnvSMTPUsername),
			Password: get(EnvSMTPPassword),
			From:     get(EnvSMTPFrom),
		},
	}
	if port := get(EnvSMTPPort); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n > 65535 {
			return Env{}, fmt.Errorf("invalid %s: %q", EnvSMTPPort, port)
		}
		env.SMTP.Port = n
	}
	return env, nil
}
