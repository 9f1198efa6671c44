package fetcher

import (
	"context"
	"log/slog"

	"github.com/nao1215/backlinkscan/internal/model"
)

// Page is a fetched document.
type Page struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after redirects. Relative links resolve against it.
	FinalURL string

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// ContentType is the Content-Type header of the final response.
	ContentType string

	// Body is the (size-limited) response body.
	Body []byte
}

// Fetcher retrieves a single page.
//
// Implementations must honor ctx cancellation and return *FetchError for
// every failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// ForMode selects the fetch strategy for a scan mode. Pro scans use the
// rendering service when one is configured and fall back to a direct fetch
// otherwise.
func ForMode(mode model.ScanMode, direct Fetcher, render Fetcher, logger *slog.Logger) Fetcher {
	if mode != model.ScanModePro {
		return direct
	}
	if render == nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("rendering service not configured, pro scan falls back to direct fetch")
		return direct
	}
	return render
}
