package main

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/backlinkscan/internal/config"
	"github.com/nao1215/backlinkscan/internal/fetcher"
	"github.com/nao1215/backlinkscan/internal/model"
)

// siteFetchers selects the fetcher for a scan. Sites with their own cookie
// or headers get a dedicated direct fetcher; every other site shares one.
type siteFetchers struct {
	cfg    *config.Config
	logger *slog.Logger

	direct fetcher.Fetcher
	render fetcher.Fetcher

	mu      sync.Mutex
	perSite map[string]fetcher.Fetcher
}

// newSiteFetchers builds the shared direct fetcher and, when a rendering
// endpoint is configured, the rendering fetcher.
func newSiteFetchers(cfg *config.Config, logger *slog.Logger) (*siteFetchers, error) {
	direct, err := newDirectFetcher(cfg, cfg.ClientConfig(""))
	if err != nil {
		return nil, err
	}

	s := &siteFetchers{
		cfg:     cfg,
		logger:  logger,
		direct:  direct,
		perSite: make(map[string]fetcher.Fetcher),
	}
	// render stays a nil interface when no endpoint is configured so that
	// ForMode can fall back to the direct fetcher.
	if cfg.Env.RenderURL != "" {
		s.render = fetcher.NewRenderFetcher(cfg.Env.RenderURL, cfg.Env.RenderToken,
			fetcher.WithRenderTimeout(cfg.RenderTimeout))
	}
	return s, nil
}

// FetcherFor implements pipeline.FetcherSource.
func (s *siteFetchers) FetcherFor(domain string, mode model.ScanMode) fetcher.Fetcher {
	return fetcher.ForMode(mode, s.directFor(domain), s.render, s.logger)
}

// directFor returns the direct fetcher for domain, building and caching a
// dedicated one when the site has transport settings.
func (s *siteFetchers) directFor(domain string) fetcher.Fetcher {
	if !s.cfg.File.GetSiteConfig(domain).HasTransportSettings() {
		return s.direct
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.perSite[domain]; ok {
		return f
	}
	f, err := newDirectFetcher(s.cfg, s.cfg.ClientConfig(domain))
	if err != nil {
		s.logger.Warn("site transport settings ignored", "domain", domain, "error", err)
		return s.direct
	}
	s.perSite[domain] = f
	return f
}

// newDirectFetcher builds an HTTPFetcher over a client for cc.
func newDirectFetcher(cfg *config.Config, cc fetcher.ClientConfig) (*fetcher.HTTPFetcher, error) {
	client, err := fetcher.NewHTTPClient(cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return fetcher.NewHTTPFetcher(
		fetcher.WithHTTPClient(client),
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
	), nil
}
