package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/backlinkscan/internal/classify"
	"github.com/nao1215/backlinkscan/internal/fetcher"
	"github.com/nao1215/backlinkscan/internal/model"
	"github.com/nao1215/backlinkscan/internal/urlnorm"
)

// Default crawl bounds.
const (
	DefaultMaxPages = 10
	DefaultMaxDepth = 2
	DefaultMaxLinks = 1000
)

// ErrInvalidSeed is returned when the seed URL has no usable http(s) host.
var ErrInvalidSeed = errors.New("invalid seed URL")

// Spider crawls a single site and collects its outbound links.
//
// Design decision: We call it "Spider" rather than "Crawler" because
// "spider" is the traditional term and it reads well as crawler.NewSpider().
type Spider struct {
	// fetcher retrieves pages (direct or rendered).
	fetcher fetcher.Fetcher

	// maxDepth limits how deep to follow same-site links from the seed.
	// 0 means only the seed page.
	maxDepth int

	// maxPages limits the number of pages attempted per crawl.
	maxPages int

	// maxLinks limits the number of off-site anchors collected per crawl.
	maxLinks int

	// delay is the pause between consecutive fetches.
	delay time.Duration

	// ignorePatterns are URL path patterns to skip.
	ignorePatterns []string

	// followPatterns, when set, restrict the crawl to matching paths.
	followPatterns []string

	logger *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages attempted.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithMaxLinks sets the maximum number of collected off-site anchors.
func WithMaxLinks(maxLinks int) SpiderOption {
	return func(s *Spider) {
		s.maxLinks = maxLinks
	}
}

// WithDelay sets the delay between requests.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.php", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts crawling to paths matching at least one pattern.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that retrieves pages with f.
func NewSpider(f fetcher.Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:  f,
		maxDepth: DefaultMaxDepth,
		maxPages: DefaultMaxPages,
		maxLinks: DefaultMaxLinks,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is the outcome of one crawl.
type Result struct {
	// Seed is the URL the crawl started from.
	Seed string

	// PagesCrawled counts successfully fetched pages.
	PagesCrawled int

	// Links are the collected off-site anchors, possibly with duplicates.
	Links []model.LinkObservation

	// Errors are per-page fetch failures.
	Errors []model.PageError

	// Blocked is set when the seed page was refused by the site.
	Blocked bool
}

// queueItem is a frontier entry.
type queueItem struct {
	url   string
	depth int
}

// Crawl walks the site breadth-first from seedURL.
//
// The returned Result is never nil, even when ctx is cancelled mid-crawl;
// in that case the context error is returned alongside the partial result.
func (s *Spider) Crawl(ctx context.Context, seedURL string) (*Result, error) {
	result := &Result{
		Seed:   seedURL,
		Links:  make([]model.LinkObservation, 0),
		Errors: make([]model.PageError, 0),
	}

	site := urlnorm.Host(seedURL)
	if site == "" {
		return result, fmt.Errorf("%w: %q", ErrInvalidSeed, seedURL)
	}
	siteHosts := []string{site}

	queue := []queueItem{{url: seedURL, depth: 0}}
	queued := map[string]bool{normalizeURL(seedURL): true}
	visited := make(map[string]bool)

	for len(queue) > 0 && len(visited) < s.maxPages {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		item := queue[0]
		queue = queue[1:]

		key := normalizeURL(item.url)
		if visited[key] {
			continue
		}
		visited[key] = true

		page, err := s.fetcher.Fetch(ctx, item.url)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			s.recordError(result, item, err)
			continue
		}
		result.PagesCrawled++

		base := page.FinalURL
		if base == "" {
			base = page.URL
		}
		if item.depth == 0 {
			// A redirect from example.com to shop.example.net keeps the
			// crawl on the site the seed actually lives on.
			if host := urlnorm.Host(base); host != "" && !isSameSite(siteHosts, host) {
				siteHosts = append(siteHosts, host)
			}
		}

		if !isHTML(page) {
			continue
		}

		parser, err := NewParser(base)
		if err != nil {
			continue
		}
		parsed, err := parser.Parse(bytes.NewReader(page.Body))
		if err != nil {
			s.logger.Debug("failed to parse page", "url", item.url, "error", err)
			continue
		}

		for _, anchor := range parsed.Anchors {
			host := urlnorm.Host(anchor.URL)
			if host == "" {
				continue
			}

			if isSameSite(siteHosts, host) {
				if item.depth >= s.maxDepth || !s.shouldCrawl(anchor.URL) {
					continue
				}
				k := normalizeURL(anchor.URL)
				if queued[k] || visited[k] {
					continue
				}
				queued[k] = true
				queue = append(queue, queueItem{url: anchor.URL, depth: item.depth + 1})
				continue
			}

			if len(result.Links) >= s.maxLinks {
				continue
			}
			rel := classify.ParseRel(anchor.Rel)
			result.Links = append(result.Links, model.LinkObservation{
				SourceURL:    base,
				TargetURL:    anchor.URL,
				TargetDomain: host,
				Rel:          rel,
				AnchorText:   anchor.Text,
				Category:     classify.Classify(anchor.URL),
			})
		}

		if s.delay > 0 && len(queue) > 0 && len(visited) < s.maxPages {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}

	s.logger.Debug("crawl finished",
		"seed", seedURL,
		"pages", result.PagesCrawled,
		"links", len(result.Links),
		"errors", len(result.Errors),
	)
	return result, nil
}

// recordError appends a page failure to the result.
func (s *Spider) recordError(result *Result, item queueItem, err error) {
	kind := fetcher.KindOf(err)
	if kind == "" {
		kind = fetcher.KindTransient
	}
	result.Errors = append(result.Errors, model.PageError{
		URL:     item.url,
		Kind:    string(kind),
		Message: err.Error(),
	})
	if item.depth == 0 && kind == fetcher.KindBlocked {
		result.Blocked = true
	}
	s.logger.Debug("page fetch failed", "url", item.url, "kind", kind, "error", err)
}

// isSameSite reports whether host belongs to any of the site hosts.
func isSameSite(siteHosts []string, host string) bool {
	for _, site := range siteHosts {
		if urlnorm.SameSite(site, host) {
			return true
		}
	}
	return false
}

// isHTML reports whether a page should be parsed for anchors. Pages without
// a Content-Type are sniffed.
func isHTML(page *fetcher.Page) bool {
	ct := strings.ToLower(page.ContentType)
	if ct == "" {
		head := page.Body
		if len(head) > 512 {
			head = head[:512]
		}
		return bytes.Contains(bytes.ToLower(head), []byte("<html")) ||
			bytes.Contains(bytes.ToLower(head), []byte("<!doctype html"))
	}
	return strings.Contains(ct, "html")
}

// normalizeURL normalizes a URL for the visited and queued sets.
//
// Design decision: fragments are dropped and an empty path equals "/",
// so "https://a.com", "https://a.com/" and "https://a.com/#top" are the
// same page.
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
