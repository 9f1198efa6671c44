package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
)

// Defaults for RenderFetcher.
const (
	DefaultRenderTimeout = 45 * time.Second
	renderWaitUntil      = "networkidle2"

	// targetStatusHeader and targetURLHeader carry the rendered page's own
	// status and final URL. The service's response status only describes the
	// service call.
	targetStatusHeader = "X-Response-Code"
	targetURLHeader    = "X-Response-URL"
)

// renderRequest is the body sent to the rendering service.
type renderRequest struct {
	URL         string      `json:"url"`
	GotoOptions gotoOptions `json:"gotoOptions"`
}

// gotoOptions mirrors the navigation options of headless browser services.
type gotoOptions struct {
	WaitUntil string `json:"waitUntil"`
	Timeout   int64  `json:"timeout"`
}

// RenderFetcher fetches the rendered DOM of a page through a headless
// rendering service. Calls go through a circuit breaker so an unhealthy
// service fails fast instead of stalling every crawl.
type RenderFetcher struct {
	endpoint    string
	token       string
	client      *http.Client
	timeout     time.Duration
	maxBodySize int64
	cb          *gobreaker.CircuitBreaker
}

// RenderOption configures a RenderFetcher.
type RenderOption func(*RenderFetcher)

// WithRenderClient sets the HTTP client used to reach the rendering service.
func WithRenderClient(c *http.Client) RenderOption {
	return func(f *RenderFetcher) {
		f.client = c
	}
}

// WithRenderTimeout sets the navigation timeout passed to the service and the
// local request timeout.
func WithRenderTimeout(d time.Duration) RenderOption {
	return func(f *RenderFetcher) {
		f.timeout = d
	}
}

// WithBreakerSettings replaces the circuit breaker settings. ReadyToTrip and
// IsSuccessful are kept from the defaults when nil.
func WithBreakerSettings(st gobreaker.Settings) RenderOption {
	return func(f *RenderFetcher) {
		f.cb = newBreaker(st)
	}
}

// NewRenderFetcher creates a fetcher for the rendering service at endpoint.
// The token is sent as a bearer header.
func NewRenderFetcher(endpoint, token string, opts ...RenderOption) *RenderFetcher {
	f := &RenderFetcher{
		endpoint:    endpoint,
		token:       token,
		timeout:     DefaultRenderTimeout,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.cb == nil {
		f.cb = newBreaker(gobreaker.Settings{})
	}
	return f
}

// newBreaker fills in the breaker defaults. Blocked responses are the target
// site's verdict, not a rendering service failure, so they do not count
// towards tripping. Every non-2xx status from the service itself is transient
// and does.
func newBreaker(st gobreaker.Settings) *gobreaker.CircuitBreaker {
	if st.Name == "" {
		st.Name = "render"
	}
	if st.MaxRequests == 0 {
		st.MaxRequests = 2
	}
	if st.Interval == 0 {
		st.Interval = 60 * time.Second
	}
	if st.Timeout == 0 {
		st.Timeout = 30 * time.Second
	}
	if st.ReadyToTrip == nil {
		st.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		}
	}
	if st.IsSuccessful == nil {
		st.IsSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, ErrBlocked) || errors.Is(err, context.Canceled)
		}
	}
	return gobreaker.NewCircuitBreaker(st)
}

// Fetch renders pageURL through the service.
func (f *RenderFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	result, err := f.cb.Execute(func() (interface{}, error) {
		return f.render(ctx, pageURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, transient(pageURL, 0, fmt.Errorf("rendering service unavailable: %w", err))
		}
		return nil, err
	}
	return result.(*Page), nil
}

// render performs one call to the rendering service.
func (f *RenderFetcher) render(ctx context.Context, pageURL string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout+5*time.Second)
	defer cancel()

	payload, err := json.Marshal(renderRequest{
		URL: pageURL,
		GotoOptions: gotoOptions{
			WaitUntil: renderWaitUntil,
			Timeout:   f.timeout.Milliseconds(),
		},
	})
	if err != nil {
		return nil, transient(pageURL, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, transient(pageURL, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, transient(pageURL, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, transient(pageURL, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, transient(pageURL, resp.StatusCode,
			fmt.Errorf("rendering service returned status %d", resp.StatusCode))
	}

	status := targetStatus(resp.Header)
	if err := classifyResponse(pageURL, status, body); err != nil {
		return nil, err
	}

	finalURL := resp.Header.Get(targetURLHeader)
	if finalURL == "" {
		finalURL = pageURL
	}

	return &Page{
		URL:         pageURL,
		FinalURL:    finalURL,
		StatusCode:  status,
		ContentType: "text/html; charset=utf-8",
		Body:        body,
	}, nil
}

// targetStatus reads the rendered page's status from h. A missing or
// malformed value means the service rendered the page normally.
func targetStatus(h http.Header) int {
	code, err := strconv.Atoi(h.Get(targetStatusHeader))
	if err != nil || code < 100 || code > 599 {
		return http.StatusOK
	}
	return code
}
