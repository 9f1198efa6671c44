package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/backlinkscan/internal/config"
	"github.com/nao1215/backlinkscan/internal/model"
	"github.com/nao1215/backlinkscan/internal/pipeline"
)

// fakeScanner returns canned results keyed by target.
type fakeScanner struct {
	results map[string]*model.ScanResult
	errs    map[string]error
	calls   []pipeline.ScanRequest
}

func (f *fakeScanner) Scan(_ context.Context, req pipeline.ScanRequest) (*model.ScanResult, error) {
	f.calls = append(f.calls, req)
	if err, ok := f.errs[req.Target]; ok {
		return nil, err
	}
	if r, ok := f.results[req.Target]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: unexpected target %q", pipeline.ErrInvalidInput, req.Target)
}

func sampleResult(target string) *model.ScanResult {
	return &model.ScanResult{
		ScanID:           "scan-" + target,
		Target:           target,
		Mode:             model.ScanModeBasic,
		TotalBacklinks:   3,
		ReferringDomains: 2,
		PagesCrawled:     4,
		Links: []model.LinkObservation{
			{SourceURL: "https://" + target + "/", TargetURL: "https://twitter.com/acme", TargetDomain: "twitter.com", Category: model.CategorySocial},
			{SourceURL: "https://" + target + "/", TargetURL: "https://en.wikipedia.org/wiki/Acme", TargetDomain: "en.wikipedia.org", Category: model.CategoryWiki},
		},
	}
}

func TestNewScanCmd(t *testing.T) {
	t.Parallel()

	cmd := NewScanCmd()
	if cmd.Use != "scan <domain>..." {
		t.Errorf("unexpected use %q", cmd.Use)
	}
	for _, name := range []string{"mode", "user", "json", "timeout", "depth", "max-pages", "max-links", "crawl-delay"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag %q", name)
		}
	}
	if err := cmd.Args(cmd, nil); err == nil {
		t.Error("expected error without targets")
	}
}

func TestApplyCrawlFlagsDepth(t *testing.T) {
	t.Parallel()

	file := &config.File{Defaults: config.SiteConfig{Depth: 3}}

	t.Run("explicit depth overrides file defaults", func(t *testing.T) {
		t.Parallel()
		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"--depth", "0"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cfg := config.NewConfig()
		cfg.File = file
		if err := applyCrawlFlags(cmd, cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := cfg.CrawlDepthFor("example.com"); got != 0 {
			t.Errorf("expected --depth 0 to win, got %d", got)
		}
	})

	t.Run("default depth yields to file defaults", func(t *testing.T) {
		t.Parallel()
		cmd := NewScanCmd()
		if err := cmd.ParseFlags(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cfg := config.NewConfig()
		cfg.File = file
		if err := applyCrawlFlags(cmd, cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := cfg.CrawlDepthFor("example.com"); got != 3 {
			t.Errorf("expected file default depth 3, got %d", got)
		}
	})
}

func TestRunScans(t *testing.T) {
	t.Parallel()

	t.Run("prints text summary", func(t *testing.T) {
		t.Parallel()
		s := &fakeScanner{results: map[string]*model.ScanResult{"example.com": sampleResult("example.com")}}
		var out, errOut bytes.Buffer

		err := runScans(context.Background(), s, []string{"example.com"}, model.ScanModeBasic, localOperator, false, &out, &errOut)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := out.String()
		for _, want := range []string{
			"Scanned example.com (basic)",
			"scan-example.com",
			"Outbound links:     3",
			"Linked domains:     2",
			"https://twitter.com/acme",
			"...and 1 more.",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, got)
			}
		}
		if len(s.calls) != 1 || s.calls[0].Caller != localOperator {
			t.Errorf("expected one call as local operator, got %+v", s.calls)
		}
	})

	t.Run("encodes JSON", func(t *testing.T) {
		t.Parallel()
		s := &fakeScanner{results: map[string]*model.ScanResult{"example.com": sampleResult("example.com")}}
		var out, errOut bytes.Buffer

		if err := runScans(context.Background(), s, []string{"example.com"}, model.ScanModePro, localOperator, true, &out, &errOut); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded model.ScanResult
		if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.ScanID != "scan-example.com" || len(decoded.Links) != 2 {
			t.Errorf("unexpected result: %+v", decoded)
		}
		if s.calls[0].Mode != model.ScanModePro {
			t.Errorf("expected pro mode, got %q", s.calls[0].Mode)
		}
	})

	t.Run("failure does not stop remaining targets", func(t *testing.T) {
		t.Parallel()
		s := &fakeScanner{
			results: map[string]*model.ScanResult{"example.org": sampleResult("example.org")},
			errs:    map[string]error{"blocked.com": fmt.Errorf("%w: 403", pipeline.ErrUpstreamBlocked)},
		}
		var out, errOut bytes.Buffer

		err := runScans(context.Background(), s, []string{"blocked.com", "example.org"}, model.ScanModeBasic, localOperator, false, &out, &errOut)
		if !errors.Is(err, errScanFailed) {
			t.Fatalf("expected errScanFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "1 of 2") {
			t.Errorf("expected failure count in error, got %v", err)
		}
		if len(s.calls) != 2 {
			t.Errorf("expected both targets scanned, got %d calls", len(s.calls))
		}
		if !strings.Contains(errOut.String(), "Scan error for blocked.com") ||
			!strings.Contains(errOut.String(), "protected against automated access") {
			t.Errorf("unexpected error output: %s", errOut.String())
		}
		if !strings.Contains(out.String(), "Scanned example.org") {
			t.Errorf("expected second target in output, got %s", out.String())
		}
	})

	t.Run("canceled context stops the loop", func(t *testing.T) {
		t.Parallel()
		s := &fakeScanner{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := runScans(ctx, s, []string{"example.com"}, model.ScanModeBasic, localOperator, false, &bytes.Buffer{}, &bytes.Buffer{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(s.calls) != 0 {
			t.Errorf("expected no scans, got %d", len(s.calls))
		}
	})
}

func TestPrintScanResultPageErrors(t *testing.T) {
	t.Parallel()

	r := &model.ScanResult{
		ScanID: "s1",
		Target: "example.com",
		Mode:   model.ScanModeBasic,
		Errors: []model.PageError{{URL: "https://example.com/a", Kind: "timeout", Message: "deadline"}},
	}
	var out bytes.Buffer
	printScanResult(&out, r, 1500*time.Millisecond)

	if !strings.Contains(out.String(), "Page errors:        1") {
		t.Errorf("expected page error count, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "in 1.5s") {
		t.Errorf("expected elapsed time, got:\n%s", out.String())
	}
}

func TestScanCmd(t *testing.T) {
	t.Parallel()

	t.Run("unknown mode", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		_, err := env.run(t, "scan", "--mode", "turbo", "example.com")
		if err == nil || !strings.Contains(err.Error(), "unknown scan mode") {
			t.Errorf("expected unknown scan mode error, got %v", err)
		}
	})

	t.Run("invalid target is reported", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		out, err := env.run(t, "scan", "not a domain")
		if !errors.Is(err, errScanFailed) {
			t.Fatalf("expected errScanFailed, got %v", err)
		}
		if !strings.Contains(out, "Please enter a valid domain") {
			t.Errorf("expected user message in output, got:\n%s", out)
		}
	})
}
