package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nao1215/backlinkscan/internal/analysis"
	"github.com/nao1215/backlinkscan/internal/database"
	"github.com/nao1215/backlinkscan/internal/indexer"
	"github.com/nao1215/backlinkscan/internal/model"
	"github.com/nao1215/backlinkscan/internal/pipeline"
	"github.com/nao1215/backlinkscan/internal/quota"
	"github.com/nao1215/backlinkscan/internal/report"
	"github.com/nao1215/backlinkscan/internal/urlnorm"
)

// maxBodyBytes caps request bodies; scan requests are tiny.
const maxBodyBytes = 4 << 10

// historyScans is the number of scans read for trend metrics.
const historyScans = 50

// scanRequest is the body of POST /api/v1/scan.
type scanRequest struct {
	Target string `json:"target"`
	Mode   string `json:"mode"`
}

type scanResponse struct {
	OK     bool              `json:"ok"`
	Result *model.ScanResult `json:"result"`
}

type linksResponse struct {
	OK            bool                `json:"ok"`
	Target        string              `json:"target"`
	LastIndexedAt *time.Time          `json:"last_indexed_at,omitempty"`
	Summary       analysis.Summary    `json:"summary"`
	Links         []model.IndexedLink `json:"links"`
	Truncated     bool                `json:"truncated"`
}

type quotaResponse struct {
	OK        bool      `json:"ok"`
	Plan      string    `json:"plan"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	Unlimited bool      `json:"unlimited,omitempty"`
}

type reindexResponse struct {
	OK     bool                 `json:"ok"`
	Result *indexer.BatchResult `json:"result"`
}

type reportsResponse struct {
	OK     bool                `json:"ok"`
	Result *report.BatchResult `json:"result"`
}

type healthResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

// handleScan runs an on-demand scan for the caller.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var body scanRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: malformed request body", pipeline.ErrInvalidInput))
		return
	}

	ctx := r.Context()
	if s.cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ScanTimeout)
		defer cancel()
	}

	result, err := s.deps.Scanner.Scan(ctx, pipeline.ScanRequest{
		Target: body.Target,
		Mode:   model.ScanMode(body.Mode),
		Caller: CallerFrom(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, scanResponse{OK: true, Result: result})
}

// handleLinks returns the index of a target with its summary. The number of
// links is capped by the caller's plan.
func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain := urlnorm.Normalize(mux.Vars(r)["domain"])
	if domain == "" {
		s.writeError(w, r, pipeline.ErrInvalidInput)
		return
	}

	p, err := s.deps.Plans.ForCaller(ctx, CallerFrom(ctx))
	if err != nil {
		s.writeError(w, r, errors.Join(pipeline.ErrStorage, err))
		return
	}

	target, err := s.deps.Store.GetTarget(ctx, domain)
	if errors.Is(err, database.ErrNotFound) {
		s.writeFailure(w, http.StatusNotFound, codeNotFound, "This domain has not been scanned yet.")
		return
	}
	if err != nil {
		s.writeError(w, r, errors.Join(pipeline.ErrStorage, err))
		return
	}

	links, err := s.deps.Store.ListIndexedLinks(ctx, domain)
	if err != nil {
		s.writeError(w, r, errors.Join(pipeline.ErrStorage, err))
		return
	}
	scans, err := s.deps.Store.ListScans(ctx, domain, historyScans)
	if err != nil {
		s.writeError(w, r, errors.Join(pipeline.ErrStorage, err))
		return
	}

	resp := linksResponse{
		OK:            true,
		Target:        domain,
		LastIndexedAt: target.LastIndexedAt,
		Summary:       analysis.Summarize(domain, links, scans, s.now().UTC(), analysis.DefaultWindow),
		Links:         links,
	}
	if resp.Links == nil {
		resp.Links = []model.IndexedLink{}
	}
	if !CallerFrom(ctx).IsAdmin && len(resp.Links) > p.SampleLinks {
		resp.Links = resp.Links[:p.SampleLinks]
		resp.Truncated = true
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleQuota reports the caller's usage of the daily scan quota.
func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := CallerFrom(ctx)

	p, err := s.deps.Plans.ForCaller(ctx, caller)
	if err != nil {
		s.writeError(w, r, errors.Join(pipeline.ErrStorage, err))
		return
	}
	if caller.IsAdmin {
		s.writeJSON(w, http.StatusOK, quotaResponse{
			OK:        true,
			Plan:      string(p.Tier),
			Limit:     p.DailyScans,
			Remaining: p.DailyScans,
			ResetAt:   quota.NextReset(s.now()),
			Unlimited: true,
		})
		return
	}

	usage, err := s.deps.Quota.Usage(ctx, caller.QuotaKey(), p.DailyScans)
	if err != nil {
		s.writeError(w, r, errors.Join(pipeline.ErrStorage, err))
		return
	}
	s.writeJSON(w, http.StatusOK, quotaResponse{
		OK:        true,
		Plan:      string(p.Tier),
		Used:      usage.Used,
		Limit:     usage.Limit,
		Remaining: usage.Remaining(),
		ResetAt:   usage.ResetAt,
	})
}

// handleReindex runs one reindex batch.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Reindexer.Run(r.Context())
	if err != nil && result == nil {
		s.writeError(w, r, errors.Join(pipeline.ErrStorage, err))
		return
	}
	s.writeJSON(w, http.StatusOK, reindexResponse{OK: err == nil, Result: result})
}

// handleReports runs one report batch.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Reporter.Run(r.Context())
	if err != nil && result == nil {
		s.writeError(w, r, errors.Join(pipeline.ErrStorage, err))
		return
	}
	s.writeJSON(w, http.StatusOK, reportsResponse{OK: err == nil, Result: result})
}

// handleHealth pings the database.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health check failed", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{OK: true, Status: "ok"})
}
