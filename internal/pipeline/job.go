package pipeline

import (
	"context"
	"time"

	"github.com/nao1215/backlinkscan/internal/crawler"
	"github.com/nao1215/backlinkscan/internal/model"
	"github.com/nao1215/backlinkscan/internal/plan"
	"github.com/nao1215/backlinkscan/internal/quota"
)

// ScanRequest is the input of an on-demand scan.
type ScanRequest struct {
	// Target is the raw domain or URL typed by the user.
	Target string

	// Mode selects direct or rendered fetching.
	Mode model.ScanMode

	// Caller is the resolved identity of the requester.
	Caller model.Caller
}

// ScanJob carries one scan through the pipeline. Steps fill in the fields
// below Request in order.
type ScanJob struct {
	Request ScanRequest

	// Domain is the normalized target, set by ValidateStep.
	Domain string

	// Plan is the effective plan, set by AuthorizeStep.
	Plan plan.Plan

	// Reservation is set by ReserveQuotaStep unless the caller is an admin.
	Reservation *quota.Reservation

	// Crawl is the raw crawl output, set by CrawlStep.
	Crawl *crawler.Result

	// Links are the deduplicated observations, set by CrawlStep.
	Links []model.LinkObservation

	// Scan is the stored scan row, set by PersistStep.
	Scan *model.Scan

	// Performed lists the steps that completed.
	Performed []string

	StartedAt time.Time

	cleanups []func(ctx context.Context)
}

// NewScanJob creates a job for req.
func NewScanJob(req ScanRequest) *ScanJob {
	return &ScanJob{Request: req, StartedAt: time.Now()}
}

// OnFailure registers fn to run if a later step fails.
// Cleanups run in reverse registration order.
func (j *ScanJob) OnFailure(fn func(ctx context.Context)) {
	j.cleanups = append(j.cleanups, fn)
}

// rollback runs the registered cleanups once.
func (j *ScanJob) rollback(ctx context.Context) {
	for i := len(j.cleanups) - 1; i >= 0; i-- {
		j.cleanups[i](ctx)
	}
	j.cleanups = nil
}

// Result builds the user-facing scan result. Links are capped at the plan's
// sample size; totals always cover every link.
func (j *ScanJob) Result() *model.ScanResult {
	links := j.Links
	if n := j.Plan.SampleLinks; n >= 0 && len(links) > n {
		links = links[:n]
	}
	if links == nil {
		links = []model.LinkObservation{}
	}

	result := &model.ScanResult{
		Target: j.Domain,
		Mode:   j.Request.Mode,
		Links:  links,
		Errors: []model.PageError{},
	}
	if j.Scan != nil {
		result.ScanID = j.Scan.ID
		result.TotalBacklinks = j.Scan.TotalLinks
		result.ReferringDomains = j.Scan.RefDomains
		result.PagesCrawled = j.Scan.PagesCrawled
	}
	if j.Crawl != nil && len(j.Crawl.Errors) > 0 {
		result.Errors = j.Crawl.Errors
	}
	return result
}
