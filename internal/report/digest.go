package report

import (
	"sort"
	"time"

	"github.com/nao1215/backlinkscan/internal/analysis"
	"github.com/nao1215/backlinkscan/internal/model"
)

// maxNewLinks is the number of newly discovered links listed per domain.
const maxNewLinks = 10

// Digest is the content of one report delivery.
type Digest struct {
	// UserID is the subscriber the digest was built for. Empty for previews.
	UserID string `json:"user_id,omitempty"`

	// Email is the delivery address.
	Email string `json:"email,omitempty"`

	// Plan is the subscriber's plan tier.
	Plan string `json:"plan,omitempty"`

	// PeriodStart and PeriodEnd bound the reporting period.
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	// Domains holds one entry per monitored domain, sorted by domain.
	Domains []DomainDigest `json:"domains"`
}

// DomainDigest is the report section of one monitored domain.
type DomainDigest struct {
	// Summary carries the derived metrics of the domain.
	Summary analysis.Summary `json:"summary"`

	// NewLinks are links first seen during the period, newest first.
	NewLinks []model.IndexedLink `json:"new_links"`

	// NewLinkCount is the number of links first seen during the period,
	// which may exceed len(NewLinks).
	NewLinkCount int `json:"new_link_count"`
}

// NewDomainDigest summarizes one domain for the period starting at since.
func NewDomainDigest(domain string, links []model.IndexedLink, scans []model.Scan, since, now time.Time, window time.Duration) DomainDigest {
	var fresh []model.IndexedLink
	for _, l := range links {
		if !l.FirstSeen.Before(since) {
			fresh = append(fresh, l)
		}
	}
	sort.SliceStable(fresh, func(i, j int) bool {
		if !fresh[i].FirstSeen.Equal(fresh[j].FirstSeen) {
			return fresh[i].FirstSeen.After(fresh[j].FirstSeen)
		}
		return fresh[i].LinkingURL < fresh[j].LinkingURL
	})

	dd := DomainDigest{
		Summary:      analysis.Summarize(domain, links, scans, now, window),
		NewLinkCount: len(fresh),
		NewLinks:     fresh,
	}
	if len(dd.NewLinks) > maxNewLinks {
		dd.NewLinks = dd.NewLinks[:maxNewLinks]
	}
	if dd.NewLinks == nil {
		dd.NewLinks = []model.IndexedLink{}
	}
	return dd
}

// TotalLinks returns the indexed link count across all domains.
func (d *Digest) TotalLinks() int {
	total := 0
	for _, dom := range d.Domains {
		total += dom.Summary.TotalLinks
	}
	return total
}

// TotalNewLinks returns the number of links first seen during the period.
func (d *Digest) TotalNewLinks() int {
	total := 0
	for _, dom := range d.Domains {
		total += dom.NewLinkCount
	}
	return total
}
