package model

import (
	"fmt"
	"strings"
	"time"
)

// ScanMode selects the fetch strategy of a crawl.
type ScanMode string

const (
	// ScanModeBasic fetches pages with a direct HTTP GET.
	ScanModeBasic ScanMode = "basic"

	// ScanModePro fetches pages through a headless rendering service.
	ScanModePro ScanMode = "pro"
)

// ParseScanMode parses a user-supplied mode. An empty string means basic.
func ParseScanMode(s string) (ScanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ScanModeBasic):
		return ScanModeBasic, nil
	case string(ScanModePro):
		return ScanModePro, nil
	default:
		return "", fmt.Errorf("unknown scan mode %q: expected basic or pro", s)
	}
}

// Target is a domain being monitored.
// It is created on the first scan request and never hard-deleted.
type Target struct {
	// Domain is the canonical domain (no scheme, no www).
	Domain string `json:"domain"`

	// CreatedAt is when the target was first scanned.
	CreatedAt time.Time `json:"created_at"`

	// LastIndexedAt is nil until the first reindex pass.
	LastIndexedAt *time.Time `json:"last_indexed_at,omitempty"`
}

// Scan is one crawl execution against a Target.
// Scans are immutable once written; later scans supersede them.
type Scan struct {
	ID           string    `json:"id"`
	Domain       string    `json:"domain"`
	UserID       string    `json:"user_id,omitempty"`
	Mode         ScanMode  `json:"mode"`
	CreatedAt    time.Time `json:"created_at"`
	TotalLinks   int       `json:"total_links"`
	RefDomains   int       `json:"ref_domains"`
	PagesCrawled int       `json:"pages_crawled"`
}

// PageError records a single page that failed during a crawl.
type PageError struct {
	URL     string `json:"url"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ScanResult is the output of an on-demand scan.
type ScanResult struct {
	ScanID           string            `json:"scan_id"`
	Target           string            `json:"target"`
	Mode             ScanMode          `json:"mode"`
	TotalBacklinks   int               `json:"total_backlinks"`
	ReferringDomains int               `json:"referring_domains"`
	PagesCrawled     int               `json:"pages_crawled"`
	Links            []LinkObservation `json:"links"`
	Errors           []PageError       `json:"errors"`
}
