package model

import "time"

// RelFlags holds the link-relationship attributes that affect SEO value.
type RelFlags struct {
	// NoFollow is set for rel="nofollow".
	NoFollow bool `json:"nofollow"`

	// Sponsored is set for rel="sponsored".
	Sponsored bool `json:"sponsored"`

	// UGC is set for rel="ugc".
	UGC bool `json:"ugc"`
}

// LinkObservation is one off-domain anchor discovered during a single scan.
// Observations are written once and never mutated.
type LinkObservation struct {
	// SourceURL is the crawled page the anchor was found on.
	SourceURL string `json:"source_url"`

	// TargetURL is the absolute URL the anchor points to.
	TargetURL string `json:"target_url"`

	// TargetDomain is the normalized host of TargetURL.
	TargetDomain string `json:"target_domain"`

	// Rel contains the parsed rel attribute.
	Rel RelFlags `json:"rel"`

	// AnchorText is the visible text of the anchor, whitespace-collapsed.
	AnchorText string `json:"anchor_text"`

	// Category is the classification of TargetURL.
	Category Category `json:"category"`
}

// IndexObservation is the reducer's view of a stored observation:
// the link it describes plus the scan that saw it.
type IndexObservation struct {
	// LinkingDomain is the normalized host of the observed link.
	LinkingDomain string

	// LinkingURL is the observed link URL.
	LinkingURL string

	// ScanID identifies the scan that produced the observation.
	ScanID string

	// ObservedAt is the creation time of that scan.
	ObservedAt time.Time

	// AnchorText, Category and Rel carry display metadata.
	AnchorText string
	Category   Category
	Rel        RelFlags
}

// IndexedLink aggregates every observation of a (target domain, linking domain,
// linking URL) triple. At most one row exists per triple.
type IndexedLink struct {
	TargetDomain   string    `json:"target_domain"`
	LinkingDomain  string    `json:"linking_domain"`
	LinkingURL     string    `json:"linking_url"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	TotalScansSeen int       `json:"total_scans_seen"`
	LastScanID     string    `json:"last_scan_id"`

	// Display metadata taken from the most recent observation.
	AnchorText string   `json:"anchor_text,omitempty"`
	Category   Category `json:"category"`
	Rel        RelFlags `json:"rel"`
}
