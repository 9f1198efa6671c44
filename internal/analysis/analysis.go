package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/nao1215/backlinkscan/internal/classify"
	"github.com/nao1215/backlinkscan/internal/model"
)

// DefaultWindow is the period used for link velocity.
const DefaultWindow = 30 * 24 * time.Hour

// topDomainCount is the number of referring domains listed in a summary.
const topDomainCount = 10

// Direction is the sign of a trend.
type Direction string

const (
	// DirectionUp means the metric grew.
	DirectionUp Direction = "up"
	// DirectionDown means the metric shrank.
	DirectionDown Direction = "down"
	// DirectionFlat means no change or not enough history.
	DirectionFlat Direction = "flat"
)

// Trend compares the latest scan with the one before it.
type Trend struct {
	Direction Direction `json:"direction"`
	Delta     int       `json:"delta"`
	Current   int       `json:"current"`
	Previous  int       `json:"previous"`
}

// Velocity describes link churn within a window.
type Velocity struct {
	// New counts links first seen within the window.
	New int `json:"new"`

	// Lost counts links not seen since before the window.
	Lost int `json:"lost"`

	// PerDay is New averaged over the window.
	PerDay float64 `json:"per_day"`

	// WindowDays is the window length in days.
	WindowDays int `json:"window_days"`
}

// CategoryCount is the number of links with one display category.
type CategoryCount struct {
	Category model.Category `json:"category"`
	Label    string         `json:"label"`
	Count    int            `json:"count"`
}

// DomainCount is the number of links from one referring domain.
type DomainCount struct {
	Domain string `json:"domain"`
	Links  int    `json:"links"`
}

// Summary bundles the derived metrics of one target.
type Summary struct {
	Target           string          `json:"target"`
	TotalLinks       int             `json:"total_links"`
	ReferringDomains int             `json:"referring_domains"`
	ToxicityPercent  float64         `json:"toxicity_percent"`
	NofollowPercent  float64         `json:"nofollow_percent"`
	Authority        Trend           `json:"authority_trend"`
	Velocity         Velocity        `json:"velocity"`
	Categories       []CategoryCount `json:"categories"`
	TopDomains       []DomainCount   `json:"top_domains"`
	LastScanAt       *time.Time      `json:"last_scan_at,omitempty"`
}

// Toxicity returns the percentage of links flagged by classify.IsToxic,
// rounded to one decimal. An empty index is 0% toxic.
func Toxicity(links []model.IndexedLink) float64 {
	if len(links) == 0 {
		return 0
	}
	toxic := 0
	for _, l := range links {
		if classify.IsToxic(l) {
			toxic++
		}
	}
	return percent(toxic, len(links))
}

// NofollowRatio returns the percentage of links marked nofollow, sponsored
// or ugc, rounded to one decimal.
func NofollowRatio(links []model.IndexedLink) float64 {
	if len(links) == 0 {
		return 0
	}
	n := 0
	for _, l := range links {
		if l.Rel.NoFollow || l.Rel.Sponsored || l.Rel.UGC {
			n++
		}
	}
	return percent(n, len(links))
}

// AuthorityTrend compares the referring-domain count of the newest scan with
// the scan before it. scans may be in any order.
func AuthorityTrend(scans []model.Scan) Trend {
	if len(scans) == 0 {
		return Trend{Direction: DirectionFlat}
	}

	ordered := append([]model.Scan(nil), scans...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
		}
		return ordered[i].ID > ordered[j].ID
	})

	trend := Trend{Direction: DirectionFlat, Current: ordered[0].RefDomains}
	if len(ordered) < 2 {
		trend.Previous = trend.Current
		return trend
	}

	trend.Previous = ordered[1].RefDomains
	trend.Delta = trend.Current - trend.Previous
	switch {
	case trend.Delta > 0:
		trend.Direction = DirectionUp
	case trend.Delta < 0:
		trend.Direction = DirectionDown
	}
	return trend
}

// LinkVelocity counts links gained and lost within window ending at now.
func LinkVelocity(links []model.IndexedLink, now time.Time, window time.Duration) Velocity {
	if window <= 0 {
		window = DefaultWindow
	}
	since := now.Add(-window)
	days := window.Hours() / 24

	v := Velocity{WindowDays: int(math.Round(days))}
	for _, l := range links {
		if !l.FirstSeen.Before(since) {
			v.New++
		}
		if l.LastSeen.Before(since) {
			v.Lost++
		}
	}
	if days > 0 {
		v.PerDay = round1(float64(v.New) / days)
	}
	return v
}

// Categories counts links per display category, in model.AllCategories
// order, omitting empty categories.
func Categories(links []model.IndexedLink) []CategoryCount {
	counts := make(map[model.Category]int)
	for _, l := range links {
		counts[classify.Display(l.LinkingURL, l.Rel)]++
	}

	out := make([]CategoryCount, 0, len(counts))
	for _, c := range model.AllCategories {
		if n := counts[c]; n > 0 {
			out = append(out, CategoryCount{Category: c, Label: c.Label(), Count: n})
		}
	}
	return out
}

// TopDomains returns the referring domains with the most links, most first,
// ties by name.
func TopDomains(links []model.IndexedLink, n int) []DomainCount {
	counts := make(map[string]int)
	for _, l := range links {
		counts[l.LinkingDomain]++
	}

	out := make([]DomainCount, 0, len(counts))
	for d, c := range counts {
		out = append(out, DomainCount{Domain: d, Links: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Links != out[j].Links {
			return out[i].Links > out[j].Links
		}
		return out[i].Domain < out[j].Domain
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Summarize computes every metric of target.
func Summarize(target string, links []model.IndexedLink, scans []model.Scan, now time.Time, window time.Duration) Summary {
	domains := make(map[string]struct{}, len(links))
	for _, l := range links {
		domains[l.LinkingDomain] = struct{}{}
	}

	s := Summary{
		Target:           target,
		TotalLinks:       len(links),
		ReferringDomains: len(domains),
		ToxicityPercent:  Toxicity(links),
		NofollowPercent:  NofollowRatio(links),
		Authority:        AuthorityTrend(scans),
		Velocity:         LinkVelocity(links, now, window),
		Categories:       Categories(links),
		TopDomains:       TopDomains(links, topDomainCount),
	}
	for _, scan := range scans {
		if s.LastScanAt == nil || scan.CreatedAt.After(*s.LastScanAt) {
			at := scan.CreatedAt
			s.LastScanAt = &at
		}
	}
	return s
}

func percent(n, total int) float64 {
	return round1(float64(n) * 100 / float64(total))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
