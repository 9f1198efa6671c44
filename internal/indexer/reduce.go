package indexer

import (
	"sort"

	"github.com/nao1215/backlinkscan/internal/model"
)

// linkKey identifies an index row within one target.
type linkKey struct {
	domain string
	url    string
}

// group accumulates the observations of one key.
type group struct {
	link   model.IndexedLink
	scans  map[string]struct{}
	latest model.IndexObservation
}

// Reduce builds the complete index of target from every observation of its
// scans. Rows are returned sorted by linking domain, then linking URL.
//
// For each (linking domain, linking URL) pair, FirstSeen and LastSeen are the
// earliest and latest observation times, TotalScansSeen is the number of
// distinct scans that observed the pair, and LastScanID with the display
// metadata come from the latest observation. When two observations share the
// latest time, the one with the greater scan id wins, so the result does not
// depend on input order.
func Reduce(target string, obs []model.IndexObservation) []model.IndexedLink {
	groups := make(map[linkKey]*group)

	for _, o := range obs {
		key := linkKey{domain: o.LinkingDomain, url: o.LinkingURL}
		g, ok := groups[key]
		if !ok {
			groups[key] = &group{
				link: model.IndexedLink{
					TargetDomain:  target,
					LinkingDomain: o.LinkingDomain,
					LinkingURL:    o.LinkingURL,
					FirstSeen:     o.ObservedAt,
					LastSeen:      o.ObservedAt,
				},
				scans:  map[string]struct{}{o.ScanID: {}},
				latest: o,
			}
			continue
		}

		g.scans[o.ScanID] = struct{}{}
		if o.ObservedAt.Before(g.link.FirstSeen) {
			g.link.FirstSeen = o.ObservedAt
		}
		if o.ObservedAt.After(g.link.LastSeen) {
			g.link.LastSeen = o.ObservedAt
		}
		if isLater(o, g.latest) {
			g.latest = o
		}
	}

	links := make([]model.IndexedLink, 0, len(groups))
	for _, g := range groups {
		link := g.link
		link.TotalScansSeen = len(g.scans)
		link.LastScanID = g.latest.ScanID
		link.AnchorText = g.latest.AnchorText
		link.Category = g.latest.Category
		link.Rel = g.latest.Rel
		links = append(links, link)
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].LinkingDomain != links[j].LinkingDomain {
			return links[i].LinkingDomain < links[j].LinkingDomain
		}
		return links[i].LinkingURL < links[j].LinkingURL
	})
	return links
}

// isLater reports whether a supersedes b as the latest observation.
func isLater(a, b model.IndexObservation) bool {
	if !a.ObservedAt.Equal(b.ObservedAt) {
		return a.ObservedAt.After(b.ObservedAt)
	}
	return a.ScanID > b.ScanID
}
