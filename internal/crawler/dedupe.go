package crawler

import "github.com/nao1215/backlinkscan/internal/model"

// Dedupe collapses observations with the same target URL. The result keeps
// the first-seen order while the metadata of the last occurrence wins.
func Dedupe(links []model.LinkObservation) []model.LinkObservation {
	index := make(map[string]int, len(links))
	out := make([]model.LinkObservation, 0, len(links))

	for _, link := range links {
		if i, ok := index[link.TargetURL]; ok {
			out[i] = link
			continue
		}
		index[link.TargetURL] = len(out)
		out = append(out, link)
	}
	return out
}
