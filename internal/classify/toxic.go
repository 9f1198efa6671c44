package classify

import (
	"net"
	"strings"

	"github.com/nao1215/backlinkscan/internal/model"
)

// spamTLDs are top-level domains with a high share of spam registrations.
var spamTLDs = []string{
	"xyz", "top", "click", "loan", "work", "gq", "tk", "ml", "cf", "ga",
	"buzz", "icu", "rest", "bid", "win", "date", "party", "review",
	"stream", "download", "racing", "cam", "monster",
}

// spamKeywords flag hosts from link farms and gambling/pharma spam.
var spamKeywords = []string{
	"casino", "poker", "betting", "viagra", "cialis", "porn", "xxx",
	"payday", "loans", "backlink", "linkfarm", "freelinks", "seo-",
	"escort", "replica",
}

// maxHealthyLabels is the label count above which a host looks generated.
const maxHealthyLabels = 5

// IsToxic reports whether an indexed link looks spammy.
// This is a heuristic for the toxicity metric, not a verdict.
func IsToxic(link model.IndexedLink) bool {
	host := link.LinkingDomain
	if host == "" {
		host = hostOf(link.LinkingURL)
	}
	if host == "" {
		return false
	}

	if net.ParseIP(host) != nil {
		return true
	}
	for _, tld := range spamTLDs {
		if hasTLD(host, tld) {
			return true
		}
	}
	if containsAny(host, spamKeywords) {
		return true
	}
	if strings.Count(host, ".")+1 > maxHealthyLabels {
		return true
	}
	if link.Rel.Sponsored && strings.TrimSpace(link.AnchorText) == "" {
		return true
	}
	return false
}
