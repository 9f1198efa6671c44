package classify

import (
	"net/url"
	"strings"

	"github.com/nao1215/backlinkscan/internal/model"
	"github.com/nao1215/backlinkscan/internal/urlnorm"
)

// socialDomains are matched against the host and its parent domains.
var socialDomains = []string{
	"facebook.com", "fb.com", "twitter.com", "x.com", "t.co",
	"instagram.com", "linkedin.com", "youtube.com", "youtu.be",
	"pinterest.com", "reddit.com", "tiktok.com", "tumblr.com",
	"threads.net", "snapchat.com", "vk.com", "t.me", "telegram.org",
	"discord.gg", "discord.com", "mastodon.social", "bsky.app",
	"whatsapp.com", "wa.me", "weibo.com", "quora.com",
}

// directoryKeywords are matched as host substrings.
var directoryKeywords = []string{
	"directory", "listing", "wiki", "dir.", "yellowpages",
	"yelp.", "catalog", "hotfrog", "manta.com", "bizlist",
	"foursquare.com", "trustpilot.", "crunchbase.com",
}

// Display-superset host rules.
var (
	newsKeywords      = []string{"news", "times", "herald", "gazette", "tribune", "journal", "bbc.co", "cnn.com", "reuters.com", "bloomberg.com", "theguardian.com"}
	forumKeywords     = []string{"forum", "community.", "discuss", "board.", "stackexchange.com", "stackoverflow.com"}
	ecommerceKeywords = []string{"shop", "store", "amazon.", "ebay.", "etsy.com", "aliexpress.", "walmart.com", "shopify.com"}
)

// Classify returns the primary category of a link: social, directory,
// editorial, or other when the host cannot be determined.
func Classify(targetURL string) model.Category {
	host := hostOf(targetURL)
	if host == "" {
		return model.CategoryOther
	}

	if isSocial(host) {
		return model.CategorySocial
	}
	if containsAny(host, directoryKeywords) {
		return model.CategoryDirectory
	}
	return model.CategoryEditorial
}

// Display returns the display category of a link. Rel attributes win over
// host rules; hosts matching none of the superset rules use Classify.
func Display(targetURL string, rel model.RelFlags) model.Category {
	switch {
	case rel.Sponsored:
		return model.CategorySponsored
	case rel.UGC:
		return model.CategoryUGC
	}

	host := hostOf(targetURL)
	if host == "" {
		return model.CategoryOther
	}

	switch {
	case hasTLD(host, "edu") || strings.Contains(host, ".ac."):
		return model.CategoryEdu
	case hasTLD(host, "gov") || strings.Contains(host, ".gov."):
		return model.CategoryGov
	case isSocial(host):
		return model.CategorySocial
	case strings.Contains(host, "wiki"):
		return model.CategoryWiki
	case containsAny(host, forumKeywords):
		return model.CategoryForum
	case containsAny(host, newsKeywords):
		return model.CategoryNews
	case containsAny(host, ecommerceKeywords):
		return model.CategoryEcommerce
	}
	return Classify(targetURL)
}

// ParseRel parses a rel attribute value into flags.
// Tokens are whitespace-separated and case-insensitive.
func ParseRel(rel string) model.RelFlags {
	var flags model.RelFlags
	for _, token := range strings.Fields(strings.ToLower(rel)) {
		switch token {
		case "nofollow":
			flags.NoFollow = true
		case "sponsored":
			flags.Sponsored = true
		case "ugc":
			flags.UGC = true
		}
	}
	return flags
}

// hostOf extracts the normalized host of an absolute URL.
func hostOf(targetURL string) string {
	u, err := url.Parse(strings.TrimSpace(targetURL))
	if err != nil || u.Host == "" {
		return ""
	}
	return urlnorm.Host(u.String())
}

// isSocial matches the host or any parent domain against socialDomains.
func isSocial(host string) bool {
	for _, domain := range socialDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// hasTLD reports whether host ends with the given top-level label.
func hasTLD(host, tld string) bool {
	return strings.HasSuffix(host, "."+tld)
}

// containsAny reports whether s contains any of the substrings.
func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
