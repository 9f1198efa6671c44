// Package urlnorm canonicalizes user-supplied domains and URLs into
// comparable domain keys.
package urlnorm

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// maxHostLength is the DNS limit for a fully qualified name.
const maxHostLength = 253

// maxLabelLength is the DNS limit for a single label.
const maxLabelLength = 63

// Normalize converts a bare domain, a full URL, or a URL with a path into a
// canonical domain: no scheme, no leading "www.", no port, path, query or
// fragment, lower-cased and converted to its ASCII (punycode) form.
//
// It returns an empty string when the input has no valid host. Callers must
// treat the empty result as invalid input.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return ""
	}

	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}

	return normalizeHost(u.Hostname())
}

// Host returns the normalized host of an absolute URL, or "" when the URL has
// no usable host. Unlike Normalize it never guesses a scheme.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return normalizeHost(u.Hostname())
}

// normalizeHost applies the canonical host rules shared by Normalize and Host.
func normalizeHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return ""
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.To4() == nil {
			return ""
		}
		return host
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return ""
	}

	// "www.com" stays as is; only a www label in front of a real domain is dropped.
	if rest, ok := strings.CutPrefix(ascii, "www."); ok && strings.Contains(rest, ".") {
		ascii = rest
	}

	if !isValidHost(ascii) {
		return ""
	}
	return ascii
}

// isValidHost checks the DNS shape of an ASCII host name.
func isValidHost(host string) bool {
	if len(host) > maxHostLength || !strings.Contains(host, ".") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > maxLabelLength {
			return false
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
				return false
			}
		}
	}
	return true
}

// SeedURL returns the crawl entry point for a canonical domain.
func SeedURL(domain string) string {
	return "https://" + domain + "/"
}

// RegistrableDomain returns the eTLD+1 of host ("blog.example.co.uk" becomes
// "example.co.uk"). Hosts without a registrable part are returned unchanged.
func RegistrableDomain(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return etld1
}

// SameSite reports whether two normalized hosts belong to the same site.
// Subdomains of the site are treated as the same site.
func SameSite(site, host string) bool {
	if site == "" || host == "" {
		return false
	}
	return host == site || strings.HasSuffix(host, "."+site)
}
