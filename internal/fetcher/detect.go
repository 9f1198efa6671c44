package fetcher

import (
	"bytes"
	"net/http"
)

// challengeScanLimit bounds how much of a 2xx body is inspected. Challenge
// interstitials are small; large pages that merely mention a captcha are real
// content.
const challengeScanLimit = 50 * 1024

// challengeMarkers identify bot-protection interstitials served with a 2xx
// status. They are matched case-insensitively. Cloudflare also injects
// /cdn-cgi/challenge-platform/ scripts into ordinary pages, so that path is
// not a marker on its own.
var challengeMarkers = [][]byte{
	[]byte("cf-challenge"),
	[]byte("cf-browser-verification"),
	[]byte("_cf_chl_opt"),
	[]byte("captcha-delivery.com"),
	[]byte("_incapsula_resource"),
	[]byte("px-captcha"),
	[]byte("<title>just a moment...</title>"),
	[]byte("<title>attention required! | cloudflare</title>"),
	[]byte("<title>access denied</title>"),
	[]byte("checking your browser before accessing"),
	[]byte("verify you are human"),
}

// softChallengeMarkers additionally mark a 503 response as a challenge.
var softChallengeMarkers = [][]byte{
	[]byte("captcha"),
	[]byte("access denied"),
	[]byte("attention required"),
	[]byte("just a moment"),
}

// hasChallengeMarker reports whether body looks like a bot-challenge page.
func hasChallengeMarker(body []byte) bool {
	if len(body) > challengeScanLimit {
		body = body[:challengeScanLimit]
	}
	lower := bytes.ToLower(body)
	for _, marker := range challengeMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// hasSoftChallengeMarker is the looser check used for 503 responses.
func hasSoftChallengeMarker(body []byte) bool {
	if hasChallengeMarker(body) {
		return true
	}
	if len(body) > challengeScanLimit {
		body = body[:challengeScanLimit]
	}
	lower := bytes.ToLower(body)
	for _, marker := range softChallengeMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// classifyResponse maps a response status and body to a fetch failure, or nil
// when the page is usable.
func classifyResponse(url string, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		if hasChallengeMarker(body) {
			return blocked(url, status, nil)
		}
		return nil
	case status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusTooManyRequests:
		return blocked(url, status, nil)
	case status == http.StatusServiceUnavailable && hasSoftChallengeMarker(body):
		return blocked(url, status, nil)
	default:
		return transient(url, status, nil)
	}
}
