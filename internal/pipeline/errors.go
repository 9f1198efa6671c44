package pipeline

import (
	"errors"

	"github.com/nao1215/backlinkscan/internal/quota"
)

// Scan failures are reported with these sentinels so the HTTP layer and the
// CLI can map them to a status code and a user-facing message.
var (
	// ErrInvalidInput means the target is not a usable domain or URL.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPlanRequired means the caller's plan does not include the feature.
	ErrPlanRequired = errors.New("plan does not include this feature")

	// ErrQuotaExceeded means the caller has no scans left today.
	ErrQuotaExceeded = quota.ErrQuotaExceeded

	// ErrUpstreamBlocked means the target site refused the crawler.
	ErrUpstreamBlocked = errors.New("target site blocked the crawler")

	// ErrUpstreamTransient means the target site could not be crawled right now.
	ErrUpstreamTransient = errors.New("target site could not be crawled")

	// ErrStorage means the scan could not be read or written.
	ErrStorage = errors.New("storage failure")
)

// UserMessage returns a message that is safe to show to an end user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "Please enter a valid domain or URL, for example example.com."
	case errors.Is(err, ErrPlanRequired):
		return "Pro scans are available on the Pro and Agency plans."
	case errors.Is(err, ErrQuotaExceeded):
		return "You have used all of today's scans. Your quota resets at midnight UTC."
	case errors.Is(err, ErrUpstreamBlocked):
		return "This site is protected against automated access, so we could not scan it. Try a Pro scan or another domain."
	case errors.Is(err, ErrUpstreamTransient):
		return "We could not reach this site right now. Please try again in a few minutes."
	default:
		return "Something went wrong on our side. Please try again later."
	}
}
