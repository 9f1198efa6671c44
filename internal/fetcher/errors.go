package fetcher

import (
	"errors"
	"fmt"
)

// Failure classes. A *FetchError matches exactly one of them via errors.Is.
var (
	// ErrBlocked means the site or its bot protection refused the request
	// (401, 403, 429, or a challenge page).
	ErrBlocked = errors.New("fetch blocked by target site")

	// ErrTransient means the fetch failed for a reason that may not repeat:
	// timeouts, connection errors, other non-2xx responses, or an
	// unavailable rendering service.
	ErrTransient = errors.New("transient fetch failure")

	// ErrInvalidProxyAddress is returned when the egress proxy address is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)

// Kind classifies a fetch failure.
type Kind string

const (
	// KindBlocked marks a refusal by the target site.
	KindBlocked Kind = "blocked"

	// KindTransient marks any other failure.
	KindTransient Kind = "transient"
)

// FetchError describes a failed fetch of a single URL.
type FetchError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Kind is the failure class.
	Kind Kind

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.URL, e.Kind, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.StatusCode)
	}
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the ErrBlocked and ErrTransient sentinels by Kind.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrBlocked:
		return e.Kind == KindBlocked
	case ErrTransient:
		return e.Kind == KindTransient
	}
	return false
}

// blocked builds a KindBlocked error.
func blocked(url string, status int, cause error) *FetchError {
	return &FetchError{URL: url, StatusCode: status, Kind: KindBlocked, Err: cause}
}

// transient builds a KindTransient error.
func transient(url string, status int, cause error) *FetchError {
	return &FetchError{URL: url, StatusCode: status, Kind: KindTransient, Err: cause}
}

// KindOf returns the failure class of err, or "" when err is not a fetch failure.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
