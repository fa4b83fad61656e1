package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidQuery is returned for empty or whitespace-only words.
var ErrInvalidQuery = errors.New("word query is empty")

// NetworkError covers connection failures and timeouts.
type NetworkError struct {
	URL     string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("request to %s timed out: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) from %s", e.Status, http.StatusText(e.Status), e.URL)
}

// Transient reports whether retrying the request could succeed.
func (e *HTTPError) Transient() bool {
	return e.Status >= 500 || e.Status == http.StatusRequestTimeout || e.Status == http.StatusTooManyRequests
}

// RedirectLoopError is returned when redirects revisit a URL or exceed the hop limit.
type RedirectLoopError struct {
	URL  string
	Hops int
}

func (e *RedirectLoopError) Error() string {
	return fmt.Sprintf("redirect loop at %s after %d hops", e.URL, e.Hops)
}

// MalformedMarkupError means the body could not be treated as HTML at all.
type MalformedMarkupError struct {
	URL    string
	Reason string
}

func (e *MalformedMarkupError) Error() string {
	return fmt.Sprintf("malformed markup from %s: %s", e.URL, e.Reason)
}

// ExtractionError means matching blocks were found but held no usable text.
// It usually signals that the site's markup changed.
type ExtractionError struct {
	Headword string
	Reason   string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %q: %s", e.Headword, e.Reason)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Transient()
	}
	return false
}
