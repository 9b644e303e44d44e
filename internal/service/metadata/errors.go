package metadata

import (
	"errors"
	"fmt"
	"net/http"

	"linksaver/internal/domain"
)

// Pipeline failure kinds. Only ErrInvalidURL is returned by Extract; the
// others are recovered inside the pipeline and degrade the result.
var (
	ErrInvalidURL             = domain.ErrInvalidURL
	ErrTimeout                = errors.New("request timed out")
	ErrUnsupportedContentType = errors.New("URL does not point to an HTML page")
	ErrSummarizerFailure      = errors.New("summarizer failed")
	ErrProbeFailure           = errors.New("favicon probe failed")
)

// HTTPError is returned when the target page answers with a non-2xx status
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Blocked reports whether the status suggests the server refused an automated client
func (e *HTTPError) Blocked() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	return false
}
