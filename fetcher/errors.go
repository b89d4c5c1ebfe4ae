package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error kinds carried by FetchError.
const (
	KindTimeout      = "timeout"
	KindConnection   = "connection"
	KindForbidden    = "forbidden"
	KindNotFound     = "not_found"
	KindRateLimited  = "rate_limited"
	KindStatus       = "status"
	KindDecode       = "decode"
	KindInvalidLimit = "invalid_limit"
	KindOther        = "other"
)

// FetchError reports a failed search request.
type FetchError struct {
	Kind       string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.URL, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// classifyError maps a transport error and status code to a FetchError kind.
func classifyError(err error, statusCode int) string {
	if err == nil && statusCode == 0 {
		return KindOther
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}

	switch {
	case statusCode == http.StatusForbidden:
		return KindForbidden
	case statusCode == http.StatusNotFound:
		return KindNotFound
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode >= http.StatusMultipleChoices || (statusCode != 0 && statusCode < http.StatusOK):
		return KindStatus
	}
	return KindOther
}

func newFetchError(url string, statusCode int, err error) *FetchError {
	if err == nil {
		err = fmt.Errorf("http status %d", statusCode)
	}
	return &FetchError{
		Kind:       classifyError(err, statusCode),
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}
