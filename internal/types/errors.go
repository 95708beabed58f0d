package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for engine-level failure modes. Fetch and parse
// wrappers carry one of these so callers can classify with errors.Is.
var (
	ErrTimeout        = errors.New("request timed out")
	ErrCancelled      = errors.New("request cancelled")
	ErrBlocked        = errors.New("blocked by upstream")
	ErrRateLimited    = errors.New("rate limited by upstream")
	ErrUnavailable    = errors.New("upstream unavailable")
	ErrCaptcha        = errors.New("captcha challenge encountered")
	ErrEmptyResponse  = errors.New("empty response body")
	ErrInvalidURL     = errors.New("invalid URL")
	ErrInvalidQuery   = errors.New("invalid query")
	ErrEngineUnknown  = errors.New("unknown engine")
	ErrEngineDisabled = errors.New("engine disabled")
	ErrNoFetcher      = errors.New("no fetcher available for request")
	ErrProxyExhausted = errors.New("all proxies exhausted")
)

// FetchError wraps errors that occur while fetching from an upstream
// engine. StatusCode is zero for transport-level failures.
type FetchError struct {
	Engine     string
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// NewFetchError classifies an HTTP status into the matching sentinel:
// 403 blocked, 429 rate limited, 503 unavailable, anything else a plain
// transport failure.
func NewFetchError(engine, url string, statusCode int) *FetchError {
	fe := &FetchError{Engine: engine, URL: url, StatusCode: statusCode}
	switch statusCode {
	case 403:
		fe.Err = ErrBlocked
	case 429:
		fe.Err = ErrRateLimited
		fe.Retryable = true
	case 503:
		fe.Err = ErrUnavailable
		fe.Retryable = true
	default:
		fe.Err = fmt.Errorf("unexpected status %d", statusCode)
		fe.Retryable = statusCode >= 500
	}
	return fe
}

// ParseError wraps errors that occur while parsing an engine response.
type ParseError struct {
	Engine   string
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
	}
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CaptchaError marks a response that turned out to be a bot challenge
// instead of results.
type CaptchaError struct {
	Engine   string
	URL      string
	Location string
}

func (e *CaptchaError) Error() string {
	return fmt.Sprintf("captcha encountered on %s: %s", e.Engine, e.URL)
}

func (e *CaptchaError) Unwrap() error { return ErrCaptcha }

// StorageError wraps errors from the result cache backends.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
