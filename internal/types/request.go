package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Fetcher type selectors for prepared requests.
const (
	FetcherHTTP    = "http"
	FetcherBrowser = "browser"
)

// Cookie is a single cookie tuple attached to one outgoing request.
// Adapters that need per-call cookies (session tokens, market hints)
// populate these instead of touching the shared jar.
type Cookie struct {
	Name  string
	Value string
}

// Request is the fully prepared HTTP plan an engine adapter hands to the
// fetch phase. The URL is final: all query parameters are encoded.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Method is the HTTP method. Defaults to GET.
	Method string

	// Headers are custom HTTP headers to send with the request.
	Headers http.Header

	// Cookies are per-call cookie tuples sent only with this request.
	Cookies []Cookie

	// Body is the request body for POST requests.
	Body []byte

	// Timeout overrides the client timeout for this request.
	Timeout time.Duration

	// FollowRedirects controls redirect handling. When false a 3xx
	// response is returned as-is with its Location header preserved.
	FollowRedirects bool

	// FetcherType selects the fetch path: "http" or "browser".
	FetcherType string

	// Engine names the adapter that prepared this request.
	Engine string

	// CreatedAt is when this request was prepared.
	CreatedAt time.Time
}

// NewRequest creates a prepared Request for a raw URL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	return &Request{
		URL:             u,
		Method:          http.MethodGet,
		Headers:         make(http.Header),
		FollowRedirects: true,
		FetcherType:     FetcherHTTP,
		CreatedAt:       time.Now(),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the hostname of the request URL.
func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}

// AddCookie appends a per-call cookie tuple.
func (r *Request) AddCookie(name, value string) {
	r.Cookies = append(r.Cookies, Cookie{Name: name, Value: value})
}

// Clone creates a deep copy of the request.
func (r *Request) Clone() *Request {
	clone := *r
	if r.URL != nil {
		u := *r.URL
		clone.URL = &u
	}
	clone.Headers = r.Headers.Clone()
	clone.Cookies = append([]Cookie(nil), r.Cookies...)
	clone.Body = append([]byte(nil), r.Body...)
	return &clone
}

// SearchRequest describes one aggregated search call.
type SearchRequest struct {
	// Query is the normalized query passed to every selected engine.
	Query Query `json:"query"`

	// Engines restricts the call to the named engines. Empty means the
	// configured default set.
	Engines []string `json:"engines,omitempty"`

	// EngineCount trims the default engine set to its first n entries.
	// Ignored when Engines is set or when it does not fall inside
	// (0, len(defaults)).
	EngineCount int `json:"engine_count,omitempty"`

	// Timeout bounds the whole call. Zero means the configured default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// MaxResults caps the aggregated result list.
	MaxResults int `json:"max_results,omitempty"`

	// Force bypasses any cached response.
	Force bool `json:"force,omitempty"`

	// CacheTimeline is the maximum age a cached response may have to be
	// served instead of a live dispatch.
	CacheTimeline time.Duration `json:"cache_timeline,omitempty"`
}

// NewSearchRequest creates a SearchRequest with the standard limits.
func NewSearchRequest(text string) *SearchRequest {
	return &SearchRequest{
		Query:         *NewQuery(text),
		MaxResults:    1000,
		CacheTimeline: time.Hour,
	}
}
