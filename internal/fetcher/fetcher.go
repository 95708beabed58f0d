package fetcher

import (
	"context"

	"github.com/nostalgiatan/see/internal/types"
)

// Fetcher is the interface engine adapters fetch through.
type Fetcher interface {
	// Fetch retrieves the content for a prepared request.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// Dispatcher routes prepared requests to the fetcher matching their
// FetcherType. Requests without a type use plain HTTP.
type Dispatcher struct {
	http    Fetcher
	browser Fetcher
}

// NewDispatcher creates a Dispatcher. The browser fetcher may be nil
// when no engine is configured to use it.
func NewDispatcher(httpFetcher, browserFetcher Fetcher) *Dispatcher {
	return &Dispatcher{http: httpFetcher, browser: browserFetcher}
}

// Fetch dispatches to the fetcher selected by req.FetcherType.
func (d *Dispatcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	switch req.FetcherType {
	case types.FetcherBrowser:
		if d.browser == nil {
			return nil, &types.FetchError{
				Engine: req.Engine,
				URL:    req.URLString(),
				Err:    types.ErrNoFetcher,
			}
		}
		return d.browser.Fetch(ctx, req)
	default:
		return d.http.Fetch(ctx, req)
	}
}

// Close closes all managed fetchers, returning the first error.
func (d *Dispatcher) Close() error {
	err := d.http.Close()
	if d.browser != nil {
		if berr := d.browser.Close(); err == nil {
			err = berr
		}
	}
	return err
}

// Type returns the fetcher type identifier.
func (d *Dispatcher) Type() string { return "dispatcher" }
