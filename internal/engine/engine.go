package engine

import (
	"context"
	"time"

	"github.com/nostalgiatan/see/internal/types"
)

// Adapter is the contract every search engine implements. The three
// phases are deliberately separate: Prepare is pure and testable without
// a network, Fetch is the only phase that touches the wire, and Parse is
// pure again so fixtures can drive it.
type Adapter interface {
	// Info returns the engine's static descriptor.
	Info() *EngineInfo

	// Prepare turns a normalized query into a fully encoded request.
	// It must not perform I/O.
	Prepare(q *types.Query) (*types.Request, error)

	// Fetch executes the prepared request. Implementations route through
	// the shared fetcher and translate transport failures into the typed
	// errors of the types package.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Parse extracts result items from a raw response. Items with an
	// empty title or a non-absolute URL are dropped, never returned.
	Parse(resp *types.Response) ([]types.ResultItem, error)
}

// Run drives the three adapter phases for one query and wraps the result
// with engine name and timing. It is the single entry point the executor
// uses, so per-engine behavior stays uniform. Pages beyond the engine's
// MaxPage are clamped on a copy, never on the caller's query.
func Run(ctx context.Context, a Adapter, q *types.Query) (*types.SearchResult, error) {
	start := time.Now()
	info := a.Info()
	name := info.Name

	if info.MaxPage > 0 && q.Page > info.MaxPage {
		q = q.Clone()
		q.Page = info.MaxPage
	}

	req, err := a.Prepare(q)
	if err != nil {
		return nil, err
	}
	req.Engine = name

	resp, err := a.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	items, err := a.Parse(resp)
	if err != nil {
		return nil, err
	}

	result := types.NewSearchResult(name, items)
	result.ElapsedMs = time.Since(start).Milliseconds()
	return result, nil
}
