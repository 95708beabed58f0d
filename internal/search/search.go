// Package search implements the aggregation pipeline: concurrent engine
// fan-out, merge and ranking of the per-engine results, response
// caching, and full-text retrieval over passive sources.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nostalgiatan/see/internal/cache"
	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/types"
)

// PassiveSource supplies already-ingested items matching query tokens.
// The RSS service implements it; full-text search folds its items in at
// PassiveScore.
type PassiveSource interface {
	ItemsMatching(tokens []string, limit int) []types.ResultItem
}

// PassiveScore is the base relevance given to cache and RSS items
// folded into a full-text merge. Token boosting still applies on top.
const PassiveScore = 0.7

// Retrieval caps per passive source in a full-text search.
const (
	cacheTokenLimit = 50
	rssTokenLimit   = 30
)

// Source names reported in engines_used for passive contributions.
const (
	CacheSourceName = "DatabaseCache"
	RSSSourceName   = "RSSCache"
)

// SearchInterface is the query surface the API server and the SDK
// consume. *Searcher is the production implementation.
type SearchInterface interface {
	Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error)
	SearchStream(ctx context.Context, req *types.SearchRequest, sink Sink) (*types.SearchResponse, error)
	SearchFullText(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error)
	StatsSnapshot() StatsSnapshot
}

// Searcher orchestrates one search call end to end: engine selection,
// cache lookup, dispatch, aggregation, and cache writeback.
type Searcher struct {
	registry *engine.Registry
	executor *Executor
	store    cache.Store   // nil disables response caching
	feeds    PassiveSource // nil disables RSS folding
	stats    *Stats
	language string
	region   string
	logger   *slog.Logger
}

var _ SearchInterface = (*Searcher)(nil)

// NewSearcher wires the search pipeline. store and feeds may be nil;
// the corresponding steps are skipped.
func NewSearcher(cfg config.SearchConfig, registry *engine.Registry, executor *Executor, store cache.Store, feeds PassiveSource, stats *Stats, logger *slog.Logger) *Searcher {
	return &Searcher{
		registry: registry,
		executor: executor,
		store:    store,
		feeds:    feeds,
		stats:    stats,
		language: cfg.Language,
		region:   cfg.Region,
		logger:   logger.With("component", "search"),
	}
}

// StatsSnapshot returns the current search counters.
func (s *Searcher) StatsSnapshot() StatsSnapshot {
	return s.stats.Snapshot()
}

// prepare validates the request and returns the normalized query copy
// the pipeline works on, never the caller's.
func (s *Searcher) prepare(req *types.SearchRequest) (types.Query, error) {
	q := req.Query
	q.Normalize()
	if q.Language == "" {
		q.Language = s.language
	}
	if q.Region == "" {
		q.Region = s.region
	}
	if err := q.Validate(); err != nil {
		return q, err
	}
	return q, nil
}

// Search runs a batched search: every selected engine answers or fails
// before the aggregated response returns. Engines that answered with
// zero items still count as used. Responses may be served from and
// written back to the result cache.
func (s *Searcher) Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	start := time.Now()
	q, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	s.stats.RecordSearch()

	names := s.registry.Resolve(req.Engines, req.EngineCount)
	key := cacheKey(q.Text, q.Page, names)

	if s.store != nil && !req.Force {
		if entry, ok := s.store.Get(key, req.CacheTimeline); ok {
			s.stats.RecordCacheHit()
			s.logger.Debug("cache hit", "query", q.Text, "age", time.Since(entry.CreatedAt))
			return cachedResponse(q.Text, entry, start), nil
		}
		s.stats.RecordCacheMiss()
	}

	adapters := s.registry.SelectAvailable(names)
	results := s.executor.Dispatch(ctx, adapters, &q, req.Timeout, nil)

	enginesUsed := make([]string, 0, len(results))
	for _, r := range results {
		enginesUsed = append(enginesUsed, r.EngineName)
	}

	merged := Aggregate(results, q.Tokens())
	truncate(merged, req.MaxResults)
	merged.ElapsedMs = time.Since(start).Milliseconds()

	if s.store != nil && len(merged.Items) > 0 {
		if err := s.store.Put(key, merged.Items, enginesUsed); err != nil {
			s.logger.Warn("cache write failed", "query", q.Text, "error", err)
		}
	}

	return &types.SearchResponse{
		Query:       q.Text,
		Result:      *merged,
		EnginesUsed: enginesUsed,
		QueryTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// SearchStream runs a streaming search: each engine's non-empty result
// is handed to sink as it completes, and the returned terminal response
// aggregates only the engines that contributed items. Streaming never
// touches the result cache.
func (s *Searcher) SearchStream(ctx context.Context, req *types.SearchRequest, sink Sink) (*types.SearchResponse, error) {
	start := time.Now()
	q, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	s.stats.RecordSearch()

	names := s.registry.Resolve(req.Engines, req.EngineCount)
	adapters := s.registry.SelectAvailable(names)
	results := s.executor.Dispatch(ctx, adapters, &q, req.Timeout, sink)

	enginesUsed := make([]string, 0, len(results))
	contributing := make([]*types.SearchResult, 0, len(results))
	for _, r := range results {
		if r.IsEmpty() {
			continue
		}
		enginesUsed = append(enginesUsed, r.EngineName)
		contributing = append(contributing, r)
	}

	merged := Aggregate(contributing, q.Tokens())
	truncate(merged, req.MaxResults)
	merged.ElapsedMs = time.Since(start).Milliseconds()

	return &types.SearchResponse{
		Query:       q.Text,
		Result:      *merged,
		EnginesUsed: enginesUsed,
		QueryTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// cachedResponse rebuilds a response from a cache entry.
func cachedResponse(query string, entry *cache.Entry, start time.Time) *types.SearchResponse {
	result := types.NewSearchResult(AggregatedEngine, entry.Items)
	total := int64(len(entry.Items))
	result.TotalResults = &total

	engines := entry.Engines
	if engines == nil {
		engines = []string{}
	}
	return &types.SearchResponse{
		Query:       query,
		Result:      *result,
		EnginesUsed: engines,
		QueryTimeMs: time.Since(start).Milliseconds(),
		Cached:      true,
	}
}

// cacheKey identifies one cacheable response: same text, page, and
// engine selection. Text is lowercased so case variants share an entry.
func cacheKey(text string, page int, engines []string) string {
	return fmt.Sprintf("%s|%d|%s", strings.ToLower(text), page, strings.Join(engines, ","))
}

// truncate caps the merged item list. TotalResults keeps the full
// deduplicated count.
func truncate(r *types.SearchResult, max int) {
	if max > 0 && len(r.Items) > max {
		r.Items = r.Items[:max]
	}
}
