package search

import (
	"context"
	"time"

	"github.com/nostalgiatan/see/internal/types"
)

// SearchFullText runs a live batched search and folds in passive items
// from the result cache and the RSS store that match the query tokens.
// Passive items enter at PassiveScore before boosting; on URL
// collisions the live item wins. The merged result is stamped
// FullTextEngine.
func (s *Searcher) SearchFullText(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	start := time.Now()
	q, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	s.stats.RecordSearch()
	tokens := q.Tokens()

	names := s.registry.Resolve(req.Engines, req.EngineCount)
	adapters := s.registry.SelectAvailable(names)
	results := s.executor.Dispatch(ctx, adapters, &q, req.Timeout, nil)

	enginesUsed := make([]string, 0, len(results)+2)
	for _, r := range results {
		enginesUsed = append(enginesUsed, r.EngineName)
	}

	live := Aggregate(results, tokens)
	sources := []source{{name: AggregatedEngine, items: live.Items}}

	if s.store != nil {
		if items := s.store.FindByTokens(tokens, cacheTokenLimit); len(items) > 0 {
			rescore(items, PassiveScore)
			sources = append(sources, source{name: CacheSourceName, items: items})
			enginesUsed = append(enginesUsed, CacheSourceName)
		}
	}
	if s.feeds != nil {
		if items := s.feeds.ItemsMatching(tokens, rssTokenLimit); len(items) > 0 {
			rescore(items, PassiveScore)
			sources = append(sources, source{name: RSSSourceName, items: items})
			enginesUsed = append(enginesUsed, RSSSourceName)
		}
	}

	items := dedupe(sources)
	// Live items were boosted during aggregation; boosting the merged
	// list again is absorbed by the score clamp.
	boost(items, tokens)
	sortByScore(items)

	merged := types.NewSearchResult(FullTextEngine, items)
	total := int64(len(items))
	merged.TotalResults = &total
	truncate(merged, req.MaxResults)
	merged.ElapsedMs = time.Since(start).Milliseconds()

	return &types.SearchResponse{
		Query:       q.Text,
		Result:      *merged,
		EnginesUsed: enginesUsed,
		QueryTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// rescore sets every item to the given base score.
func rescore(items []types.ResultItem, score float64) {
	for i := range items {
		items[i].Score = score
	}
}
