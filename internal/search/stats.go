package search

import "sync/atomic"

// Stats counts search-layer events. All counters are atomic so the hot
// path never takes a lock; Snapshot reads are not a consistent cut and
// do not need to be.
type Stats struct {
	totalSearches  atomic.Uint64
	cacheHits      atomic.Uint64
	cacheMisses    atomic.Uint64
	engineFailures atomic.Uint64
	timeouts       atomic.Uint64
}

// NewStats creates a zeroed counter set.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) RecordSearch()        { s.totalSearches.Add(1) }
func (s *Stats) RecordCacheHit()      { s.cacheHits.Add(1) }
func (s *Stats) RecordCacheMiss()     { s.cacheMisses.Add(1) }
func (s *Stats) RecordEngineFailure() { s.engineFailures.Add(1) }
func (s *Stats) RecordTimeout()       { s.timeouts.Add(1) }

// StatsSnapshot is a point-in-time copy of the counters for listings.
type StatsSnapshot struct {
	TotalSearches  uint64  `json:"total_searches"`
	CacheHits      uint64  `json:"cache_hits"`
	CacheMisses    uint64  `json:"cache_misses"`
	EngineFailures uint64  `json:"engine_failures"`
	Timeouts       uint64  `json:"timeouts"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
}

// Snapshot copies the counters. The hit rate is hits over lookups, or
// zero before the first lookup.
func (s *Stats) Snapshot() StatsSnapshot {
	hits := s.cacheHits.Load()
	misses := s.cacheMisses.Load()
	snap := StatsSnapshot{
		TotalSearches:  s.totalSearches.Load(),
		CacheHits:      hits,
		CacheMisses:    misses,
		EngineFailures: s.engineFailures.Load(),
		Timeouts:       s.timeouts.Load(),
	}
	if total := hits + misses; total > 0 {
		snap.CacheHitRate = float64(hits) / float64(total)
	}
	return snap
}
