// Package cache holds the result cache: whole-response reuse keyed by
// query, plus token-level retrieval that feeds full-text search. Two
// backends exist, an in-process map with TTL and a MongoDB collection.
package cache

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/types"
)

// Entry is one cached aggregated response.
type Entry struct {
	Query     string             `json:"query"      bson:"query"`
	Items     []types.ResultItem `json:"items"      bson:"items"`
	Engines   []string           `json:"engines"    bson:"engines"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// Stats reports cache size and effectiveness counters.
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Store is the contract both cache backends implement.
type Store interface {
	// Put stores the aggregated items for a query key, replacing any
	// previous entry.
	Put(query string, items []types.ResultItem, engines []string) error

	// Get returns the entry for a query key when it is younger than
	// maxAge. A maxAge of zero falls back to the backend TTL.
	Get(query string, maxAge time.Duration) (*Entry, bool)

	// FindByTokens returns up to limit items whose title or content
	// contains any of the lowercase tokens. Expired entries still count:
	// full-text search explicitly allows stale data.
	FindByTokens(tokens []string, limit int) []types.ResultItem

	// Stats returns size and hit/miss counters.
	Stats() Stats

	// Clear drops every entry.
	Clear() error

	// Cleanup drops expired entries and returns how many were removed.
	Cleanup() int

	// Name returns the backend identifier.
	Name() string

	// Close releases backend resources.
	Close() error
}

// Open builds the configured backend.
func Open(cfg config.CacheConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.TTL, cfg.MaxEntries, logger), nil
	case "mongo", "mongodb":
		return NewMongo(cfg.MongoURI, cfg.Database, cfg.Collection, cfg.TTL, logger)
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

// itemMatches reports whether the item's title or content contains any
// token. Tokens must already be lowercase.
func itemMatches(item *types.ResultItem, tokens []string) bool {
	title := strings.ToLower(item.Title)
	content := strings.ToLower(item.Content)
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if strings.Contains(title, t) || strings.Contains(content, t) {
			return true
		}
	}
	return false
}

// Memory is the in-process backend: a map under an RWMutex with TTL
// expiry and a soft entry cap.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	ttl        time.Duration
	maxEntries int

	hits   atomic.Uint64
	misses atomic.Uint64

	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewMemory creates the memory backend. maxEntries <= 0 means uncapped.
func NewMemory(ttl time.Duration, maxEntries int, logger *slog.Logger) *Memory {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Memory{
		entries:    make(map[string]*Entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		logger:     logger.With("component", "cache_memory"),
		now:        time.Now,
	}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Put(query string, items []types.ResultItem, engines []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		if _, exists := m.entries[query]; !exists {
			m.evictOldestLocked()
		}
	}

	m.entries[query] = &Entry{
		Query:     query,
		Items:     append([]types.ResultItem(nil), items...),
		Engines:   append([]string(nil), engines...),
		CreatedAt: m.now(),
	}
	return nil
}

// evictOldestLocked drops the entry with the earliest CreatedAt. Linear
// scan; the cache is capped at a few thousand entries.
func (m *Memory) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for key, e := range m.entries {
		if oldestKey == "" || e.CreatedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.CreatedAt
		}
	}
	if oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

func (m *Memory) Get(query string, maxAge time.Duration) (*Entry, bool) {
	if maxAge <= 0 {
		maxAge = m.ttl
	}

	m.mu.RLock()
	e, ok := m.entries[query]
	m.mu.RUnlock()

	if !ok || m.now().Sub(e.CreatedAt) > maxAge {
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return e, true
}

func (m *Memory) FindByTokens(tokens []string, limit int) []types.ResultItem {
	if len(tokens) == 0 || limit == 0 {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.ResultItem
	for _, e := range m.entries {
		for i := range e.Items {
			if itemMatches(&e.Items[i], tokens) {
				out = append(out, e.Items[i])
				if limit > 0 && len(out) >= limit {
					return out
				}
			}
		}
	}
	return out
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	entries := len(m.entries)
	m.mu.RUnlock()
	return Stats{
		Entries: entries,
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
	}
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Entry)
	return nil
}

func (m *Memory) Cleanup() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(m.entries, key)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("expired cache entries dropped", "count", removed)
	}
	return removed
}

func (m *Memory) Close() error { return nil }
