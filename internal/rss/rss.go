// Package rss ingests subscribed RSS/Atom feeds and ranks their items
// by keyword relevance. Full-text search consumes matching items as a
// passive result source.
package rss

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/types"
)

// Feed is one registry row: a named subscription plus the keywords that
// drive its ranking.
type Feed struct {
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Keywords []string `json:"keywords,omitempty"`
}

// Item is a normalized feed item retained from the last fetch.
type Item struct {
	FeedName    string     `json:"feed_name"`
	FeedURL     string     `json:"feed_url"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Description string     `json:"description,omitempty"`
	Published   *time.Time `json:"published,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
}

// FeedStatus is the registry view served by the feeds endpoint.
type FeedStatus struct {
	Feed
	Items       int       `json:"items"`
	LastFetched time.Time `json:"last_fetched,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// Service owns the feed registry and the items of each feed's most
// recent fetch. Fetching goes through the shared pooled HTTP client.
type Service struct {
	mu      sync.RWMutex
	feeds   map[string]Feed
	order   []string
	items   map[string][]Item
	fetched map[string]time.Time
	errs    map[string]string

	parser  *gofeed.Parser
	timeout time.Duration
	logger  *slog.Logger
}

// NewService creates the RSS service and registers the configured feeds.
// Invalid feed rows are skipped with a warning, not fatal.
func NewService(cfg config.RSSConfig, client *http.Client, logger *slog.Logger) *Service {
	parser := gofeed.NewParser()
	parser.Client = client

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	s := &Service{
		feeds:   make(map[string]Feed),
		items:   make(map[string][]Item),
		fetched: make(map[string]time.Time),
		errs:    make(map[string]string),
		parser:  parser,
		timeout: timeout,
		logger:  logger.With("component", "rss"),
	}
	for _, fc := range cfg.Feeds {
		feed := Feed{Name: fc.Name, URL: fc.URL, Keywords: fc.Keywords}
		if err := s.AddFeed(feed); err != nil {
			s.logger.Warn("skipping invalid feed", "name", fc.Name, "error", err)
		}
	}
	return s
}

// AddFeed registers a feed. The URL must be absolute http(s).
func (s *Service) AddFeed(feed Feed) error {
	if feed.Name == "" {
		return fmt.Errorf("feed has empty name")
	}
	u, err := url.Parse(feed.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("feed %q has invalid URL %q", feed.Name, feed.URL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.feeds[feed.Name]; !exists {
		s.order = append(s.order, feed.Name)
	}
	s.feeds[feed.Name] = feed
	return nil
}

// RemoveFeed drops a feed and its retained items.
func (s *Service) RemoveFeed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.feeds[name]; !ok {
		return false
	}
	delete(s.feeds, name)
	delete(s.items, name)
	delete(s.fetched, name)
	delete(s.errs, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Feeds returns the registry in registration order with fetch status.
func (s *Service) Feeds() []FeedStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]FeedStatus, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, FeedStatus{
			Feed:        s.feeds[name],
			Items:       len(s.items[name]),
			LastFetched: s.fetched[name],
			LastError:   s.errs[name],
		})
	}
	return out
}

// Fetch downloads one feed and replaces its retained items. It returns
// the item count of the new snapshot.
func (s *Service) Fetch(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	feed, ok := s.feeds[name]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("unknown feed %q", name)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	parsed, err := s.parser.ParseURLWithContext(feed.URL, ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errs[name] = err.Error()
		return 0, fmt.Errorf("fetch feed %q: %w", name, err)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, fi := range parsed.Items {
		if fi == nil || fi.Title == "" || fi.Link == "" {
			continue
		}
		items = append(items, Item{
			FeedName:    feed.Name,
			FeedURL:     feed.URL,
			Title:       fi.Title,
			Link:        fi.Link,
			Description: fi.Description,
			Published:   fi.PublishedParsed,
			Categories:  fi.Categories,
		})
	}
	s.items[name] = items
	s.fetched[name] = time.Now()
	s.errs[name] = ""
	s.logger.Debug("feed fetched", "feed", name, "items", len(items))
	return len(items), nil
}

// FetchAll fetches every registered feed sequentially. One feed's
// failure never blocks the rest; the last error is returned alongside
// the total item count.
func (s *Service) FetchAll(ctx context.Context) (int, error) {
	s.mu.RLock()
	names := append([]string(nil), s.order...)
	s.mu.RUnlock()

	total := 0
	var lastErr error
	for _, name := range names {
		n, err := s.Fetch(ctx, name)
		if err != nil {
			s.logger.Warn("feed fetch failed", "feed", name, "error", err)
			lastErr = err
			continue
		}
		total += n
	}
	return total, lastErr
}

// Items returns the retained items of one feed, newest first. Items
// without a publication date sort last.
func (s *Service) Items(name string) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedCopy(s.items[name])
}

// AllItems returns every retained item across feeds, in registry order.
func (s *Service) AllItems() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Item
	for _, name := range s.order {
		out = append(out, s.items[name]...)
	}
	return out
}

// ItemsMatching returns up to limit retained items relevant to the
// query tokens, ranked by keyword relevance and deduplicated by link.
// Each token acts as an equally weighted ranking keyword, so items
// matching more tokens (or matching them often) come first.
func (s *Service) ItemsMatching(tokens []string, limit int) []types.ResultItem {
	if len(tokens) == 0 || limit == 0 {
		return nil
	}

	keywords := make([]Keyword, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		keywords = append(keywords, NewKeyword(t, 5.0))
	}
	ranker := NewRanker(RankingConfig{
		Name:       "query",
		Keywords:   keywords,
		MinScore:   0.001, // any match scores >= weight, zero means no token hit
		MaxResults: limit,
	})

	ranking := ranker.Rank(s.AllItems())
	out := make([]types.ResultItem, 0, len(ranking.Items))
	for _, scored := range ranking.Items {
		item := types.ResultItem{
			Title:      scored.Item.Title,
			URL:        scored.Item.Link,
			Content:    scored.Item.Description,
			DisplayURL: scored.Item.FeedURL,
			SiteName:   scored.Item.FeedName,
			Type:       types.ResultTypeNews,
		}
		if scored.Item.Published != nil {
			t := *scored.Item.Published
			item.PublishedDate = &t
		}
		if !item.Valid() {
			continue
		}
		out = append(out, item)
	}
	return out
}

// sortedCopy returns items sorted by published date descending, unknown
// dates last.
func sortedCopy(items []Item) []Item {
	out := append([]Item(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Published, out[j].Published
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return out
}
