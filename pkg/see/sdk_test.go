package see

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/types"
)

const releaseFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Runtime Notes</title>
<link>https://runtime.example.com</link>
<description>runtime internals</description>
<item>
<title>Arena allocator experiments</title>
<link>https://runtime.example.com/arena-allocator</link>
<description>Measuring a bump allocator against the general heap</description>
<pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
</item>
<item>
<title>Scheduler latency deep dive</title>
<link>https://runtime.example.com/sched-latency</link>
<description>Where goroutine wakeups spend their time</description>
<pubDate>Tue, 03 Jun 2025 08:30:00 GMT</pubDate>
</item>
</channel>
</rss>`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// offlineClient builds a client whose engine selection resolves to
// nothing, so searches exercise the pipeline without network calls.
func offlineClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger()), WithEngines("not_registered")}, opts...)
	c, err := NewClient(opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	descs := c.Engines()
	if len(descs) == 0 {
		t.Fatal("no engines registered")
	}
	seen := make(map[string]bool, len(descs))
	for _, d := range descs {
		seen[d.Info.Name] = true
	}
	for _, want := range []string{"bing", "baidu", "sogou", "yandex", "bing_news"} {
		if !seen[want] {
			t.Errorf("engine %q missing from catalog", want)
		}
	}

	if st := c.Stats(); st.TotalSearches != 0 {
		t.Errorf("fresh client TotalSearches = %d, want 0", st.TotalSearches)
	}
}

func TestNewClientRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Search.FailureThreshold = 0

	if _, err := NewClient(WithConfig(cfg), WithLogger(quietLogger())); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestWithConfigFileMissing(t *testing.T) {
	if _, err := NewClient(WithConfigFile("/nonexistent/see.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestSearchValidatesQuery(t *testing.T) {
	c := offlineClient(t)

	_, err := c.Search(context.Background(), "   ")
	if !errors.Is(err, types.ErrInvalidQuery) {
		t.Fatalf("error = %v, want ErrInvalidQuery", err)
	}
}

func TestSearchWithNoResolvableEngines(t *testing.T) {
	c := offlineClient(t)

	resp, err := c.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Query != "anything" {
		t.Errorf("Query = %q", resp.Query)
	}
	if len(resp.Result.Items) != 0 {
		t.Errorf("items = %d, want 0", len(resp.Result.Items))
	}
	if len(resp.EnginesUsed) != 0 {
		t.Errorf("engines_used = %v, want empty", resp.EnginesUsed)
	}

	if st := c.Stats(); st.TotalSearches != 1 {
		t.Errorf("TotalSearches = %d, want 1", st.TotalSearches)
	}
}

func TestSearchStreamOffline(t *testing.T) {
	c := offlineClient(t)

	calls := 0
	resp, err := c.SearchStream(context.Background(), "anything", func(r *types.SearchResult) {
		calls++
	})
	if err != nil {
		t.Fatalf("SearchStream: %v", err)
	}
	if calls != 0 {
		t.Errorf("sink called %d times with no engines", calls)
	}
	if len(resp.Result.Items) != 0 {
		t.Errorf("items = %d, want 0", len(resp.Result.Items))
	}
}

func TestFeedOpsRequireRSS(t *testing.T) {
	c := offlineClient(t)

	if _, err := c.FetchFeeds(context.Background()); !errors.Is(err, ErrRSSDisabled) {
		t.Errorf("FetchFeeds error = %v, want ErrRSSDisabled", err)
	}
	if err := c.AddFeed("x", "https://example.com/feed"); !errors.Is(err, ErrRSSDisabled) {
		t.Errorf("AddFeed error = %v, want ErrRSSDisabled", err)
	}
}

func TestFullTextFoldsFeedItems(t *testing.T) {
	srv := serveFeed(t, releaseFeedXML)
	c := offlineClient(t, WithFeed("runtime", srv.URL, "allocator"), WithTimeout(2*time.Second))

	n, err := c.FetchFeeds(context.Background())
	if err != nil {
		t.Fatalf("FetchFeeds: %v", err)
	}
	if n != 2 {
		t.Fatalf("fetched %d items, want 2", n)
	}

	resp, err := c.SearchFullText(context.Background(), "allocator")
	if err != nil {
		t.Fatalf("SearchFullText: %v", err)
	}
	if len(resp.Result.Items) == 0 {
		t.Fatal("no items folded in from the feed")
	}
	found := false
	for _, item := range resp.Result.Items {
		if item.URL == "https://runtime.example.com/arena-allocator" {
			found = true
			if item.Score < 0.7 {
				t.Errorf("passive item score = %.2f, want >= 0.7", item.Score)
			}
		}
	}
	if !found {
		t.Error("arena allocator item missing from full-text results")
	}

	hasRSS := false
	for _, name := range resp.EnginesUsed {
		if name == "RSSCache" {
			hasRSS = true
		}
	}
	if !hasRSS {
		t.Errorf("engines_used = %v, want RSSCache listed", resp.EnginesUsed)
	}
}

func TestAddFeedValidation(t *testing.T) {
	srv := serveFeed(t, releaseFeedXML)
	c := offlineClient(t, WithFeed("runtime", srv.URL))

	if err := c.AddFeed("bad", "ftp://example.com/feed"); err == nil {
		t.Error("expected error for non-http feed URL")
	}
	if err := c.AddFeed("second", "https://example.com/feed", "golang"); err != nil {
		t.Errorf("AddFeed: %v", err)
	}
}
