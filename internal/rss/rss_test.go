package rss

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/types"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Tech Wire</title>
<link>https://techwire.example.com</link>
<description>technology headlines</description>
<item>
<title>Go 1.24 Released</title>
<link>https://techwire.example.com/go-1-24</link>
<description>The Go team ships generics improvements and a faster linker</description>
<pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
<category>golang</category>
</item>
<item>
<title>Database Scaling Patterns</title>
<link>https://techwire.example.com/db-scaling</link>
<description>Sharding and replication strategies for large stores</description>
<pubDate>Tue, 03 Jun 2025 08:30:00 GMT</pubDate>
</item>
<item>
<title></title>
<link>https://techwire.example.com/untitled</link>
<description>entry without a title is dropped</description>
</item>
</channel>
</rss>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testService() *Service {
	return NewService(config.RSSConfig{Timeout: 5 * time.Second}, nil, testLogger())
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

func TestAddFeedValidation(t *testing.T) {
	s := testService()

	cases := []struct {
		name string
		feed Feed
		ok   bool
	}{
		{"valid", Feed{Name: "tech", URL: "https://techwire.example.com/rss"}, true},
		{"missing name", Feed{URL: "https://techwire.example.com/rss"}, false},
		{"missing url", Feed{Name: "tech2"}, false},
		{"relative url", Feed{Name: "tech3", URL: "/rss.xml"}, false},
		{"bad scheme", Feed{Name: "tech4", URL: "ftp://techwire.example.com/rss"}, false},
	}
	for _, tc := range cases {
		err := s.AddFeed(tc.feed)
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestAddRemoveFeed(t *testing.T) {
	s := testService()
	if err := s.AddFeed(Feed{Name: "tech", URL: "https://techwire.example.com/rss"}); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}
	if err := s.AddFeed(Feed{Name: "news", URL: "https://news.example.com/rss"}); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}

	feeds := s.Feeds()
	if len(feeds) != 2 {
		t.Fatalf("feeds = %d, want 2", len(feeds))
	}
	if feeds[0].Name != "tech" || feeds[1].Name != "news" {
		t.Errorf("feeds should keep registration order, got %q, %q", feeds[0].Name, feeds[1].Name)
	}

	if !s.RemoveFeed("tech") {
		t.Error("RemoveFeed should report an existing feed")
	}
	if s.RemoveFeed("tech") {
		t.Error("RemoveFeed should report a missing feed")
	}
	if got := s.Feeds(); len(got) != 1 || got[0].Name != "news" {
		t.Errorf("after removal feeds = %+v", got)
	}
}

func TestFetchParsesFeed(t *testing.T) {
	srv := serveFeed(t, feedXML)
	s := testService()
	if err := s.AddFeed(Feed{Name: "tech", URL: srv.URL}); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}

	n, err := s.Fetch(context.Background(), "tech")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n != 2 {
		t.Fatalf("fetched = %d, want 2 (untitled entry dropped)", n)
	}

	items := s.Items("tech")
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	// Newest first.
	if items[0].Title != "Database Scaling Patterns" {
		t.Errorf("first item = %q, want the newer entry", items[0].Title)
	}
	if items[1].Link != "https://techwire.example.com/go-1-24" {
		t.Errorf("second link = %q", items[1].Link)
	}
	if items[0].Published == nil {
		t.Error("published date should be carried over")
	}

	status := s.Feeds()[0]
	if status.Items != 2 {
		t.Errorf("status items = %d, want 2", status.Items)
	}
	if status.LastFetched.IsZero() {
		t.Error("LastFetched should be set after a fetch")
	}
	if status.LastError != "" {
		t.Errorf("LastError = %q, want empty", status.LastError)
	}
}

func TestFetchRecordsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	s := testService()
	if err := s.AddFeed(Feed{Name: "dead", URL: srv.URL}); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}
	if _, err := s.Fetch(context.Background(), "dead"); err == nil {
		t.Fatal("expected fetch error")
	}
	if status := s.Feeds()[0]; status.LastError == "" {
		t.Error("fetch failure should be recorded on the feed status")
	}

	if _, err := s.Fetch(context.Background(), "nope"); err == nil {
		t.Error("fetching an unknown feed should error")
	}
}

func TestFetchAll(t *testing.T) {
	srv := serveFeed(t, feedXML)
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer dead.Close()

	s := testService()
	if err := s.AddFeed(Feed{Name: "tech", URL: srv.URL}); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}
	if err := s.AddFeed(Feed{Name: "dead", URL: dead.URL}); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}

	n, err := s.FetchAll(context.Background())
	if n != 2 {
		t.Errorf("total = %d, want 2 from the healthy feed", n)
	}
	if err == nil {
		t.Error("FetchAll should surface the last failure")
	}
	if got := len(s.AllItems()); got != 2 {
		t.Errorf("AllItems = %d, want 2", got)
	}
}

func TestItemsMatching(t *testing.T) {
	srv := serveFeed(t, feedXML)
	s := testService()
	if err := s.AddFeed(Feed{Name: "tech", URL: srv.URL}); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}
	if _, err := s.Fetch(context.Background(), "tech"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	results := s.ItemsMatching([]string{"generics"}, 10)
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	r := results[0]
	if r.Title != "Go 1.24 Released" {
		t.Errorf("title = %q", r.Title)
	}
	if r.URL != "https://techwire.example.com/go-1-24" {
		t.Errorf("url = %q", r.URL)
	}
	if r.Type != types.ResultTypeNews {
		t.Errorf("type = %q, want news", r.Type)
	}
	if r.SiteName != "tech" {
		t.Errorf("site name = %q, want feed name", r.SiteName)
	}
	if r.Score != 0 {
		t.Errorf("score = %v, matching leaves scoring to the caller", r.Score)
	}
	if r.PublishedDate == nil {
		t.Error("published date should survive conversion")
	}

	if got := s.ItemsMatching([]string{"blockchain"}, 10); len(got) != 0 {
		t.Errorf("unrelated tokens matched %d items", len(got))
	}
	if got := s.ItemsMatching(nil, 10); len(got) != 0 {
		t.Errorf("empty tokens matched %d items", len(got))
	}
	// "and" appears in both descriptions; the limit must still hold.
	if got := s.ItemsMatching([]string{"and"}, 1); len(got) != 1 {
		t.Errorf("limit ignored, got %d items", len(got))
	}
}

func TestNewServiceRegistersConfiguredFeeds(t *testing.T) {
	cfg := config.RSSConfig{
		Timeout: 5 * time.Second,
		Feeds: []config.FeedConfig{
			{Name: "tech", URL: "https://techwire.example.com/rss", Keywords: []string{"go"}},
			{Name: "broken", URL: "not a url"},
		},
	}
	s := NewService(cfg, nil, testLogger())
	feeds := s.Feeds()
	if len(feeds) != 1 {
		t.Fatalf("feeds = %d, want only the valid one", len(feeds))
	}
	if feeds[0].Name != "tech" || len(feeds[0].Keywords) != 1 {
		t.Errorf("registered feed = %+v", feeds[0])
	}
}
