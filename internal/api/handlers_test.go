package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/middleware"
	"github.com/nostalgiatan/see/internal/search"
)

func TestSearchGET(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s.InternalHandler(), http.MethodGet, "/api/search?q=rust", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}

	resp := decodeJSON[searchResponse](t, rec)
	if resp.Query != "rust" {
		t.Errorf("query = %q, want %q", resp.Query, "rust")
	}
	if resp.TotalCount != len(resp.Results) || resp.TotalCount != 2 {
		t.Errorf("total_count = %d with %d results, want 2", resp.TotalCount, len(resp.Results))
	}
	if resp.Page != 1 || resp.PageSize != 10 {
		t.Errorf("paging = %d/%d, want defaults 1/10", resp.Page, resp.PageSize)
	}
	if len(resp.EnginesUsed) != 2 {
		t.Errorf("engines_used = %v, want both engines", resp.EnginesUsed)
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i-1].Score < resp.Results[i].Score {
			t.Fatalf("results not sorted by score: %v", resp.Results)
		}
	}
	for _, r := range resp.Results {
		if r.Engine == "" {
			t.Errorf("result %q has no engine attribution", r.URL)
		}
		if r.Title == "" || r.URL == "" {
			t.Errorf("result missing title or url: %+v", r)
		}
	}
}

func TestSearchPOSTWithEngineCount(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s.InternalHandler(), http.MethodPost, "/api/search", `{"q":"rust","n":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}

	resp := decodeJSON[searchResponse](t, rec)
	if len(resp.EnginesUsed) != 1 || resp.EnginesUsed[0] != "alpha" {
		t.Errorf("engines_used = %v, want only the first default", resp.EnginesUsed)
	}
}

func TestSearchExplicitEnginesWinOverCount(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s.InternalHandler(), http.MethodGet, "/api/search?q=rust&engines=beta&n=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeJSON[searchResponse](t, rec)
	if len(resp.EnginesUsed) != 1 || resp.EnginesUsed[0] != "beta" {
		t.Errorf("engines_used = %v, want [beta]", resp.EnginesUsed)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.InternalHandler()

	for _, tc := range []struct {
		method, target, body string
	}{
		{http.MethodGet, "/api/search", ""},
		{http.MethodGet, "/api/search?q=%20", ""},
		{http.MethodPost, "/api/search", `{}`},
	} {
		rec := do(t, h, tc.method, tc.target, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s: status = %d, want 400", tc.method, tc.target, rec.Code)
			continue
		}
		if env := decodeJSON[middleware.Envelope](t, rec); env.Code != codeInvalidQuery {
			t.Errorf("%s %s: code = %q, want %q", tc.method, tc.target, env.Code, codeInvalidQuery)
		}
	}
}

func TestSearchRejectsUnknownTimeRange(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s.InternalHandler(), http.MethodGet, "/api/search?q=rust&time_range=decade", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env := decodeJSON[middleware.Envelope](t, rec); env.Code != codeInvalidQuery {
		t.Errorf("code = %q, want %q", env.Code, codeInvalidQuery)
	}
}

func TestSearchMalformedBody(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s.InternalHandler(), http.MethodPost, "/api/search", `{"q":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestEnginesList(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s.InternalHandler(), http.MethodGet, "/api/engines", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	descriptors := decodeJSON[[]engine.Descriptor](t, rec)
	if len(descriptors) != 2 {
		t.Fatalf("descriptors = %d, want 2", len(descriptors))
	}
	// Descriptors sort by name.
	if descriptors[0].Info.Name != "alpha" || descriptors[1].Info.Name != "beta" {
		t.Errorf("names = %q, %q", descriptors[0].Info.Name, descriptors[1].Info.Name)
	}
	for _, d := range descriptors {
		if !d.Health.Enabled || !d.Health.Available {
			t.Errorf("engine %s reported unhealthy before any traffic", d.Info.Name)
		}
	}
}

func TestHealthBothPaths(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.InternalHandler()

	for _, path := range []string{"/api/health", "/health"} {
		rec := do(t, h, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: status = %d", path, rec.Code)
		}
		resp := decodeJSON[healthResponse](t, rec)
		if resp.Status != "healthy" {
			t.Errorf("%s: status = %q", path, resp.Status)
		}
		if resp.Version != config.Version {
			t.Errorf("%s: version = %q, want %q", path, resp.Version, config.Version)
		}
		if resp.AvailableEngines != 2 || resp.TotalEngines != 2 {
			t.Errorf("%s: engines = %d/%d, want 2/2", path, resp.AvailableEngines, resp.TotalEngines)
		}
	}
}

func TestVersionIdentity(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s.InternalHandler(), http.MethodGet, "/api/version", "")
	resp := decodeJSON[versionResponse](t, rec)
	if resp.Name != config.Name {
		t.Errorf("name = %q, want %q", resp.Name, config.Name)
	}
	if resp.Version != config.Version || resp.Description != config.Description {
		t.Errorf("identity = %+v", resp)
	}
}

func TestStatsReflectSearches(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.InternalHandler()

	do(t, h, http.MethodGet, "/api/search?q=rust", "")
	do(t, h, http.MethodGet, "/api/search?q=rust", "")

	rec := do(t, h, http.MethodGet, "/api/stats", "")
	stats := decodeJSON[search.StatsSnapshot](t, rec)
	if stats.TotalSearches != 2 {
		t.Errorf("total_searches = %d, want 2", stats.TotalSearches)
	}
	// Identical repeat query hits the cache.
	if stats.CacheHits != 1 || stats.CacheMisses != 1 {
		t.Errorf("cache hits/misses = %d/%d, want 1/1", stats.CacheHits, stats.CacheMisses)
	}
}

func TestCacheEndpoints(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.InternalHandler()

	do(t, h, http.MethodGet, "/api/search?q=rust", "")

	rec := do(t, h, http.MethodGet, "/api/cache/stats", "")
	stats := decodeJSON[map[string]any](t, rec)
	if stats["backend"] != "memory" {
		t.Errorf("backend = %v, want memory", stats["backend"])
	}
	if stats["entries"].(float64) != 1 {
		t.Errorf("entries = %v, want 1", stats["entries"])
	}

	rec = do(t, h, http.MethodPost, "/api/cache/cleanup", "")
	cleanup := decodeJSON[map[string]any](t, rec)
	if cleanup["removed"].(float64) != 0 {
		t.Errorf("removed = %v, want 0 while entries are fresh", cleanup["removed"])
	}

	rec = do(t, h, http.MethodPost, "/api/cache/clear", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/api/cache/stats", "")
	stats = decodeJSON[map[string]any](t, rec)
	if stats["entries"].(float64) != 0 {
		t.Errorf("entries after clear = %v, want 0", stats["entries"])
	}
}

func TestCacheEndpointsWithoutStore(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.store = nil
	h := s.InternalHandler()

	rec := do(t, h, http.MethodGet, "/api/cache/stats", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if env := decodeJSON[middleware.Envelope](t, rec); env.Code != codeDisabled {
		t.Errorf("code = %q, want %q", env.Code, codeDisabled)
	}
}

func TestRSSFeedAdminLifecycle(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.InternalHandler()

	rec := do(t, h, http.MethodPost, "/api/rss/feeds/add",
		`{"name":"weekly","url":"https://example.com/rss","keywords":["go"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d (body %s)", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/rss/feeds", "")
	feeds := decodeJSON[[]map[string]any](t, rec)
	if len(feeds) != 1 || feeds[0]["name"] != "weekly" {
		t.Fatalf("feeds = %v, want the added row", feeds)
	}

	rec = do(t, h, http.MethodPost, "/api/rss/feeds/remove", `{"name":"weekly"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/api/rss/feeds/remove", `{"name":"weekly"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second remove status = %d, want 404", rec.Code)
	}
	if env := decodeJSON[middleware.Envelope](t, rec); env.Code != codeNotFound {
		t.Errorf("code = %q, want %q", env.Code, codeNotFound)
	}
}

func TestRSSFeedAddRejectsBadURL(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s.InternalHandler(), http.MethodPost, "/api/rss/feeds/add", `{"name":"x","url":"ftp://nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRSSFetchUnknownFeed(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s.InternalHandler(), http.MethodPost, "/api/rss/fetch", `{"feed":"ghost"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMetricsEndpointServesPrometheusText(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.InternalHandler()

	do(t, h, http.MethodGet, "/api/search?q=rust", "")

	rec := do(t, h, http.MethodGet, "/api/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "see_requests_total") {
		t.Errorf("exposition misses see_requests_total:\n%s", body)
	}
}

func TestMetricsEndpointDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	s := newTestServer(t, cfg)

	rec := do(t, s.InternalHandler(), http.MethodGet, "/api/metrics", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestRealtimeMetricsCountTraffic(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.InternalHandler()

	do(t, h, http.MethodGet, "/api/search?q=rust", "")
	do(t, h, http.MethodGet, "/api/search", "") // 400, counted as failed

	rec := do(t, h, http.MethodGet, "/api/metrics/realtime", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	rt := decodeJSON[map[string]any](t, rec)
	if rt["total_requests"].(float64) != 2 {
		t.Errorf("total_requests = %v, want 2", rt["total_requests"])
	}
	if rt["successful_requests"].(float64) != 1 || rt["failed_requests"].(float64) != 1 {
		t.Errorf("success/failed = %v/%v, want 1/1", rt["successful_requests"], rt["failed_requests"])
	}
}
