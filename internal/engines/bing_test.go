package engines

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/nostalgiatan/see/internal/types"
)

const bingFixture = `<!DOCTYPE html>
<html><body>
<ol id="b_results">
  <li class="b_algo">
    <h2><a href="https://go.dev/doc/">Go Documentation</a></h2>
    <p>Web</p>
    <p>Official Go documentation and guides.</p>
  </li>
  <li class="b_algo">
    <h2><a href="https://www.bing.com/ck/a?!&amp;&amp;p=x&amp;u=a1aHR0cHM6Ly9leGFtcGxlLmNvbS9wYWdl&amp;ntb=1">Example Result</a></h2>
    <p>An example snippet.</p>
  </li>
  <li class="b_algo">
    <h2><a href="">Broken entry</a></h2>
  </li>
</ol>
</body></html>`

func TestBingPrepare(t *testing.T) {
	bing := NewBing(testFetcher(t))

	q := types.NewQuery("test query")
	req, err := bing.Prepare(q)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	u := req.URLString()
	if !strings.Contains(u, "www.bing.com/search") {
		t.Errorf("unexpected host: %s", u)
	}
	if got := req.URL.Query().Get("q"); got != "test query" {
		t.Errorf("q = %q", got)
	}
	if got := req.URL.Query().Get("pq"); got != "test query" {
		t.Errorf("pq = %q", got)
	}
	if req.URL.Query().Has("first") {
		t.Error("first page should carry no offset")
	}

	var edgeCD, edgeS string
	for _, c := range req.Cookies {
		switch c.Name {
		case "_EDGE_CD":
			edgeCD = c.Value
		case "_EDGE_S":
			edgeS = c.Value
		}
	}
	if edgeCD != "m=us&u=en" {
		t.Errorf("_EDGE_CD = %q", edgeCD)
	}
	if edgeS != "mkt=us&ui=en" {
		t.Errorf("_EDGE_S = %q", edgeS)
	}
}

func TestBingPreparePagination(t *testing.T) {
	bing := NewBing(testFetcher(t))

	q := types.NewQuery("test")
	q.Page = 3
	req, err := bing.Prepare(q)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if got := req.URL.Query().Get("first"); got != "21" {
		t.Errorf("first = %q, want 21", got)
	}
	if got := req.URL.Query().Get("FORM"); got != "PERE1" {
		t.Errorf("FORM = %q, want PERE1", got)
	}
}

func TestBingPrepareTimeRange(t *testing.T) {
	bing := NewBing(testFetcher(t))

	q := types.NewQuery("test")
	q.TimeRange = types.TimeRangeWeek
	req, err := bing.Prepare(q)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if u := req.URLString(); !strings.Contains(u, `filters=ex1:%22ez2%22`) {
		t.Errorf("time filter missing: %s", u)
	}
}

func TestBingParse(t *testing.T) {
	bing := NewBing(testFetcher(t))

	resp := &types.Response{StatusCode: 200, Body: []byte(bingFixture)}
	items, err := bing.Parse(resp)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	if items[0].Title != "Go Documentation" {
		t.Errorf("title = %q", items[0].Title)
	}
	if items[0].URL != "https://go.dev/doc/" {
		t.Errorf("url = %q", items[0].URL)
	}
	// The "Web" tab label paragraph is skipped.
	if items[0].Content != "Official Go documentation and guides." {
		t.Errorf("content = %q", items[0].Content)
	}

	// Tracking link decoded back to its target.
	if items[1].URL != "https://example.com/page" {
		t.Errorf("decoded url = %q", items[1].URL)
	}
}

func TestBingParseNoResults(t *testing.T) {
	bing := NewBing(testFetcher(t))

	for _, body := range []string{"", "<html><body>There are no results for your search</body></html>"} {
		items, err := bing.Parse(&types.Response{StatusCode: 200, Body: []byte(body)})
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if len(items) != 0 {
			t.Errorf("got %d items from empty page", len(items))
		}
	}
}

// End-to-end through the real HTTP fetcher against a local server.
func TestBingRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "golang" {
			t.Errorf("q = %q, want golang", got)
		}
		if c, err := r.Cookie("_EDGE_CD"); err != nil || c.Value == "" {
			t.Error("market cookie not forwarded")
		}
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, bingFixture)
	}))
	defer srv.Close()

	f := testFetcher(t)
	bing := NewBing(f)

	req, err := bing.Prepare(types.NewQuery("golang"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	// Point the prepared request at the local server, keeping the query.
	target, err := url.Parse(srv.URL + "/search?" + req.URL.RawQuery)
	if err != nil {
		t.Fatalf("parse target: %v", err)
	}
	req.URL = target
	req.Engine = bing.Info().Name

	resp, err := bing.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	items, err := bing.Parse(resp)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
}
