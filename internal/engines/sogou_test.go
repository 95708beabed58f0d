package engines

import (
	"testing"

	"github.com/nostalgiatan/see/internal/types"
)

const sogouFixture = `<!DOCTYPE html>
<html><body>
<div class="results">
<div class="vrwrap">
  <h3 class="vr-title"><a href="https://go.dev/blog/">The Go Blog</a></h3>
  <div class="text-layout"><p class="star-wiki">Articles from the Go team.</p></div>
</div>
<div class="vrwrap">
  <h3 class="vr-title"><a href="/link?url=hidden-redirect">Tracked Result</a></h3>
</div>
<div class="vrwrap">
  <h3 class="vr-title"><a href="https://golang.org/doc/faq">Go FAQ</a></h3>
  <div class="fz-mid space-txt">Frequently asked questions about Go.</div>
</div>
<div class="vrwrap">
  <div class="no-title">Card without heading.</div>
</div>
</div>
</body></html>`

func TestSogouPrepare(t *testing.T) {
	sg := NewSogou(testFetcher(t))

	req, err := sg.Prepare(types.NewQuery("golang"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	vals := req.URL.Query()
	if vals.Get("query") != "golang" || vals.Get("page") != "1" {
		t.Errorf("query params wrong: %s", req.URLString())
	}
	if vals.Has("s_from") || vals.Has("tsn") {
		t.Errorf("no time range requested, got: %s", req.URLString())
	}

	q := types.NewQuery("golang")
	q.Page = 2
	q.TimeRange = types.TimeRangeMonth
	req, err = sg.Prepare(q)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	vals = req.URL.Query()
	if vals.Get("page") != "2" {
		t.Errorf("page = %q, want 2", vals.Get("page"))
	}
	if vals.Get("s_from") != "inttime_month" || vals.Get("tsn") != "1" {
		t.Errorf("time filter wrong: %s", req.URLString())
	}
}

func TestSogouParse(t *testing.T) {
	sg := NewSogou(testFetcher(t))

	items, err := sg.Parse(&types.Response{StatusCode: 200, Body: []byte(sogouFixture)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (redirect hop and headingless card skipped)", len(items))
	}

	if items[0].Title != "The Go Blog" || items[0].URL != "https://go.dev/blog/" {
		t.Errorf("item 0 = %+v", items[0])
	}
	if items[0].Content != "Articles from the Go team." {
		t.Errorf("item 0 content = %q", items[0].Content)
	}

	if items[1].Title != "Go FAQ" || items[1].URL != "https://golang.org/doc/faq" {
		t.Errorf("item 1 = %+v", items[1])
	}
	if items[1].Content != "Frequently asked questions about Go." {
		t.Errorf("item 1 content = %q", items[1].Content)
	}
}

func TestSogouParseEmpty(t *testing.T) {
	sg := NewSogou(testFetcher(t))

	items, err := sg.Parse(&types.Response{StatusCode: 200, Body: []byte("<html><body><div>nothing</div></body></html>")})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items, want 0", len(items))
	}
}
