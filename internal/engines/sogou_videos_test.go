package engines

import (
	"testing"

	"github.com/nostalgiatan/see/internal/types"
)

const sogouVideosFixture = `{
  "data": {
    "result": {
      "shortVideoList": [
        {
          "title": "Go concurrency patterns",
          "url": "/vc/tv?id=123",
          "picurl": "//img.v.sogou.com/cover/123.jpg",
          "duration": "08:15",
          "site": "sohu"
        },
        {
          "title": "Absolute link video",
          "url": "https://tv.sohu.com/v/456.html",
          "picurl": "https://img.v.sogou.com/cover/456.jpg",
          "duration": "",
          "site": ""
        },
        {
          "title": "", "url": "/vc/tv?id=789"
        }
      ]
    }
  }
}`

const sogouVideosListFixture = `{
  "data": {
    "list": [
      {"title": "Fallback shape", "url": "https://tv.sohu.com/v/1.html", "picurl": "", "duration": "01:00", "site": "sohu"}
    ]
  }
}`

func TestSogouVideosPrepare(t *testing.T) {
	sv := NewSogouVideos(testFetcher(t))

	q := types.NewQuery("golang")
	q.Page = 2
	req, err := sv.Prepare(q)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if req.URL.Host != "v.sogou.com" || req.URL.Path != "/api/video/shortVideoV2" {
		t.Errorf("endpoint = %s", req.URLString())
	}
	vals := req.URL.Query()
	if vals.Get("query") != "golang" || vals.Get("page") != "2" || vals.Get("pagesize") != "10" {
		t.Errorf("query params wrong: %s", req.URLString())
	}
}

func TestSogouVideosParse(t *testing.T) {
	sv := NewSogouVideos(testFetcher(t))

	items, err := sv.Parse(&types.Response{StatusCode: 200, Body: []byte(sogouVideosFixture)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (untitled video skipped)", len(items))
	}

	if items[0].URL != "https://v.sogou.com/vc/tv?id=123" {
		t.Errorf("relative link not resolved: %q", items[0].URL)
	}
	if items[0].Thumbnail != "https://img.v.sogou.com/cover/123.jpg" {
		t.Errorf("thumbnail = %q", items[0].Thumbnail)
	}
	if got := items[0].Meta("length"); got != "08:15" {
		t.Errorf("length = %q", got)
	}
	if got := items[0].Meta("source"); got != "sohu" {
		t.Errorf("source = %q", got)
	}
	if items[0].Type != types.ResultTypeVideo || items[0].SiteName != "Sogou Videos" {
		t.Errorf("classification wrong: %+v", items[0])
	}

	if items[1].URL != "https://tv.sohu.com/v/456.html" {
		t.Errorf("absolute link mangled: %q", items[1].URL)
	}
	if items[1].Meta("length") != "" || items[1].Meta("source") != "" {
		t.Errorf("empty fields must not set metadata: %+v", items[1].Metadata)
	}
}

func TestSogouVideosParseListShape(t *testing.T) {
	sv := NewSogouVideos(testFetcher(t))

	items, err := sv.Parse(&types.Response{StatusCode: 200, Body: []byte(sogouVideosListFixture)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Fallback shape" {
		t.Fatalf("list shape fallback failed: %+v", items)
	}
}
