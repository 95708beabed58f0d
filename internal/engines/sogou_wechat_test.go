package engines

import (
	"testing"

	"github.com/nostalgiatan/see/internal/types"
)

const sogouWechatFixture = `<!DOCTYPE html>
<html><body>
<ul class="news-list">
<li id="sogou_vr_11002601_box_0">
  <div class="img-box"><a href="#"><img src="//img01.sogoucdn.com/net/a/04/cover0"/></a></div>
  <div class="txt-box">
    <h3><a href="https://mp.weixin.qq.com/s/article0">Go 语言并发模型详解</a></h3>
    <p class="txt-info">goroutine 与 channel 的底层实现。</p>
    <script>document.write(timeConvert('1700000000'))</script>
  </div>
</li>
<li id="sogou_vr_11002601_box_1">
  <div class="txt-box">
    <h3><a href="/link?url=tracked">Tracked article</a></h3>
  </div>
</li>
<li id="sogou_vr_11002601_box_2">
  <div class="txt-box">
    <h3><a href="https://mp.weixin.qq.com/s/article2">Second article</a></h3>
    <p class="txt-info">No stamp on this one.</p>
  </div>
</li>
</ul>
</body></html>`

func TestSogouWechatPrepare(t *testing.T) {
	wx := NewSogouWechat(testFetcher(t))

	q := types.NewQuery("golang")
	q.Page = 2
	req, err := wx.Prepare(q)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if req.URL.Host != "weixin.sogou.com" || req.URL.Path != "/weixin" {
		t.Errorf("endpoint = %s", req.URLString())
	}
	vals := req.URL.Query()
	if vals.Get("query") != "golang" || vals.Get("page") != "2" || vals.Get("type") != "2" {
		t.Errorf("query params wrong: %s", req.URLString())
	}
}

func TestSogouWechatParse(t *testing.T) {
	wx := NewSogouWechat(testFetcher(t))

	items, err := wx.Parse(&types.Response{StatusCode: 200, Body: []byte(sogouWechatFixture)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (redirect hop skipped)", len(items))
	}

	first := items[0]
	if first.Title != "Go 语言并发模型详解" || first.URL != "https://mp.weixin.qq.com/s/article0" {
		t.Errorf("item 0 = %+v", first)
	}
	if first.Content != "goroutine 与 channel 的底层实现。" {
		t.Errorf("content = %q", first.Content)
	}
	if first.Thumbnail != "https://img01.sogoucdn.com/net/a/04/cover0" {
		t.Errorf("thumbnail = %q", first.Thumbnail)
	}
	if first.Type != types.ResultTypeNews || first.SiteName != "WeChat" {
		t.Errorf("classification wrong: %+v", first)
	}
	if first.PublishedDate == nil || first.PublishedDate.Unix() != 1700000000 {
		t.Errorf("published = %v, want timeConvert stamp", first.PublishedDate)
	}
	if got := first.Meta("source"); got != "WeChat" {
		t.Errorf("source = %q", got)
	}

	second := items[1]
	if second.Title != "Second article" {
		t.Errorf("item 1 = %+v", second)
	}
	if second.PublishedDate != nil {
		t.Errorf("stampless article must leave date nil, got %v", second.PublishedDate)
	}
	if second.Thumbnail != "" {
		t.Errorf("coverless article thumbnail = %q", second.Thumbnail)
	}
}
