package engines

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/fetcher"
	"github.com/nostalgiatan/see/internal/types"
)

// SogouWechat searches WeChat official-account articles through
// Sogou's weixin portal, the only public index of them.
type SogouWechat struct {
	info    *engine.EngineInfo
	fetcher fetcher.Fetcher
}

// NewSogouWechat creates the WeChat article adapter on the shared
// fetcher.
func NewSogouWechat(f fetcher.Fetcher) *SogouWechat {
	return &SogouWechat{
		info: &engine.EngineInfo{
			Name:        "sogou_wechat",
			DisplayName: "Sogou WeChat",
			Description: "WeChat article search via Sogou",
			Category:    engine.CategoryNews,
			Website:     "https://weixin.sogou.com",
			Shortcut:    "wx",
			Timeout:     10 * time.Second,
			MaxPage:     10,
			Capabilities: engine.Capabilities{
				ResultTypes: []types.ResultType{types.ResultTypeNews},
				MaxPageSize: 10,
				Pagination:  true,
			},
		},
		fetcher: f,
	}
}

func (s *SogouWechat) Info() *engine.EngineInfo { return s.info }

// Prepare assembles the portal URL. type=2 selects articles.
func (s *SogouWechat) Prepare(q *types.Query) (*types.Request, error) {
	params := url.Values{}
	params.Set("query", q.Text)
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("type", "2")
	return types.NewRequest("https://weixin.sogou.com/weixin?" + params.Encode())
}

func (s *SogouWechat) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	return s.fetcher.Fetch(ctx, req)
}

// Parse extracts article rows. Publication stamps hide in inline
// timeConvert scripts; /link?url= redirect hops are skipped the same
// way the web adapter skips them.
func (s *SogouWechat) Parse(resp *types.Response) ([]types.ResultItem, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{Engine: s.info.Name, URL: resp.FinalURL, Err: err}
	}

	var items []types.ResultItem
	selectFirst(doc.Selection, `li[id*="sogou_vr_"]`, "li.results-item", "div.results").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("h3 a").First()
		if link.Length() == 0 {
			return
		}
		title := collapse(link.Text())
		href, _ := link.Attr("href")
		if href == "" || strings.HasPrefix(href, "/link?url=") {
			return
		}

		item := types.NewResultItem(title, href, nodeText(sel, "p.txt-info", `p[class*="txt-info"]`))
		item.Type = types.ResultTypeNews
		item.DisplayURL = href
		item.SiteName = "WeChat"
		item.Thumbnail = wechatThumbnail(sel)
		item.SetMeta("source", "WeChat")

		sel.Find("script").EachWithBreak(func(_ int, script *goquery.Selection) bool {
			if t := parseTimeConvert(script.Text()); t != nil {
				item.PublishedDate = t
				return false
			}
			return true
		})

		if item.Valid() {
			items = append(items, *item)
		}
	})
	return items, nil
}

func wechatThumbnail(sel *goquery.Selection) string {
	src, _ := sel.Find("div.img-box a img").First().Attr("src")
	switch {
	case src == "":
		return ""
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case !strings.HasPrefix(src, "http"):
		return "https://weixin.sogou.com" + src
	}
	return src
}
