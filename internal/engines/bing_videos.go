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

// BingVideos searches Bing's video vertical through the asyncv2
// fragment endpoint.
type BingVideos struct {
	info    *engine.EngineInfo
	fetcher fetcher.Fetcher
}

// NewBingVideos creates the Bing Videos adapter on the shared fetcher.
func NewBingVideos(f fetcher.Fetcher) *BingVideos {
	return &BingVideos{
		info: &engine.EngineInfo{
			Name:        "bing_videos",
			DisplayName: "Bing Videos",
			Description: "Microsoft Bing video search",
			Category:    engine.CategoryVideos,
			Website:     "https://www.bing.com/videos",
			Shortcut:    "biv",
			Timeout:     10 * time.Second,
			MaxPage:     10,
			Capabilities: engine.Capabilities{
				ResultTypes: []types.ResultType{types.ResultTypeVideo},
				MaxPageSize: 35,
				Pagination:  true,
				TimeRange:   true,
			},
		},
		fetcher: f,
	}
}

func (b *BingVideos) Info() *engine.EngineInfo { return b.info }

func (b *BingVideos) Prepare(q *types.Query) (*types.Request, error) {
	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("async", "content")
	params.Set("first", strconv.Itoa((q.Page-1)*35+1))
	params.Set("count", "35")
	if minutes := timeRangeMinutes(q.TimeRange); minutes > 0 {
		params.Set("qft", "filterui:age-lt"+strconv.Itoa(minutes))
	}
	return types.NewRequest("https://www.bing.com/videos/asyncv2?" + params.Encode())
}

func (b *BingVideos) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	return b.fetcher.Fetch(ctx, req)
}

// Parse extracts video cards across the markup variants Bing rotates
// through. View counters come abbreviated ("1.2M views") and are
// normalized to plain integers.
func (b *BingVideos) Parse(resp *types.Response) ([]types.ResultItem, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{Engine: b.info.Name, URL: resp.FinalURL, Err: err}
	}

	var items []types.ResultItem
	selectFirst(doc.Selection, "div.dmcv", `div[class*="video"]`, "div.videocard", "div.mc_vtvc").Each(func(_ int, sel *goquery.Selection) {
		link := selectFirst(sel, "a.title", "h3 a", "a.tit").First()
		if link.Length() == 0 {
			return
		}
		title := collapse(link.Text())
		href, _ := link.Attr("href")

		item := types.NewResultItem(title, href, nodeText(sel, "p.caption", "div.mc_vtvc_meta", "span.mc_vtvc_desc"))
		item.Type = types.ResultTypeVideo
		item.Template = "videos.html"
		item.DisplayURL = href
		item.Thumbnail = bingVideoThumbnail(sel)

		if source := nodeText(sel, "span.mc_vtvc_meta_author", "span.mc_vtvc_meta span"); source != "" {
			item.SetMeta("source", source)
		}
		if dur := collapse(sel.Find("span.mc_vtvc_duration span.dur").First().Text()); dur != "" {
			item.SetMeta("duration", dur)
		}
		if views := parseViewCount(nodeText(sel, "span.mc_vtvc_meta_views", "span.views")); views > 0 {
			item.SetMeta("views", strconv.FormatInt(views, 10))
		}

		if item.Valid() {
			items = append(items, *item)
		}
	})
	return items, nil
}

// bingVideoThumbnail finds the card's preview image across the lazy-
// loading attribute variants.
func bingVideoThumbnail(sel *goquery.Selection) string {
	img := sel.Find("img").First()
	src, _ := img.Attr("src")
	if src == "" {
		src, _ = img.Attr("data-src")
	}
	if src == "" {
		src, _ = img.Attr("data-thumbsrc")
	}
	switch {
	case src == "":
		return ""
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case !strings.HasPrefix(src, "http"):
		return "https://www.bing.com" + src
	}
	return src
}
