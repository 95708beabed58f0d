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

// BingNews searches Bing's news vertical through the infinite-scroll
// fragment endpoint.
type BingNews struct {
	info    *engine.EngineInfo
	fetcher fetcher.Fetcher
	now     func() time.Time
}

// NewBingNews creates the Bing News adapter on the shared fetcher.
func NewBingNews(f fetcher.Fetcher) *BingNews {
	return &BingNews{
		info: &engine.EngineInfo{
			Name:        "bing_news",
			DisplayName: "Bing News",
			Description: "Microsoft Bing news search",
			Category:    engine.CategoryNews,
			Website:     "https://www.bing.com/news",
			Shortcut:    "bin",
			Timeout:     10 * time.Second,
			MaxPage:     10,
			Capabilities: engine.Capabilities{
				ResultTypes: []types.ResultType{types.ResultTypeNews},
				MaxPageSize: 10,
				Pagination:  true,
				TimeRange:   true,
			},
		},
		fetcher: f,
		now:     time.Now,
	}
}

func (b *BingNews) Info() *engine.EngineInfo { return b.info }

func (b *BingNews) Prepare(q *types.Query) (*types.Request, error) {
	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("first", strconv.Itoa((q.Page-1)*10+1))
	if interval := bingNewsInterval(q.TimeRange); interval != "" {
		params.Set("qft", interval)
	}
	return types.NewRequest("https://www.bing.com/news/infinitescrollajax?" + params.Encode())
}

func (b *BingNews) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	return b.fetcher.Fetch(ctx, req)
}

// Parse extracts news cards. Publication stamps arrive as relative
// text ("2 hours ago") and are resolved against the current clock.
func (b *BingNews) Parse(resp *types.Response) ([]types.ResultItem, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{Engine: b.info.Name, URL: resp.FinalURL, Err: err}
	}

	var items []types.ResultItem
	selectFirst(doc.Selection, "div.news-card", `div[class*="news"]`, "article", "div.result").Each(func(_ int, sel *goquery.Selection) {
		link := selectFirst(sel, "h3 a", "h2 a", "a.title").First()
		if link.Length() == 0 {
			return
		}
		title := collapse(link.Text())
		href, _ := link.Attr("href")

		item := types.NewResultItem(title, href, nodeText(sel, "p.snippet", "p.description", "div.snippet"))
		item.Type = types.ResultTypeNews
		item.DisplayURL = href
		item.Thumbnail = bingNewsThumbnail(sel)

		if stamp := nodeText(sel, "span.date", "time"); stamp != "" {
			item.PublishedDate = parseRelativeDate(stamp, b.now())
		}
		if source := nodeText(sel, "span.source", "span.provider", "cite"); source != "" {
			item.SetMeta("source", source)
		}

		if item.Valid() {
			items = append(items, *item)
		}
	})
	return items, nil
}

// bingNewsThumbnail finds the card's image, normalizing the
// protocol-relative and bing-relative forms the fragment markup mixes.
func bingNewsThumbnail(sel *goquery.Selection) string {
	img := sel.Find("img").First()
	src, ok := img.Attr("src")
	if !ok || src == "" {
		src, _ = img.Attr("data-src")
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

// bingNewsInterval maps a recency window onto the news qft filter.
// Bing news has no year filter.
func bingNewsInterval(tr types.TimeRange) string {
	switch tr {
	case types.TimeRangeDay:
		return `interval="4"`
	case types.TimeRangeWeek:
		return `interval="7"`
	case types.TimeRangeMonth:
		return `interval="9"`
	}
	return ""
}
