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

// Sogou searches Sogou's web results page.
type Sogou struct {
	info    *engine.EngineInfo
	fetcher fetcher.Fetcher
}

// NewSogou creates the Sogou adapter on the shared fetcher.
func NewSogou(f fetcher.Fetcher) *Sogou {
	return &Sogou{
		info: &engine.EngineInfo{
			Name:        "sogou",
			DisplayName: "Sogou",
			Description: "Sogou web search",
			Category:    engine.CategoryGeneral,
			Website:     "https://www.sogou.com",
			Shortcut:    "sg",
			Timeout:     10 * time.Second,
			MaxPage:     10,
			Capabilities: engine.Capabilities{
				ResultTypes: []types.ResultType{types.ResultTypeGeneral},
				MaxPageSize: 10,
				Pagination:  true,
				TimeRange:   true,
			},
		},
		fetcher: f,
	}
}

func (s *Sogou) Info() *engine.EngineInfo { return s.info }

// Prepare assembles the search URL. Recency filters need both s_from
// and the tsn marker or Sogou ignores them.
func (s *Sogou) Prepare(q *types.Query) (*types.Request, error) {
	params := url.Values{}
	params.Set("query", q.Text)
	params.Set("page", strconv.Itoa(q.Page))
	if from := sogouTimeFilter(q.TimeRange); from != "" {
		params.Set("s_from", from)
		params.Set("tsn", "1")
	}
	return types.NewRequest("https://www.sogou.com/web?" + params.Encode())
}

func (s *Sogou) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	return s.fetcher.Fetch(ctx, req)
}

// Parse extracts organic results from the vrwrap cards. Entries whose
// link is a /link?url= redirect hop are skipped: resolving them costs
// an extra round trip per item.
func (s *Sogou) Parse(resp *types.Response) ([]types.ResultItem, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{Engine: s.info.Name, URL: resp.FinalURL, Err: err}
	}

	var items []types.ResultItem
	selectFirst(doc.Selection, "div.vrwrap", `div[class*="vrwrap"]`).Each(func(_ int, sel *goquery.Selection) {
		link := selectFirst(sel, "h3.vr-title a", `h3[class*="vr-title"] a`).First()
		if link.Length() == 0 {
			return
		}
		title := collapse(link.Text())
		href, _ := link.Attr("href")
		if href == "" || strings.HasPrefix(href, "/link?url=") {
			return
		}

		content := nodeText(sel, "div.text-layout p.star-wiki", "div.fz-mid.space-txt")

		item := types.NewResultItem(title, href, content)
		item.DisplayURL = href
		if item.Valid() {
			items = append(items, *item)
		}
	})
	return items, nil
}

// sogouTimeFilter maps a recency window onto Sogou's s_from parameter.
func sogouTimeFilter(tr types.TimeRange) string {
	switch tr {
	case types.TimeRangeDay:
		return "inttime_day"
	case types.TimeRangeWeek:
		return "inttime_week"
	case types.TimeRangeMonth:
		return "inttime_month"
	case types.TimeRangeYear:
		return "inttime_year"
	}
	return ""
}
