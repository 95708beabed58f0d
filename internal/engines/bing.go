// Package engines holds the upstream search engine adapters. Every
// adapter satisfies engine.Adapter: Prepare builds a fully-encoded
// request, Fetch runs it through the shared fetcher, Parse normalizes
// the body into result items. Adapters are stateless beyond the shared
// fetcher reference, so one instance serves concurrent searches.
package engines

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/fetcher"
	"github.com/nostalgiatan/see/internal/types"
)

// Bing searches Bing's HTML results page.
type Bing struct {
	info    *engine.EngineInfo
	fetcher fetcher.Fetcher
}

// NewBing creates the Bing adapter on the shared fetcher.
func NewBing(f fetcher.Fetcher) *Bing {
	return &Bing{
		info: &engine.EngineInfo{
			Name:        "bing",
			DisplayName: "Bing",
			Description: "Microsoft Bing web search",
			Category:    engine.CategoryGeneral,
			Website:     "https://www.bing.com",
			Shortcut:    "bi",
			Timeout:     10 * time.Second,
			MaxPage:     200,
			Capabilities: engine.Capabilities{
				ResultTypes:    []types.ResultType{types.ResultTypeGeneral},
				MaxPageSize:    10,
				Pagination:     true,
				TimeRange:      true,
				LanguageFilter: true,
				RegionFilter:   true,
				SafeSearch:     true,
			},
		},
		fetcher: f,
	}
}

func (b *Bing) Info() *engine.EngineInfo { return b.info }

// Prepare assembles the search URL. The pq parameter repeats the query
// to keep pagination stable, and pages past the first need both a
// first offset and Bing's FORM=PERE marker.
func (b *Bing) Prepare(q *types.Query) (*types.Request, error) {
	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("pq", q.Text)
	if q.Page > 1 {
		params.Set("first", strconv.Itoa((q.Page-1)*10+1))
		params.Set("FORM", bingPageForm(q.Page))
	}

	rawURL := "https://www.bing.com/search?" + params.Encode()
	if f := bingTimeFilter(q.TimeRange); f != "" {
		rawURL += `&filters=ex1:%22ez` + f + `%22`
	}

	req, err := types.NewRequest(rawURL)
	if err != nil {
		return nil, err
	}

	lang, region := q.Language, q.Region
	if lang == "" {
		lang = "en"
	}
	if region == "" {
		region = "us"
	}
	req.AddCookie("_EDGE_CD", fmt.Sprintf("m=%s&u=%s", region, lang))
	req.AddCookie("_EDGE_S", fmt.Sprintf("mkt=%s&ui=%s", region, lang))
	return req, nil
}

func (b *Bing) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	return b.fetcher.Fetch(ctx, req)
}

// Parse extracts organic results from ol#b_results. Result links are
// often /ck/a tracking redirects; those are decoded back to the target.
func (b *Bing) Parse(resp *types.Response) ([]types.ResultItem, error) {
	html := resp.Text()
	if html == "" || strings.Contains(html, "There are no results") {
		return nil, nil
	}

	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{Engine: b.info.Name, URL: resp.FinalURL, Err: err}
	}

	var items []types.ResultItem
	doc.Find("ol#b_results > li.b_algo").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("h2 > a").First()
		if link.Length() == 0 {
			return
		}
		title := collapse(link.Text())
		href, _ := link.Attr("href")
		href = decodeBingRedirect(href)

		// First non-empty paragraph that is not the "Web" tab label.
		var content string
		sel.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
			if text := collapse(p.Text()); text != "" && text != "Web" {
				content = text
				return false
			}
			return true
		})

		item := types.NewResultItem(title, href, content)
		item.DisplayURL = href
		if item.Valid() {
			items = append(items, *item)
		}
	})
	return items, nil
}

// bingPageForm returns the FORM marker Bing expects on pages past the
// first: PERE, PERE1, PERE2, ...
func bingPageForm(page int) string {
	switch {
	case page == 2:
		return "PERE"
	case page > 2:
		return "PERE" + strconv.Itoa(page-2)
	}
	return ""
}

// bingTimeFilter maps a recency window onto Bing's ez filter index.
func bingTimeFilter(tr types.TimeRange) string {
	switch tr {
	case types.TimeRangeDay:
		return "1"
	case types.TimeRangeWeek:
		return "2"
	case types.TimeRangeMonth:
		return "3"
	case types.TimeRangeYear:
		return "4"
	}
	return ""
}
