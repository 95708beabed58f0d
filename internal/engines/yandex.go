package engines

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/fetcher"
	"github.com/nostalgiatan/see/internal/types"
)

// Yandex searches Yandex's HTML results page.
type Yandex struct {
	info    *engine.EngineInfo
	fetcher fetcher.Fetcher
}

// NewYandex creates the Yandex adapter on the shared fetcher.
func NewYandex(f fetcher.Fetcher) *Yandex {
	return &Yandex{
		info: &engine.EngineInfo{
			Name:        "yandex",
			DisplayName: "Yandex",
			Description: "Yandex web search",
			Category:    engine.CategoryGeneral,
			Website:     "https://yandex.com",
			Shortcut:    "ya",
			Timeout:     10 * time.Second,
			MaxPage:     20,
			Capabilities: engine.Capabilities{
				ResultTypes: []types.ResultType{types.ResultTypeGeneral},
				MaxPageSize: 10,
				Pagination:  true,
			},
		},
		fetcher: f,
	}
}

func (y *Yandex) Info() *engine.EngineInfo { return y.info }

// Prepare assembles the search URL. Yandex pages are zero-based.
func (y *Yandex) Prepare(q *types.Query) (*types.Request, error) {
	params := url.Values{}
	params.Set("text", q.Text)
	if q.Page > 1 {
		params.Set("p", strconv.Itoa(q.Page-1))
	}
	return types.NewRequest("https://yandex.com/search/?" + params.Encode())
}

func (y *Yandex) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	return y.fetcher.Fetch(ctx, req)
}

// Parse extracts organic results. Yandex rotates between the serp-item
// list markup and a flat organic-block layout.
func (y *Yandex) Parse(resp *types.Response) ([]types.ResultItem, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{Engine: y.info.Name, URL: resp.FinalURL, Err: err}
	}

	var items []types.ResultItem
	selectFirst(doc.Selection, "li.serp-item", "div.organic").Each(func(_ int, sel *goquery.Selection) {
		link := selectFirst(sel, "h2 a", "a.organic__url").First()
		if link.Length() == 0 {
			return
		}
		title := collapse(link.Text())
		href, _ := link.Attr("href")
		content := nodeText(sel, "div.organic__content-wrapper", "div.text-container")

		item := types.NewResultItem(title, href, content)
		item.DisplayURL = href
		if item.Valid() {
			items = append(items, *item)
		}
	})
	return items, nil
}
