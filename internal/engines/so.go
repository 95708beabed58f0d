package engines

import (
	"bytes"
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/fetcher"
	"github.com/nostalgiatan/see/internal/types"
)

// So searches 360 Search (so.com).
type So struct {
	info    *engine.EngineInfo
	fetcher fetcher.Fetcher
}

// NewSo creates the 360 Search adapter on the shared fetcher.
func NewSo(f fetcher.Fetcher) *So {
	return &So{
		info: &engine.EngineInfo{
			Name:        "so",
			DisplayName: "360 Search",
			Description: "Qihoo 360 web search",
			Category:    engine.CategoryGeneral,
			Website:     "https://www.so.com",
			Shortcut:    "so",
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

func (s *So) Info() *engine.EngineInfo { return s.info }

// Prepare assembles the search URL. Pagination rides a pn offset that
// only appears past the first page.
func (s *So) Prepare(q *types.Query) (*types.Request, error) {
	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("ie", "utf-8")
	params.Set("src", "srp")
	if q.Page > 1 {
		params.Set("pn", strconv.Itoa((q.Page-1)*10))
	}
	if adv := soTimeFilter(q.TimeRange); adv != "" {
		params.Set("adv", adv)
	}
	return types.NewRequest("https://www.so.com/s?" + params.Encode())
}

func (s *So) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	return s.fetcher.Fetch(ctx, req)
}

// Parse extracts organic results from the res-list markup. 360 links
// carry the real target in data-mdurl; href is a tracking hop. Pages
// that render only rich cards fall back to an XPath scan.
func (s *So) Parse(resp *types.Response) ([]types.ResultItem, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{Engine: s.info.Name, URL: resp.FinalURL, Err: err}
	}

	var items []types.ResultItem
	selectFirst(doc.Selection, "li.res-list", `li[class*="res-list"]`).Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("h3.res-title a").First()
		if link.Length() == 0 {
			return
		}
		title := collapse(link.Text())

		target, _ := link.Attr("data-mdurl")
		if target == "" {
			target, _ = link.Attr("href")
		}

		content := nodeText(sel, "p", `div[class*="desc"]`, `div[class*="content"]`)

		display := collapse(sel.Find("cite").First().Text())
		if display == "" {
			display = target
		}

		item := types.NewResultItem(title, target, content)
		item.DisplayURL = display
		if item.Valid() {
			items = append(items, *item)
		}
	})

	if len(items) == 0 {
		items = s.parseRichBlocks(resp.Body)
	}
	return items, nil
}

// parseRichBlocks handles pages where 360 renders only rich cards: one
// item per card, from the first anchor with a real label. Anchors with
// labels under 5 bytes or the software-store badge are navigation
// chrome, not results.
func (s *So) parseRichBlocks(body []byte) []types.ResultItem {
	root, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var items []types.ResultItem
	for _, block := range htmlquery.Find(root, `//div[contains(@class,"res-rich")]`) {
		blockText := htmlquery.InnerText(block)
		for _, link := range htmlquery.Find(block, ".//a") {
			title := strings.TrimSpace(htmlquery.InnerText(link))
			if len(title) < 5 || title == "360软件宝库" {
				continue
			}

			target := htmlquery.SelectAttr(link, "data-mdurl")
			if target == "" {
				target = htmlquery.SelectAttr(link, "href")
			}
			if target == "" {
				continue
			}

			// First prose line of the card doubles as the snippet.
			var content string
			for _, line := range strings.Split(blockText, "\n") {
				line = strings.TrimSpace(line)
				if len(line) > 30 && line != title {
					content = truncateRunes(line, 200)
					break
				}
			}

			item := types.NewResultItem(title, target, content)
			item.DisplayURL = target
			if item.Valid() {
				items = append(items, *item)
			}
			break
		}
	}
	return items
}

// soTimeFilter maps a recency window onto 360's adv parameter.
func soTimeFilter(tr types.TimeRange) string {
	switch tr {
	case types.TimeRangeDay:
		return "d"
	case types.TimeRangeWeek:
		return "w"
	case types.TimeRangeMonth:
		return "m"
	case types.TimeRangeYear:
		return "y"
	}
	return ""
}
