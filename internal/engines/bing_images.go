package engines

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/fetcher"
	"github.com/nostalgiatan/see/internal/types"
)

// BingImages searches Bing's image vertical through the async endpoint
// the infinite-scroll frontend uses. Each tile embeds its real image
// metadata as JSON in the m attribute of an a.iusc anchor.
type BingImages struct {
	info    *engine.EngineInfo
	fetcher fetcher.Fetcher
}

// NewBingImages creates the Bing Images adapter on the shared fetcher.
func NewBingImages(f fetcher.Fetcher) *BingImages {
	return &BingImages{
		info: &engine.EngineInfo{
			Name:        "bing_images",
			DisplayName: "Bing Images",
			Description: "Microsoft Bing image search",
			Category:    engine.CategoryImages,
			Website:     "https://www.bing.com/images",
			Shortcut:    "bii",
			Timeout:     10 * time.Second,
			MaxPage:     10,
			Capabilities: engine.Capabilities{
				ResultTypes: []types.ResultType{types.ResultTypeImage},
				MaxPageSize: 35,
				Pagination:  true,
				TimeRange:   true,
			},
		},
		fetcher: f,
	}
}

func (b *BingImages) Info() *engine.EngineInfo { return b.info }

func (b *BingImages) Prepare(q *types.Query) (*types.Request, error) {
	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("async", "1")
	params.Set("first", strconv.Itoa((q.Page-1)*35+1))
	params.Set("count", "35")
	if minutes := timeRangeMinutes(q.TimeRange); minutes > 0 {
		params.Set("qft", "filterui:age-lt"+strconv.Itoa(minutes))
	}
	return types.NewRequest("https://www.bing.com/images/async?" + params.Encode())
}

func (b *BingImages) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	return b.fetcher.Fetch(ctx, req)
}

// tileMeta is the JSON blob in a tile's m attribute: full image,
// thumbnail, hosting page and description.
type tileMeta struct {
	MURL string `json:"murl"`
	TURL string `json:"turl"`
	PURL string `json:"purl"`
	Desc string `json:"desc"`
}

// Parse extracts image tiles. Tiles without a full-size image URL are
// placeholders and get skipped.
func (b *BingImages) Parse(resp *types.Response) ([]types.ResultItem, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{Engine: b.info.Name, URL: resp.FinalURL, Err: err}
	}

	var items []types.ResultItem
	selectFirst(doc.Selection, "ul.dgControl_list li", `ul[class*="dgControl_list"] li`).Each(func(_ int, sel *goquery.Selection) {
		raw, ok := sel.Find("a.iusc").First().Attr("m")
		if !ok || raw == "" {
			return
		}
		var meta tileMeta
		if json.Unmarshal([]byte(raw), &meta) != nil || meta.MURL == "" {
			return
		}

		title := joinTexts(sel.Find("div.infnmpt a"))
		format := joinTexts(sel.Find("div.imgpt div span"))
		source := joinTexts(sel.Find("div.imgpt div.lnkw a"))

		item := types.NewResultItem(title, meta.PURL, meta.Desc)
		item.Type = types.ResultTypeImage
		item.Template = "images.html"
		item.DisplayURL = meta.PURL
		if item.DisplayURL == "" {
			item.DisplayURL = meta.MURL
		}
		item.Thumbnail = meta.TURL
		if item.Thumbnail == "" {
			item.Thumbnail = meta.MURL
		}

		item.SetMeta("source", source)
		item.SetMeta("format", format)
		if format != "" {
			// "1920 x 1080 · jpeg" style labels
			parts := strings.Split(format, " · ")
			item.SetMeta("resolution", parts[0])
			if len(parts) > 1 {
				item.SetMeta("img_format", parts[1])
			}
		}
		item.SetMeta("image_url", meta.MURL)

		if item.Valid() {
			items = append(items, *item)
		}
	})
	return items, nil
}

// joinTexts joins the trimmed texts of every node in the selection.
func joinTexts(sel *goquery.Selection) string {
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := collapse(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}
