package engines

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/fetcher"
	"github.com/nostalgiatan/see/internal/types"
)

// SogouImages searches Sogou's image API.
type SogouImages struct {
	info    *engine.EngineInfo
	fetcher fetcher.Fetcher
}

// NewSogouImages creates the Sogou Images adapter on the shared
// fetcher.
func NewSogouImages(f fetcher.Fetcher) *SogouImages {
	return &SogouImages{
		info: &engine.EngineInfo{
			Name:        "sogou_images",
			DisplayName: "Sogou Images",
			Description: "Sogou image search",
			Category:    engine.CategoryImages,
			Website:     "https://pic.sogou.com",
			Shortcut:    "sgi",
			Timeout:     10 * time.Second,
			MaxPage:     10,
			Capabilities: engine.Capabilities{
				ResultTypes: []types.ResultType{types.ResultTypeImage},
				MaxPageSize: 48,
				Pagination:  true,
			},
		},
		fetcher: f,
	}
}

func (s *SogouImages) Info() *engine.EngineInfo { return s.info }

func (s *SogouImages) Prepare(q *types.Query) (*types.Request, error) {
	params := url.Values{}
	params.Set("mode", "1")
	params.Set("start", strconv.Itoa((q.Page-1)*48))
	params.Set("xml_len", "48")
	params.Set("query", q.Text)
	return types.NewRequest("https://pic.sogou.com/napi/pc/searchList?" + params.Encode())
}

func (s *SogouImages) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	return s.fetcher.Fetch(ctx, req)
}

// sogouImage tolerates both page-URL spellings the API serves.
type sogouImage struct {
	Title    string `json:"title"`
	PageURL  string `json:"pageUrl"`
	PageURL2 string `json:"page_url"`
	PicURL   string `json:"picUrl"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type sogouImagesPayload struct {
	Data struct {
		Items []sogouImage `json:"items"`
	} `json:"data"`
}

func (s *SogouImages) Parse(resp *types.Response) ([]types.ResultItem, error) {
	var payload sogouImagesPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &types.ParseError{Engine: s.info.Name, URL: resp.FinalURL, Err: fmt.Errorf("decoding image JSON: %w", err)}
	}

	items := make([]types.ResultItem, 0, len(payload.Data.Items))
	for _, img := range payload.Data.Items {
		target := img.PageURL
		if target == "" {
			target = img.PageURL2
		}

		item := types.NewResultItem(cleanHTMLText(img.Title), httpsPrefix(target), "")
		item.Type = types.ResultTypeImage
		item.Template = "images.html"
		item.DisplayURL = item.URL
		item.Thumbnail = httpsPrefix(img.PicURL)
		item.SetMeta("image_url", httpsPrefix(img.PicURL))
		if img.Width > 0 && img.Height > 0 {
			item.SetMeta("resolution", fmt.Sprintf("%dx%d", img.Width, img.Height))
		}

		if item.Valid() {
			items = append(items, *item)
		}
	}
	return items, nil
}
