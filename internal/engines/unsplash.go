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

// Unsplash searches Unsplash photos through the same JSON API the
// website frontend calls.
type Unsplash struct {
	info    *engine.EngineInfo
	fetcher fetcher.Fetcher
}

// NewUnsplash creates the Unsplash adapter on the shared fetcher.
func NewUnsplash(f fetcher.Fetcher) *Unsplash {
	return &Unsplash{
		info: &engine.EngineInfo{
			Name:        "unsplash",
			DisplayName: "Unsplash",
			Description: "Unsplash photo search",
			Category:    engine.CategoryImages,
			Website:     "https://unsplash.com",
			Shortcut:    "us",
			Timeout:     10 * time.Second,
			MaxPage:     50,
			Capabilities: engine.Capabilities{
				ResultTypes: []types.ResultType{types.ResultTypeImage},
				MaxPageSize: 20,
				Pagination:  true,
			},
		},
		fetcher: f,
	}
}

func (u *Unsplash) Info() *engine.EngineInfo { return u.info }

func (u *Unsplash) Prepare(q *types.Query) (*types.Request, error) {
	params := url.Values{}
	params.Set("query", q.Text)
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("per_page", "20")
	return types.NewRequest("https://unsplash.com/napi/search/photos?" + params.Encode())
}

func (u *Unsplash) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	return u.fetcher.Fetch(ctx, req)
}

type unsplashPhoto struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	AltDescription string `json:"alt_description"`
	Links          struct {
		HTML string `json:"html"`
	} `json:"links"`
	URLs struct {
		Full  string `json:"full"`
		Small string `json:"small"`
	} `json:"urls"`
	User struct {
		Name string `json:"name"`
	} `json:"user"`
}

type unsplashPayload struct {
	Results []unsplashPhoto `json:"results"`
}

// Parse decodes the photo list. Many photos carry no description, so
// the title falls back through alt text to a synthetic id-based one.
func (u *Unsplash) Parse(resp *types.Response) ([]types.ResultItem, error) {
	var payload unsplashPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &types.ParseError{Engine: u.info.Name, URL: resp.FinalURL, Err: fmt.Errorf("decoding photo JSON: %w", err)}
	}

	items := make([]types.ResultItem, 0, len(payload.Results))
	for _, p := range payload.Results {
		title := p.Description
		if title == "" {
			title = p.AltDescription
		}
		if title == "" {
			title = "Photo " + p.ID
		}

		item := types.NewResultItem(title, p.Links.HTML, "")
		item.Type = types.ResultTypeImage
		item.DisplayURL = p.Links.HTML
		item.SiteName = "Unsplash"
		item.Template = "images.html"
		item.Thumbnail = p.URLs.Small
		item.SetMeta("image_url", p.URLs.Full)
		if p.User.Name != "" {
			item.SetMeta("author", p.User.Name)
		}

		if item.Valid() {
			items = append(items, *item)
		}
	}
	return items, nil
}
