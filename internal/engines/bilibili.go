package engines

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/fetcher"
	"github.com/nostalgiatan/see/internal/types"
)

// Bilibili searches Bilibili videos through the public web-interface
// API. The endpoint rejects cookie-less callers, so every request
// carries a freshly generated anonymous session.
type Bilibili struct {
	info    *engine.EngineInfo
	fetcher fetcher.Fetcher
}

// NewBilibili creates the Bilibili adapter on the shared fetcher.
func NewBilibili(f fetcher.Fetcher) *Bilibili {
	return &Bilibili{
		info: &engine.EngineInfo{
			Name:        "bilibili",
			DisplayName: "Bilibili",
			Description: "Bilibili video search",
			Category:    engine.CategoryVideos,
			Website:     "https://www.bilibili.com",
			Shortcut:    "bl",
			Timeout:     10 * time.Second,
			MaxPage:     10,
			Capabilities: engine.Capabilities{
				ResultTypes: []types.ResultType{types.ResultTypeVideo},
				MaxPageSize: 20,
				Pagination:  true,
			},
		},
		fetcher: f,
	}
}

func (b *Bilibili) Info() *engine.EngineInfo { return b.info }

// Prepare assembles the API URL and seeds the anonymous cookie set.
// buvid3 gets a fresh random prefix per call so repeated searches do
// not share a trackable device id.
func (b *Bilibili) Prepare(q *types.Query) (*types.Request, error) {
	params := url.Values{}
	params.Set("__refresh__", "true")
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("page_size", "20")
	params.Set("single_column", "0")
	params.Set("keyword", q.Text)
	params.Set("search_type", "video")

	req, err := types.NewRequest("https://api.bilibili.com/x/web-interface/search/type?" + params.Encode())
	if err != nil {
		return nil, err
	}
	req.AddCookie("innersign", "0")
	req.AddCookie("buvid3", randomHex(16)+"infoc")
	req.AddCookie("i-wanna-go-back", "-1")
	req.AddCookie("b_ut", "7")
	req.AddCookie("FEED_LIVE_VERSION", "V8")
	req.AddCookie("header_theme_version", "undefined")
	req.AddCookie("home_feed_column", "4")
	return req, nil
}

func (b *Bilibili) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	return b.fetcher.Fetch(ctx, req)
}

type bilibiliVideo struct {
	Title       string `json:"title"`
	ArcURL      string `json:"arcurl"`
	Pic         string `json:"pic"`
	Description string `json:"description"`
	Author      string `json:"author"`
	AID         int64  `json:"aid"`
	PubDate     int64  `json:"pubdate"`
	Duration    string `json:"duration"`
}

type bilibiliPayload struct {
	Data struct {
		Result []bilibiliVideo `json:"result"`
	} `json:"data"`
}

// Parse decodes the video list. Titles arrive with <em class="keyword">
// highlight spans; the span texts become keyword metadata and the rest
// of the markup is stripped.
func (b *Bilibili) Parse(resp *types.Response) ([]types.ResultItem, error) {
	var payload bilibiliPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &types.ParseError{Engine: b.info.Name, URL: resp.FinalURL, Err: fmt.Errorf("decoding video JSON: %w", err)}
	}

	items := make([]types.ResultItem, 0, len(payload.Data.Result))
	for _, v := range payload.Data.Result {
		keywords := extractKeywords(v.Title)
		title := cleanHTMLText(v.Title)

		item := types.NewResultItem(title, v.ArcURL, cleanHTMLText(v.Description))
		item.Type = types.ResultTypeVideo
		item.DisplayURL = v.ArcURL
		item.SiteName = "Bilibili"
		item.Template = "videos.html"
		item.Thumbnail = httpsPrefix(v.Pic)

		if v.PubDate > 0 {
			t := time.Unix(v.PubDate, 0)
			item.PublishedDate = &t
		}

		item.SetMeta("author", v.Author)
		item.SetMeta("length", v.Duration)
		item.SetMeta("iframe_src", fmt.Sprintf(
			"https://player.bilibili.com/player.html?aid=%d&high_quality=1&autoplay=false&danmaku=0", v.AID))
		if len(keywords) > 0 {
			item.SetMeta("keywords", strings.Join(keywords, ","))
		}

		if item.Valid() {
			items = append(items, *item)
		}
	}
	return items, nil
}
