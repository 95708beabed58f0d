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

// SogouVideos searches Sogou's short-video API.
type SogouVideos struct {
	info    *engine.EngineInfo
	fetcher fetcher.Fetcher
}

// NewSogouVideos creates the Sogou Videos adapter on the shared fetcher.
func NewSogouVideos(f fetcher.Fetcher) *SogouVideos {
	return &SogouVideos{
		info: &engine.EngineInfo{
			Name:        "sogou_videos",
			DisplayName: "Sogou Videos",
			Description: "Sogou video search",
			Category:    engine.CategoryVideos,
			Website:     "https://v.sogou.com",
			Shortcut:    "sgv",
			Timeout:     10 * time.Second,
			MaxPage:     10,
			Capabilities: engine.Capabilities{
				ResultTypes: []types.ResultType{types.ResultTypeVideo},
				MaxPageSize: 10,
				Pagination:  true,
			},
		},
		fetcher: f,
	}
}

func (s *SogouVideos) Info() *engine.EngineInfo { return s.info }

func (s *SogouVideos) Prepare(q *types.Query) (*types.Request, error) {
	params := url.Values{}
	params.Set("query", q.Text)
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("pagesize", "10")
	return types.NewRequest("https://v.sogou.com/api/video/shortVideoV2?" + params.Encode())
}

func (s *SogouVideos) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	return s.fetcher.Fetch(ctx, req)
}

type sogouVideo struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	PicURL   string `json:"picurl"`
	Duration string `json:"duration"`
	Site     string `json:"site"`
}

type sogouVideosPayload struct {
	Data struct {
		Result struct {
			ShortVideoList []sogouVideo `json:"shortVideoList"`
		} `json:"result"`
		List []sogouVideo `json:"list"`
	} `json:"data"`
}

// Parse decodes the video list, tolerating both payload shapes the API
// serves. Video links often come back site-relative.
func (s *SogouVideos) Parse(resp *types.Response) ([]types.ResultItem, error) {
	var payload sogouVideosPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &types.ParseError{Engine: s.info.Name, URL: resp.FinalURL, Err: fmt.Errorf("decoding video JSON: %w", err)}
	}

	videos := payload.Data.Result.ShortVideoList
	if len(videos) == 0 {
		videos = payload.Data.List
	}

	items := make([]types.ResultItem, 0, len(videos))
	for _, v := range videos {
		target := v.URL
		if target != "" && !strings.HasPrefix(target, "http") {
			target = "https://v.sogou.com" + target
		}

		item := types.NewResultItem(v.Title, target, "")
		item.Type = types.ResultTypeVideo
		item.DisplayURL = target
		item.SiteName = "Sogou Videos"
		item.Template = "videos.html"
		item.Thumbnail = httpsPrefix(v.PicURL)
		if v.Duration != "" {
			item.SetMeta("length", v.Duration)
		}
		if v.Site != "" {
			item.SetMeta("source", v.Site)
		}

		if item.Valid() {
			items = append(items, *item)
		}
	}
	return items, nil
}
