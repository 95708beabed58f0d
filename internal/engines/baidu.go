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

// Baidu searches Baidu's JSON endpoint (tn=json). Baidu answers bot
// suspicion with a redirect to its captcha wall instead of an error
// status, so requests must not follow redirects and the parse phase
// inspects the Location header.
type Baidu struct {
	info    *engine.EngineInfo
	fetcher fetcher.Fetcher
}

// NewBaidu creates the Baidu adapter on the shared fetcher.
func NewBaidu(f fetcher.Fetcher) *Baidu {
	return &Baidu{
		info: &engine.EngineInfo{
			Name:        "baidu",
			DisplayName: "Baidu",
			Description: "Baidu web search",
			Category:    engine.CategoryGeneral,
			Website:     "https://www.baidu.com",
			Shortcut:    "bd",
			Timeout:     10 * time.Second,
			MaxPage:     50,
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

func (b *Baidu) Info() *engine.EngineInfo { return b.info }

// Prepare assembles the JSON search URL. Recency windows become a gpc
// epoch-range filter computed against the current clock.
func (b *Baidu) Prepare(q *types.Query) (*types.Request, error) {
	params := url.Values{}
	params.Set("wd", q.Text)
	params.Set("rn", "10")
	params.Set("pn", strconv.Itoa((q.Page-1)*10))
	params.Set("tn", "json")

	if secs := timeRangeSeconds(q.TimeRange); secs > 0 {
		now := time.Now().Unix()
		params.Set("gpc", fmt.Sprintf("stf=%d,%d|stftype=1", now-secs, now))
	}

	req, err := types.NewRequest("https://www.baidu.com/s?" + params.Encode())
	if err != nil {
		return nil, err
	}
	req.FollowRedirects = false
	return req, nil
}

func (b *Baidu) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	return b.fetcher.Fetch(ctx, req)
}

// baiduEntry tolerates both payload shapes Baidu serves: feed.entry
// rows use url/content, results rows use link/abstract or summary.
type baiduEntry struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Link     string `json:"link"`
	Content  string `json:"content"`
	Abstract string `json:"abstract"`
	Summary  string `json:"summary"`
}

type baiduPayload struct {
	Feed struct {
		Entry []baiduEntry `json:"entry"`
	} `json:"feed"`
	Results []baiduEntry `json:"results"`
}

// Parse decodes the JSON body. A redirect toward the captcha wall, or
// a body that is HTML or a verification page instead of JSON, comes
// back as a CaptchaError so the health store can back the engine off.
func (b *Baidu) Parse(resp *types.Response) ([]types.ResultItem, error) {
	if resp.IsRedirect() {
		if fetcher.IsChallengeRedirect(resp.Location) {
			return nil, &types.CaptchaError{Engine: b.info.Name, URL: resp.FinalURL, Location: resp.Location}
		}
		return nil, nil
	}

	body := strings.TrimSpace(resp.Text())
	if body == "" {
		return nil, nil
	}
	lower := strings.ToLower(body)
	if strings.HasPrefix(body, "<") || strings.HasPrefix(body, "Found") ||
		strings.Contains(lower, "wappass.baidu.com") ||
		strings.Contains(lower, "captcha") ||
		strings.Contains(lower, "please verify") {
		return nil, &types.CaptchaError{Engine: b.info.Name, URL: resp.FinalURL, Location: resp.Location}
	}

	var payload baiduPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &types.ParseError{Engine: b.info.Name, URL: resp.FinalURL, Err: fmt.Errorf("decoding result JSON: %w", err)}
	}

	entries := payload.Feed.Entry
	if len(entries) == 0 {
		entries = payload.Results
	}

	items := make([]types.ResultItem, 0, len(entries))
	for _, e := range entries {
		target := e.URL
		if target == "" {
			target = e.Link
		}
		content := e.Content
		if content == "" {
			content = e.Abstract
		}
		if content == "" {
			content = e.Summary
		}

		item := types.NewResultItem(e.Title, target, content)
		item.DisplayURL = target
		if item.Valid() {
			items = append(items, *item)
		}
	}
	return items, nil
}
