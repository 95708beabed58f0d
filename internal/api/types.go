package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/nostalgiatan/see/internal/middleware"
	"github.com/nostalgiatan/see/internal/types"
)

// Error codes served by the API handlers. Ingress rejections use the
// codes defined in the middleware package.
const (
	codeInvalidQuery = "INVALID_QUERY"
	codeSearchError  = "SEARCH_ERROR"
	codeNotFound     = "NOT_FOUND"
	codeDisabled     = "FEATURE_DISABLED"
	codeRSSError     = "RSS_ERROR"
	codeCacheError   = "CACHE_ERROR"
)

// searchParams is the wire form of a search call. GET requests carry it
// in the query string, POST requests as a JSON body; both accept the
// short aliases q and n.
type searchParams struct {
	Query       string `json:"query,omitempty"`
	Q           string `json:"q,omitempty"`
	Engines     string `json:"engines,omitempty"`
	EngineCount int    `json:"engine_count,omitempty"`
	N           int    `json:"n,omitempty"`
	Page        int    `json:"page,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
	Language    string `json:"language,omitempty"`
	Region      string `json:"region,omitempty"`
	SafeSearch  string `json:"safe_search,omitempty"`
	TimeRange   string `json:"time_range,omitempty"`
}

func paramsFromQuery(values url.Values) searchParams {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(values.Get(key))
		return n
	}
	return searchParams{
		Query:       values.Get("query"),
		Q:           values.Get("q"),
		Engines:     values.Get("engines"),
		EngineCount: atoi("engine_count"),
		N:           atoi("n"),
		Page:        atoi("page"),
		PageSize:    atoi("page_size"),
		Language:    values.Get("language"),
		Region:      values.Get("region"),
		SafeSearch:  values.Get("safe_search"),
		TimeRange:   values.Get("time_range"),
	}
}

// text returns the query string, preferring query over its alias.
func (p searchParams) text() string {
	if strings.TrimSpace(p.Query) != "" {
		return p.Query
	}
	return p.Q
}

// engineList splits the comma-separated engine names, dropping blanks.
func (p searchParams) engineList() []string {
	if p.Engines == "" {
		return nil
	}
	var out []string
	for _, name := range strings.Split(p.Engines, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// toRequest converts the wire params into an internal search request.
// A missing query text or an unknown time range is an ErrInvalidQuery.
func (p searchParams) toRequest() (*types.SearchRequest, error) {
	text := p.text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: query parameter 'query' or 'q' is required", types.ErrInvalidQuery)
	}

	req := types.NewSearchRequest(text)
	if p.Page > 0 {
		req.Query.Page = p.Page
	}
	if p.PageSize > 0 {
		req.Query.PageSize = p.PageSize
	}
	req.Query.Language = p.Language
	req.Query.Region = p.Region
	if p.SafeSearch != "" {
		// Unparsable values mean "off" rather than a rejected call.
		on, _ := strconv.ParseBool(p.SafeSearch)
		req.Query.SafeSearch = on
	}
	if p.TimeRange != "" {
		tr, err := types.ParseTimeRange(p.TimeRange)
		if err != nil {
			return nil, err
		}
		req.Query.TimeRange = tr
	}

	req.Engines = p.engineList()
	if count := p.EngineCount; count > 0 {
		req.EngineCount = count
	} else if p.N > 0 {
		req.EngineCount = p.N
	}
	return req, nil
}

// resultDTO is the slim item shape the search endpoints serve.
type resultDTO struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Description string  `json:"description,omitempty"`
	Engine      string  `json:"engine"`
	Score       float64 `json:"score"`
}

// searchResponse is the wire shape of a completed search.
type searchResponse struct {
	Query       string      `json:"query"`
	Results     []resultDTO `json:"results"`
	TotalCount  int         `json:"total_count"`
	Page        int         `json:"page"`
	PageSize    int         `json:"page_size"`
	EnginesUsed []string    `json:"engines_used"`
	QueryTimeMs int64       `json:"query_time_ms"`
	Cached      bool        `json:"cached"`
}

// newSearchResponse flattens the aggregated result into the slim wire
// items, highest score first. Each item reports its source engine;
// merged items keep the first contributor.
func newSearchResponse(req *types.SearchRequest, resp *types.SearchResponse) searchResponse {
	items := resp.Result.Items
	results := make([]resultDTO, 0, len(items))
	for i := range items {
		item := &items[i]
		engineName := item.Meta("engine")
		if engineName == "" {
			engineName = resp.Result.EngineName
		}
		results = append(results, resultDTO{
			Title:       item.Title,
			URL:         item.URL,
			Description: item.Content,
			Engine:      engineName,
			Score:       item.Score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	engines := resp.EnginesUsed
	if engines == nil {
		engines = []string{}
	}
	return searchResponse{
		Query:       resp.Query,
		Results:     results,
		TotalCount:  len(results),
		Page:        req.Query.Page,
		PageSize:    req.Query.PageSize,
		EnginesUsed: engines,
		QueryTimeMs: resp.QueryTimeMs,
		Cached:      resp.Cached,
	}
}

// healthResponse is the liveness shape.
type healthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	AvailableEngines int    `json:"available_engines"`
	TotalEngines     int    `json:"total_engines"`
}

// versionResponse identifies the build.
type versionResponse struct {
	Version     string `json:"version"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// magicLinkResponse is the mint shape. ExpiresIn is in seconds.
type magicLinkResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	URL       string `json:"url"`
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("response encode failed", "error", err)
	}
}

// errorResponse writes the shared error envelope, optionally with a
// details string the middleware rejections never carry.
func (s *Server) errorResponse(w http.ResponseWriter, status int, code, message, details string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(middleware.Envelope{Code: code, Message: message, Details: details}); err != nil {
		s.logger.Debug("response encode failed", "error", err)
	}
}
