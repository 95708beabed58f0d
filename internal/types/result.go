package types

import (
	"net/url"
	"strings"
	"time"
)

// ResultItem is a single normalized search result.
type ResultItem struct {
	// Title is the result title. Never empty in a valid item.
	Title string `json:"title" bson:"title"`

	// URL is the absolute http(s) target URL. Never empty in a valid item.
	URL string `json:"url" bson:"url"`

	// Content is the snippet or description text.
	Content string `json:"content,omitempty" bson:"content,omitempty"`

	// DisplayURL is the engine's display form of the URL, when it differs.
	DisplayURL string `json:"display_url,omitempty" bson:"display_url,omitempty"`

	// SiteName is the source site name when the engine reports one.
	SiteName string `json:"site_name,omitempty" bson:"site_name,omitempty"`

	// Score is the relevance score in [0, 1].
	Score float64 `json:"score" bson:"score"`

	// Type classifies the result content.
	Type ResultType `json:"result_type" bson:"result_type"`

	// Thumbnail is an optional preview image URL.
	Thumbnail string `json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`

	// PublishedDate is the publication time when the engine reports one.
	PublishedDate *time.Time `json:"published_date,omitempty" bson:"published_date,omitempty"`

	// Template hints which front-end template renders this item.
	Template string `json:"template,omitempty" bson:"template,omitempty"`

	// Metadata carries engine-specific extras (author, duration, source).
	Metadata map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// NewResultItem creates a general result with the default template.
func NewResultItem(title, rawURL, content string) *ResultItem {
	return &ResultItem{
		Title:   strings.TrimSpace(title),
		URL:     strings.TrimSpace(rawURL),
		Content: strings.TrimSpace(content),
		Type:    ResultTypeGeneral,
	}
}

// Valid reports whether the item survives normalization: non-empty title
// and URL, and an absolute http(s) URL. Invalid items are dropped
// silently during parsing.
func (i *ResultItem) Valid() bool {
	if strings.TrimSpace(i.Title) == "" || strings.TrimSpace(i.URL) == "" {
		return false
	}
	u, err := url.Parse(i.URL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// SetMeta sets a metadata key, allocating the map on first use.
func (i *ResultItem) SetMeta(key, value string) {
	if i.Metadata == nil {
		i.Metadata = make(map[string]string)
	}
	i.Metadata[key] = value
}

// Meta retrieves a metadata value, or "" when absent.
func (i *ResultItem) Meta(key string) string {
	return i.Metadata[key]
}

// Clone creates a deep copy of the item.
func (i *ResultItem) Clone() *ResultItem {
	clone := *i
	if i.PublishedDate != nil {
		t := *i.PublishedDate
		clone.PublishedDate = &t
	}
	if i.Metadata != nil {
		clone.Metadata = make(map[string]string, len(i.Metadata))
		for k, v := range i.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// Pagination describes the paging position of one engine's result page.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	PageSize    int  `json:"page_size"`
	HasNext     bool `json:"has_next"`
}

// SearchResult is one engine's contribution to a search: an ordered,
// possibly empty item list plus bookkeeping.
type SearchResult struct {
	// EngineName identifies the producing engine, or "aggregated" for the
	// merged list.
	EngineName string `json:"engine_name"`

	// Items are the normalized results in engine order.
	Items []ResultItem `json:"items"`

	// TotalResults is the engine's own estimate, when it reports one.
	TotalResults *int64 `json:"total_results,omitempty"`

	// ElapsedMs is the wall time the engine call took.
	ElapsedMs int64 `json:"elapsed_ms"`

	// Pagination describes the current page, when known.
	Pagination *Pagination `json:"pagination,omitempty"`

	// Suggestions are related-query suggestions, when offered.
	Suggestions []string `json:"suggestions,omitempty"`
}

// NewSearchResult creates a result for an engine. A nil item slice is
// normalized to an empty one so callers can always range over Items.
func NewSearchResult(engineName string, items []ResultItem) *SearchResult {
	if items == nil {
		items = []ResultItem{}
	}
	return &SearchResult{EngineName: engineName, Items: items}
}

// IsEmpty reports whether the engine produced no items.
func (r *SearchResult) IsEmpty() bool {
	return len(r.Items) == 0
}

// SearchResponse is the top-level outcome of one aggregated search.
type SearchResponse struct {
	// Query echoes the query text.
	Query string `json:"query"`

	// Result is the single aggregated result.
	Result SearchResult `json:"result"`

	// EnginesUsed lists the engines that contributed.
	EnginesUsed []string `json:"engines_used"`

	// QueryTimeMs is the total wall time of the call.
	QueryTimeMs int64 `json:"query_time_ms"`

	// Cached is true when the response was served from the result cache.
	Cached bool `json:"cached"`
}
