package types

import (
	"fmt"
	"strings"
)

// TimeRange restricts results to a recency window.
type TimeRange string

// Supported recency windows. TimeRangeAny means no restriction.
const (
	TimeRangeAny   TimeRange = ""
	TimeRangeHour  TimeRange = "hour"
	TimeRangeDay   TimeRange = "day"
	TimeRangeWeek  TimeRange = "week"
	TimeRangeMonth TimeRange = "month"
	TimeRangeYear  TimeRange = "year"
)

// ParseTimeRange converts user input into a TimeRange. The empty string
// and "any" both mean no restriction.
func ParseTimeRange(s string) (TimeRange, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return TimeRangeAny, nil
	case "hour":
		return TimeRangeHour, nil
	case "day":
		return TimeRangeDay, nil
	case "week":
		return TimeRangeWeek, nil
	case "month":
		return TimeRangeMonth, nil
	case "year":
		return TimeRangeYear, nil
	}
	return TimeRangeAny, fmt.Errorf("%w: unknown time range %q", ErrInvalidQuery, s)
}

// ResultType classifies what kind of content a result or engine carries.
type ResultType string

// Result type values. They double as engine categories.
const (
	ResultTypeGeneral ResultType = "general"
	ResultTypeImage   ResultType = "image"
	ResultTypeVideo   ResultType = "video"
	ResultTypeNews    ResultType = "news"
)

// Query is a normalized user search query as handed to engine adapters.
type Query struct {
	// Text is the search text. Must be non-empty after trimming.
	Text string `json:"text"`

	// Page is the 1-based result page.
	Page int `json:"page"`

	// PageSize is the requested number of results per page. Adapters clamp
	// it to their own maximum.
	PageSize int `json:"page_size"`

	// Language is an optional language preference (e.g. "en", "zh-CN").
	Language string `json:"language,omitempty"`

	// Region is an optional region/market preference (e.g. "us", "cn").
	Region string `json:"region,omitempty"`

	// SafeSearch enables content filtering on engines that support it.
	SafeSearch bool `json:"safe_search,omitempty"`

	// TimeRange restricts results to a recency window on engines that
	// support one.
	TimeRange TimeRange `json:"time_range,omitempty"`
}

// NewQuery creates a Query with default paging.
func NewQuery(text string) *Query {
	return &Query{
		Text:     strings.TrimSpace(text),
		Page:     1,
		PageSize: 10,
	}
}

// Normalize trims the text and repairs out-of-range paging values.
func (q *Query) Normalize() {
	q.Text = strings.TrimSpace(q.Text)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 10
	}
}

// Validate reports whether the query can be dispatched.
func (q *Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: empty query text", ErrInvalidQuery)
	}
	if q.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidQuery, q.Page)
	}
	return nil
}

// Tokens splits the query text into lowercase whitespace-separated tokens.
// Scoring and full-text matching operate on these.
func (q *Query) Tokens() []string {
	return strings.Fields(strings.ToLower(q.Text))
}

// Clone creates a copy of the query.
func (q *Query) Clone() *Query {
	clone := *q
	return &clone
}
