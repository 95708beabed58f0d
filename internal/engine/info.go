package engine

import (
	"time"

	"github.com/nostalgiatan/see/internal/types"
)

// Engine categories. An engine belongs to exactly one category; the
// category is what the /api/engines listing reports as engine_type.
const (
	CategoryGeneral = "general"
	CategoryImages  = "images"
	CategoryVideos  = "videos"
	CategoryNews    = "news"
)

// Capabilities describes what query features an engine honours. The
// executor consults these to decide which query fields survive Prepare.
type Capabilities struct {
	ResultTypes    []types.ResultType `json:"result_types"`
	MaxPageSize    int                `json:"max_page_size"`
	Pagination     bool               `json:"pagination"`
	TimeRange      bool               `json:"time_range"`
	LanguageFilter bool               `json:"language_filter"`
	RegionFilter   bool               `json:"region_filter"`
	SafeSearch     bool               `json:"safe_search"`
}

// List renders the capability set as flag names for API listings.
func (c Capabilities) List() []string {
	caps := make([]string, 0, 6)
	for _, rt := range c.ResultTypes {
		caps = append(caps, string(rt))
	}
	if c.Pagination {
		caps = append(caps, "pagination")
	}
	if c.TimeRange {
		caps = append(caps, "time_range")
	}
	if c.LanguageFilter {
		caps = append(caps, "language_filter")
	}
	if c.RegionFilter {
		caps = append(caps, "region_filter")
	}
	if c.SafeSearch {
		caps = append(caps, "safe_search")
	}
	return caps
}

// EngineInfo is the static descriptor an adapter publishes about itself.
// Name is the registry key; everything else is presentation and limits.
type EngineInfo struct {
	// Name is the canonical registry key, e.g. "bing_images".
	Name string `json:"name"`

	// DisplayName is the human-readable engine name.
	DisplayName string `json:"display_name"`

	// Description is a one-line summary for listings.
	Description string `json:"description"`

	// Category is one of the Category* constants.
	Category string `json:"category"`

	// Website is the upstream engine's home page.
	Website string `json:"website"`

	// Shortcut is the short alias accepted in engine lists.
	Shortcut string `json:"shortcut,omitempty"`

	// Timeout bounds one round trip against this engine. Zero falls back
	// to the search default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// MaxPage is the deepest page the upstream serves. Queries past it
	// are clamped before Prepare. Zero means no known limit.
	MaxPage int `json:"max_page,omitempty"`

	// Capabilities describes supported query features.
	Capabilities Capabilities `json:"capabilities"`
}
