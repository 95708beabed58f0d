package rss

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Keyword is one ranking keyword. Weight is clamped to [1, 10]. A
// required keyword gates the whole item: miss it and the item scores 0.
type Keyword struct {
	Keyword  string  `json:"keyword"`
	Weight   float64 `json:"weight"`
	Required bool    `json:"required"`
}

// NewKeyword creates an optional keyword with a clamped weight.
func NewKeyword(keyword string, weight float64) Keyword {
	return Keyword{Keyword: keyword, Weight: clampWeight(weight)}
}

// RequiredKeyword creates a keyword the item must contain to score.
func RequiredKeyword(keyword string, weight float64) Keyword {
	return Keyword{Keyword: keyword, Weight: clampWeight(weight), Required: true}
}

func clampWeight(w float64) float64 {
	return math.Min(10.0, math.Max(1.0, w))
}

// RankingConfig drives one ranking pass.
type RankingConfig struct {
	Name       string    `json:"name"`
	Keywords   []Keyword `json:"keywords"`
	MinScore   float64   `json:"min_score"`
	MaxResults int       `json:"max_results"`
}

// ScoredItem pairs an item with its relevance score.
type ScoredItem struct {
	Item            Item     `json:"item"`
	Score           float64  `json:"score"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
}

// Ranking is the outcome of one pass: scored items sorted descending.
type Ranking struct {
	Name       string       `json:"name"`
	Items      []ScoredItem `json:"items"`
	TotalItems int          `json:"total_items"`
	Timestamp  time.Time    `json:"timestamp"`
}

// Ranker scores feed items against a keyword set.
type Ranker struct {
	cfg RankingConfig
}

// NewRanker creates a ranker. MaxResults <= 0 defaults to 100.
func NewRanker(cfg RankingConfig) *Ranker {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	return &Ranker{cfg: cfg}
}

// ScoreItem scores one item. Each matched keyword contributes
// weight * (1 + ln(count)); the log damps repeated occurrences. A
// missed required keyword zeroes the item outright.
func (r *Ranker) ScoreItem(item *Item) ScoredItem {
	text := strings.ToLower(item.Title) + " " + strings.ToLower(item.Description)

	score := 0.0
	var matched []string
	for _, kw := range r.cfg.Keywords {
		needle := strings.ToLower(kw.Keyword)
		if needle == "" {
			continue
		}
		count := strings.Count(text, needle)
		if count > 0 {
			score += kw.Weight * (1.0 + math.Log(float64(count)))
			matched = append(matched, kw.Keyword)
		} else if kw.Required {
			return ScoredItem{Item: *item}
		}
	}
	return ScoredItem{Item: *item, Score: score, MatchedKeywords: matched}
}

// Rank scores every item, filters by MinScore, sorts by score
// descending, deduplicates by link and truncates to MaxResults.
func (r *Ranker) Rank(items []Item) Ranking {
	scored := make([]ScoredItem, 0, len(items))
	for i := range items {
		s := r.ScoreItem(&items[i])
		if s.Score >= r.cfg.MinScore {
			scored = append(scored, s)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	seen := make(map[string]struct{}, len(scored))
	deduped := scored[:0]
	for _, s := range scored {
		if _, dup := seen[s.Item.Link]; dup {
			continue
		}
		seen[s.Item.Link] = struct{}{}
		deduped = append(deduped, s)
	}

	if len(deduped) > r.cfg.MaxResults {
		deduped = deduped[:r.cfg.MaxResults]
	}

	return Ranking{
		Name:       r.cfg.Name,
		Items:      deduped,
		TotalItems: len(items),
		Timestamp:  time.Now(),
	}
}
