package search

import (
	"sort"
	"strings"

	"github.com/nostalgiatan/see/internal/types"
)

// Score boosts applied per matching query token. Title matches weigh
// three times a snippet match; both accumulate across tokens and the
// final score is clamped to [0, 1].
const (
	titleBoost   = 0.3
	contentBoost = 0.1
)

// AggregatedEngine is the engine name stamped on the merged result of a
// plain search. Full-text merges use FullTextEngine instead.
const (
	AggregatedEngine = "aggregated"
	FullTextEngine   = "fulltext"
)

// source is one ordered contribution to a merge: an engine (or passive
// source) name plus its items. Earlier sources win URL collisions.
type source struct {
	name  string
	items []types.ResultItem
}

// Aggregate merges per-engine results into one ranked list: flatten in
// engine order, collapse URL duplicates, boost by token relevance, and
// sort by score. The merged result is stamped AggregatedEngine and its
// TotalResults is the deduplicated count.
func Aggregate(results []*types.SearchResult, tokens []string) *types.SearchResult {
	sources := make([]source, 0, len(results))
	for _, r := range results {
		sources = append(sources, source{name: r.EngineName, items: r.Items})
	}

	items := dedupe(sources)
	boost(items, tokens)
	sortByScore(items)

	merged := types.NewSearchResult(AggregatedEngine, items)
	total := int64(len(items))
	merged.TotalResults = &total
	return merged
}

// normalizeURL reduces a URL to its duplicate-detection form: lowercase,
// fragment dropped, trailing slashes dropped. Query strings stay because
// they routinely select different documents.
func normalizeURL(rawURL string) string {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	return strings.TrimRight(u, "/")
}

// dedupe flattens the sources in order and keeps the first item for
// every normalized URL. Each kept item is stamped with its source name
// under metadata "engine" unless it already carries one; every engine
// that also produced the URL is folded into metadata "engines".
func dedupe(sources []source) []types.ResultItem {
	index := make(map[string]int)
	var out []types.ResultItem

	for _, src := range sources {
		for i := range src.items {
			item := src.items[i]
			key := normalizeURL(item.URL)
			if key == "" {
				continue
			}
			if at, ok := index[key]; ok {
				mergeEngineMeta(&out[at], src.name)
				continue
			}
			kept := *item.Clone()
			if kept.Meta("engine") == "" {
				kept.SetMeta("engine", src.name)
			}
			index[key] = len(out)
			out = append(out, kept)
		}
	}
	return out
}

// mergeEngineMeta records that another engine also produced the
// survivor's URL. The accumulated list lives in metadata "engines" as a
// comma-joined set seeded from the survivor's own engine.
func mergeEngineMeta(survivor *types.ResultItem, engine string) {
	list := survivor.Meta("engines")
	if list == "" {
		list = survivor.Meta("engine")
	}
	if list == "" {
		survivor.SetMeta("engines", engine)
		return
	}
	for _, have := range strings.Split(list, ",") {
		if have == engine {
			return
		}
	}
	survivor.SetMeta("engines", list+","+engine)
}

// boost raises each item's score for query tokens appearing in its
// title or snippet, then clamps to [0, 1].
func boost(items []types.ResultItem, tokens []string) {
	for i := range items {
		title := strings.ToLower(items[i].Title)
		content := strings.ToLower(items[i].Content)

		score := items[i].Score
		for _, tok := range tokens {
			if tok == "" {
				continue
			}
			if strings.Contains(title, tok) {
				score += titleBoost
			}
			if strings.Contains(content, tok) {
				score += contentBoost
			}
		}
		if score > 1 {
			score = 1
		}
		if score < 0 {
			score = 0
		}
		items[i].Score = score
	}
}

// sortByScore orders items by score descending, breaking ties by URL so
// equal-scored results keep a stable order across runs.
func sortByScore(items []types.ResultItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].URL < items[j].URL
	})
}
