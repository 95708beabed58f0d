package engines

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/nostalgiatan/see/internal/types"
)

// timeRangeSeconds maps a recency window onto its span in seconds.
// Engines without native hour support treat hour as day.
func timeRangeSeconds(tr types.TimeRange) int64 {
	switch tr {
	case types.TimeRangeHour, types.TimeRangeDay:
		return 86400
	case types.TimeRangeWeek:
		return 604800
	case types.TimeRangeMonth:
		return 2592000
	case types.TimeRangeYear:
		return 31536000
	}
	return 0
}

// timeRangeMinutes maps a recency window onto whole minutes, the unit
// Bing's image and video verticals expect in their age-lt filter.
func timeRangeMinutes(tr types.TimeRange) int {
	switch tr {
	case types.TimeRangeHour, types.TimeRangeDay:
		return 1440
	case types.TimeRangeWeek:
		return 10080
	case types.TimeRangeMonth:
		return 44640
	case types.TimeRangeYear:
		return 525600
	}
	return 0
}

// decodeBingRedirect recovers the target URL from a Bing /ck/a tracking
// link. The destination rides base64url-encoded in the u parameter
// behind a two-character version prefix ("a1"). Any decode failure
// falls through to the raw link.
func decodeBingRedirect(raw string) string {
	if !strings.HasPrefix(raw, "https://www.bing.com/ck/a") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	param := u.Query().Get("u")
	if len(param) <= 2 {
		return raw
	}
	encoded := param[2:]
	if rem := len(encoded) % 4; rem != 0 {
		encoded += strings.Repeat("=", 4-rem)
	}
	decoded, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil || !utf8.Valid(decoded) {
		return raw
	}
	return string(decoded)
}

var (
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	keywordPattern = regexp.MustCompile(`<em class=["']?keyword["']?>([^<]+)</em>`)
)

// The entity set Chinese engines embed in their JSON payloads. Full
// html.UnescapeString is deliberately avoided: upstream double-escapes
// ampersands and we must match their own renderer.
var entityReplacer = strings.NewReplacer(
	"&quot;", `"`,
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&#39;", "'",
	"&nbsp;", " ",
)

// cleanHTMLText strips tags, decodes the common entities, and collapses
// whitespace runs to single spaces.
func cleanHTMLText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// extractKeywords pulls the literal text of <em class="keyword">
// highlight spans, in document order.
func extractKeywords(s string) []string {
	matches := keywordPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	keywords := make([]string, 0, len(matches))
	for _, m := range matches {
		if kw := strings.TrimSpace(m[1]); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// httpsPrefix normalizes protocol-relative and bare host URLs onto
// https. Already-absolute URLs pass through unchanged.
func httpsPrefix(raw string) string {
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case !strings.HasPrefix(raw, "http"):
		return "https://" + raw
	}
	return raw
}

// randomHex returns n random lowercase hex characters.
func randomHex(n int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	for len(s) < n {
		s += strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return s[:n]
}

var relativeDatePattern = regexp.MustCompile(`(?i)(\d+)\s*(minute|hour|day|week|month)s?\s+ago`)

// parseRelativeDate resolves "5 hours ago" style stamps against now.
// Returns nil when the text carries no recognizable stamp.
func parseRelativeDate(s string, now time.Time) *time.Time {
	m := relativeDatePattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	var unit time.Duration
	switch strings.ToLower(m[2]) {
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	case "month":
		unit = 30 * 24 * time.Hour
	}
	t := now.Add(-time.Duration(n) * unit)
	return &t
}

var timeConvertPattern = regexp.MustCompile(`timeConvert\('(\d+)'\)`)

// parseTimeConvert pulls the unix seconds out of Sogou's inline
// document.write(timeConvert('...')) date scripts.
func parseTimeConvert(s string) *time.Time {
	m := timeConvertPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	secs, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	t := time.Unix(secs, 0)
	return &t
}

// parseViewCount reads abbreviated view counters ("2.3M views",
// "987 views"). Unparseable input yields zero.
func parseViewCount(s string) int64 {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSpace(strings.TrimSuffix(s, "views"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	mult := float64(1)
	switch s[len(s)-1] {
	case 'k':
		mult, s = 1e3, s[:len(s)-1]
	case 'm':
		mult, s = 1e6, s[:len(s)-1]
	case 'b':
		mult, s = 1e9, s[:len(s)-1]
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || n < 0 {
		return 0
	}
	return int64(n * mult)
}

// selectFirst returns the nodes of the first selector that matches
// anything, so parsers can chain a primary CSS path with tolerant
// fallbacks. The returned selection may be empty.
func selectFirst(s *goquery.Selection, selectors ...string) *goquery.Selection {
	result := s.Find(selectors[0])
	for _, sel := range selectors[1:] {
		if result.Length() > 0 {
			break
		}
		result = s.Find(sel)
	}
	return result
}

// nodeText returns the collapsed text of the first matching selector
// with non-empty content.
func nodeText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := collapse(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// collapse trims and squeezes whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes caps s at n runes without splitting a character.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
