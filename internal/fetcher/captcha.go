package fetcher

import (
	"strings"
)

// ChallengeType identifies the kind of bot challenge a page presents.
type ChallengeType string

const (
	ChallengeReCaptcha ChallengeType = "recaptcha"
	ChallengeHCaptcha  ChallengeType = "hcaptcha"
	ChallengeTurnstile ChallengeType = "turnstile"
	ChallengeSlider    ChallengeType = "slider"
	ChallengeGeneric   ChallengeType = "generic"
)

// challengeWalls are redirect targets known to front verification pages
// instead of results.
var challengeWalls = []string{
	"wappass.baidu.com/static/captcha",
	"/antispider",
	"/verify",
}

// genericMarkers appear in challenge page bodies across vendors.
var genericMarkers = []string{
	"unusual traffic",
	"verify you are human",
	"security check",
	"请输入验证码",
	"安全验证",
}

// DetectChallenge inspects page HTML for bot-challenge markers. It
// returns the challenge type and true when one is found. Engines use
// this to turn a 200 that is really a wall into a captcha failure.
func DetectChallenge(html string) (ChallengeType, bool) {
	lower := strings.ToLower(html)

	if strings.Contains(lower, "recaptcha") || strings.Contains(html, "g-recaptcha") {
		return ChallengeReCaptcha, true
	}
	if strings.Contains(lower, "hcaptcha") || strings.Contains(html, "h-captcha") {
		return ChallengeHCaptcha, true
	}
	if strings.Contains(lower, "turnstile") || strings.Contains(html, "cf-turnstile") {
		return ChallengeTurnstile, true
	}
	if strings.Contains(lower, "slidecaptcha") || strings.Contains(lower, "slider-verify") {
		return ChallengeSlider, true
	}
	for _, marker := range genericMarkers {
		if strings.Contains(lower, marker) {
			return ChallengeGeneric, true
		}
	}
	return "", false
}

// IsChallengeRedirect reports whether a redirect Location points at a
// known verification wall.
func IsChallengeRedirect(location string) bool {
	if location == "" {
		return false
	}
	for _, wall := range challengeWalls {
		if strings.Contains(location, wall) {
			return true
		}
	}
	return false
}
