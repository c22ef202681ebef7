package dialogue

import (
	"regexp"
	"strings"
)

// Verdict classifies a reply to a yes/no prompt.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictYes
	VerdictNo
)

// Canonical affirmative and negative lexeme sets. Whole-response lookup runs
// before the pattern fallback so a short reply like "no" is never swallowed
// by a looser pattern, and longer sentences like "yes, delete it" still land.
var (
	affirmatives = map[string]bool{
		"yes": true, "y": true, "yeah": true, "yep": true, "yup": true,
		"sure": true, "ok": true, "okay": true, "confirm": true,
		"correct": true, "right": true, "affirmative": true,
		"do it": true, "go ahead": true, "go for it": true,
		"please do": true, "absolutely": true, "definitely": true,
		"of course": true, "yes please": true,
	}
	negatives = map[string]bool{
		"no": true, "n": true, "nope": true, "nah": true,
		"cancel": true, "stop": true, "abort": true, "negative": true,
		"nevermind": true, "never mind": true, "forget it": true,
		"leave it": true, "don't": true, "dont": true, "no thanks": true,
	}

	affirmativeRe = regexp.MustCompile(`^(?:yes|yeah|yep|sure|ok(?:ay)?|go\s+ahead)\b`)
	negativeRe    = regexp.MustCompile(`^(?:no|nope|nah|cancel|stop|never\s*mind|don'?t)\b`)
)

// ClassifyResponse maps an utterance to yes, no, or unknown.
func ClassifyResponse(utterance string) Verdict {
	norm := normalizeResponse(utterance)
	if norm == "" {
		return VerdictUnknown
	}
	if affirmatives[norm] {
		return VerdictYes
	}
	if negatives[norm] {
		return VerdictNo
	}
	if negativeRe.MatchString(norm) {
		return VerdictNo
	}
	if affirmativeRe.MatchString(norm) {
		return VerdictYes
	}
	return VerdictUnknown
}

func normalizeResponse(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".!?, ")
	return strings.Join(strings.Fields(s), " ")
}
