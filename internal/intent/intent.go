// Package intent classifies natural-language utterances into task actions.
// Classification is weighted keyword scoring, not a grammar: every action has
// primary and secondary keywords plus fixed phrases, each with its own weight,
// and the highest accumulated score wins.
package intent

import (
	"context"
	"regexp"
	"strings"
	"time"
)

type Action string

const (
	ActionAdd      Action = "add"
	ActionComplete Action = "complete"
	ActionDelete   Action = "delete"
	ActionModify   Action = "modify"
	ActionList     Action = "list"
	ActionUnknown  Action = "unknown"
)

func ValidAction(a Action) bool {
	switch a {
	case ActionAdd, ActionComplete, ActionDelete, ActionModify, ActionList, ActionUnknown:
		return true
	default:
		return false
	}
}

// Metadata carries best-effort annotations extracted from add utterances.
// Absence is never an error.
type Metadata struct {
	Priority string
	Due      string // YYYY-MM-DD
	Tags     []string
}

// Parsed is the result of classifying one utterance. Content is the task
// title text; NewContent is the replacement text for modify commands.
type Parsed struct {
	Action     Action
	Content    string
	NewContent string
	Confidence float64
	Keywords   []string
	Meta       Metadata
}

// Extractor is the pluggable parsing strategy: anything that turns an
// utterance into a Parsed intent can stand in for the local parser.
type Extractor interface {
	Extract(ctx context.Context, utterance string) (Parsed, error)
}

const (
	weightPrimary   = 1.0
	weightSecondary = 0.4
	weightPhrase    = 1.5
)

type actionEntry struct {
	action    Action
	primary   []string
	secondary []string
	phrases   []string
}

// corpus maps vocabulary to actions. Phrases are matched as substrings,
// keywords on word boundaries.
var corpus = []actionEntry{
	{
		action:    ActionAdd,
		primary:   []string{"add", "create", "new"},
		secondary: []string{"make", "note", "track"},
		phrases:   []string{"remind me to", "i need to", "don't forget to", "put down"},
	},
	{
		action:    ActionComplete,
		primary:   []string{"complete", "done", "finish", "finished"},
		secondary: []string{"mark", "completed", "close"},
		phrases:   []string{"mark as done", "check off", "i finished", "mark off"},
	},
	{
		action:    ActionDelete,
		primary:   []string{"delete", "remove"},
		secondary: []string{"drop", "trash", "discard"},
		phrases:   []string{"get rid of", "take off", "clear out"},
	},
	{
		action:    ActionModify,
		primary:   []string{"rename", "modify", "change", "update"},
		secondary: []string{"edit", "revise"},
		phrases:   []string{"change it to", "instead of"},
	},
	{
		action:    ActionList,
		primary:   []string{"list", "show", "display"},
		secondary: []string{"view", "see"},
		phrases:   []string{"what are my tasks", "what do i have", "show me my tasks", "what's on my list"},
	},
}

// stripPatterns remove the matched action phrase from the utterance, first
// match wins. Order matters: the longer, more specific patterns come first.
var stripPatterns = map[Action][]*regexp.Regexp{
	ActionAdd: {
		regexp.MustCompile(`(?i)^(?:please\s+)?(?:add|create|make|note|track)(?:\s+(?:a\s+)?new)?(?:\s+(?:task|todo|item|reminder))?(?:\s+(?:for|to|called|named))?\s*[:,-]?\s*`),
		regexp.MustCompile(`(?i)^(?:please\s+)?remind\s+me\s+to\s+`),
		regexp.MustCompile(`(?i)^(?:please\s+)?(?:i\s+need\s+to|don'?t\s+forget\s+to|put\s+down)\s+`),
		regexp.MustCompile(`(?i)^new\s+(?:task|todo|item)\s*[:,-]?\s*`),
	},
	ActionComplete: {
		regexp.MustCompile(`(?i)^(?:please\s+)?(?:mark|check)(?:\s+off)?\b\s*`),
		regexp.MustCompile(`(?i)^(?:please\s+)?(?:completed?|finish(?:ed)?|close)\b\s*`),
		regexp.MustCompile(`(?i)^(?:i\s+)?(?:finished|done\s+with|am\s+done\s+with)\b\s*`),
	},
	ActionDelete: {
		regexp.MustCompile(`(?i)^(?:please\s+)?(?:delete|remove|drop|trash|discard)\b\s*`),
		regexp.MustCompile(`(?i)^(?:please\s+)?(?:get\s+rid\s+of|take\s+off|clear\s+out)\b\s*`),
	},
	ActionModify: {
		regexp.MustCompile(`(?i)^(?:please\s+)?(?:rename|modify|change|update|edit|revise)\b\s*`),
	},
}

// trailing noise removed after the action phrase is stripped.
var (
	politenessRe = regexp.MustCompile(`(?i)[\s,]*\b(?:please|thanks|thank\s+you)\W*$`)
	articleRe    = regexp.MustCompile(`(?i)^(?:the|my|a|an)\s+`)
	taskNoiseRe  = regexp.MustCompile(`(?i)\s+task$`)
	completeTail = regexp.MustCompile(`(?i)\s+(?:as\s+)?(?:done|complete|completed|finished)\W*$`)
	quotedRe     = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	modifyToRe   = regexp.MustCompile(`(?i)^(.+?)\s+to\s+(?:say\s+|be\s+)?(.+)$`)
	wordRe       = regexp.MustCompile(`[a-z']+`)
)

// Parser is the local keyword-weighted Extractor.
type Parser struct {
	now func() time.Time
}

func NewParser() *Parser {
	return &Parser{now: func() time.Time { return time.Now().UTC() }}
}

// Extract implements Extractor. The local parser never fails; the error is
// part of the interface for remote implementations.
func (p *Parser) Extract(_ context.Context, utterance string) (Parsed, error) {
	return p.Parse(utterance), nil
}

func (p *Parser) Parse(utterance string) Parsed {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return Parsed{Action: ActionUnknown}
	}

	action, score, keywords := classify(utterance)
	parsed := Parsed{
		Action:     action,
		Confidence: confidence(score),
		Keywords:   keywords,
	}
	if action == ActionUnknown || action == ActionList {
		return parsed
	}

	content, newContent := extractContent(action, utterance)
	parsed.Content = content
	parsed.NewContent = newContent
	if action == ActionAdd {
		parsed.Meta = p.extractMetadata(utterance)
	}
	return parsed
}

func classify(utterance string) (Action, float64, []string) {
	lower := strings.ToLower(utterance)
	words := map[string]bool{}
	for _, w := range wordRe.FindAllString(lower, -1) {
		words[w] = true
	}

	best := ActionUnknown
	bestScore := 0.0
	tied := false
	var bestKeywords []string

	for _, entry := range corpus {
		score := 0.0
		var matched []string
		for _, kw := range entry.primary {
			if words[kw] {
				score += weightPrimary
				matched = append(matched, kw)
			}
		}
		for _, kw := range entry.secondary {
			if words[kw] {
				score += weightSecondary
				matched = append(matched, kw)
			}
		}
		for _, ph := range entry.phrases {
			if strings.Contains(lower, ph) {
				score += weightPhrase
				matched = append(matched, ph)
			}
		}
		if score > bestScore {
			best, bestScore, bestKeywords = entry.action, score, matched
			tied = false
		} else if score == bestScore && score > 0 {
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return ActionUnknown, 0, nil
	}
	return best, bestScore, bestKeywords
}

// confidence maps an unbounded keyword score into [0,1).
func confidence(score float64) float64 {
	if score <= 0 {
		return 0
	}
	return score / (score + 1)
}

func extractContent(action Action, utterance string) (content, newContent string) {
	// Quoted text is taken verbatim and overrides pattern stripping.
	if quotes := quotedRe.FindAllStringSubmatch(utterance, -1); len(quotes) > 0 {
		content = firstGroup(quotes[0])
		if action == ActionModify && len(quotes) > 1 {
			newContent = firstGroup(quotes[1])
		}
		return content, newContent
	}

	rest := strings.TrimSpace(utterance)
	for _, re := range stripPatterns[action] {
		if loc := re.FindStringIndex(rest); loc != nil && loc[0] == 0 {
			rest = strings.TrimSpace(rest[loc[1]:])
			break
		}
	}
	rest = politenessRe.ReplaceAllString(rest, "")
	rest = strings.Trim(strings.TrimSpace(rest), ".!?")

	if action == ActionModify {
		if m := modifyToRe.FindStringSubmatch(rest); m != nil {
			content = cleanTarget(m[1])
			newContent = strings.TrimSpace(m[2])
			return content, newContent
		}
		return cleanTarget(rest), ""
	}
	if action == ActionAdd {
		// Add content becomes the task title verbatim; only the action
		// phrase and politeness are stripped.
		return rest, ""
	}
	if action == ActionComplete {
		rest = completeTail.ReplaceAllString(rest, "")
	}
	return cleanTarget(rest), ""
}

// cleanTarget drops leading articles and a trailing "task" from a target
// reference ("the meeting task" -> "meeting").
func cleanTarget(s string) string {
	s = strings.TrimSpace(s)
	s = articleRe.ReplaceAllString(s, "")
	s = taskNoiseRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
