// Package match scores free-text queries against task titles. Matching is
// tiered: exact title equality beats substring containment beats token
// overlap, and a bare number or ordinal word beats all of them.
package match

import (
	"sort"
	"strconv"
	"strings"
)

type Type string

const (
	TypeExact   Type = "exact"
	TypePartial Type = "partial"
	TypeFuzzy   Type = "fuzzy"
)

const (
	scoreExact   = 1.0
	scorePartial = 0.8
	fuzzyScale   = 0.6
	// MinScore is the relevance floor: fuzzy candidates below it are dropped.
	MinScore = 0.3
	// fuzzy tokens shorter than this carry no signal ("a", "to", "my").
	minTokenLen = 3
)

// Candidate is a scored task title. Title holds the matched task's title and
// Index its position in the input slice, so callers can recover the task
// without this package depending on the store.
type Candidate struct {
	Index int
	Title string
	Score float64
	Type  Type
}

var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
}

// Reference extracts a 1-based positional reference (a bare integer or an
// ordinal word) from the query. A reference always takes priority over text
// similarity; validity against the presented list is the caller's call.
func Reference(query string) (int, bool) {
	for _, tok := range tokenize(query) {
		if n, err := strconv.Atoi(tok); err == nil {
			return n, true
		}
		if n, ok := ordinals[tok]; ok {
			return n, true
		}
	}
	return 0, false
}

// Match returns the first non-empty tier of candidates for the query, best
// score first. Ties preserve input order, which callers keep most-recent-first.
func Match(query string, titles []string) []Candidate {
	q := normalize(query)
	if q == "" || len(titles) == 0 {
		return nil
	}
	qTokens := fuzzyTokens(q)

	var exact, partial, fuzzy []Candidate
	for i, title := range titles {
		tl := normalize(title)
		if tl == "" {
			continue
		}
		if tl == q {
			exact = append(exact, Candidate{Index: i, Title: title, Score: scoreExact, Type: TypeExact})
			continue
		}
		if strings.Contains(tl, q) || strings.Contains(q, tl) {
			partial = append(partial, Candidate{Index: i, Title: title, Score: scorePartial, Type: TypePartial})
			continue
		}
		if s := jaccard(qTokens, fuzzyTokens(tl)) * fuzzyScale; s >= MinScore {
			fuzzy = append(fuzzy, Candidate{Index: i, Title: title, Score: s, Type: TypeFuzzy})
		}
	}
	if len(exact) > 0 {
		return exact
	}
	if len(partial) > 0 {
		return partial
	}
	sortByScore(fuzzy)
	return fuzzy
}

// RankAll merges every tier into one ranking, best score per title, for
// callers that want the full ordering rather than the winning tier.
func RankAll(query string, titles []string) []Candidate {
	q := normalize(query)
	if q == "" || len(titles) == 0 {
		return nil
	}
	qTokens := fuzzyTokens(q)

	var out []Candidate
	for i, title := range titles {
		tl := normalize(title)
		if tl == "" {
			continue
		}
		switch {
		case tl == q:
			out = append(out, Candidate{Index: i, Title: title, Score: scoreExact, Type: TypeExact})
		case strings.Contains(tl, q) || strings.Contains(q, tl):
			out = append(out, Candidate{Index: i, Title: title, Score: scorePartial, Type: TypePartial})
		default:
			if s := jaccard(qTokens, fuzzyTokens(tl)) * fuzzyScale; s >= MinScore {
				out = append(out, Candidate{Index: i, Title: title, Score: s, Type: TypeFuzzy})
			}
		}
	}
	sortByScore(out)
	return out
}

func sortByScore(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Score > cands[j].Score })
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func fuzzyTokens(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range tokenize(s) {
		if len(tok) >= minTokenLen {
			out[tok] = true
		}
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
