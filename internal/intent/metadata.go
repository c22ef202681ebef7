package intent

import "strings"

// Keyword classes for priority inference. Checked urgent -> high -> low;
// anything else is medium.
var (
	urgentWords = []string{"urgent", "urgently", "asap", "immediately", "critical", "right away"}
	highWords   = []string{"important", "high priority", "must", "priority"}
	lowWords    = []string{"whenever", "someday", "eventually", "low priority", "no rush", "later"}
)

// topicTags maps trigger words to a topic tag.
var topicTags = []struct {
	tag   string
	words []string
}{
	{"call", []string{"call", "phone", "ring", "dial"}},
	{"shopping", []string{"buy", "shop", "shopping", "groceries", "purchase", "order"}},
	{"meeting", []string{"meeting", "meet", "appointment", "standup", "sync"}},
	{"email", []string{"email", "mail", "reply", "send"}},
	{"document", []string{"document", "report", "write", "draft", "doc"}},
}

// extractMetadata pulls best-effort priority, due date, and topic tags out of
// an add utterance. It never fails; missing signals mean defaults.
func (p *Parser) extractMetadata(utterance string) Metadata {
	lower := strings.ToLower(utterance)
	meta := Metadata{Priority: priorityFor(lower)}

	now := p.now()
	switch {
	case strings.Contains(lower, "tomorrow"):
		meta.Due = now.AddDate(0, 0, 1).Format("2006-01-02")
	case strings.Contains(lower, "today"), strings.Contains(lower, "tonight"):
		meta.Due = now.Format("2006-01-02")
	}

	words := map[string]bool{}
	for _, w := range wordRe.FindAllString(lower, -1) {
		words[w] = true
	}
	for _, topic := range topicTags {
		for _, w := range topic.words {
			if words[w] {
				meta.Tags = append(meta.Tags, topic.tag)
				break
			}
		}
	}
	return meta
}

func priorityFor(lower string) string {
	for _, w := range urgentWords {
		if strings.Contains(lower, w) {
			return "urgent"
		}
	}
	for _, w := range highWords {
		if strings.Contains(lower, w) {
			return "high"
		}
	}
	for _, w := range lowWords {
		if strings.Contains(lower, w) {
			return "low"
		}
	}
	return "medium"
}
