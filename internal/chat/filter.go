package chat

import (
	"regexp"
	"strings"
)

var linkPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)

// Baseline blocklist; deployments extend it via ExtraBlockedWords.
var defaultBlockedWords = []string{
	"fuck", "shit", "bitch", "asshole", "bastard", "dick", "cunt", "slut",
}

// Filter applies the session's content policy to message bodies.
type Filter struct {
	blocked []string
}

// NewFilter creates a content filter with the baseline blocklist plus extras.
func NewFilter(extraBlockedWords ...string) *Filter {
	blocked := make([]string, 0, len(defaultBlockedWords)+len(extraBlockedWords))
	blocked = append(blocked, defaultBlockedWords...)
	for _, w := range extraBlockedWords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			blocked = append(blocked, w)
		}
	}
	return &Filter{blocked: blocked}
}

// ContainsProfanity reports whether the body contains a blocked word.
func (f *Filter) ContainsProfanity(body string) bool {
	lower := strings.ToLower(body)
	for _, w := range f.blocked {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// ContainsLink reports whether the body contains a URL.
func (f *Filter) ContainsLink(body string) bool {
	return linkPattern.MatchString(body)
}
