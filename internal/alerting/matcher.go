package alerting

import (
	"strings"

	"github.com/good-yellow-bee/feedwatch/internal/models"
)

// Matcher evaluates whether a feed item matches an alert's keywords.
type Matcher struct{}

// NewMatcher creates a new Matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// MatchItem returns the subset of the alert's keywords found in the
// item's text, or nil when nothing matches or the source filter
// rejects the item.
func (m *Matcher) MatchItem(alert *models.AlertConfig, item *models.FeedItem) []string {
	if item == nil || !alert.MatchesSource(item.Source) {
		return nil
	}
	return m.MatchKeywords(item.Text(), alert.Keywords)
}

// MatchKeywords returns the keywords contained in text, compared
// case-insensitively as literal substrings. Each keyword is evaluated
// independently (implicit OR). Empty or whitespace-only keywords are
// skipped; empty text never matches.
func (m *Matcher) MatchKeywords(text string, keywords []string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lower := strings.ToLower(text)

	var matched []string
	for _, kw := range keywords {
		trimmed := strings.TrimSpace(kw)
		if trimmed == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(trimmed)) {
			matched = append(matched, kw)
		}
	}
	return matched
}
