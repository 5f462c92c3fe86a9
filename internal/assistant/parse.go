package assistant

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/helixir/research-assistant-service/internal/domain"
)

var (
	strategyMarker = regexp.MustCompile(`(?i)Strategy \d+:`)
	listMarker     = regexp.MustCompile(`^(\d+\.|\*|-)\s`)
)

// minQueryLength is the length a query line must exceed to be kept.
const minQueryLength = 10

// SplitStrategies splits a completion on "Strategy <n>:" markers and
// returns the trimmed, non-empty segments.
func SplitStrategies(text string) []string {
	strategies := []string{}
	for _, part := range strategyMarker.Split(text, -1) {
		if part = strings.TrimSpace(part); part != "" {
			strategies = append(strategies, part)
		}
	}
	return strategies
}

// FilterQueries keeps the completion lines that look like search queries:
// non-empty, not list items, and longer than minQueryLength characters.
func FilterQueries(text string) []string {
	queries := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || listMarker.MatchString(line) {
			continue
		}
		if utf8.RuneCountInString(line) > minQueryLength {
			queries = append(queries, line)
		}
	}
	return queries
}

// ParseValidatedPapers extracts the "papers" array from a validation
// response. ok is false when the text is not JSON or has no papers field.
func ParseValidatedPapers(text string) (papers []domain.Paper, ok bool) {
	var result struct {
		Papers []domain.Paper `json:"papers"`
	}
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, false
	}
	if result.Papers == nil {
		return nil, false
	}
	return result.Papers, true
}

// SplitAuthors turns a comma-separated author list into Authors.
func SplitAuthors(s string) []domain.Author {
	authors := []domain.Author{}
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			authors = append(authors, domain.Author{Name: name})
		}
	}
	return authors
}
