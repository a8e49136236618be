// Package tagging derives tag suggestions for a bookmark from its URL and title.
//
// The engine is a pure function of its input: no I/O, no shared mutable state.
// Malformed input yields fewer suggestions, never an error.
package tagging

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Source records where a suggestion came from.
type Source string

const (
	SourceRules Source = "rules"
	SourceLLM   Source = "llm"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceRules || s == SourceLLM
}

// Suggestion is a candidate tag, not yet persisted.
type Suggestion struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
}

// MinKeywordLen is the shortest title fragment kept as a keyword, in runes.
const MinKeywordLen = 4

// defaultStopwords are dropped from title keywords.
var defaultStopwords = []string{
	"the", "and", "for", "with", "that", "this", "from", "into", "your", "you", "are",
	"was", "were", "have", "has", "about", "http", "https",
}

// Rules is the keyword/domain suggestion engine.
type Rules struct {
	policy    Policy
	stopwords map[string]struct{}
}

// NewRules creates a rule engine using the given policy constants.
func NewRules(policy Policy) *Rules {
	stopwords := make(map[string]struct{}, len(defaultStopwords))
	for _, w := range defaultStopwords {
		stopwords[w] = struct{}{}
	}
	return &Rules{policy: policy, stopwords: stopwords}
}

// IsStopword reports whether word is ignored as a title keyword.
func (r *Rules) IsStopword(word string) bool {
	_, ok := r.stopwords[word]
	return ok
}

// Suggest returns the domain suggestion (if any) followed by title keywords
// in first-seen order.
func (r *Rules) Suggest(url, title string) []Suggestion {
	suggestions := make([]Suggestion, 0, 8)

	if domain, ok := ExtractDomain(url); ok {
		suggestions = append(suggestions, Suggestion{
			Name:       domain,
			Confidence: r.policy.DomainConfidence,
			Source:     SourceRules,
		})
	}

	for _, keyword := range r.extractKeywords(title) {
		suggestions = append(suggestions, Suggestion{
			Name:       keyword,
			Confidence: r.policy.KeywordConfidence,
			Source:     SourceRules,
		})
	}

	return suggestions
}

// ExtractDomain returns the host portion of url with scheme and "www." removed.
func ExtractDomain(url string) (string, bool) {
	rest := strings.TrimSpace(url)
	rest = strings.TrimPrefix(rest, "https://")
	rest = strings.TrimPrefix(rest, "http://")

	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		rest = rest[:idx]
	}
	rest = strings.TrimPrefix(rest, "www.")

	if rest == "" {
		return "", false
	}
	return rest, true
}

// extractKeywords splits text on non-alphanumeric runes and keeps lowercase,
// deduplicated fragments that are long enough and not stopwords.
func (r *Rules) extractKeywords(text string) []string {
	fields := strings.FieldsFunc(text, func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsNumber(c)
	})

	seen := make(map[string]struct{}, len(fields))
	keywords := make([]string, 0, len(fields))
	for _, raw := range fields {
		candidate := strings.ToLower(raw)
		if utf8.RuneCountInString(candidate) < MinKeywordLen {
			continue
		}
		if r.IsStopword(candidate) {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		keywords = append(keywords, candidate)
	}
	return keywords
}
