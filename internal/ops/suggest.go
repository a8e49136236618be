package ops

import (
	"strings"

	"github.com/lesterapp/lester/internal/errors"
	"github.com/lesterapp/lester/internal/tagging"
)

// SuggestInput contains parameters for the Suggest operation.
type SuggestInput struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	// Rescale applies the worker's llm relabelling to the rule output.
	Rescale bool `json:"rescale,omitempty"`
}

// SuggestOutput contains the ranked tag suggestions.
type SuggestOutput struct {
	Suggestions []tagging.Suggestion `json:"suggestions"`
}

// Suggest previews the tags the rule engine would produce. It reads nothing
// from the store.
func Suggest(policy tagging.Policy, input SuggestInput) (*SuggestOutput, error) {
	if strings.TrimSpace(input.URL) == "" && strings.TrimSpace(input.Title) == "" {
		return nil, errors.NewInvalidRequest("url or title is required")
	}
	suggestions := tagging.NewRules(policy).Suggest(input.URL, input.Title)
	if input.Rescale {
		suggestions = policy.Rescale(suggestions)
	}
	return &SuggestOutput{Suggestions: suggestions}, nil
}
