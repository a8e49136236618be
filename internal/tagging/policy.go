package tagging

import "math"

// Policy constants. They are tuning knobs, not derived values.
const (
	DefaultDomainConfidence  = 0.72
	DefaultKeywordConfidence = 0.6
	DefaultLLMScale          = 0.9
	DefaultLLMCap            = 0.95
)

// Policy holds the confidence constants used by the rule engine and by the
// "llm" rescale stage applied on top of it.
type Policy struct {
	DomainConfidence  float64
	KeywordConfidence float64
	LLMScale          float64
	LLMCap            float64
}

// DefaultPolicy returns the stock confidence constants.
func DefaultPolicy() Policy {
	return Policy{
		DomainConfidence:  DefaultDomainConfidence,
		KeywordConfidence: DefaultKeywordConfidence,
		LLMScale:          DefaultLLMScale,
		LLMCap:            DefaultLLMCap,
	}
}

// Rescale relabels suggestions as llm-sourced with confidence
// min(confidence*LLMScale, LLMCap). The input slice is not modified.
func (p Policy) Rescale(in []Suggestion) []Suggestion {
	out := make([]Suggestion, len(in))
	for i, s := range in {
		out[i] = Suggestion{
			Name:       s.Name,
			Confidence: math.Min(s.Confidence*p.LLMScale, p.LLMCap),
			Source:     SourceLLM,
		}
	}
	return out
}
