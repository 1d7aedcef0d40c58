package models

import "strings"

// Sentiment is a provider's directional view of a market.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
	SentimentUnknown Sentiment = "unknown"
)

// ParseSentiment normalizes a free-form label. Anything other than the three
// directional labels maps to SentimentUnknown.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentBullish:
		return SentimentBullish
	case SentimentBearish:
		return SentimentBearish
	case SentimentNeutral:
		return SentimentNeutral
	default:
		return SentimentUnknown
	}
}

// Bounds applied to every provider opinion.
const (
	MaxOpinionItems    = 3
	MaxReasoningLength = 200
)

// ProviderOpinion is one source's sentiment/confidence judgment about a market.
type ProviderOpinion struct {
	Provider      string    `json:"provider"`
	Sentiment     Sentiment `json:"sentiment"`
	Confidence    float64   `json:"confidence"`
	KeyFactors    []string  `json:"key_factors,omitempty"`
	Risks         []string  `json:"risks,omitempty"`
	Opportunities []string  `json:"opportunities,omitempty"`
	Reasoning     string    `json:"reasoning,omitempty"`
}

// Bound clamps confidence into [0,1], trims the item lists to MaxOpinionItems
// and truncates the reasoning to MaxReasoningLength runes.
func (o ProviderOpinion) Bound() ProviderOpinion {
	if o.Confidence < 0 {
		o.Confidence = 0
	}
	if o.Confidence > 1 {
		o.Confidence = 1
	}
	o.Sentiment = ParseSentiment(string(o.Sentiment))
	o.KeyFactors = boundItems(o.KeyFactors)
	o.Risks = boundItems(o.Risks)
	o.Opportunities = boundItems(o.Opportunities)
	if r := []rune(o.Reasoning); len(r) > MaxReasoningLength {
		o.Reasoning = string(r[:MaxReasoningLength])
	}
	return o
}

// boundItems returns nil for an empty list so stored and reloaded opinions
// compare equal.
func boundItems(items []string) []string {
	var out []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == MaxOpinionItems {
			break
		}
	}
	return out
}

// Insights is the aggregate of zero or more provider opinions.
type Insights struct {
	Opinions         []ProviderOpinion `json:"opinions,omitempty"`
	OverallSentiment Sentiment         `json:"overall_sentiment"`
	ProviderCount    int               `json:"provider_count"`
}
