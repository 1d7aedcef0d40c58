// Package insight produces and merges sentiment opinions about a market.
//
// A Provider returns one ProviderOpinion per call or ErrUnavailable when it
// cannot run at all (for example a missing API key). Any other error is an
// infrastructure fault and is reported to the caller unchanged.
package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/rewired-gh/polyresearch/internal/models"
)

// ErrUnavailable signals that a provider cannot produce an opinion. It is an
// expected outcome, not a fault.
var ErrUnavailable = errors.New("insight provider unavailable")

// Provider supplies a sentiment opinion for one market.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, quote models.Quote) (*models.ProviderOpinion, error)
}

// Price-derived opinion parameters.
const (
	FallbackProvider   = "fallback"
	FallbackConfidence = 0.6
	// ParseFallbackConfidence is used when a provider answered but the
	// content held no usable JSON.
	ParseFallbackConfidence = 0.7

	bullishAbove = 0.6
	bearishBelow = 0.4
)

// PriceSentiment derives a sentiment from the implied probability alone.
func PriceSentiment(probability float64) models.Sentiment {
	switch {
	case probability > bullishAbove:
		return models.SentimentBullish
	case probability < bearishBelow:
		return models.SentimentBearish
	default:
		return models.SentimentNeutral
	}
}

// Fallback returns the deterministic opinion used when no provider is available.
func Fallback(quote models.Quote) models.ProviderOpinion {
	p := quote.Probability()
	return models.ProviderOpinion{
		Provider:      FallbackProvider,
		Sentiment:     PriceSentiment(p),
		Confidence:    FallbackConfidence,
		KeyFactors:    quoteFactors(quote),
		Risks:         []string{"Basic analysis only - AI unavailable"},
		Opportunities: []string{"Add valid API key for AI analysis"},
		Reasoning:     fmt.Sprintf("Based on market probability of %s", percent(p)),
	}.Bound()
}

// parseFallback is the opinion for a provider whose reply could not be parsed.
func parseFallback(provider string, quote models.Quote, content string) models.ProviderOpinion {
	return models.ProviderOpinion{
		Provider:      provider,
		Sentiment:     PriceSentiment(quote.Probability()),
		Confidence:    ParseFallbackConfidence,
		KeyFactors:    quoteFactors(quote),
		Risks:         []string{"Parse error"},
		Opportunities: []string{"Review raw response"},
		Reasoning:     fmt.Sprintf("AI analysis received (%d chars)", len(content)),
	}.Bound()
}

func quoteFactors(quote models.Quote) []string {
	return []string{
		"Probability: " + percent(quote.Probability()),
		"Volume: $" + humanize.Comma(int64(quote.Volume)),
	}
}

func percent(p float64) string {
	return strconv.FormatFloat(p*100, 'f', 1, 64) + "%"
}

const promptTemplate = `You are a prediction market analyst. Analyze this Polymarket market:

Market: %s
Current Yes Probability: %s
Volume: $%s
URL: %s

Provide a brief analysis with:
1. sentiment: "bullish", "bearish", or "neutral"
2. confidence: 0.0-1.0
3. key_factors: list of 3 important factors
4. risks: list of 2-3 risks
5. opportunities: list of 2-3 opportunities
6. reasoning: brief explanation

Respond in JSON format only.`

// BuildPrompt renders the analysis prompt shared by all LLM providers.
func BuildPrompt(quote models.Quote) string {
	question := quote.Question
	if question == "" {
		question = "Unknown market"
	}
	return fmt.Sprintf(promptTemplate, question, percent(quote.Probability()),
		humanize.Comma(int64(quote.Volume)), quote.URL)
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// rawOpinion mirrors the JSON object requested by the prompt. Confidence may
// arrive as a number or a quoted number.
type rawOpinion struct {
	Sentiment     string      `json:"sentiment"`
	Confidence    json.Number `json:"confidence"`
	KeyFactors    []string    `json:"key_factors"`
	Risks         []string    `json:"risks"`
	Opportunities []string    `json:"opportunities"`
	Reasoning     string      `json:"reasoning"`
}

// ParseOpinion extracts the outermost JSON object from LLM content. Content
// without a parsable object yields the parse fallback opinion.
func ParseOpinion(provider string, quote models.Quote, content string) models.ProviderOpinion {
	match := jsonObject.FindString(content)
	if match == "" {
		return parseFallback(provider, quote, content)
	}

	var raw rawOpinion
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return parseFallback(provider, quote, content)
	}

	confidence := 0.5
	if raw.Confidence != "" {
		c, err := strconv.ParseFloat(string(raw.Confidence), 64)
		if err != nil {
			return parseFallback(provider, quote, content)
		}
		confidence = c
	}
	sentiment := raw.Sentiment
	if sentiment == "" {
		sentiment = string(models.SentimentNeutral)
	}

	return models.ProviderOpinion{
		Provider:      provider,
		Sentiment:     models.Sentiment(sentiment),
		Confidence:    confidence,
		KeyFactors:    raw.KeyFactors,
		Risks:         raw.Risks,
		Opportunities: raw.Opportunities,
		Reasoning:     raw.Reasoning,
	}.Bound()
}
