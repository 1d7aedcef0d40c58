package insight

import (
	"fmt"

	"github.com/rewired-gh/polyresearch/internal/models"
)

// Aggregate merges opinions into Insights. The overall sentiment is the label
// with a strict plurality among bullish, bearish and neutral; ties and empty
// input give unknown. Every opinion counts toward ProviderCount.
func Aggregate(opinions []models.ProviderOpinion) models.Insights {
	counts := make(map[models.Sentiment]int, 3)
	for _, o := range opinions {
		counts[o.Sentiment]++
	}

	overall := models.SentimentUnknown
	labels := []models.Sentiment{models.SentimentBullish, models.SentimentBearish, models.SentimentNeutral}
	for _, label := range labels {
		plurality := counts[label] > 0
		for _, other := range labels {
			if other != label && counts[other] >= counts[label] {
				plurality = false
			}
		}
		if plurality {
			overall = label
			break
		}
	}

	var kept []models.ProviderOpinion
	if len(opinions) > 0 {
		kept = append(kept, opinions...)
	}
	return models.Insights{
		Opinions:         kept,
		OverallSentiment: overall,
		ProviderCount:    len(opinions),
	}
}

// MeanConfidence is the arithmetic mean of the opinions' confidence, or 0 for
// no opinions.
func MeanConfidence(opinions []models.ProviderOpinion) float64 {
	if len(opinions) == 0 {
		return 0.0
	}
	var sum float64
	for _, o := range opinions {
		sum += o.Confidence
	}
	return sum / float64(len(opinions))
}

// Summary renders the one-line research summary.
func Summary(insights models.Insights, confidence float64) string {
	return fmt.Sprintf("Sentiment: %s (confidence: %.1f%%). Analysis based on %d AI provider(s).",
		insights.OverallSentiment, confidence*100, insights.ProviderCount)
}
