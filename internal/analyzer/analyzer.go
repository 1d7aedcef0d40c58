// Package analyzer turns a quote and its research record into a
// risk-annotated recommendation.
package analyzer

import (
	"context"
	"fmt"
	"math"

	"github.com/rewired-gh/polyresearch/internal/logger"
	"github.com/rewired-gh/polyresearch/internal/metrics"
	"github.com/rewired-gh/polyresearch/internal/models"
)

// Tier thresholds.
const (
	highLiquidity   = 1_000_000
	mediumLiquidity = 100_000
	highVolume      = 500_000
	mediumVolume    = 100_000
)

// Recommendation and risk thresholds.
const (
	minActionConfidence   = 0.6
	minPositionConfidence = 0.7
	maxPositionSize       = 0.05
	liquidityRiskBelow    = 100_000
	liquidityRiskHigh     = 50_000
	pricingSkewAbove      = 0.3
)

// AnalysisStore persists analyses.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, analysis *models.Analysis) (string, error)
}

// Analyzer evaluates markets and persists the results.
type Analyzer struct {
	store   AnalysisStore
	metrics *metrics.Recorder
}

// New creates an Analyzer. m may be nil.
func New(store AnalysisStore, m *metrics.Recorder) *Analyzer {
	return &Analyzer{store: store, metrics: m}
}

// Analyze evaluates quote against record and persists the analysis. A
// persistence failure is logged and the analysis is still returned.
func (a *Analyzer) Analyze(ctx context.Context, quote models.Quote, record *models.ResearchRecord) models.Analysis {
	analysis := Evaluate(quote, record)
	a.metrics.RecordRecommendation(string(analysis.Recommendation.Action))

	if a.store != nil {
		path, err := a.store.SaveAnalysis(ctx, &analysis)
		if err != nil {
			logger.Error("Failed to save analysis for market %s: %v", quote.ID, err)
		} else {
			logger.Debug("Saved analysis to %s", path)
		}
	}
	return analysis
}

// Evaluate computes the analysis for one market. It has no side effects.
func Evaluate(quote models.Quote, record *models.ResearchRecord) models.Analysis {
	if record == nil {
		record = &models.ResearchRecord{MarketID: quote.ID}
	}

	sentiment := record.OverallSentiment()
	confidence := record.Confidence
	liquidity := analyzeLiquidity(quote)

	return models.Analysis{
		MarketID:         quote.ID,
		Title:            quote.Question,
		URL:              quote.URL,
		Timestamp:        record.CreatedAt,
		PriceAnalysis:    analyzePrices(quote),
		SentimentScore:   sentimentScore(sentiment, confidence),
		Sentiment:        sentiment,
		Confidence:       confidence,
		LiquidityMetrics: liquidity,
		VolumeMetrics:    analyzeVolume(quote),
		Recommendation:   recommend(sentiment, confidence, liquidity),
		RiskFactors:      assessRisks(quote, confidence),
		Error:            record.Error,
	}
}

func analyzePrices(q models.Quote) models.PriceAnalysis {
	mid := 0.5
	if q.NoPrice > 0 {
		mid = (q.YesPrice + (1 - q.NoPrice)) / 2
	}
	return models.PriceAnalysis{
		YesPrice:           q.YesPrice,
		NoPrice:            q.NoPrice,
		Spread:             math.Abs(q.YesPrice - q.NoPrice),
		ImpliedProbability: q.YesPrice,
		MidPrice:           mid,
	}
}

func sentimentScore(s models.Sentiment, confidence float64) float64 {
	switch s {
	case models.SentimentBullish:
		return confidence
	case models.SentimentBearish:
		return -confidence
	default:
		return 0
	}
}

func analyzeLiquidity(q models.Quote) models.LiquidityMetrics {
	return models.LiquidityMetrics{
		Liquidity:     q.Liquidity,
		Volume:        q.Volume,
		Tier:          tier(q.Liquidity, highLiquidity, mediumLiquidity),
		LiquidCushion: q.Liquidity / math.Max(q.Volume, 1),
	}
}

func analyzeVolume(q models.Quote) models.VolumeMetrics {
	return models.VolumeMetrics{
		Volume: q.Volume,
		Tier:   tier(q.Volume, highVolume, mediumVolume),
	}
}

func tier(v, high, medium float64) models.Tier {
	switch {
	case v > high:
		return models.TierHigh
	case v > medium:
		return models.TierMedium
	default:
		return models.TierLow
	}
}

// recommend applies the decision rules in order; the first match wins.
func recommend(s models.Sentiment, confidence float64, liq models.LiquidityMetrics) models.Recommendation {
	rec := models.Recommendation{
		Confidence:      confidence,
		MaxPositionSize: positionSize(liq.Liquidity, confidence),
	}

	switch {
	case confidence < minActionConfidence:
		rec.Action, rec.Reason = models.ActionHold, "Low confidence in prediction"
	case liq.Tier == models.TierLow:
		rec.Action, rec.Reason = models.ActionCaution, "Low liquidity may cause slippage"
	case s == models.SentimentBullish:
		rec.Action = models.ActionBuyYes
		rec.Reason = fmt.Sprintf("Bullish sentiment with %.1f%% confidence", confidence*100)
	case s == models.SentimentBearish:
		rec.Action = models.ActionBuyNo
		rec.Reason = fmt.Sprintf("Bearish sentiment with %.1f%% confidence", confidence*100)
	default:
		rec.Action, rec.Reason = models.ActionHold, "Neutral sentiment"
	}
	return rec
}

// positionSize is the suggested position as a fraction of liquidity.
func positionSize(liquidity, confidence float64) float64 {
	if liquidity == 0 || confidence < minPositionConfidence {
		return 0
	}

	size := math.Min(maxPositionSize, confidence*0.1)
	switch tier(liquidity, highLiquidity, mediumLiquidity) {
	case models.TierHigh:
		return size
	case models.TierMedium:
		return size * 0.7
	default:
		return size * 0.3
	}
}

// assessRisks appends every matching risk. The pricing rule is signed: only
// a yes price exceeding the no price by more than the skew threshold counts.
func assessRisks(q models.Quote, confidence float64) []models.RiskFactor {
	risks := []models.RiskFactor{}

	if q.Liquidity < liquidityRiskBelow {
		severity := models.SeverityMedium
		if q.Liquidity < liquidityRiskHigh {
			severity = models.SeverityHigh
		}
		risks = append(risks, models.RiskFactor{
			Type:        models.RiskLiquidity,
			Severity:    severity,
			Description: "Low market liquidity may cause execution issues",
		})
	}

	if confidence < minActionConfidence {
		risks = append(risks, models.RiskFactor{
			Type:        models.RiskPrediction,
			Severity:    models.SeverityHigh,
			Description: "Low confidence in AI analysis",
		})
	}

	if q.YesPrice-q.NoPrice > pricingSkewAbove {
		risks = append(risks, models.RiskFactor{
			Type:        models.RiskPricing,
			Severity:    models.SeverityMedium,
			Description: "Wide bid-ask spread indicates inefficient pricing",
		})
	}

	return risks
}
