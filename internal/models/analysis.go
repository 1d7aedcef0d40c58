package models

import "time"

// Tier is a coarse bucket derived from thresholding a continuous metric.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Action is the recommended trade.
type Action string

const (
	ActionBuyYes  Action = "BUY YES"
	ActionBuyNo   Action = "BUY NO"
	ActionHold    Action = "HOLD"
	ActionCaution Action = "CAUTION"
)

// Severity grades a risk factor.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Risk factor types.
const (
	RiskLiquidity  = "liquidity"
	RiskPrediction = "prediction"
	RiskPricing    = "pricing"
)

// PriceAnalysis holds the price-derived metrics of a quote.
type PriceAnalysis struct {
	YesPrice           float64 `json:"yes_price"`
	NoPrice            float64 `json:"no_price"`
	Spread             float64 `json:"spread"`
	ImpliedProbability float64 `json:"implied_probability"`
	MidPrice           float64 `json:"mid_price"`
}

// LiquidityMetrics classifies market depth.
type LiquidityMetrics struct {
	Liquidity     float64 `json:"liquidity"`
	Volume        float64 `json:"volume"`
	Tier          Tier    `json:"tier"`
	LiquidCushion float64 `json:"liquid_cushion"`
}

// VolumeMetrics classifies traded volume.
type VolumeMetrics struct {
	Volume float64 `json:"volume"`
	Tier   Tier    `json:"tier"`
}

// Recommendation is the suggested action and position size (fraction of liquidity).
type Recommendation struct {
	Action          Action  `json:"action"`
	Reason          string  `json:"reason"`
	Confidence      float64 `json:"confidence"`
	MaxPositionSize float64 `json:"max_position_size"`
}

// RiskFactor is one identified risk.
type RiskFactor struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Analysis is the derived metrics, recommendation and risk list for one market
// at one point in time. Timestamp is copied from the research record.
type Analysis struct {
	MarketID         string           `json:"market_id"`
	Title            string           `json:"title"`
	URL              string           `json:"url,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
	PriceAnalysis    PriceAnalysis    `json:"price_analysis"`
	SentimentScore   float64          `json:"sentiment_score"`
	Sentiment        Sentiment        `json:"sentiment"`
	Confidence       float64          `json:"confidence"`
	LiquidityMetrics LiquidityMetrics `json:"liquidity_metrics"`
	VolumeMetrics    VolumeMetrics    `json:"volume_metrics"`
	Recommendation   Recommendation   `json:"recommendation"`
	RiskFactors      []RiskFactor     `json:"risk_factors"`
	Error            string           `json:"error,omitempty"`
}

// Probability returns the implied probability used for alert bucketing.
func (a *Analysis) Probability() float64 {
	return a.PriceAnalysis.ImpliedProbability
}
