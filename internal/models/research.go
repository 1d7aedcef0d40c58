package models

import (
	"errors"
	"time"
)

// ResearchRecord is the persisted, cached aggregate of provider opinions for one market.
// A record with Error set carries no insights and zero confidence, and is never cached.
type ResearchRecord struct {
	MarketID   string    `json:"market_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"research_timestamp"`
	Insights   *Insights `json:"insights,omitempty"`
	Confidence float64   `json:"confidence"`
	Summary    string    `json:"summary,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Failed reports whether the record describes a research failure.
func (r *ResearchRecord) Failed() bool {
	return r.Error != ""
}

// OverallSentiment returns the aggregated sentiment, or SentimentUnknown when
// the record has no insights.
func (r *ResearchRecord) OverallSentiment() Sentiment {
	if r.Insights == nil || r.Insights.OverallSentiment == "" {
		return SentimentUnknown
	}
	return r.Insights.OverallSentiment
}

// Validate checks the record invariants.
func (r *ResearchRecord) Validate() error {
	if r.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if r.Confidence < 0.0 || r.Confidence > 1.0 {
		return errors.New("confidence must be between 0.0 and 1.0")
	}
	if r.Failed() {
		if r.Confidence != 0 {
			return errors.New("failed record must have zero confidence")
		}
		if r.Insights != nil {
			return errors.New("failed record must not carry insights")
		}
	}
	return nil
}
