// Package models defines the core domain entities for the polyresearch application.
// These models represent prediction-market quotes, provider opinions, cached research
// records and per-market analyses. Models that cross a trust boundary carry their
// own validation so malformed data is caught where it enters the pipeline.
//
// Terminology (matching Polymarket's own naming):
//   - Market: a single yes/no question. This is the unit we research.
//   - Quote: a point-in-time price/volume/liquidity snapshot of one market.
package models

import (
	"errors"
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Quote is a normalized, immutable market snapshot produced by a QuoteSource.
// YesPrice and NoPrice are quoted independently and need not sum to 1.
type Quote struct {
	ID        string  `json:"id" validate:"required"`
	Question  string  `json:"question"`
	Slug      string  `json:"slug,omitempty"`
	URL       string  `json:"url"`
	YesPrice  float64 `json:"yes_price" validate:"gte=0,lte=1"`
	NoPrice   float64 `json:"no_price" validate:"gte=0,lte=1"`
	Volume    float64 `json:"volume" validate:"gte=0"`
	Volume24h float64 `json:"volume_24hr" validate:"gte=0"`
	Liquidity float64 `json:"liquidity" validate:"gte=0"`
	BestBid   float64 `json:"best_bid" validate:"gte=0,lte=1"`
	BestAsk   float64 `json:"best_ask" validate:"gte=0,lte=1"`
	EndDate   string  `json:"end_date,omitempty"`
	Category  string  `json:"category,omitempty"`
}

// Probability returns the market-implied probability of the yes outcome.
func (q *Quote) Probability() float64 {
	return q.YesPrice
}

// Validate checks that all quote fields are within range.
func (q *Quote) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("invalid quote %q: %w", q.ID, err)
	}
	return nil
}

// QuoteInput is the boundary shape of a quote before defaults are applied.
// A nil numeric field means the upstream source did not provide it.
type QuoteInput struct {
	ID        string
	Question  string
	Slug      string
	URL       string
	YesPrice  *float64 `default:"0.5"`
	NoPrice   *float64 `default:"0.5"`
	Volume    *float64 `default:"0"`
	Volume24h *float64 `default:"0"`
	Liquidity *float64 `default:"0"`
	BestBid   *float64 `default:"0"`
	BestAsk   *float64 `default:"0"`
	EndDate   string
	Category  string
}

// NewQuote applies the boundary defaults to in and returns a validated Quote.
// A missing yes price defaults to 0.5; a missing no price is derived as
// 1 - yes when the yes price is known, and defaults to 0.5 otherwise.
func NewQuote(in QuoteInput) (Quote, error) {
	if in.ID == "" {
		return Quote{}, errors.New("quote ID must not be empty")
	}
	if in.NoPrice == nil && in.YesPrice != nil {
		no := 1 - *in.YesPrice
		in.NoPrice = &no
	}
	if err := defaults.Set(&in); err != nil {
		return Quote{}, fmt.Errorf("failed to apply quote defaults: %w", err)
	}

	q := Quote{
		ID:        in.ID,
		Question:  in.Question,
		Slug:      in.Slug,
		URL:       in.URL,
		YesPrice:  *in.YesPrice,
		NoPrice:   *in.NoPrice,
		Volume:    *in.Volume,
		Volume24h: *in.Volume24h,
		Liquidity: *in.Liquidity,
		BestBid:   *in.BestBid,
		BestAsk:   *in.BestAsk,
		EndDate:   in.EndDate,
		Category:  in.Category,
	}
	if err := q.Validate(); err != nil {
		return Quote{}, err
	}
	return q, nil
}
