package models

import (
	"strings"
	"testing"
	"time"
)

func ptr(v float64) *float64 { return &v }

func TestNewQuote(t *testing.T) {
	tests := []struct {
		name    string
		input   QuoteInput
		wantYes float64
		wantNo  float64
		wantErr bool
	}{
		{
			name:    "all prices present",
			input:   QuoteInput{ID: "m-1", YesPrice: ptr(0.7), NoPrice: ptr(0.25), Volume: ptr(1000)},
			wantYes: 0.7,
			wantNo:  0.25,
		},
		{
			name:    "missing no price derived from yes",
			input:   QuoteInput{ID: "m-2", YesPrice: ptr(0.8)},
			wantYes: 0.8,
			wantNo:  1 - 0.8,
		},
		{
			name:    "missing prices default to 0.5",
			input:   QuoteInput{ID: "m-3"},
			wantYes: 0.5,
			wantNo:  0.5,
		},
		{
			name:    "missing yes price with known no price",
			input:   QuoteInput{ID: "m-4", NoPrice: ptr(0.3)},
			wantYes: 0.5,
			wantNo:  0.3,
		},
		{
			name:    "empty ID",
			input:   QuoteInput{YesPrice: ptr(0.5)},
			wantErr: true,
		},
		{
			name:    "price out of range",
			input:   QuoteInput{ID: "m-5", YesPrice: ptr(1.5), NoPrice: ptr(0.1)},
			wantErr: true,
		},
		{
			name:    "negative liquidity",
			input:   QuoteInput{ID: "m-6", Liquidity: ptr(-1)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := NewQuote(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewQuote() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if q.YesPrice != tt.wantYes {
				t.Errorf("YesPrice = %v, want %v", q.YesPrice, tt.wantYes)
			}
			if q.NoPrice != tt.wantNo {
				t.Errorf("NoPrice = %v, want %v", q.NoPrice, tt.wantNo)
			}
			if q.Volume < 0 || q.Liquidity < 0 {
				t.Errorf("numeric defaults must be non-negative: %+v", q)
			}
		})
	}
}

func TestParseSentiment(t *testing.T) {
	tests := []struct {
		in   string
		want Sentiment
	}{
		{"bullish", SentimentBullish},
		{" Bearish ", SentimentBearish},
		{"NEUTRAL", SentimentNeutral},
		{"unknown", SentimentUnknown},
		{"very bullish", SentimentUnknown},
		{"", SentimentUnknown},
	}

	for _, tt := range tests {
		if got := ParseSentiment(tt.in); got != tt.want {
			t.Errorf("ParseSentiment(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestProviderOpinionBound(t *testing.T) {
	o := ProviderOpinion{
		Sentiment:     "Bullish",
		Confidence:    1.4,
		KeyFactors:    []string{"a", "b", " ", "c", "d"},
		Risks:         []string{},
		Opportunities: []string{"x"},
		Reasoning:     strings.Repeat("r", 500),
	}.Bound()

	if o.Sentiment != SentimentBullish {
		t.Errorf("Sentiment = %s, want bullish", o.Sentiment)
	}
	if o.Confidence != 1 {
		t.Errorf("Confidence = %v, want 1", o.Confidence)
	}
	if len(o.KeyFactors) != 3 || o.KeyFactors[2] != "c" {
		t.Errorf("KeyFactors = %v, want [a b c]", o.KeyFactors)
	}
	if o.Risks != nil {
		t.Errorf("Risks = %#v, want nil for an empty list", o.Risks)
	}
	if len([]rune(o.Reasoning)) != MaxReasoningLength {
		t.Errorf("Reasoning length = %d, want %d", len(o.Reasoning), MaxReasoningLength)
	}
}

func TestResearchRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  ResearchRecord
		wantErr bool
	}{
		{
			name: "valid record",
			record: ResearchRecord{
				MarketID:   "m-1",
				CreatedAt:  time.Now(),
				Insights:   &Insights{OverallSentiment: SentimentBullish, ProviderCount: 1},
				Confidence: 0.7,
			},
		},
		{
			name:    "valid failure record",
			record:  ResearchRecord{MarketID: "m-1", Error: "boom"},
			wantErr: false,
		},
		{
			name:    "failure record with confidence",
			record:  ResearchRecord{MarketID: "m-1", Error: "boom", Confidence: 0.5},
			wantErr: true,
		},
		{
			name:    "failure record with insights",
			record:  ResearchRecord{MarketID: "m-1", Error: "boom", Insights: &Insights{}},
			wantErr: true,
		},
		{
			name:    "missing market ID",
			record:  ResearchRecord{Confidence: 0.5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("ResearchRecord.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResearchRecordOverallSentiment(t *testing.T) {
	r := ResearchRecord{MarketID: "m-1", Error: "boom"}
	if got := r.OverallSentiment(); got != SentimentUnknown {
		t.Errorf("OverallSentiment() = %s, want unknown", got)
	}
	r = ResearchRecord{MarketID: "m-1", Insights: &Insights{OverallSentiment: SentimentBearish}}
	if got := r.OverallSentiment(); got != SentimentBearish {
		t.Errorf("OverallSentiment() = %s, want bearish", got)
	}
}
