// Package pipeline runs one research cycle: fetch quotes, research and
// analyze each market in turn, send the alert and render the report.
//
// A failed quote fetch fails the run. After that every failure is contained
// to its market, and the alert and report steps always run.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/polyresearch/internal/alert"
	"github.com/rewired-gh/polyresearch/internal/logger"
	"github.com/rewired-gh/polyresearch/internal/metrics"
	"github.com/rewired-gh/polyresearch/internal/models"
)

// QuoteSource supplies normalized market quotes.
type QuoteSource interface {
	FetchQuotes(ctx context.Context, limit int) ([]models.Quote, error)
}

// Researcher produces the research record for one market.
type Researcher interface {
	ResearchMarket(ctx context.Context, quote models.Quote) (*models.ResearchRecord, error)
}

// Analyzer produces the analysis for one market.
type Analyzer interface {
	Analyze(ctx context.Context, quote models.Quote, record *models.ResearchRecord) models.Analysis
}

// BatchStore persists raw quote batches.
type BatchStore interface {
	SaveQuoteBatch(ctx context.Context, quotes []models.Quote, unix int64) (string, error)
}

// AlertTransport delivers alert text.
type AlertTransport interface {
	Send(ctx context.Context, text string) error
}

// Settings are the scalar knobs of a run.
type Settings struct {
	FetchLimit       int
	MinVolume        float64
	MaxMarketsPerRun int // 0 means no cap
	AlertsEnabled    bool
}

// Result summarizes one run.
type Result struct {
	RunID       string
	StartedAt   time.Time
	Duration    time.Duration
	Fetched     int
	Selected    int
	Failed      int
	Analyses    []models.Analysis
	Categorized alert.Categorized
	Report      string
	AlertSent   bool
}

// Runner wires the collaborators of a research run.
type Runner struct {
	source     QuoteSource
	researcher Researcher
	analyzer   Analyzer
	batches    BatchStore
	transport  AlertTransport
	metrics    *metrics.Recorder
	settings   Settings
}

// NewRunner creates a Runner. batches, transport and m may be nil.
func NewRunner(source QuoteSource, researcher Researcher, analyzer Analyzer, batches BatchStore, transport AlertTransport, m *metrics.Recorder, settings Settings) *Runner {
	return &Runner{
		source:     source,
		researcher: researcher,
		analyzer:   analyzer,
		batches:    batches,
		transport:  transport,
		metrics:    m,
		settings:   settings,
	}
}

// Run executes one research cycle. The error is non-nil when the quote fetch
// failed or ctx was cancelled; a cancelled run returns the partial result.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger.Info("Starting research run %s", res.RunID)

	quotes, err := r.source.FetchQuotes(ctx, r.settings.FetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	res.Fetched = len(quotes)

	if r.batches != nil {
		if path, err := r.batches.SaveQuoteBatch(ctx, quotes, res.StartedAt.Unix()); err != nil {
			logger.Warn("Failed to save raw quote batch: %v", err)
		} else {
			logger.Debug("Saved raw quote batch to %s", path)
		}
	}

	selected := Select(quotes, r.settings.MinVolume, r.settings.MaxMarketsPerRun)
	res.Selected = len(selected)
	logger.Info("Selected %d of %d markets with volume >= $%.0f", len(selected), len(quotes), r.settings.MinVolume)

	for _, q := range selected {
		record, err := r.researcher.ResearchMarket(ctx, q)
		if err != nil {
			logger.Warn("Run %s cancelled while researching market %s: %v", res.RunID, q.ID, err)
			r.finish(res)
			return res, err
		}
		if record.Failed() {
			res.Failed++
		}

		res.Analyses = append(res.Analyses, r.analyzer.Analyze(ctx, q, record))
	}

	if r.settings.AlertsEnabled {
		res.AlertSent = r.sendAlert(ctx, res.Analyses)
	}

	r.finish(res)
	logger.Info("Research run %s finished in %v: %d analyzed, %d failed",
		res.RunID, res.Duration.Round(time.Millisecond), len(res.Analyses), res.Failed)
	return res, ctx.Err()
}

func (r *Runner) finish(res *Result) {
	res.Categorized = alert.Categorize(res.Analyses)
	res.Report = alert.RenderReport(res.Categorized, len(res.Analyses))
	res.Duration = time.Since(res.StartedAt)
}

func (r *Runner) sendAlert(ctx context.Context, analyses []models.Analysis) bool {
	if r.transport == nil {
		logger.Warn("Alert transport not configured - skipping alert")
		r.metrics.RecordAlert("skipped")
		return false
	}

	if err := r.transport.Send(ctx, alert.RenderAlert(analyses)); err != nil {
		logger.Error("Failed to send alert: %v", err)
		r.metrics.RecordAlert("failed")
		return false
	}

	logger.Info("Alert sent")
	r.metrics.RecordAlert("sent")
	return true
}

// Select keeps quotes with volume at least minVolume, ordered by volume
// descending, capped at maxMarkets when it is positive. The input is not
// modified.
func Select(quotes []models.Quote, minVolume float64, maxMarkets int) []models.Quote {
	var out []models.Quote
	for _, q := range quotes {
		if q.Volume >= minVolume {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Volume > out[j].Volume
	})
	if maxMarkets > 0 && len(out) > maxMarkets {
		out = out[:maxMarkets]
	}
	return out
}
