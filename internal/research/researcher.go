// Package research turns a quote into a cached research record.
package research

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rewired-gh/polyresearch/internal/insight"
	"github.com/rewired-gh/polyresearch/internal/logger"
	"github.com/rewired-gh/polyresearch/internal/metrics"
	"github.com/rewired-gh/polyresearch/internal/models"
	"github.com/rewired-gh/polyresearch/internal/storage"
)

// MinCallInterval is the smallest delay enforced between two provider calls.
const MinCallInterval = 500 * time.Millisecond

// Researcher looks up cached research and otherwise asks the providers,
// aggregates their opinions and stores the result.
type Researcher struct {
	cache     storage.ResearchCache
	providers []insight.Provider
	limiter   *rate.Limiter
	metrics   *metrics.Recorder
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Researcher.
type Option func(*Researcher)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Researcher) { r.metrics = m }
}

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Researcher) { r.now = now }
}

// New creates a Researcher. callInterval below MinCallInterval is raised to it.
func New(cache storage.ResearchCache, providers []insight.Provider, callInterval time.Duration, opts ...Option) *Researcher {
	if callInterval < MinCallInterval {
		callInterval = MinCallInterval
	}
	r := &Researcher{
		cache:     cache,
		providers: providers,
		limiter:   rate.NewLimiter(rate.Every(callInterval), 1),
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResearchMarket returns the research record for quote. A cached record is
// returned unchanged without calling any provider. Infrastructure faults
// produce a record with Error set that is not cached. The returned error is
// non-nil only when ctx is done; nothing is persisted in that case.
func (r *Researcher) ResearchMarket(ctx context.Context, quote models.Quote) (*models.ResearchRecord, error) {
	unlock := r.lock(quote.ID)
	defer unlock()

	start := time.Now()
	defer func() { r.metrics.ObserveResearch(time.Since(start)) }()

	cached, err := r.cache.Get(ctx, quote.ID)
	switch {
	case err == nil:
		r.metrics.RecordCacheLookup(metrics.CacheHit)
		logger.Debug("Using cached research for market %s", quote.ID)
		return cached, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case !errors.Is(err, storage.ErrCacheMiss):
		r.metrics.RecordCacheLookup(metrics.CacheError)
		logger.Error("Research cache unreadable for market %s: %v", quote.ID, err)
		return r.failed(quote, fmt.Errorf("research cache unreadable: %w", err)), nil
	}
	r.metrics.RecordCacheLookup(metrics.CacheMiss)

	logger.Info("Researching market %s: %s", quote.ID, quote.Question)

	opinions, err := r.gather(ctx, quote)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Error("Research failed for market %s: %v", quote.ID, err)
		return r.failed(quote, err), nil
	}

	insights := insight.Aggregate(opinions)
	confidence := insight.MeanConfidence(opinions)
	record := &models.ResearchRecord{
		MarketID:   quote.ID,
		Title:      quote.Question,
		URL:        quote.URL,
		CreatedAt:  r.now().UTC(),
		Insights:   &insights,
		Confidence: confidence,
		Summary:    insight.Summary(insights, confidence),
	}

	if err := r.cache.Put(ctx, quote.ID, record); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Error("Failed to cache research for market %s: %v", quote.ID, err)
		return r.failed(quote, fmt.Errorf("failed to cache research: %w", err)), nil
	}

	logger.Debug("Cached research for market %s (%s)", quote.ID, record.Summary)
	return record, nil
}

// gather calls the providers one at a time, each call waiting for the rate
// limiter. It falls back to the price-derived opinion when no provider was
// available.
func (r *Researcher) gather(ctx context.Context, quote models.Quote) ([]models.ProviderOpinion, error) {
	var opinions []models.ProviderOpinion
	for _, p := range r.providers {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		opinion, err := p.Analyze(ctx, quote)
		if err != nil {
			if errors.Is(err, insight.ErrUnavailable) {
				r.metrics.RecordProviderCall(p.Name(), metrics.ProviderUnavailable)
				logger.Debug("Provider %s unavailable for market %s", p.Name(), quote.ID)
				continue
			}
			r.metrics.RecordProviderCall(p.Name(), metrics.ProviderFault)
			return nil, fmt.Errorf("provider %s: %w", p.Name(), err)
		}

		r.metrics.RecordProviderCall(p.Name(), metrics.ProviderOK)
		o := opinion.Bound()
		if o.Provider == "" {
			o.Provider = p.Name()
		}
		opinions = append(opinions, o)
	}

	if len(opinions) == 0 {
		logger.Debug("No provider available for market %s, using price fallback", quote.ID)
		opinions = append(opinions, insight.Fallback(quote))
	}
	return opinions, nil
}

func (r *Researcher) failed(quote models.Quote, err error) *models.ResearchRecord {
	return &models.ResearchRecord{
		MarketID:   quote.ID,
		Title:      quote.Question,
		URL:        quote.URL,
		CreatedAt:  r.now().UTC(),
		Confidence: 0.0,
		Error:      err.Error(),
	}
}

// lock serializes research per market ID.
func (r *Researcher) lock(marketID string) func() {
	r.mu.Lock()
	l, ok := r.locks[marketID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[marketID] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}
