package research

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/polyresearch/internal/insight"
	"github.com/rewired-gh/polyresearch/internal/metrics"
	"github.com/rewired-gh/polyresearch/internal/models"
	"github.com/rewired-gh/polyresearch/internal/storage"
)

type fakeProvider struct {
	name    string
	opinion *models.ProviderOpinion
	err     error

	mu    sync.Mutex
	calls []time.Time
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Analyze(ctx context.Context, quote models.Quote) (*models.ProviderOpinion, error) {
	p.mu.Lock()
	p.calls = append(p.calls, time.Now())
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	o := *p.opinion
	return &o, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type memCache struct {
	mu      sync.Mutex
	records map[string]*models.ResearchRecord
	getErr  error
	putErr  error
	puts    int
}

func newMemCache() *memCache {
	return &memCache{records: make(map[string]*models.ResearchRecord)}
}

func (c *memCache) Get(ctx context.Context, id string) (*models.ResearchRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	r, ok := c.records[id]
	if !ok {
		return nil, storage.ErrCacheMiss
	}
	return r, nil
}

func (c *memCache) Put(ctx context.Context, id string, r *models.ResearchRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if c.putErr != nil {
		return c.putErr
	}
	c.records[id] = r
	return nil
}

func quote(yes float64) models.Quote {
	return models.Quote{
		ID:       "m-1",
		Question: "Will it happen?",
		URL:      "https://polymarket.com/market/it",
		YesPrice: yes,
		NoPrice:  1 - yes,
		Volume:   750000,
	}
}

func bullish(name string, confidence float64) *fakeProvider {
	return &fakeProvider{
		name: name,
		opinion: &models.ProviderOpinion{
			Provider:   name,
			Sentiment:  models.SentimentBullish,
			Confidence: confidence,
			KeyFactors: []string{"momentum"},
		},
	}
}

func TestResearchMarket_IdempotentWithFileStore(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	p := bullish("groq", 0.8)
	r := New(store, []insight.Provider{p}, MinCallInterval)
	ctx := context.Background()

	first, err := r.ResearchMarket(ctx, quote(0.7))
	require.NoError(t, err)
	second, err := r.ResearchMarket(ctx, quote(0.7))
	require.NoError(t, err)

	assert.Equal(t, 1, p.callCount(), "second call must be a pure cache read")
	assert.Equal(t, first, second)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestResearchMarket_StaleResearchReused(t *testing.T) {
	cache := newMemCache()
	p := bullish("groq", 0.8)
	r := New(cache, []insight.Provider{p}, MinCallInterval)
	ctx := context.Background()

	first, err := r.ResearchMarket(ctx, quote(0.7))
	require.NoError(t, err)

	changed := quote(0.2)
	changed.Volume = 1
	second, err := r.ResearchMarket(ctx, changed)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, p.callCount())
}

func TestResearchMarket_Record(t *testing.T) {
	cache := newMemCache()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New(cache, []insight.Provider{bullish("groq", 0.8)}, MinCallInterval,
		WithClock(func() time.Time { return fixed }))

	rec, err := r.ResearchMarket(context.Background(), quote(0.7))
	require.NoError(t, err)

	assert.Equal(t, "m-1", rec.MarketID)
	assert.Equal(t, "Will it happen?", rec.Title)
	assert.Equal(t, fixed, rec.CreatedAt)
	assert.Equal(t, 0.8, rec.Confidence)
	assert.Equal(t, models.SentimentBullish, rec.OverallSentiment())
	assert.Equal(t, 1, rec.Insights.ProviderCount)
	assert.Equal(t, "Sentiment: bullish (confidence: 80.0%). Analysis based on 1 AI provider(s).", rec.Summary)
	assert.Empty(t, rec.Error)
	assert.Equal(t, 1, cache.puts)
}

func TestResearchMarket_UnavailableUsesFallback(t *testing.T) {
	cache := newMemCache()
	p := &fakeProvider{name: "groq", err: insight.ErrUnavailable}
	r := New(cache, []insight.Provider{p}, MinCallInterval)

	rec, err := r.ResearchMarket(context.Background(), quote(0.3))
	require.NoError(t, err)

	assert.Empty(t, rec.Error)
	assert.Equal(t, insight.FallbackConfidence, rec.Confidence)
	assert.Equal(t, models.SentimentBearish, rec.OverallSentiment())
	require.Len(t, rec.Insights.Opinions, 1)
	assert.Equal(t, insight.FallbackProvider, rec.Insights.Opinions[0].Provider)
	assert.Equal(t, 1, rec.Insights.ProviderCount)
	assert.Equal(t, 1, cache.puts, "fallback research is cached")
}

func TestResearchMarket_NoProvidersUsesFallback(t *testing.T) {
	r := New(newMemCache(), nil, MinCallInterval)

	rec, err := r.ResearchMarket(context.Background(), quote(0.5))
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNeutral, rec.OverallSentiment())
	assert.Equal(t, insight.FallbackConfidence, rec.Confidence)
}

func TestResearchMarket_SkipsUnavailableProvider(t *testing.T) {
	unavailable := &fakeProvider{name: "claude", err: insight.ErrUnavailable}
	ok := bullish("groq", 0.9)
	r := New(newMemCache(), []insight.Provider{unavailable, ok}, MinCallInterval)

	rec, err := r.ResearchMarket(context.Background(), quote(0.5))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Insights.ProviderCount)
	assert.Equal(t, 0.9, rec.Confidence)
}

func TestResearchMarket_ProviderFault(t *testing.T) {
	cache := newMemCache()
	p := &fakeProvider{name: "groq", err: errors.New("connection reset")}
	m := metrics.New()
	r := New(cache, []insight.Provider{p}, MinCallInterval, WithMetrics(m))
	ctx := context.Background()

	rec, err := r.ResearchMarket(ctx, quote(0.7))
	require.NoError(t, err)

	assert.Contains(t, rec.Error, "connection reset")
	assert.Equal(t, 0.0, rec.Confidence)
	assert.Nil(t, rec.Insights)
	assert.NoError(t, rec.Validate())
	assert.Equal(t, 0, cache.puts, "failure records are never cached")

	// The next run retries
	_, err = r.ResearchMarket(ctx, quote(0.7))
	require.NoError(t, err)
	assert.Equal(t, 2, p.callCount())
}

func TestResearchMarket_CacheUnreadable(t *testing.T) {
	cache := newMemCache()
	cache.getErr = errors.New("disk on fire")
	p := bullish("groq", 0.8)
	r := New(cache, []insight.Provider{p}, MinCallInterval)

	rec, err := r.ResearchMarket(context.Background(), quote(0.7))
	require.NoError(t, err)

	assert.Contains(t, rec.Error, "disk on fire")
	assert.Equal(t, 0, p.callCount())
	assert.Equal(t, 0, cache.puts)
}

func TestResearchMarket_CacheWriteFault(t *testing.T) {
	cache := newMemCache()
	cache.putErr = errors.New("read-only file system")
	r := New(cache, []insight.Provider{bullish("groq", 0.8)}, MinCallInterval)

	rec, err := r.ResearchMarket(context.Background(), quote(0.7))
	require.NoError(t, err)
	assert.Contains(t, rec.Error, "read-only file system")
	assert.Nil(t, rec.Insights)
	assert.Equal(t, 0.0, rec.Confidence)
}

func TestResearchMarket_Cancelled(t *testing.T) {
	cache := newMemCache()
	r := New(cache, []insight.Provider{bullish("groq", 0.8)}, MinCallInterval)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := r.ResearchMarket(ctx, quote(0.7))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, rec)
	assert.Equal(t, 0, cache.puts)
}

func TestResearchMarket_SpacesProviderCalls(t *testing.T) {
	a, b, c := bullish("a", 0.7), bullish("b", 0.7), bullish("c", 0.7)
	r := New(newMemCache(), []insight.Provider{a, b, c}, 100*time.Millisecond)

	_, err := r.ResearchMarket(context.Background(), quote(0.7))
	require.NoError(t, err)

	// Interval below the floor is raised to MinCallInterval
	gap1 := b.calls[0].Sub(a.calls[0])
	gap2 := c.calls[0].Sub(b.calls[0])
	assert.GreaterOrEqual(t, gap1, MinCallInterval-50*time.Millisecond)
	assert.GreaterOrEqual(t, gap2, MinCallInterval-50*time.Millisecond)
}

func TestResearchMarket_SerializedPerMarket(t *testing.T) {
	cache := newMemCache()
	p := bullish("groq", 0.8)
	r := New(cache, []insight.Provider{p}, MinCallInterval)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.ResearchMarket(context.Background(), quote(0.7))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, p.callCount())
	assert.Equal(t, 1, cache.puts)
}
