package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Shapes taken from live Gamma /markets responses: ids are strings, some
// numeric fields are numbers and others numeric strings or null.
const marketsFixture = `[
  {
    "id": "501",
    "question": "Will the Fed cut rates in March?",
    "slug": "fed-cut-march",
    "volumeNum": 1250000.5,
    "volume24hr": "32000",
    "liquidityNum": 480000,
    "lastTradePrice": 0.61,
    "bestBid": 0.62,
    "bestAsk": 0.64,
    "endDate": "2026-03-20T00:00:00Z",
    "category": "Economics"
  },
  {
    "id": 502,
    "question": "Will it snow in Miami?",
    "slug": "snow-miami",
    "volumeNum": "900000",
    "liquidityNum": null,
    "lastTradePrice": "0.03",
    "bestBid": 0,
    "bestAsk": 0.05
  },
  {
    "id": "503",
    "question": "Brand new market",
    "slug": "brand-new"
  },
  {
    "id": "504",
    "question": "Broken volume",
    "volumeNum": {"oops": true}
  },
  {
    "question": "No id"
  },
  {
    "id": "506",
    "question": "Out of range",
    "lastTradePrice": 1.7
  },
  "not an object"
]`

func newTestClient(serverURL string) *Client {
	return NewClient(Options{
		APIBaseURL:     serverURL,
		MarketBaseURL:  "https://polymarket.com/market",
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		RetryDelayBase: 10 * time.Millisecond,
	})
}

func TestFetchQuotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		query := r.URL.Query()
		assert.Equal(t, "true", query.Get("active"))
		assert.Equal(t, "false", query.Get("closed"))
		assert.Equal(t, "200", query.Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(marketsFixture))
	}))
	defer server.Close()

	quotes, err := newTestClient(server.URL).FetchQuotes(context.Background(), 200)
	require.NoError(t, err)
	require.Len(t, quotes, 3, "malformed entries are skipped")

	fed := quotes[0]
	assert.Equal(t, "501", fed.ID)
	assert.Equal(t, "https://polymarket.com/market/fed-cut-march", fed.URL)
	assert.InDelta(t, 0.63, fed.YesPrice, 1e-9, "bid/ask mid")
	assert.InDelta(t, 0.37, fed.NoPrice, 1e-9)
	assert.Equal(t, 1250000.5, fed.Volume)
	assert.Equal(t, 32000.0, fed.Volume24h)
	assert.Equal(t, 480000.0, fed.Liquidity)
	assert.Equal(t, "Economics", fed.Category)
	assert.Equal(t, "2026-03-20T00:00:00Z", fed.EndDate)

	snow := quotes[1]
	assert.Equal(t, "502", snow.ID)
	assert.InDelta(t, 0.03, snow.YesPrice, 1e-9, "last trade when bid is missing")
	assert.InDelta(t, 0.97, snow.NoPrice, 1e-9)
	assert.Equal(t, 0.0, snow.Liquidity)
	assert.Equal(t, 0.0, snow.BestBid)
	assert.Equal(t, 0.05, snow.BestAsk)

	fresh := quotes[2]
	assert.Equal(t, 0.5, fresh.YesPrice, "no price data defaults to 0.5")
	assert.Equal(t, 0.5, fresh.NoPrice)
	assert.Equal(t, 0.0, fresh.Volume)
}

func TestFetchQuotesRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	quotes, err := newTestClient(server.URL).FetchQuotes(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, quotes)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchQuotesGivesUp(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchQuotes(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchQuotesClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad limit", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchQuotes(context.Background(), -1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchQuotesInvalidBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": "not a list"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchQuotes(context.Background(), 10)
	assert.Error(t, err)
}

func TestFetchQuotesCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL).FetchQuotes(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		in      string
		want    *float64
		wantErr bool
	}{
		{`1.5`, ptr(1.5), false},
		{`"2.25"`, ptr(2.25), false},
		{`null`, nil, false},
		{`""`, nil, false},
		{`"abc"`, nil, true},
		{`true`, nil, true},
	}

	for _, tt := range tests {
		var f flexFloat
		err := f.UnmarshalJSON([]byte(tt.in))
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, f.Value, tt.in)
	}
}

func ptr(v float64) *float64 { return &v }
