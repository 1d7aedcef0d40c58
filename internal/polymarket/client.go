// Package polymarket fetches market quotes from the Polymarket Gamma API.
//
// Gamma is loose about types: numeric fields arrive as numbers, numeric strings
// or null depending on the market. Entries that cannot be turned into a valid
// quote are skipped with a warning instead of failing the batch.
package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/polyresearch/internal/logger"
	"github.com/rewired-gh/polyresearch/internal/models"
)

// Client provides access to the Polymarket Gamma API
type Client struct {
	apiBaseURL     string
	marketBaseURL  string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// Options configures a Client.
type Options struct {
	APIBaseURL     string
	MarketBaseURL  string
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
}

// NewClient creates a new Polymarket client
func NewClient(opts Options) *Client {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelayBase <= 0 {
		opts.RetryDelayBase = time.Second
	}
	return &Client{
		apiBaseURL:    strings.TrimRight(opts.APIBaseURL, "/"),
		marketBaseURL: strings.TrimRight(opts.MarketBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		maxRetries:     opts.MaxRetries,
		retryDelayBase: opts.RetryDelayBase,
	}
}

// GammaMarket is one entry of the Gamma /markets response.
type GammaMarket struct {
	ID             flexString `json:"id"`
	Question       string     `json:"question"`
	Slug           string     `json:"slug"`
	VolumeNum      flexFloat  `json:"volumeNum"`
	Volume24hr     flexFloat  `json:"volume24hr"`
	LiquidityNum   flexFloat  `json:"liquidityNum"`
	LastTradePrice flexFloat  `json:"lastTradePrice"`
	BestBid        flexFloat  `json:"bestBid"`
	BestAsk        flexFloat  `json:"bestAsk"`
	EndDate        string     `json:"endDate"`
	Category       string     `json:"category"`
}

// FetchQuotes retrieves up to limit active, open markets as quotes.
func (c *Client) FetchQuotes(ctx context.Context, limit int) ([]models.Quote, error) {
	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("limit", strconv.Itoa(limit))
	reqURL := fmt.Sprintf("%s/markets?%s", c.apiBaseURL, params.Encode())

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode markets: %w", err)
	}

	quotes := make([]models.Quote, 0, len(entries))
	for i, raw := range entries {
		var m GammaMarket
		if err := json.Unmarshal(raw, &m); err != nil {
			logger.Warn("Skipping malformed market at index %d: %v", i, err)
			continue
		}
		q, err := c.toQuote(m)
		if err != nil {
			logger.Warn("Skipping market %q: %v", string(m.ID), err)
			continue
		}
		quotes = append(quotes, q)
	}

	logger.Info("Fetched %d markets (%d skipped)", len(quotes), len(entries)-len(quotes))
	return quotes, nil
}

// toQuote converts a Gamma market. The live yes price is the bid/ask mid when
// both are quoted, otherwise the last trade price; the no price is its
// complement. Zero counts as not quoted.
func (c *Client) toQuote(m GammaMarket) (models.Quote, error) {
	var yes *float64
	switch {
	case m.BestBid.positive() && m.BestAsk.positive():
		mid := (*m.BestBid.Value + *m.BestAsk.Value) / 2
		yes = &mid
	case m.LastTradePrice.positive():
		yes = m.LastTradePrice.Value
	}

	var no *float64
	if yes != nil {
		complement := 1 - *yes
		no = &complement
	}

	var marketURL string
	if m.Slug != "" {
		marketURL = c.marketBaseURL + "/" + m.Slug
	}

	return models.NewQuote(models.QuoteInput{
		ID:        string(m.ID),
		Question:  m.Question,
		Slug:      m.Slug,
		URL:       marketURL,
		YesPrice:  yes,
		NoPrice:   no,
		Volume:    m.VolumeNum.Value,
		Volume24h: m.Volume24hr.Value,
		Liquidity: m.LiquidityNum.Value,
		BestBid:   m.BestBid.orNil(),
		BestAsk:   m.BestAsk.orNil(),
		EndDate:   m.EndDate,
		Category:  m.Category,
	})
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(truncate(body, 256)))
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// flexFloat decodes a JSON number, numeric string or null.
type flexFloat struct {
	Value *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		f.Value = nil
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	f.Value = &v
	return nil
}

func (f flexFloat) positive() bool {
	return f.Value != nil && *f.Value > 0
}

// orNil returns the value when it is positive.
func (f flexFloat) orNil() *float64 {
	if f.positive() {
		return f.Value
	}
	return nil
}

// flexString decodes a JSON string or number as a string.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("invalid id %s", data)
	}
	*s = flexString(num.String())
	return nil
}
