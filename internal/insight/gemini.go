package insight

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rewired-gh/polyresearch/internal/models"
	"google.golang.org/genai"
)

// GeminiProvider asks Google Gemini for an opinion. The client is created on
// first use.
type GeminiProvider struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float32
	timeout     time.Duration

	once      sync.Once
	client    *genai.Client
	clientErr error
}

// GeminiOptions configures a GeminiProvider.
type GeminiOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// NewGeminiProvider creates a Gemini provider. An empty API key makes every
// call return ErrUnavailable.
func NewGeminiProvider(opts GeminiOptions) *GeminiProvider {
	return &GeminiProvider{
		apiKey:      opts.APIKey,
		baseURL:     opts.BaseURL,
		model:       opts.Model,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		cfg := &genai.ClientConfig{
			APIKey:  p.apiKey,
			Backend: genai.BackendGeminiAPI,
		}
		if p.baseURL != "" {
			cfg.HTTPOptions.BaseURL = p.baseURL
		}
		if p.timeout > 0 {
			timeout := p.timeout
			cfg.HTTPOptions.Timeout = &timeout
		}
		p.client, p.clientErr = genai.NewClient(ctx, cfg)
	})
	return p.client, p.clientErr
}

// Analyze asks Gemini for an opinion on quote.
func (p *GeminiProvider) Analyze(ctx context.Context, quote models.Quote) (*models.ProviderOpinion, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}

	client, err := p.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(p.temperature),
		SystemInstruction: genai.NewContentFromText(analystSystemPrompt, genai.RoleUser),
	}

	resp, err := client.Models.GenerateContent(ctx, p.model, []*genai.Content{
		genai.NewContentFromText(BuildPrompt(quote), genai.RoleUser),
	}, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}

	opinion := ParseOpinion(p.Name(), quote, resp.Text())
	return &opinion, nil
}
