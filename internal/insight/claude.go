package insight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rewired-gh/polyresearch/internal/models"
)

const analystSystemPrompt = "You are a careful prediction market analyst. Answer with a single JSON object."

// ClaudeProvider asks Anthropic Claude for an opinion.
type ClaudeProvider struct {
	client      anthropic.Client
	enabled     bool
	model       string
	maxTokens   int64
	temperature float64
}

// ClaudeOptions configures a ClaudeProvider.
type ClaudeOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewClaudeProvider creates a Claude provider. An empty API key makes every
// call return ErrUnavailable.
func NewClaudeProvider(opts ClaudeOptions) *ClaudeProvider {
	p := &ClaudeProvider{
		enabled:     opts.APIKey != "",
		model:       opts.Model,
		maxTokens:   int64(opts.MaxTokens),
		temperature: opts.Temperature,
	}
	if p.maxTokens <= 0 {
		p.maxTokens = 500
	}
	if !p.enabled {
		return p
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	p.client = anthropic.NewClient(reqOpts...)
	return p
}

// Name returns the provider name.
func (p *ClaudeProvider) Name() string { return "claude" }

// Analyze asks Claude for an opinion on quote.
func (p *ClaudeProvider) Analyze(ctx context.Context, quote models.Quote) (*models.ProviderOpinion, error) {
	if !p.enabled {
		return nil, ErrUnavailable
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(quote))),
		},
		System: []anthropic.TextBlockParam{
			{Text: analystSystemPrompt},
		},
	}
	if p.temperature > 0 {
		params.Temperature = anthropic.Float(p.temperature)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude API call failed: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	opinion := ParseOpinion(p.Name(), quote, content.String())
	return &opinion, nil
}
