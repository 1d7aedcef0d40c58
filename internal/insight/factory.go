package insight

import (
	"fmt"

	"github.com/rewired-gh/polyresearch/internal/config"
)

// NewProviders builds the configured providers in research order.
func NewProviders(cfg *config.Config) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfg.Research.Providers))
	for _, name := range cfg.Research.Providers {
		switch name {
		case "groq":
			g := cfg.Providers.Groq
			providers = append(providers, NewGroqProvider(GroqOptions{
				APIKey:      g.APIKey,
				BaseURL:     g.BaseURL,
				Model:       g.Model,
				MaxTokens:   g.MaxTokens,
				Temperature: g.Temperature,
				Timeout:     g.Timeout,
			}))
		case "claude":
			c := cfg.Providers.Claude
			providers = append(providers, NewClaudeProvider(ClaudeOptions{
				APIKey:      c.APIKey,
				Model:       c.Model,
				MaxTokens:   c.MaxTokens,
				Temperature: c.Temperature,
				Timeout:     c.Timeout,
			}))
		case "gemini":
			g := cfg.Providers.Gemini
			providers = append(providers, NewGeminiProvider(GeminiOptions{
				APIKey:      g.APIKey,
				Model:       g.Model,
				Temperature: g.Temperature,
				Timeout:     g.Timeout,
			}))
		default:
			return nil, fmt.Errorf("unknown insight provider %q", name)
		}
	}
	return providers, nil
}
