package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/polyresearch/internal/config"
)

func TestNewProviders(t *testing.T) {
	cfg := &config.Config{}
	cfg.Research.Providers = []string{"gemini", "groq", "claude"}

	providers, err := NewProviders(cfg)
	require.NoError(t, err)

	var names []string
	for _, p := range providers {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"gemini", "groq", "claude"}, names)
}

func TestNewProvidersUnknown(t *testing.T) {
	cfg := &config.Config{}
	cfg.Research.Providers = []string{"openai"}

	_, err := NewProviders(cfg)
	assert.Error(t, err)
}
