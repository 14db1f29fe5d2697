package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpilot/advisor/internal/profile"
)

func TestNewConfigFromProfile(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		cfg := NewConfigFromProfile(&profile.Profile{AIEnabled: false})
		assert.False(t, cfg.Enabled)
		require.NoError(t, cfg.Validate())
	})

	t.Run("Enabled", func(t *testing.T) {
		p := &profile.Profile{
			AIEnabled:         true,
			AIAPIKey:          "sk-test",
			AIBaseURL:         "https://api.openai.com/v1",
			AIEmbeddingModel:  "text-embedding-3-small",
			AIEmbeddingDims:   1536,
			AIEmbeddingBatch:  32,
			AIGenerationModel: "gpt-4o-mini",
			AIFallbackModel:   "gpt-4o",
			AITemperature:     0.7,
			AIMaxTokens:       2048,
		}
		cfg := NewConfigFromProfile(p)
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
		assert.Equal(t, 1536, cfg.Embedding.Dimensions)
		assert.Equal(t, "gpt-4o-mini", cfg.Generation.Model)
		assert.Equal(t, "gpt-4o", cfg.Generation.FallbackModel)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		expectErr string
	}{
		{
			name:      "MissingEmbeddingModel",
			mutate:    func(c *Config) { c.Embedding.Model = "" },
			expectErr: "embedding model",
		},
		{
			name: "MissingCredentials",
			mutate: func(c *Config) {
				c.Embedding.APIKey = ""
				c.Embedding.BaseURL = ""
			},
			expectErr: "API key or base URL",
		},
		{
			name:      "ZeroDimensions",
			mutate:    func(c *Config) { c.Embedding.Dimensions = 0 },
			expectErr: "dimensions",
		},
		{
			name:      "MissingGenerationModel",
			mutate:    func(c *Config) { c.Generation.Model = "" },
			expectErr: "generation model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Enabled: true,
				Embedding: EmbeddingConfig{
					Model:      "text-embedding-3-small",
					Dimensions: 1536,
					APIKey:     "sk-test",
				},
				Generation: GenerationConfig{
					Model:  "gpt-4o-mini",
					APIKey: "sk-test",
				},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectErr)
		})
	}
}
