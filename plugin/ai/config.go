package ai

import (
	"errors"

	"github.com/finpilot/advisor/internal/profile"
)

// Config represents AI capability configuration.
type Config struct {
	Enabled bool

	Embedding  EmbeddingConfig
	Generation GenerationConfig
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Model      string // text-embedding-3-small
	Dimensions int    // 1536
	BatchSize  int    // max texts per embedding request
	APIKey     string
	BaseURL    string
}

// GenerationConfig represents text generation configuration.
type GenerationConfig struct {
	Model         string // gpt-4o-mini
	FallbackModel string // optional, tried once when the primary model errors
	APIKey        string
	BaseURL       string
	MaxTokens     int     // default: 2048
	Temperature   float32 // default: 0.7
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.AIEnabled,
	}

	if !cfg.Enabled {
		return cfg
	}

	cfg.Embedding = EmbeddingConfig{
		Model:      p.AIEmbeddingModel,
		Dimensions: p.AIEmbeddingDims,
		BatchSize:  p.AIEmbeddingBatch,
		APIKey:     p.AIAPIKey,
		BaseURL:    p.AIBaseURL,
	}

	cfg.Generation = GenerationConfig{
		Model:         p.AIGenerationModel,
		FallbackModel: p.AIFallbackModel,
		APIKey:        p.AIAPIKey,
		BaseURL:       p.AIBaseURL,
		MaxTokens:     p.AIMaxTokens,
		Temperature:   p.AITemperature,
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Embedding.Model == "" {
		return errors.New("embedding model is required")
	}
	if c.Embedding.APIKey == "" && c.Embedding.BaseURL == "" {
		return errors.New("embedding API key or base URL is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return errors.New("embedding dimensions must be positive")
	}

	if c.Generation.Model == "" {
		return errors.New("generation model is required")
	}

	return nil
}
