package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbeddingService(t *testing.T) {
	tests := []struct {
		name        string
		config      *EmbeddingConfig
		expectError bool
	}{
		{
			name: "ValidConfig",
			config: &EmbeddingConfig{
				Model:      "text-embedding-3-small",
				Dimensions: 1536,
				APIKey:     "sk-test",
			},
			expectError: false,
		},
		{
			name: "BaseURLOnly",
			config: &EmbeddingConfig{
				Model:      "text-embedding-3-small",
				Dimensions: 1536,
				BaseURL:    "http://localhost:11434/v1",
			},
			expectError: false,
		},
		{
			name: "MissingCredentials",
			config: &EmbeddingConfig{
				Model:      "text-embedding-3-small",
				Dimensions: 1536,
			},
			expectError: true,
		},
		{
			name: "MissingModel",
			config: &EmbeddingConfig{
				Dimensions: 1536,
				APIKey:     "sk-test",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewEmbeddingService(tt.config)
			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrNotConfigured)
				assert.Nil(t, svc)
			} else {
				require.NoError(t, err)
				require.NotNil(t, svc)
			}
		})
	}
}

func TestEmbeddingServiceDimensions(t *testing.T) {
	svc, err := NewEmbeddingService(&EmbeddingConfig{
		Model:      "text-embedding-3-small",
		Dimensions: 768,
		APIKey:     "sk-test",
	})
	require.NoError(t, err)
	assert.Equal(t, 768, svc.Dimensions())
}

func TestEmbeddingServiceBatchSizeDefault(t *testing.T) {
	svc, err := NewEmbeddingService(&EmbeddingConfig{
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		APIKey:     "sk-test",
		BatchSize:  0,
	})
	require.NoError(t, err)

	impl, ok := svc.(*embeddingService)
	require.True(t, ok)
	assert.Equal(t, 32, impl.batchSize)
}
