package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	clearEnvVars(t)

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "dev", p.Mode)
	assert.Equal(t, "sqlite", p.Driver)
	assert.Equal(t, "knowledge", p.Collection)
	assert.False(t, p.AIEnabled)
	assert.Equal(t, "text-embedding-3-small", p.AIEmbeddingModel)
	assert.Equal(t, 1536, p.AIEmbeddingDims)
	assert.Equal(t, 32, p.AIEmbeddingBatch)
	assert.Equal(t, "gpt-4o-mini", p.AIGenerationModel)
	assert.Equal(t, float32(0.7), p.AITemperature)
	assert.Equal(t, 2048, p.AIMaxTokens)
	assert.Equal(t, 10, p.DefaultTopK)
	assert.InDelta(t, 0.3, p.SimilarityThreshold, 1e-9)
	assert.False(t, p.CacheEnabled)
	assert.False(t, p.ExperimentEnabled)
	assert.InDelta(t, 0.1, p.RolloutPercentage, 1e-9)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("FINPILOT_AI_ENABLED", "true")
	t.Setenv("FINPILOT_AI_API_KEY", "sk-test")
	t.Setenv("FINPILOT_AI_GENERATION_MODEL", "gpt-4o")
	t.Setenv("FINPILOT_AI_FALLBACK_MODEL", "gpt-4o-mini")
	t.Setenv("FINPILOT_SIMILARITY_THRESHOLD", "0.5")
	t.Setenv("FINPILOT_EXPERIMENT_ROLLOUT", "0.25")
	t.Setenv("FINPILOT_CACHE_ENABLED", "true")

	p := &Profile{}
	p.FromEnv()

	assert.True(t, p.AIEnabled)
	assert.True(t, p.IsAIEnabled())
	assert.Equal(t, "gpt-4o", p.AIGenerationModel)
	assert.Equal(t, "gpt-4o-mini", p.AIFallbackModel)
	assert.InDelta(t, 0.5, p.SimilarityThreshold, 1e-9)
	assert.InDelta(t, 0.25, p.RolloutPercentage, 1e-9)
	assert.True(t, p.CacheEnabled)
}

func TestValidate(t *testing.T) {
	t.Run("SQLiteDefaultDSN", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: t.TempDir()}
		require.NoError(t, p.Validate())
		assert.Contains(t, p.DSN, "advisor_dev.db")
	})

	t.Run("PostgresRequiresDSN", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "postgres", Data: t.TempDir()}
		assert.Error(t, p.Validate())
	})

	t.Run("UnknownDriverRejected", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "mysql", Data: t.TempDir()}
		assert.Error(t, p.Validate())
	})

	t.Run("ThresholdOutOfRange", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: t.TempDir(), SimilarityThreshold: 1.5}
		assert.Error(t, p.Validate())
	})

	t.Run("RolloutOutOfRange", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: t.TempDir(), RolloutPercentage: -0.1}
		assert.Error(t, p.Validate())
	})

	t.Run("InvalidModeFallsBackToDemo", func(t *testing.T) {
		p := &Profile{Mode: "staging", Driver: "sqlite", Data: t.TempDir()}
		require.NoError(t, p.Validate())
		assert.Equal(t, "demo", p.Mode)
	})
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"FINPILOT_MODE", "FINPILOT_DATA", "FINPILOT_DSN", "FINPILOT_DRIVER",
		"FINPILOT_COLLECTION", "FINPILOT_AI_ENABLED", "FINPILOT_AI_API_KEY",
		"FINPILOT_AI_BASE_URL", "FINPILOT_AI_EMBEDDING_MODEL",
		"FINPILOT_AI_EMBEDDING_DIMENSIONS", "FINPILOT_AI_EMBEDDING_BATCH_SIZE",
		"FINPILOT_AI_GENERATION_MODEL", "FINPILOT_AI_FALLBACK_MODEL",
		"FINPILOT_AI_TEMPERATURE", "FINPILOT_AI_MAX_TOKENS",
		"FINPILOT_AI_MAX_CONTEXT_LENGTH", "FINPILOT_DEFAULT_TOP_K",
		"FINPILOT_SIMILARITY_THRESHOLD", "FINPILOT_CACHE_ENABLED",
		"FINPILOT_EXPERIMENT_ENABLED", "FINPILOT_EXPERIMENT_ROLLOUT",
	} {
		t.Setenv(key, "")
	}
}
