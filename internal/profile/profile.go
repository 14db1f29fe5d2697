package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the advisor engine.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Data is the data directory
	Data string
	// DSN points to where advisor stores its knowledge index
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Collection is the table name prefix for the knowledge index
	Collection string
	// Version is the current version of the engine
	Version string

	// AI configuration
	AIEnabled          bool    // FINPILOT_AI_ENABLED
	AIAPIKey           string  // FINPILOT_AI_API_KEY
	AIBaseURL          string  // FINPILOT_AI_BASE_URL (default: https://api.openai.com/v1)
	AIEmbeddingModel   string  // FINPILOT_AI_EMBEDDING_MODEL (default: text-embedding-3-small)
	AIEmbeddingDims    int     // FINPILOT_AI_EMBEDDING_DIMENSIONS (default: 1536)
	AIEmbeddingBatch   int     // FINPILOT_AI_EMBEDDING_BATCH_SIZE (default: 32)
	AIGenerationModel  string  // FINPILOT_AI_GENERATION_MODEL (default: gpt-4o-mini)
	AIFallbackModel    string  // FINPILOT_AI_FALLBACK_MODEL (default: "")
	AITemperature      float32 // FINPILOT_AI_TEMPERATURE (default: 0.7)
	AIMaxTokens        int     // FINPILOT_AI_MAX_TOKENS (default: 2048)
	AIMaxContextLength int     // FINPILOT_AI_MAX_CONTEXT_LENGTH (default: 8000)

	// Retrieval configuration
	DefaultTopK         int     // FINPILOT_DEFAULT_TOP_K (default: 10)
	SimilarityThreshold float64 // FINPILOT_SIMILARITY_THRESHOLD (default: 0.3)
	CacheEnabled        bool    // FINPILOT_CACHE_ENABLED (default: false)

	// Experiment configuration
	ExperimentEnabled bool    // FINPILOT_EXPERIMENT_ENABLED (default: false)
	RolloutPercentage float64 // FINPILOT_EXPERIMENT_ROLLOUT (default: 0.1)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if AI is enabled and an API key or base URL override
// is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIEnabled && (p.AIAPIKey != "" || p.AIBaseURL != "")
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string) bool {
	return os.Getenv(key) == "true"
}

// FromEnv loads configuration from FINPILOT_* environment variables.
// Empty values are skipped so defaults take effect.
func (p *Profile) FromEnv() {
	if p.Mode == "" {
		p.Mode = getEnvOrDefault("FINPILOT_MODE", "dev")
	}
	if p.Data == "" {
		p.Data = os.Getenv("FINPILOT_DATA")
	}
	if p.DSN == "" {
		p.DSN = os.Getenv("FINPILOT_DSN")
	}
	if p.Driver == "" {
		p.Driver = getEnvOrDefault("FINPILOT_DRIVER", "sqlite")
	}
	if p.Collection == "" {
		p.Collection = getEnvOrDefault("FINPILOT_COLLECTION", "knowledge")
	}

	p.AIEnabled = getBoolEnv("FINPILOT_AI_ENABLED")
	p.AIAPIKey = getEnvOrDefault("FINPILOT_AI_API_KEY", p.AIAPIKey)
	p.AIBaseURL = getEnvOrDefault("FINPILOT_AI_BASE_URL", "https://api.openai.com/v1")
	p.AIEmbeddingModel = getEnvOrDefault("FINPILOT_AI_EMBEDDING_MODEL", "text-embedding-3-small")
	p.AIEmbeddingDims = getIntEnvOrDefault("FINPILOT_AI_EMBEDDING_DIMENSIONS", 1536)
	p.AIEmbeddingBatch = getIntEnvOrDefault("FINPILOT_AI_EMBEDDING_BATCH_SIZE", 32)
	p.AIGenerationModel = getEnvOrDefault("FINPILOT_AI_GENERATION_MODEL", "gpt-4o-mini")
	p.AIFallbackModel = os.Getenv("FINPILOT_AI_FALLBACK_MODEL")
	p.AITemperature = float32(getFloatEnvOrDefault("FINPILOT_AI_TEMPERATURE", 0.7))
	p.AIMaxTokens = getIntEnvOrDefault("FINPILOT_AI_MAX_TOKENS", 2048)
	p.AIMaxContextLength = getIntEnvOrDefault("FINPILOT_AI_MAX_CONTEXT_LENGTH", 8000)

	p.DefaultTopK = getIntEnvOrDefault("FINPILOT_DEFAULT_TOP_K", 10)
	p.SimilarityThreshold = getFloatEnvOrDefault("FINPILOT_SIMILARITY_THRESHOLD", 0.3)
	p.CacheEnabled = getBoolEnv("FINPILOT_CACHE_ENABLED")

	p.ExperimentEnabled = getBoolEnv("FINPILOT_EXPERIMENT_ENABLED")
	p.RolloutPercentage = getFloatEnvOrDefault("FINPILOT_EXPERIMENT_ROLLOUT", 0.1)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q: only 'postgres' and 'sqlite' are supported", p.Driver)
	}
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("advisor_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires FINPILOT_DSN")
	}

	if p.SimilarityThreshold < 0 || p.SimilarityThreshold > 1 {
		return errors.Errorf("similarity threshold must be in [0, 1], got %v", p.SimilarityThreshold)
	}
	if p.RolloutPercentage < 0 || p.RolloutPercentage > 1 {
		return errors.Errorf("rollout percentage must be in [0, 1], got %v", p.RolloutPercentage)
	}
	if p.DefaultTopK <= 0 {
		p.DefaultTopK = 10
	}
	if p.AIEmbeddingBatch <= 0 {
		p.AIEmbeddingBatch = 32
	}

	return nil
}
