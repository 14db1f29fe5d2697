package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/finpilot/advisor/internal/profile"
	"github.com/finpilot/advisor/plugin/ai"
	"github.com/finpilot/advisor/plugin/ai/cache"
	"github.com/finpilot/advisor/plugin/ai/experiment"
	"github.com/finpilot/advisor/plugin/ai/generator"
	"github.com/finpilot/advisor/plugin/ai/knowledge"
	"github.com/finpilot/advisor/plugin/ai/metrics"
	"github.com/finpilot/advisor/plugin/ai/queryengine"
	"github.com/finpilot/advisor/store"
	"github.com/finpilot/advisor/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Retrieval-augmented financial recommendation engine",
	Long: `advisor manages a vector-indexed knowledge base of financial scenarios,
educational content, partner offers and strategies, and generates
personalized recommendations grounded in retrieved context. It also runs
the rag-vs-catalog experiment and collects quality metrics.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	viper.SetEnvPrefix("finpilot")
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("mode", "dev", `mode of the engine: "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "", `database driver: "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database connection string")

	_ = viper.BindPFlag("mode", rootCmd.PersistentFlags().Lookup("mode"))
	_ = viper.BindPFlag("data", rootCmd.PersistentFlags().Lookup("data"))
	_ = viper.BindPFlag("driver", rootCmd.PersistentFlags().Lookup("driver"))
	_ = viper.BindPFlag("dsn", rootCmd.PersistentFlags().Lookup("dsn"))
}

// runtime bundles the constructed services for one command invocation.
type runtime struct {
	profile      *profile.Profile
	store        *store.Store
	index        *knowledge.Index
	engine       *queryengine.Engine
	orchestrator *generator.Orchestrator
	coordinator  *experiment.Coordinator
	collector    *metrics.Collector
	persister    *metrics.Persister
}

func (r *runtime) Close() {
	if r.persister != nil {
		r.persister.Close()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}
}

// newRuntime builds the full service graph from the environment.
// Generation stays optional: with no API key configured the orchestrator
// reports structured failures instead of generating.
func newRuntime(ctx context.Context) (*runtime, error) {
	p := &profile.Profile{
		Mode:   viper.GetString("mode"),
		Data:   viper.GetString("data"),
		Driver: viper.GetString("driver"),
		DSN:    viper.GetString("dsn"),
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create db driver: %w", err)
	}
	s := store.New(dbDriver, p)
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	aiConfig := ai.NewConfigFromProfile(p)
	if err := aiConfig.Validate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	embedder, err := ai.NewEmbeddingService(&aiConfig.Embedding)
	if err != nil {
		s.Close()
		return nil, err
	}

	index, err := knowledge.NewIndex(s, embedder, p.DefaultTopK, p.SimilarityThreshold)
	if err != nil {
		s.Close()
		return nil, err
	}

	var resultCache *cache.LRUCache
	if p.CacheEnabled {
		resultCache = cache.NewLRUCache(256, 5*time.Minute)
	}
	engine := queryengine.NewEngine(index, resultCache)

	var llm ai.LLMService
	if p.IsAIEnabled() {
		llm, err = ai.NewLLMService(&aiConfig.Generation)
		if err != nil {
			slog.Warn("generation capability unavailable", "error", err)
			llm = nil
		}
	}
	orchestrator := generator.NewOrchestrator(engine, llm, p.AIMaxContextLength)

	coordinator := experiment.NewCoordinator(experiment.Config{
		Enabled:           p.ExperimentEnabled,
		RolloutPercentage: p.RolloutPercentage,
		Variants:          []string{"rag"},
	})

	collector := metrics.NewCollector()
	persister := metrics.NewPersister(s, collector, metrics.PersisterConfig{})
	persister.Start()

	return &runtime{
		profile:      p,
		store:        s,
		index:        index,
		engine:       engine,
		orchestrator: orchestrator,
		coordinator:  coordinator,
		collector:    collector,
		persister:    persister,
	}, nil
}

func initLogger() {
	level := slog.LevelInfo
	if os.Getenv("FINPILOT_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
