package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpilot/advisor/internal/profile"
	"github.com/finpilot/advisor/plugin/ai"
	"github.com/finpilot/advisor/plugin/ai/knowledge"
	"github.com/finpilot/advisor/plugin/ai/queryengine"
	"github.com/finpilot/advisor/store"
	"github.com/finpilot/advisor/store/teststore"
)

func newTestOrchestrator(t *testing.T, llm ai.LLMService) (*Orchestrator, *knowledge.Index) {
	t.Helper()
	embedder := ai.NewMockEmbeddingService(4)
	s := store.New(teststore.New(), &profile.Profile{})
	index, err := knowledge.NewIndex(s, embedder, 10, 0.0)
	require.NoError(t, err)
	engine := queryengine.NewEngine(index, nil)
	return NewOrchestrator(engine, llm, 4000), index
}

func testRequest() *Request {
	return &Request{
		UserID:   "user-1",
		Personas: []string{"HIGH_UTILIZATION"},
		Signals30d: queryengine.Signals{
			"credit": {"avg_utilization": 0.68},
		},
	}
}

func TestGenerateWithoutCapability(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, nil)

	result := orchestrator.Generate(context.Background(), testRequest())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not configured")
	assert.Empty(t, result.Recommendations)
}

func TestGeneratePipeline(t *testing.T) {
	llm := ai.NewMockLLMService(
		`[{"title":"Pay down card","content":"Reduce utilization","rationale":"Utilization is 68%"}]`,
		`[{"title":"Balance transfer card","content":"0% intro APR","rationale":"Could save interest at 68% utilization"}]`,
	)
	orchestrator, index := newTestOrchestrator(t, llm)
	ctx := context.Background()

	_, err := index.Add(ctx, []*knowledge.Document{
		{ID: "doc-1", Type: store.DocTypeEducation, Content: "credit utilization basics"},
		{ID: "sc-1", Type: store.DocTypeScenario, Content: "user reduced utilization from 70% to 30%"},
	})
	require.NoError(t, err)

	result := orchestrator.Generate(ctx, testRequest())
	require.True(t, result.Success, "error: %s", result.Error)
	assert.Len(t, result.Recommendations, 2)
	assert.NotEmpty(t, result.ContextUsed.Query)
	assert.Contains(t, result.ContextUsed.Query, "utilization")
	assert.Equal(t, 2, result.ContextUsed.DocCount)
	assert.Equal(t, 1, result.ContextUsed.ScenarioCount)
	assert.GreaterOrEqual(t, result.GenerationTimeMs, int64(0))

	// Both prompts carry the retrieved context and the signal summary.
	require.Len(t, llm.Calls, 2)
	for _, call := range llm.Calls {
		assert.Contains(t, call.UserPrompt, "credit.avg_utilization")
	}
}

func TestGeneratePartialSuccess(t *testing.T) {
	llm := ai.NewMockLLMService(
		`[{"title":"Pay down card","content":"Reduce utilization"}]`,
	)
	// Second call returns the default "[]" which parses to no offers.
	orchestrator, _ := newTestOrchestrator(t, llm)

	result := orchestrator.Generate(context.Background(), testRequest())
	assert.True(t, result.Success)
	assert.Len(t, result.Recommendations, 1)
}

func TestGenerateBothSubResultsFail(t *testing.T) {
	llm := ai.NewMockLLMService()
	llm.Err = errors.New("model overloaded")
	orchestrator, _ := newTestOrchestrator(t, llm)

	result := orchestrator.Generate(context.Background(), testRequest())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "model overloaded")
	assert.Empty(t, result.Recommendations)
}

func TestGenerateCancelled(t *testing.T) {
	llm := ai.NewMockLLMService()
	orchestrator, _ := newTestOrchestrator(t, llm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := orchestrator.Generate(ctx, testRequest())
	assert.False(t, result.Success)
	assert.Equal(t, "cancelled", result.Error)
}

func TestRegenerateRecommendation(t *testing.T) {
	llm := ai.NewMockLLMService(`[{"title":"One rec","content":"regenerated"}]`)
	orchestrator, _ := newTestOrchestrator(t, llm)

	rec, err := orchestrator.RegenerateRecommendation(context.Background(), testRequest(), "credit")
	require.NoError(t, err)
	assert.Equal(t, "One rec", rec.Title)
	assert.Equal(t, "credit", rec.Category)

	t.Run("WithoutCapability", func(t *testing.T) {
		disabled, _ := newTestOrchestrator(t, nil)
		_, err := disabled.RegenerateRecommendation(context.Background(), testRequest(), "credit")
		assert.ErrorIs(t, err, ai.ErrNotConfigured)
	})
}

func TestEnhanceRationale(t *testing.T) {
	rec := &Recommendation{Title: "Pay down card", Rationale: "generic rationale"}

	t.Run("Enhanced", func(t *testing.T) {
		llm := ai.NewMockLLMService("Your utilization is 68%, paying $200 extra would drop it below 30%.")
		orchestrator, _ := newTestOrchestrator(t, llm)
		enhanced := orchestrator.EnhanceRationale(context.Background(), rec, testRequest().Signals30d)
		assert.Contains(t, enhanced, "68%")
	})

	t.Run("FailureKeepsOriginal", func(t *testing.T) {
		llm := ai.NewMockLLMService()
		llm.Err = errors.New("unavailable")
		orchestrator, _ := newTestOrchestrator(t, llm)
		assert.Equal(t, "generic rationale", orchestrator.EnhanceRationale(context.Background(), rec, nil))
	})

	t.Run("NilCapabilityKeepsOriginal", func(t *testing.T) {
		orchestrator, _ := newTestOrchestrator(t, nil)
		assert.Equal(t, "generic rationale", orchestrator.EnhanceRationale(context.Background(), rec, nil))
	})
}
