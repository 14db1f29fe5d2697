package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpilot/advisor/internal/profile"
	"github.com/finpilot/advisor/store"
	"github.com/finpilot/advisor/store/teststore"
)

func TestRecordGenerationAppendOnly(t *testing.T) {
	c := NewCollector()

	id1 := c.RecordGeneration(&GenerationEvent{UserID: "u1", Method: MethodRAG, Success: true})
	id2 := c.RecordGeneration(&GenerationEvent{UserID: "u2", Method: MethodCatalog, Success: false})
	assert.NotEqual(t, id1, id2)

	generations, _, _ := c.EventCounts()
	assert.Equal(t, 2, generations)
}

func TestGenerationSummaryZeroGuard(t *testing.T) {
	c := NewCollector()

	summary := c.GenerationSummary(MethodRAG)
	assert.Equal(t, 0, summary.GenerationCount)
	assert.Zero(t, summary.SuccessRate)
	assert.Zero(t, summary.AvgLatencyMs)
	assert.Zero(t, summary.AvgCitationRate)
}

func TestGenerationSummary(t *testing.T) {
	c := NewCollector()
	c.RecordGeneration(&GenerationEvent{Method: MethodRAG, Success: true, LatencyMs: 1000, CitationRate: 1.0})
	c.RecordGeneration(&GenerationEvent{Method: MethodRAG, Success: false, LatencyMs: 3000, CitationRate: 0.5})
	c.RecordGeneration(&GenerationEvent{Method: MethodCatalog, Success: true, LatencyMs: 100})

	summary := c.GenerationSummary(MethodRAG)
	assert.Equal(t, 2, summary.GenerationCount)
	assert.InDelta(t, 0.5, summary.SuccessRate, 1e-9)
	assert.InDelta(t, 2000, summary.AvgLatencyMs, 1e-9)
	assert.InDelta(t, 0.75, summary.AvgCitationRate, 1e-9)
}

func TestInteractionsAndOperators(t *testing.T) {
	c := NewCollector()
	c.RecordInteraction(&InteractionEvent{Kind: InteractionView})
	c.RecordInteraction(&InteractionEvent{Kind: InteractionView})
	c.RecordInteraction(&InteractionEvent{Kind: InteractionClick})
	c.RecordInteraction(&InteractionEvent{Kind: InteractionDismiss})
	c.RecordInteraction(&InteractionEvent{Kind: InteractionRate, Rating: 4})
	c.RecordInteraction(&InteractionEvent{Kind: InteractionHelpful})

	interactions := c.Interactions()
	assert.Equal(t, 2, interactions.Views)
	assert.InDelta(t, 0.5, interactions.ClickThroughRate, 1e-9)
	assert.InDelta(t, 0.5, interactions.DismissRate, 1e-9)
	assert.InDelta(t, 4.0, interactions.AvgRating, 1e-9)

	c.RecordOperatorDecision(&OperatorEvent{Kind: OperatorApprove})
	c.RecordOperatorDecision(&OperatorEvent{Kind: OperatorApprove})
	c.RecordOperatorDecision(&OperatorEvent{Kind: OperatorReject})
	c.RecordOperatorDecision(&OperatorEvent{Kind: OperatorEdit})

	operators := c.OperatorDecisions()
	assert.Equal(t, 2, operators.Approvals)
	assert.InDelta(t, 0.5, operators.ApprovalRate, 1e-9)
}

func TestInteractionsZeroGuard(t *testing.T) {
	c := NewCollector()
	interactions := c.Interactions()
	assert.Zero(t, interactions.ClickThroughRate)
	assert.Zero(t, interactions.AvgRating)
	assert.Zero(t, c.OperatorDecisions().ApprovalRate)
}

func TestCompareMethodsRequiresBothSides(t *testing.T) {
	c := NewCollector()
	c.RecordGeneration(&GenerationEvent{Method: MethodRAG, Success: true, LatencyMs: 1000})

	_, err := c.CompareMethods()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNeedBothMethods)
}

func TestCompareMethods(t *testing.T) {
	t.Run("RAGWinsOnCitations", func(t *testing.T) {
		c := NewCollector()
		// Identical success and latency; only citations differ.
		c.RecordGeneration(&GenerationEvent{Method: MethodRAG, Success: true, LatencyMs: 500, CitationRate: 0.9})
		c.RecordGeneration(&GenerationEvent{Method: MethodCatalog, Success: true, LatencyMs: 500})

		comparison, err := c.CompareMethods()
		require.NoError(t, err)
		assert.Equal(t, MethodRAG, comparison.Winner)
		assert.InDelta(t, 45, comparison.RAGScore-comparison.CatalogScore, 1e-9)
	})

	t.Run("CatalogWinsWhenRAGFails", func(t *testing.T) {
		c := NewCollector()
		c.RecordGeneration(&GenerationEvent{Method: MethodRAG, Success: false, LatencyMs: 5000, CitationRate: 0.1})
		c.RecordGeneration(&GenerationEvent{Method: MethodCatalog, Success: true, LatencyMs: 100})

		comparison, err := c.CompareMethods()
		require.NoError(t, err)
		assert.Equal(t, MethodCatalog, comparison.Winner)
	})

	t.Run("TieZone", func(t *testing.T) {
		c := NewCollector()
		c.RecordGeneration(&GenerationEvent{Method: MethodRAG, Success: true, LatencyMs: 500, CitationRate: 0.1})
		c.RecordGeneration(&GenerationEvent{Method: MethodCatalog, Success: true, LatencyMs: 500})

		comparison, err := c.CompareMethods()
		require.NoError(t, err)
		assert.Equal(t, "tie", comparison.Winner, "score difference below 10 is a tie")
	})
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordGeneration(&GenerationEvent{Method: MethodRAG, Success: true})
		}()
	}
	wg.Wait()

	generations, _, _ := c.EventCounts()
	assert.Equal(t, 100, generations, "lost updates under concurrency are a correctness bug")
}

func TestDrainCompletedSnapshots(t *testing.T) {
	c := NewCollector()
	past := time.Now().Add(-2 * time.Hour)

	c.RecordGeneration(&GenerationEvent{
		Method: MethodRAG, Variant: "rag", Success: true,
		LatencyMs: 1000, RecommendationCount: 4, CitationRate: 0.5,
		Timestamp: past,
	})
	c.RecordGeneration(&GenerationEvent{
		Method: MethodRAG, Variant: "rag", Success: false,
		LatencyMs: 2000, RecommendationCount: 2,
		Timestamp: past.Add(time.Minute),
	})
	c.RecordGeneration(&GenerationEvent{Method: MethodRAG, Variant: "rag", Success: true})

	currentHour := time.Now().Truncate(time.Hour)
	snapshots := c.DrainCompletedSnapshots(currentHour)
	require.Len(t, snapshots, 1)
	assert.Equal(t, int64(2), snapshots[0].GenerationCount)
	assert.Equal(t, int64(1), snapshots[0].SuccessCount)
	assert.Equal(t, int64(3000), snapshots[0].LatencySumMs)
	assert.Equal(t, int64(2), snapshots[0].CitationCount)
	assert.Equal(t, int64(6), snapshots[0].RecCount)

	// A second drain has nothing new from completed hours.
	assert.Empty(t, c.DrainCompletedSnapshots(currentHour))
}

func TestPersisterFlush(t *testing.T) {
	driver := teststore.New()
	s := store.New(driver, &profile.Profile{})
	c := NewCollector()

	c.RecordGeneration(&GenerationEvent{
		Method: MethodRAG, Variant: "rag", Success: true,
		LatencyMs: 800, RecommendationCount: 3, CitationRate: 1.0,
		Timestamp: time.Now().Add(-90 * time.Minute),
	})

	p := NewPersister(s, c, PersisterConfig{})
	require.NoError(t, p.Flush(context.Background()))

	snapshots, err := s.ListMetricSnapshots(context.Background(), &store.FindMetricSnapshot{})
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, MethodRAG, snapshots[0].Method)
	assert.Equal(t, int64(1), snapshots[0].GenerationCount)
	assert.Equal(t, int64(3), snapshots[0].CitationCount)
}
