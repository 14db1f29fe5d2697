package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpilot/advisor/internal/profile"
	"github.com/finpilot/advisor/plugin/ai"
	"github.com/finpilot/advisor/store"
	"github.com/finpilot/advisor/store/teststore"
)

func newTestIndex(t *testing.T) (*Index, *ai.MockEmbeddingService) {
	t.Helper()
	embedder := ai.NewMockEmbeddingService(4)
	s := store.New(teststore.New(), &profile.Profile{})
	index, err := NewIndex(s, embedder, 10, 0.3)
	require.NoError(t, err)
	return index, embedder
}

func TestNewIndexRequiresEmbedder(t *testing.T) {
	s := store.New(teststore.New(), &profile.Profile{})
	_, err := NewIndex(s, nil, 10, 0.3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrNotConfigured)
}

func TestAddAndGetRoundTrip(t *testing.T) {
	index, _ := newTestIndex(t)
	ctx := context.Background()

	doc := &Document{
		ID:      "edu-1",
		Type:    store.DocTypeEducation,
		Content: "How to build an emergency fund",
		Metadata: map[string]any{
			"personas": []string{"LOW_SAVER"},
			"category": "savings",
			"topic":    "emergency_fund",
		},
	}

	written, err := index.Add(ctx, []*Document{doc})
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	got, err := index.Get(ctx, "edu-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, "savings", got.Metadata["category"])
	assert.Equal(t, []string{"LOW_SAVER"}, got.Metadata["personas"])
}

func TestAddRejectsMalformedIndividually(t *testing.T) {
	index, _ := newTestIndex(t)
	ctx := context.Background()

	docs := []*Document{
		{ID: "", Type: store.DocTypeEducation, Content: "no id"},
		{ID: "ok-1", Type: store.DocTypeEducation, Content: "valid document"},
		{ID: "bad-meta", Type: store.DocTypeEducation, Content: "nested", Metadata: map[string]any{
			"nested": map[string]any{"a": 1},
		}},
	}

	written, err := index.Add(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 1, written, "only the valid document should commit")

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAddUpsertsByID(t *testing.T) {
	index, _ := newTestIndex(t)
	ctx := context.Background()

	first := &Document{ID: "doc-1", Type: store.DocTypeStrategy, Content: "original content"}
	second := &Document{ID: "doc-1", Type: store.DocTypeStrategy, Content: "replaced content"}

	_, err := index.Add(ctx, []*Document{first})
	require.NoError(t, err)
	_, err = index.Add(ctx, []*Document{second})
	require.NoError(t, err)

	got, err := index.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "replaced content", got.Content)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSearchSimilarityOrdering(t *testing.T) {
	index, embedder := newTestIndex(t)
	ctx := context.Background()

	embedder.SetVector("credit card utilization tips", []float32{1, 0, 0, 0})
	embedder.SetVector("emergency fund basics", []float32{0, 1, 0, 0})
	embedder.SetVector("reduce credit utilization", []float32{0.95, 0.05, 0, 0})

	_, err := index.Add(ctx, []*Document{
		{ID: "credit", Type: store.DocTypeEducation, Content: "credit card utilization tips"},
		{ID: "fund", Type: store.DocTypeEducation, Content: "emergency fund basics"},
	})
	require.NoError(t, err)

	results, err := index.Search(ctx, "reduce credit utilization")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "credit", results[0].Document.ID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
		assert.Equal(t, i+1, results[i].Rank)
	}
	assert.Equal(t, 1, results[0].Rank)
}

func TestSearchThresholdNeverPads(t *testing.T) {
	embedder := ai.NewMockEmbeddingService(4)
	s := store.New(teststore.New(), &profile.Profile{})
	index, err := NewIndex(s, embedder, 10, 0.9)
	require.NoError(t, err)
	ctx := context.Background()

	embedder.SetVector("query", []float32{1, 0, 0, 0})
	embedder.SetVector("close", []float32{1, 0, 0, 0})
	embedder.SetVector("far", []float32{0, 0, 1, 0})

	_, err = index.Add(ctx, []*Document{
		{ID: "close", Type: store.DocTypeEducation, Content: "close"},
		{ID: "far", Type: store.DocTypeEducation, Content: "far"},
	})
	require.NoError(t, err)

	results, err := index.Search(ctx, "query", WithTopK(5))
	require.NoError(t, err)
	require.Len(t, results, 1, "results below the threshold must be dropped, never padded")
	assert.Equal(t, "close", results[0].Document.ID)
	assert.GreaterOrEqual(t, results[0].Similarity, 0.9)
}

func TestSearchMetadataFilters(t *testing.T) {
	index, embedder := newTestIndex(t)
	ctx := context.Background()

	embedder.SetVector("q", []float32{1, 0, 0, 0})
	embedder.SetVector("a", []float32{1, 0, 0, 0})
	embedder.SetVector("b", []float32{0.9, 0.1, 0, 0})

	_, err := index.Add(ctx, []*Document{
		{ID: "a", Type: store.DocTypeEducation, Content: "a", Metadata: map[string]any{
			"category": "credit",
			"personas": []string{"HIGH_UTILIZATION"},
		}},
		{ID: "b", Type: store.DocTypeEducation, Content: "b", Metadata: map[string]any{
			"category": "savings",
			"personas": []string{"LOW_SAVER"},
		}},
	})
	require.NoError(t, err)

	t.Run("Equality", func(t *testing.T) {
		results, err := index.Search(ctx, "q", WithFilter("category", "savings"))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "b", results[0].Document.ID)
	})

	t.Run("InSet", func(t *testing.T) {
		results, err := index.Search(ctx, "q", WithFilter("personas", []string{"HIGH_UTILIZATION", "OVERSPENDER"}))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "a", results[0].Document.ID)
	})

	t.Run("UnknownKeyYieldsZeroMatches", func(t *testing.T) {
		results, err := index.Search(ctx, "q", WithFilter("no_such_key", "x"))
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestSearchTypeFilter(t *testing.T) {
	index, embedder := newTestIndex(t)
	ctx := context.Background()

	embedder.SetVector("q", []float32{1, 0, 0, 0})
	embedder.SetVector("s", []float32{1, 0, 0, 0})
	embedder.SetVector("e", []float32{0.9, 0.1, 0, 0})

	_, err := index.Add(ctx, []*Document{
		{ID: "s", Type: store.DocTypeScenario, Content: "s"},
		{ID: "e", Type: store.DocTypeEducation, Content: "e"},
	})
	require.NoError(t, err)

	results, err := index.Search(ctx, "q", WithTypeFilter(store.DocTypeScenario))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s", results[0].Document.ID)
}

func TestUpdateRecomputesEmbedding(t *testing.T) {
	index, embedder := newTestIndex(t)
	ctx := context.Background()

	embedder.SetVector("old text", []float32{1, 0, 0, 0})
	embedder.SetVector("new text", []float32{0, 1, 0, 0})

	_, err := index.Add(ctx, []*Document{{ID: "doc", Type: store.DocTypeStrategy, Content: "old text"}})
	require.NoError(t, err)

	err = index.Update(ctx, "doc", "new text", map[string]any{"category": "credit"})
	require.NoError(t, err)

	got, err := index.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "new text", got.Content)
	assert.Equal(t, []float32{0, 1, 0, 0}, got.Embedding)
}

func TestDeleteAndStats(t *testing.T) {
	index, _ := newTestIndex(t)
	ctx := context.Background()

	_, err := index.Add(ctx, []*Document{
		{ID: "s1", Type: store.DocTypeScenario, Content: "s1", Metadata: map[string]any{"personas": []string{"A"}}},
		{ID: "s2", Type: store.DocTypeScenario, Content: "s2", Metadata: map[string]any{"personas": []string{"A", "B"}}},
		{ID: "e1", Type: store.DocTypeEducation, Content: "e1"},
	})
	require.NoError(t, err)

	stats, err := index.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.DocumentCount)
	assert.Equal(t, int64(2), stats.TypeCounts[store.DocTypeScenario])
	assert.Equal(t, int64(2), stats.PersonaCounts["A"])
	assert.Equal(t, int64(1), stats.PersonaCounts["B"])
	assert.Equal(t, 4, stats.Dimensions)

	err = index.Delete(ctx, []string{"s1", "missing"})
	require.NoError(t, err)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestDecodeMetadataExhaustive(t *testing.T) {
	meta, err := DecodeMetadata(store.DocTypeScenario, map[string]any{
		"personas":      []string{"HIGH_UTILIZATION"},
		"category":      "credit",
		"outcome":       "utilization reduced",
		"success_score": 0.8,
	})
	require.NoError(t, err)

	scenario, ok := meta.(*ScenarioMetadata)
	require.True(t, ok)
	assert.Equal(t, "credit", scenario.Category)
	assert.Equal(t, 0.8, scenario.SuccessScore)
	assert.Equal(t, store.DocTypeScenario, scenario.DocType())

	_, err = DecodeMetadata("bogus", nil)
	assert.Error(t, err)
}
