package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/finpilot/advisor/plugin/ai"
	"github.com/finpilot/advisor/store"
)

// Result is a single search hit. Similarity is in (0, 1], derived from
// cosine distance as 1/(1+distance). Rank is 1-based and strictly
// increasing with decreasing similarity.
type Result struct {
	Document   *store.Document
	Similarity float64
	Rank       int
}

// Stats summarizes the index contents.
type Stats struct {
	DocumentCount int64
	TypeCounts    map[string]int64
	PersonaCounts map[string]int64
	Dimensions    int
}

// Index is the vector-indexed knowledge base. It is safe for concurrent
// use: per-request searches never take exclusive access, and write
// batches rely on the store's own concurrency control.
type Index struct {
	store     *store.Store
	embedder  ai.EmbeddingService
	topK      int
	threshold float64
}

// NewIndex creates the knowledge index. Construction fails fast when the
// embedding capability is absent: an index that cannot embed is
// unusable, not degraded.
func NewIndex(s *store.Store, embedder ai.EmbeddingService, defaultTopK int, similarityThreshold float64) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding capability required for knowledge index", ai.ErrNotConfigured)
	}
	if defaultTopK <= 0 {
		defaultTopK = 10
	}
	return &Index{
		store:     s,
		embedder:  embedder,
		topK:      defaultTopK,
		threshold: similarityThreshold,
	}, nil
}

// Add validates and ingests documents. Embeddings are computed in one
// batched call; ids that already exist are replaced. A malformed
// document is rejected individually and the rest of the batch still
// commits. Returns the number of documents written.
func (x *Index) Add(ctx context.Context, docs []*Document) (int, error) {
	valid := make([]*Document, 0, len(docs))
	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			slog.Warn("rejecting malformed document", "error", err)
			continue
		}
		valid = append(valid, doc)
	}
	if len(valid) == 0 {
		return 0, nil
	}

	texts := make([]string, len(valid))
	for i, doc := range valid {
		texts[i] = doc.Content
	}
	vectors, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed batch failed: %w", err)
	}

	now := time.Now().Unix()
	written := 0
	for i, doc := range valid {
		_, err := x.store.UpsertDocument(ctx, &store.Document{
			ID:        doc.ID,
			DocType:   doc.Type,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: vectors[i],
			CreatedTs: now,
			UpdatedTs: now,
		})
		if err != nil {
			return written, fmt.Errorf("%w: %v", ai.ErrRetrieval, err)
		}
		written++
	}

	slog.Debug("documents ingested", "written", written, "rejected", len(docs)-len(valid))
	return written, nil
}

// Search embeds the query, runs nearest-neighbor lookup, applies
// metadata filters and the similarity threshold, and returns at most
// topK results ordered by similarity descending. Results are never
// padded; fewer than topK may come back.
func (x *Index) Search(ctx context.Context, query string, opts ...SearchOption) ([]*Result, error) {
	options := &searchOptions{topK: x.topK}
	for _, opt := range opts {
		opt(options)
	}
	if options.topK <= 0 {
		options.topK = x.topK
	}

	vector, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}

	// Metadata filters are applied after the nearest-neighbor scan, so
	// over-fetch when filters are present to keep topK reachable.
	limit := options.topK
	if len(options.filters) > 0 {
		limit = options.topK * 4
	}

	candidates, err := x.store.VectorSearch(ctx, &store.VectorSearchOptions{
		Vector:   vector,
		Limit:    limit,
		DocTypes: options.docTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrRetrieval, err)
	}

	results := make([]*Result, 0, len(candidates))
	for _, candidate := range candidates {
		if !matchesFilters(candidate.Document.Metadata, options.filters) {
			continue
		}
		similarity := 1.0 / (1.0 + float64(candidate.Distance))
		if similarity < x.threshold {
			continue
		}
		results = append(results, &Result{
			Document:   candidate.Document,
			Similarity: similarity,
		})
	}

	// Candidates arrive ordered by distance; the stable sort preserves
	// scan order for similarity ties.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > options.topK {
		results = results[:options.topK]
	}
	for i, result := range results {
		result.Rank = i + 1
	}

	return results, nil
}

// Get returns a document by id, or nil when absent.
func (x *Index) Get(ctx context.Context, id string) (*store.Document, error) {
	doc, err := x.store.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrRetrieval, err)
	}
	return doc, nil
}

// Update replaces a document's content and metadata and recomputes its
// embedding. The embedding is never left stale.
func (x *Index) Update(ctx context.Context, id string, content string, metadata map[string]any) error {
	existing, err := x.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("document %s not found", id)
	}

	doc := &Document{
		ID:       id,
		Type:     existing.DocType,
		Content:  content,
		Metadata: metadata,
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	vector, err := x.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed updated content failed: %w", err)
	}

	existing.Content = content
	existing.Metadata = metadata
	existing.Embedding = vector
	existing.UpdatedTs = time.Now().Unix()
	if _, err := x.store.UpsertDocument(ctx, existing); err != nil {
		return fmt.Errorf("%w: %v", ai.ErrRetrieval, err)
	}
	return nil
}

// Delete removes documents by id. Missing ids are ignored.
func (x *Index) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		id := id
		if err := x.store.DeleteDocuments(ctx, &store.DeleteDocument{ID: &id}); err != nil {
			return fmt.Errorf("%w: %v", ai.ErrRetrieval, err)
		}
	}
	return nil
}

// Count returns the number of indexed documents.
func (x *Index) Count(ctx context.Context) (int64, error) {
	count, err := x.store.CountDocuments(ctx, &store.FindDocument{})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ai.ErrRetrieval, err)
	}
	return count, nil
}

// Stats returns type and persona histograms plus the embedding
// dimensionality.
func (x *Index) Stats(ctx context.Context) (*Stats, error) {
	typeCounts, err := x.store.TypeCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrRetrieval, err)
	}

	stats := &Stats{
		TypeCounts:    map[string]int64{},
		PersonaCounts: map[string]int64{},
		Dimensions:    x.embedder.Dimensions(),
	}
	for _, tc := range typeCounts {
		stats.TypeCounts[tc.DocType] = tc.Count
		stats.DocumentCount += tc.Count
	}

	// Personas are list-valued, so the histogram is computed in Go over
	// the full document set rather than in SQL.
	docs, err := x.store.ListDocuments(ctx, &store.FindDocument{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrRetrieval, err)
	}
	for _, doc := range docs {
		for _, persona := range stringList(doc.Metadata["personas"]) {
			stats.PersonaCounts[persona]++
		}
	}

	return stats, nil
}

// matchesFilters applies equality and in-set metadata filters. Filtering
// on a key the document lacks yields no match, not an error.
func matchesFilters(metadata map[string]any, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := metadata[key]
		if !ok {
			return false
		}
		if !valueMatches(got, want) {
			return false
		}
	}
	return true
}

func valueMatches(got, want any) bool {
	wantList := stringList(want)
	gotList := stringList(got)

	if len(wantList) > 0 && len(gotList) > 0 {
		for _, w := range wantList {
			for _, g := range gotList {
				if w == g {
					return true
				}
			}
		}
		return false
	}

	// Non-string scalars fall back to direct equality.
	return fmt.Sprint(got) == fmt.Sprint(want)
}
