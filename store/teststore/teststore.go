// Package teststore provides an in-memory store.Driver for tests.
// Vector search computes exact cosine distance over the stored
// embeddings, matching the ordering semantics of the pgvector driver.
package teststore

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"sync"

	"github.com/finpilot/advisor/store"
)

type Driver struct {
	mu        sync.RWMutex
	documents map[string]*store.Document
	order     []string // insertion order, for deterministic scans
	snapshots []*store.MetricSnapshot
	nextID    int64
}

func New() *Driver {
	return &Driver{
		documents: map[string]*store.Document{},
	}
}

func (d *Driver) GetDB() *sql.DB { return nil }
func (d *Driver) Close() error   { return nil }

func (d *Driver) IsInitialized(ctx context.Context) (bool, error) { return true, nil }
func (d *Driver) Migrate(ctx context.Context) error               { return nil }

func (d *Driver) UpsertDocument(ctx context.Context, doc *store.Document) (*store.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.documents[doc.ID]; !ok {
		d.order = append(d.order, doc.ID)
	}
	copied := *doc
	d.documents[doc.ID] = &copied
	return doc, nil
}

func (d *Driver) ListDocuments(ctx context.Context, find *store.FindDocument) ([]*store.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	list := []*store.Document{}
	for _, id := range d.order {
		doc := d.documents[id]
		if find.ID != nil && doc.ID != *find.ID {
			continue
		}
		if find.DocType != nil && doc.DocType != *find.DocType {
			continue
		}
		if len(find.DocTypes) > 0 && !contains(find.DocTypes, doc.DocType) {
			continue
		}
		copied := *doc
		list = append(list, &copied)
		if find.Limit > 0 && len(list) >= find.Limit {
			break
		}
	}
	return list, nil
}

func (d *Driver) DeleteDocuments(ctx context.Context, cond *store.DeleteDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	remaining := d.order[:0]
	for _, id := range d.order {
		doc := d.documents[id]
		matched := true
		if cond.ID != nil && doc.ID != *cond.ID {
			matched = false
		}
		if cond.DocType != nil && doc.DocType != *cond.DocType {
			matched = false
		}
		if matched {
			delete(d.documents, id)
		} else {
			remaining = append(remaining, id)
		}
	}
	d.order = remaining
	return nil
}

func (d *Driver) CountDocuments(ctx context.Context, find *store.FindDocument) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var count int64
	for _, doc := range d.documents {
		if find.DocType != nil && doc.DocType != *find.DocType {
			continue
		}
		count++
	}
	return count, nil
}

func (d *Driver) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.DocumentWithDistance, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	results := []*store.DocumentWithDistance{}
	for _, id := range d.order {
		doc := d.documents[id]
		if len(doc.Embedding) == 0 {
			continue
		}
		if len(opts.DocTypes) > 0 && !contains(opts.DocTypes, doc.DocType) {
			continue
		}
		copied := *doc
		results = append(results, &store.DocumentWithDistance{
			Document: &copied,
			Distance: cosineDistance(opts.Vector, doc.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (d *Driver) TypeCounts(ctx context.Context) ([]*store.TypeCount, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	counts := map[string]int64{}
	for _, doc := range d.documents {
		counts[doc.DocType]++
	}

	types := make([]string, 0, len(counts))
	for docType := range counts {
		types = append(types, docType)
	}
	sort.Strings(types)

	list := make([]*store.TypeCount, 0, len(types))
	for _, docType := range types {
		list = append(list, &store.TypeCount{DocType: docType, Count: counts[docType]})
	}
	return list, nil
}

func (d *Driver) MetadataValueCounts(ctx context.Context, key string) (map[string]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	counts := map[string]int64{}
	for _, doc := range d.documents {
		if value, ok := doc.Metadata[key]; ok {
			if s, ok := value.(string); ok {
				counts[s]++
			}
		}
	}
	return counts, nil
}

func (d *Driver) UpsertMetricSnapshot(ctx context.Context, upsert *store.UpsertMetricSnapshot) (*store.MetricSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, snapshot := range d.snapshots {
		if snapshot.HourBucket.Equal(upsert.HourBucket) && snapshot.Method == upsert.Method && snapshot.Variant == upsert.Variant {
			snapshot.GenerationCount += upsert.GenerationCount
			snapshot.SuccessCount += upsert.SuccessCount
			snapshot.LatencySumMs += upsert.LatencySumMs
			snapshot.CitationCount += upsert.CitationCount
			snapshot.RecCount += upsert.RecCount
			return snapshot, nil
		}
	}

	d.nextID++
	snapshot := &store.MetricSnapshot{
		ID:              d.nextID,
		HourBucket:      upsert.HourBucket,
		Method:          upsert.Method,
		Variant:         upsert.Variant,
		GenerationCount: upsert.GenerationCount,
		SuccessCount:    upsert.SuccessCount,
		LatencySumMs:    upsert.LatencySumMs,
		CitationCount:   upsert.CitationCount,
		RecCount:        upsert.RecCount,
	}
	d.snapshots = append(d.snapshots, snapshot)
	return snapshot, nil
}

func (d *Driver) ListMetricSnapshots(ctx context.Context, find *store.FindMetricSnapshot) ([]*store.MetricSnapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	list := []*store.MetricSnapshot{}
	for _, snapshot := range d.snapshots {
		if find.Method != nil && snapshot.Method != *find.Method {
			continue
		}
		if find.Variant != nil && snapshot.Variant != *find.Variant {
			continue
		}
		if find.StartTime != nil && snapshot.HourBucket.Before(*find.StartTime) {
			continue
		}
		if find.EndTime != nil && !snapshot.HourBucket.Before(*find.EndTime) {
			continue
		}
		copied := *snapshot
		list = append(list, &copied)
		if find.Limit > 0 && len(list) >= find.Limit {
			break
		}
	}
	return list, nil
}

func (d *Driver) DeleteMetricSnapshots(ctx context.Context, delete *store.DeleteMetricSnapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	remaining := d.snapshots[:0]
	for _, snapshot := range d.snapshots {
		if delete.BeforeTime != nil && snapshot.HourBucket.Before(*delete.BeforeTime) {
			continue
		}
		remaining = append(remaining, snapshot)
	}
	d.snapshots = remaining
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func cosineDistance(a, b []float32) float32 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)))
}
