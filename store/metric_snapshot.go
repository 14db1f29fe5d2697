package store

import (
	"context"
	"time"
)

// MetricSnapshot represents hourly aggregated generation metrics for a
// single retrieval method. Snapshots are flushed periodically from the
// in-memory collector and survive process restarts.
type MetricSnapshot struct {
	ID              int64
	HourBucket      time.Time
	Method          string // "rag" or "catalog"
	Variant         string // experiment variant, empty outside experiments
	GenerationCount int64
	SuccessCount    int64
	LatencySumMs    int64
	CitationCount   int64 // recommendations whose rationale cites retrieved data
	RecCount        int64 // total recommendations produced
}

// UpsertMetricSnapshot specifies the data for upserting a metric snapshot.
// Counters are added to any existing row for the same bucket/method/variant.
type UpsertMetricSnapshot struct {
	HourBucket      time.Time
	Method          string
	Variant         string
	GenerationCount int64
	SuccessCount    int64
	LatencySumMs    int64
	CitationCount   int64
	RecCount        int64
}

// FindMetricSnapshot specifies the conditions for finding metric snapshots.
type FindMetricSnapshot struct {
	Method    *string
	Variant   *string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}

// DeleteMetricSnapshot specifies the conditions for deleting metric snapshots.
type DeleteMetricSnapshot struct {
	BeforeTime *time.Time // Delete records older than this time
}

// UpsertMetricSnapshot inserts or accumulates a metric snapshot.
func (s *Store) UpsertMetricSnapshot(ctx context.Context, upsert *UpsertMetricSnapshot) (*MetricSnapshot, error) {
	return s.driver.UpsertMetricSnapshot(ctx, upsert)
}

// ListMetricSnapshots lists metric snapshots.
func (s *Store) ListMetricSnapshots(ctx context.Context, find *FindMetricSnapshot) ([]*MetricSnapshot, error) {
	return s.driver.ListMetricSnapshots(ctx, find)
}

// DeleteMetricSnapshots deletes metric snapshots matching the condition.
func (s *Store) DeleteMetricSnapshots(ctx context.Context, delete *DeleteMetricSnapshot) error {
	return s.driver.DeleteMetricSnapshots(ctx, delete)
}
