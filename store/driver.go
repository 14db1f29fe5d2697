package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// Document-related methods.
	UpsertDocument(ctx context.Context, doc *Document) (*Document, error)
	ListDocuments(ctx context.Context, find *FindDocument) ([]*Document, error)
	DeleteDocuments(ctx context.Context, delete *DeleteDocument) error
	CountDocuments(ctx context.Context, find *FindDocument) (int64, error)
	VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*DocumentWithDistance, error)
	TypeCounts(ctx context.Context) ([]*TypeCount, error)
	MetadataValueCounts(ctx context.Context, key string) (map[string]int64, error)

	// Metric-snapshot-related methods.
	UpsertMetricSnapshot(ctx context.Context, upsert *UpsertMetricSnapshot) (*MetricSnapshot, error)
	ListMetricSnapshots(ctx context.Context, find *FindMetricSnapshot) ([]*MetricSnapshot, error)
	DeleteMetricSnapshots(ctx context.Context, delete *DeleteMetricSnapshot) error
}
