package store

import "context"

// Document type constants. Every document in the knowledge index carries
// exactly one of these.
const (
	DocTypeScenario         = "scenario"
	DocTypeEducation        = "education"
	DocTypePartnerOffer     = "partner_offer"
	DocTypeOperatorDecision = "operator_decision"
	DocTypeStrategy         = "strategy"
	DocTypeFeedbackInsight  = "feedback_insight"
)

// Document represents a knowledge document with its vector embedding.
type Document struct {
	ID        string
	DocType   string
	Content   string
	Metadata  map[string]any // flat map, scalar values only
	Embedding []float32
	CreatedTs int64
	UpdatedTs int64
}

// FindDocument is the find condition for documents.
type FindDocument struct {
	ID       *string
	DocType  *string
	DocTypes []string
	Limit    int
}

// DeleteDocument is the delete condition for documents.
type DeleteDocument struct {
	ID      *string
	DocType *string
}

// DocumentWithDistance represents a vector search result with its raw
// cosine distance (0 is identical, larger is less similar).
type DocumentWithDistance struct {
	Document *Document
	Distance float32
}

// VectorSearchOptions represents the options for vector search.
type VectorSearchOptions struct {
	Vector   []float32 // Query vector
	Limit    int       // Number of results to return, default 10
	DocTypes []string  // Optional, restrict to these document types
}

// TypeCount represents a per-document-type count.
type TypeCount struct {
	DocType string
	Count   int64
}

// UpsertDocument inserts or updates a document by id.
func (s *Store) UpsertDocument(ctx context.Context, doc *Document) (*Document, error) {
	return s.driver.UpsertDocument(ctx, doc)
}

// GetDocument gets a document by id. Returns nil when not found.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	list, err := s.driver.ListDocuments(ctx, &FindDocument{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListDocuments lists documents.
func (s *Store) ListDocuments(ctx context.Context, find *FindDocument) ([]*Document, error) {
	return s.driver.ListDocuments(ctx, find)
}

// DeleteDocuments deletes documents matching the condition.
func (s *Store) DeleteDocuments(ctx context.Context, delete *DeleteDocument) error {
	return s.driver.DeleteDocuments(ctx, delete)
}

// CountDocuments counts documents matching the condition.
func (s *Store) CountDocuments(ctx context.Context, find *FindDocument) (int64, error) {
	return s.driver.CountDocuments(ctx, find)
}

// VectorSearch performs nearest-neighbor search over document embeddings.
func (s *Store) VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*DocumentWithDistance, error) {
	return s.driver.VectorSearch(ctx, opts)
}

// TypeCounts returns document counts grouped by document type.
func (s *Store) TypeCounts(ctx context.Context) ([]*TypeCount, error) {
	return s.driver.TypeCounts(ctx)
}

// MetadataValueCounts returns counts of documents grouped by the given
// metadata key's value, e.g. persona distribution.
func (s *Store) MetadataValueCounts(ctx context.Context, key string) (map[string]int64, error) {
	return s.driver.MetadataValueCounts(ctx, key)
}
