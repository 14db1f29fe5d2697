// Package knowledge implements the vector-indexed knowledge base:
// document ingestion with batched embedding, nearest-neighbor search with
// metadata filtering, and index statistics.
package knowledge

import (
	"fmt"

	"github.com/finpilot/advisor/plugin/ai"
	"github.com/finpilot/advisor/store"
)

// Document is the ingestion-side view of a knowledge document. Metadata
// must be a flat map of scalars or scalar lists; nested objects are
// rejected at ingest.
type Document struct {
	ID       string
	Type     string
	Content  string
	Metadata map[string]any
}

var knownTypes = map[string]bool{
	store.DocTypeScenario:         true,
	store.DocTypeEducation:        true,
	store.DocTypePartnerOffer:     true,
	store.DocTypeOperatorDecision: true,
	store.DocTypeStrategy:         true,
	store.DocTypeFeedbackInsight:  true,
}

// Validate checks the document is well-formed for ingestion.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: missing id", ai.ErrInvalidDocument)
	}
	if d.Content == "" {
		return fmt.Errorf("%w: missing content (id=%s)", ai.ErrInvalidDocument, d.ID)
	}
	if !knownTypes[d.Type] {
		return fmt.Errorf("%w: unknown document type %q (id=%s)", ai.ErrInvalidDocument, d.Type, d.ID)
	}
	for key, value := range d.Metadata {
		if !isScalarOrScalarList(value) {
			return fmt.Errorf("%w: metadata key %q is not a scalar or scalar list (id=%s)", ai.ErrInvalidDocument, key, d.ID)
		}
	}
	return nil
}

func isScalarOrScalarList(value any) bool {
	switch v := value.(type) {
	case nil, string, bool, int, int32, int64, float32, float64:
		return true
	case []string:
		return true
	case []any:
		for _, item := range v {
			switch item.(type) {
			case string, bool, int, int32, int64, float32, float64:
			default:
				return false
			}
		}
		return true
	default:
		return false
	}
}

// stringList normalizes a metadata value into a string slice. Scalars
// become a single-element list; non-string values are skipped.
func stringList(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		list := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				list = append(list, s)
			}
		}
		return list
	default:
		return nil
	}
}
