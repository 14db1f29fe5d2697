package knowledge

import (
	"fmt"

	"github.com/finpilot/advisor/store"
)

// Metadata is the typed view over the six document kinds. The storage
// layer keeps a flat scalar map; this union gives callers exhaustive,
// kind-aware access instead of stringly-typed lookups.
type Metadata interface {
	DocType() string
	// ToMap flattens the typed fields back to the storage wire format.
	ToMap() map[string]any
}

// ScenarioMetadata describes a prior successful user scenario.
type ScenarioMetadata struct {
	Personas     []string
	Category     string
	Outcome      string
	SuccessScore float64
}

func (m *ScenarioMetadata) DocType() string { return store.DocTypeScenario }
func (m *ScenarioMetadata) ToMap() map[string]any {
	return map[string]any{
		"personas":      m.Personas,
		"category":      m.Category,
		"outcome":       m.Outcome,
		"success_score": m.SuccessScore,
	}
}

// EducationMetadata describes educational content.
type EducationMetadata struct {
	Personas   []string
	Category   string
	Topic      string
	Difficulty string
}

func (m *EducationMetadata) DocType() string { return store.DocTypeEducation }
func (m *EducationMetadata) ToMap() map[string]any {
	return map[string]any{
		"personas":   m.Personas,
		"category":   m.Category,
		"topic":      m.Topic,
		"difficulty": m.Difficulty,
	}
}

// PartnerOfferMetadata describes a partner product offer.
type PartnerOfferMetadata struct {
	Personas []string
	Category string
	Partner  string
	Product  string
}

func (m *PartnerOfferMetadata) DocType() string { return store.DocTypePartnerOffer }
func (m *PartnerOfferMetadata) ToMap() map[string]any {
	return map[string]any{
		"personas": m.Personas,
		"category": m.Category,
		"partner":  m.Partner,
		"product":  m.Product,
	}
}

// OperatorDecisionMetadata describes a recorded operator approval,
// rejection or edit with its reason.
type OperatorDecisionMetadata struct {
	Category string
	Decision string
	Reason   string
}

func (m *OperatorDecisionMetadata) DocType() string { return store.DocTypeOperatorDecision }
func (m *OperatorDecisionMetadata) ToMap() map[string]any {
	return map[string]any{
		"category": m.Category,
		"decision": m.Decision,
		"reason":   m.Reason,
	}
}

// StrategyMetadata describes a financial strategy document.
type StrategyMetadata struct {
	Personas  []string
	Category  string
	Situation string
}

func (m *StrategyMetadata) DocType() string { return store.DocTypeStrategy }
func (m *StrategyMetadata) ToMap() map[string]any {
	return map[string]any{
		"personas":  m.Personas,
		"category":  m.Category,
		"situation": m.Situation,
	}
}

// FeedbackInsightMetadata describes an insight distilled from user feedback.
type FeedbackInsightMetadata struct {
	Personas  []string
	Category  string
	Sentiment string
}

func (m *FeedbackInsightMetadata) DocType() string { return store.DocTypeFeedbackInsight }
func (m *FeedbackInsightMetadata) ToMap() map[string]any {
	return map[string]any{
		"personas":  m.Personas,
		"category":  m.Category,
		"sentiment": m.Sentiment,
	}
}

// DecodeMetadata interprets a stored flat map as the typed metadata for
// the given document type. The switch is exhaustive over the six kinds.
func DecodeMetadata(docType string, m map[string]any) (Metadata, error) {
	switch docType {
	case store.DocTypeScenario:
		return &ScenarioMetadata{
			Personas:     stringList(m["personas"]),
			Category:     asString(m["category"]),
			Outcome:      asString(m["outcome"]),
			SuccessScore: asFloat(m["success_score"]),
		}, nil
	case store.DocTypeEducation:
		return &EducationMetadata{
			Personas:   stringList(m["personas"]),
			Category:   asString(m["category"]),
			Topic:      asString(m["topic"]),
			Difficulty: asString(m["difficulty"]),
		}, nil
	case store.DocTypePartnerOffer:
		return &PartnerOfferMetadata{
			Personas: stringList(m["personas"]),
			Category: asString(m["category"]),
			Partner:  asString(m["partner"]),
			Product:  asString(m["product"]),
		}, nil
	case store.DocTypeOperatorDecision:
		return &OperatorDecisionMetadata{
			Category: asString(m["category"]),
			Decision: asString(m["decision"]),
			Reason:   asString(m["reason"]),
		}, nil
	case store.DocTypeStrategy:
		return &StrategyMetadata{
			Personas:  stringList(m["personas"]),
			Category:  asString(m["category"]),
			Situation: asString(m["situation"]),
		}, nil
	case store.DocTypeFeedbackInsight:
		return &FeedbackInsightMetadata{
			Personas:  stringList(m["personas"]),
			Category:  asString(m["category"]),
			Sentiment: asString(m["sentiment"]),
		}, nil
	default:
		return nil, fmt.Errorf("unknown document type: %s", docType)
	}
}

func asString(value any) string {
	s, _ := value.(string)
	return s
}

func asFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
