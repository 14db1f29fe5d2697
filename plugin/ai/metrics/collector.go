// Package metrics collects operational and quality events for the
// recommendation engine: generation outcomes, user interactions, and
// operator decisions. Logs are append-only and aggregated on demand.
package metrics

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Generation methods compared by the collector.
const (
	MethodRAG     = "rag"
	MethodCatalog = "catalog"
)

// GenerationEvent records one generation call.
type GenerationEvent struct {
	EventID             string
	UserID              string
	Method              string
	Variant             string
	Success             bool
	LatencyMs           int64
	RecommendationCount int
	CitationRate        float64 // only meaningful for the rag method
	Timestamp           time.Time
}

// InteractionKind enumerates user interactions with a recommendation.
type InteractionKind string

const (
	InteractionView    InteractionKind = "view"
	InteractionClick   InteractionKind = "click"
	InteractionDismiss InteractionKind = "dismiss"
	InteractionRate    InteractionKind = "rate"
	InteractionHelpful InteractionKind = "helpful"
)

// InteractionEvent records one user interaction.
type InteractionEvent struct {
	EventID           string
	UserID            string
	RecommendationUID string
	Kind              InteractionKind
	Rating            float64 // set for rate events
	Timestamp         time.Time
}

// OperatorKind enumerates operator decisions on a recommendation.
type OperatorKind string

const (
	OperatorApprove OperatorKind = "approve"
	OperatorReject  OperatorKind = "reject"
	OperatorEdit    OperatorKind = "edit"
)

// OperatorEvent records one operator decision.
type OperatorEvent struct {
	EventID           string
	OperatorID        string
	RecommendationUID string
	Kind              OperatorKind
	Reason            string
	Timestamp         time.Time
}

// Collector holds the three append-only event logs. It is an explicitly
// constructed, injectable service; every mutation is mutex-guarded since
// all requests in the process share one instance. Events are never
// mutated or reordered after append.
type Collector struct {
	mu           sync.RWMutex
	generations  []*GenerationEvent
	interactions []*InteractionEvent
	operators    []*OperatorEvent

	// Index of the first generation event not yet flushed to storage.
	flushedIdx int
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordGeneration appends a generation event and returns its id.
func (c *Collector) RecordGeneration(event *GenerationEvent) string {
	event.EventID = uuid.NewString()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations = append(c.generations, event)
	return event.EventID
}

// RecordInteraction appends an interaction event and returns its id.
func (c *Collector) RecordInteraction(event *InteractionEvent) string {
	event.EventID = uuid.NewString()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.interactions = append(c.interactions, event)
	return event.EventID
}

// RecordOperatorDecision appends an operator decision event and returns
// its id.
func (c *Collector) RecordOperatorDecision(event *OperatorEvent) string {
	event.EventID = uuid.NewString()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.operators = append(c.operators, event)
	return event.EventID
}

// EventCounts reports the size of each log.
func (c *Collector) EventCounts() (generations, interactions, operators int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.generations), len(c.interactions), len(c.operators)
}
