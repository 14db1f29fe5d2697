package metrics

import (
	"errors"
	"time"

	"github.com/finpilot/advisor/store"
)

// MethodSummary aggregates generation events for one method. Every rate
// guards its denominator against zero.
type MethodSummary struct {
	Method          string  `json:"method"`
	GenerationCount int     `json:"generation_count"`
	SuccessCount    int     `json:"success_count"`
	SuccessRate     float64 `json:"success_rate"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	AvgCitationRate float64 `json:"avg_citation_rate"`
}

// InteractionSummary aggregates user interaction events.
type InteractionSummary struct {
	Views            int     `json:"views"`
	Clicks           int     `json:"clicks"`
	Dismissals       int     `json:"dismissals"`
	Ratings          int     `json:"ratings"`
	HelpfulVotes     int     `json:"helpful_votes"`
	ClickThroughRate float64 `json:"click_through_rate"`
	DismissRate      float64 `json:"dismiss_rate"`
	AvgRating        float64 `json:"avg_rating"`
}

// OperatorSummary aggregates operator decision events.
type OperatorSummary struct {
	Approvals    int     `json:"approvals"`
	Rejections   int     `json:"rejections"`
	Edits        int     `json:"edits"`
	ApprovalRate float64 `json:"approval_rate"`
}

// GenerationSummary aggregates the generation log for one method.
func (c *Collector) GenerationSummary(method string) *MethodSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.summarizeLocked(method)
}

func (c *Collector) summarizeLocked(method string) *MethodSummary {
	summary := &MethodSummary{Method: method}

	var latencySum int64
	var citationSum float64
	for _, event := range c.generations {
		if event.Method != method {
			continue
		}
		summary.GenerationCount++
		if event.Success {
			summary.SuccessCount++
		}
		latencySum += event.LatencyMs
		citationSum += event.CitationRate
	}

	if summary.GenerationCount > 0 {
		n := float64(summary.GenerationCount)
		summary.SuccessRate = float64(summary.SuccessCount) / n
		summary.AvgLatencyMs = float64(latencySum) / n
		summary.AvgCitationRate = citationSum / n
	}
	return summary
}

// Interactions aggregates the interaction log.
func (c *Collector) Interactions() *InteractionSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := &InteractionSummary{}
	var ratingSum float64
	for _, event := range c.interactions {
		switch event.Kind {
		case InteractionView:
			summary.Views++
		case InteractionClick:
			summary.Clicks++
		case InteractionDismiss:
			summary.Dismissals++
		case InteractionRate:
			summary.Ratings++
			ratingSum += event.Rating
		case InteractionHelpful:
			summary.HelpfulVotes++
		}
	}

	if summary.Views > 0 {
		summary.ClickThroughRate = float64(summary.Clicks) / float64(summary.Views)
		summary.DismissRate = float64(summary.Dismissals) / float64(summary.Views)
	}
	if summary.Ratings > 0 {
		summary.AvgRating = ratingSum / float64(summary.Ratings)
	}
	return summary
}

// OperatorDecisions aggregates the operator decision log.
func (c *Collector) OperatorDecisions() *OperatorSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := &OperatorSummary{}
	for _, event := range c.operators {
		switch event.Kind {
		case OperatorApprove:
			summary.Approvals++
		case OperatorReject:
			summary.Rejections++
		case OperatorEdit:
			summary.Edits++
		}
	}

	total := summary.Approvals + summary.Rejections + summary.Edits
	if total > 0 {
		summary.ApprovalRate = float64(summary.Approvals) / float64(total)
	}
	return summary
}

// Method comparison weights. Citation carries the most weight because
// grounding is the point of the retrieval-augmented path; it is only
// countable for that method.
const (
	successWeight  = 30.0
	speedWeight    = 20.0
	citationWeight = 50.0

	tieZone = 10.0
)

// ErrNeedBothMethods is returned when one side has no generation data.
var ErrNeedBothMethods = errors.New("need data from both methods to compare")

// MethodComparison is the scored rag-vs-catalog comparison.
type MethodComparison struct {
	RAG          *MethodSummary `json:"rag"`
	Catalog      *MethodSummary `json:"catalog"`
	RAGScore     float64        `json:"rag_score"`
	CatalogScore float64        `json:"catalog_score"`
	Winner       string         `json:"winner"` // "rag", "catalog" or "tie"
}

// CompareMethods scores the rag and catalog generation logs. Success
// rate is weighted 30, speed 20 and citation rate 50. The faster method
// scores full speed points, the slower a proportional share. A score
// difference under 10 is declared a tie rather than a spurious winner.
func (c *Collector) CompareMethods() (*MethodComparison, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rag := c.summarizeLocked(MethodRAG)
	catalog := c.summarizeLocked(MethodCatalog)
	if rag.GenerationCount == 0 || catalog.GenerationCount == 0 {
		return nil, ErrNeedBothMethods
	}

	ragSpeed, catalogSpeed := speedScores(rag.AvgLatencyMs, catalog.AvgLatencyMs)

	comparison := &MethodComparison{
		RAG:          rag,
		Catalog:      catalog,
		RAGScore:     rag.SuccessRate*successWeight + ragSpeed*speedWeight + rag.AvgCitationRate*citationWeight,
		CatalogScore: catalog.SuccessRate*successWeight + catalogSpeed*speedWeight,
	}

	diff := comparison.RAGScore - comparison.CatalogScore
	switch {
	case diff >= tieZone:
		comparison.Winner = MethodRAG
	case diff <= -tieZone:
		comparison.Winner = MethodCatalog
	default:
		comparison.Winner = "tie"
	}
	return comparison, nil
}

// speedScores normalizes the two average latencies so the faster method
// gets 1.0 and the slower a proportional share.
func speedScores(ragLatency, catalogLatency float64) (ragScore, catalogScore float64) {
	if ragLatency <= 0 && catalogLatency <= 0 {
		return 0, 0
	}
	fastest := ragLatency
	if catalogLatency > 0 && (fastest <= 0 || catalogLatency < fastest) {
		fastest = catalogLatency
	}
	if ragLatency > 0 {
		ragScore = fastest / ragLatency
	}
	if catalogLatency > 0 {
		catalogScore = fastest / catalogLatency
	}
	return ragScore, catalogScore
}

// DrainCompletedSnapshots aggregates unflushed generation events from
// hours fully in the past into hourly upserts and advances the flush
// cursor. The log itself is never mutated.
func (c *Collector) DrainCompletedSnapshots(currentHour time.Time) []*store.UpsertMetricSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	type key struct {
		bucket  time.Time
		method  string
		variant string
	}
	buckets := map[key]*store.UpsertMetricSnapshot{}
	order := []key{}

	idx := c.flushedIdx
	for ; idx < len(c.generations); idx++ {
		event := c.generations[idx]
		bucket := event.Timestamp.Truncate(time.Hour)
		if !bucket.Before(currentHour) {
			break
		}
		k := key{bucket: bucket, method: event.Method, variant: event.Variant}
		snapshot, ok := buckets[k]
		if !ok {
			snapshot = &store.UpsertMetricSnapshot{
				HourBucket: bucket,
				Method:     event.Method,
				Variant:    event.Variant,
			}
			buckets[k] = snapshot
			order = append(order, k)
		}
		snapshot.GenerationCount++
		if event.Success {
			snapshot.SuccessCount++
		}
		snapshot.LatencySumMs += event.LatencyMs
		snapshot.CitationCount += int64(event.CitationRate * float64(event.RecommendationCount))
		snapshot.RecCount += int64(event.RecommendationCount)
	}
	c.flushedIdx = idx

	snapshots := make([]*store.UpsertMetricSnapshot, 0, len(order))
	for _, k := range order {
		snapshots = append(snapshots, buckets[k])
	}
	return snapshots
}
