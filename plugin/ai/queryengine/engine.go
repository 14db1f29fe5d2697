package queryengine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/finpilot/advisor/plugin/ai/cache"
	"github.com/finpilot/advisor/plugin/ai/knowledge"
	"github.com/finpilot/advisor/store"
)

// Signal thresholds that qualify a category clause. Fixed so identical
// profiles always produce identical query text.
const (
	utilizationThreshold       = 0.30
	subscriptionCountThreshold = 3
	emergencyFundMonthsFloor   = 1.0
	irregularIncomeFrequency   = "irregular"
)

// ContextDocument is one retrieved document with its similarity and a
// 1-based rank.
type ContextDocument struct {
	ID         string
	Type       string
	Content    string
	Metadata   map[string]any
	Similarity float64
	Rank       int
}

// ContextBundle is the result of a context retrieval.
type ContextBundle struct {
	Query          string
	RetrievedCount int
	Documents      []*ContextDocument
}

// Engine builds queries from profiles and retrieves context bundles.
type Engine struct {
	index *knowledge.Index
	cache *cache.LRUCache // nil when caching is disabled
}

// NewEngine creates a query engine. Pass a nil cache to disable result
// caching.
func NewEngine(index *knowledge.Index, resultCache *cache.LRUCache) *Engine {
	return &Engine{
		index: index,
		cache: resultCache,
	}
}

// GenerateQuery deterministically walks the fixed category order —
// credit, subscriptions, savings, income — appending a clause only when
// a signal crosses its threshold. When no clause qualifies it falls back
// to a generic persona-only query.
func (e *Engine) GenerateQuery(personas []string, signals30, signals180 Signals) string {
	clauses := []string{}

	if utilization, ok := floatSignal(signals30, signals180, "credit", "avg_utilization"); ok && utilization > utilizationThreshold {
		clauses = append(clauses, fmt.Sprintf("reducing credit card utilization currently at %.0f%%", utilization*100))
	}
	if count, ok := floatSignal(signals30, signals180, "subscriptions", "subscription_count"); ok && count >= subscriptionCountThreshold {
		clauses = append(clauses, fmt.Sprintf("auditing %.0f recurring subscriptions to cut monthly spend", count))
	}
	if months, ok := floatSignal(signals30, signals180, "savings", "emergency_fund_coverage_months"); ok && months < emergencyFundMonthsFloor {
		clauses = append(clauses, "building an emergency fund from less than one month of coverage")
	}
	if frequency, ok := stringSignal(signals30, signals180, "income", "frequency"); ok && frequency == irregularIncomeFrequency {
		clauses = append(clauses, "budgeting strategies for irregular income")
	}

	if len(clauses) == 0 {
		if len(personas) == 0 {
			return "general personal finance guidance"
		}
		return "financial guidance for " + strings.Join(personas, ", ")
	}

	query := strings.Join(clauses, "; ")
	if len(personas) > 0 {
		query = query + " for " + strings.Join(personas, ", ")
	}
	return query
}

// RetrieveContext runs a single search and wraps it into a bundle.
func (e *Engine) RetrieveContext(ctx context.Context, query string, topK int, docTypes ...string) (*ContextBundle, error) {
	cacheKey := contextCacheKey(query, topK, docTypes)
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			return cached.(*ContextBundle), nil
		}
	}

	opts := []knowledge.SearchOption{knowledge.WithTopK(topK)}
	if len(docTypes) > 0 {
		opts = append(opts, knowledge.WithTypeFilter(docTypes...))
	}
	results, err := e.index.Search(ctx, query, opts...)
	if err != nil {
		return nil, err
	}

	bundle := &ContextBundle{
		Query:          query,
		RetrievedCount: len(results),
		Documents:      toContextDocuments(results),
	}
	if e.cache != nil {
		e.cache.Set(cacheKey, bundle, 5*time.Minute)
	}
	return bundle, nil
}

// RetrieveMultiContext runs each query, merges the results, deduplicates
// by document id keeping the first occurrence, re-sorts by similarity
// descending and renumbers ranks 1..N. The result never exceeds the sum
// of the per-query topK.
func (e *Engine) RetrieveMultiContext(ctx context.Context, queries []string, topKPerQuery int) (*ContextBundle, error) {
	seen := map[string]bool{}
	merged := []*ContextDocument{}

	for _, query := range queries {
		bundle, err := e.RetrieveContext(ctx, query, topKPerQuery)
		if err != nil {
			return nil, err
		}
		for _, doc := range bundle.Documents {
			if seen[doc.ID] {
				continue
			}
			seen[doc.ID] = true
			merged = append(merged, doc)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})
	renumbered := make([]*ContextDocument, len(merged))
	for i, doc := range merged {
		copied := *doc
		copied.Rank = i + 1
		renumbered[i] = &copied
	}

	return &ContextBundle{
		Query:          strings.Join(queries, " | "),
		RetrievedCount: len(renumbered),
		Documents:      renumbered,
	}, nil
}

// RetrieveSimilarScenarios narrows the query to a similar-case template
// and restricts retrieval to scenario documents.
func (e *Engine) RetrieveSimilarScenarios(ctx context.Context, personas []string, signals30, signals180 Signals, topK int) (*ContextBundle, error) {
	query := "similar case: " + e.GenerateQuery(personas, signals30, signals180)
	return e.RetrieveContext(ctx, query, topK, store.DocTypeScenario)
}

// categoryQueries maps recommendation categories to canned sub-query
// text for education lookups.
var categoryQueries = map[string]string{
	"credit":        "managing credit card debt and utilization",
	"subscriptions": "reviewing and cancelling recurring subscriptions",
	"savings":       "saving strategies and emergency funds",
	"income":        "income smoothing and irregular income budgeting",
	"spending":      "controlling discretionary spending",
}

// RetrieveByCategory looks up the canned query for a category and
// delegates to search over education documents. Unknown categories fall
// back to the category name itself.
func (e *Engine) RetrieveByCategory(ctx context.Context, category string, topK int) (*ContextBundle, error) {
	query, ok := categoryQueries[category]
	if !ok {
		query = category
	}
	return e.RetrieveContext(ctx, query, topK, store.DocTypeEducation)
}

// situationQueries maps situation flags to canned strategy queries.
var situationQueries = map[string]string{
	"high_utilization":  "strategies for paying down revolving credit",
	"low_savings":       "strategies for building savings with limited surplus",
	"irregular_income":  "strategies for budgeting on irregular income",
	"overspending":      "strategies for reducing discretionary overspending",
	"subscription_load": "strategies for trimming recurring subscription costs",
}

// RelevantStrategies retrieves strategy documents for a situation flag.
func (e *Engine) RelevantStrategies(ctx context.Context, situation string, topK int) (*ContextBundle, error) {
	query, ok := situationQueries[situation]
	if !ok {
		query = "strategies for " + situation
	}
	return e.RetrieveContext(ctx, query, topK, store.DocTypeStrategy)
}

func toContextDocuments(results []*knowledge.Result) []*ContextDocument {
	docs := make([]*ContextDocument, len(results))
	for i, result := range results {
		docs[i] = &ContextDocument{
			ID:         result.Document.ID,
			Type:       result.Document.DocType,
			Content:    result.Document.Content,
			Metadata:   result.Document.Metadata,
			Similarity: result.Similarity,
			Rank:       result.Rank,
		}
	}
	return docs
}

func contextCacheKey(query string, topK int, docTypes []string) string {
	return fmt.Sprintf("context:%s:%d:%s", query, topK, strings.Join(docTypes, ","))
}
