package generator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/finpilot/advisor/plugin/ai"
	"github.com/finpilot/advisor/plugin/ai/queryengine"
	"github.com/finpilot/advisor/store"
)

const (
	defaultEducationCount = 3
	defaultOfferCount     = 2

	contextTopK  = 10
	scenarioTopK = 3

	// Generations slower than this are flagged in the logs.
	latencyAlertThreshold = 7 * time.Second
)

// Orchestrator runs the retrieval-augmented generation pipeline.
type Orchestrator struct {
	engine           *queryengine.Engine
	llm              ai.LLMService // nil when the generation capability is disabled
	maxContextLength int
}

// NewOrchestrator creates a generation orchestrator. A nil LLM service
// is allowed: Generate then returns a structured failure so the caller
// can fall back to the catalog path.
func NewOrchestrator(engine *queryengine.Engine, llm ai.LLMService, maxContextLength int) *Orchestrator {
	if maxContextLength <= 0 {
		maxContextLength = 4000
	}
	return &Orchestrator{
		engine:           engine,
		llm:              llm,
		maxContextLength: maxContextLength,
	}
}

// Generate runs the pipeline: build query, retrieve context and similar
// scenarios, build the education and partner-offer prompts, invoke the
// generation capability once per prompt, and defensively parse each
// response. The two prompt generations are independent and run
// concurrently. A sub-result failure is recovered locally; retrieval or
// configuration failures abort with success=false. Catalog substitution
// is the caller's responsibility.
func (o *Orchestrator) Generate(ctx context.Context, req *Request) *Result {
	start := time.Now()

	if o.llm == nil {
		return &Result{
			Recommendations: []*Recommendation{},
			Success:         false,
			Error:           "generation capability not configured",
		}
	}

	query := o.engine.GenerateQuery(req.Personas, req.Signals30d, req.Signals180d)

	contextBundle, err := o.engine.RetrieveContext(ctx, query, contextTopK)
	if err != nil {
		return o.failed(ctx, start, query, err)
	}
	scenarios, err := o.engine.RetrieveSimilarScenarios(ctx, req.Personas, req.Signals30d, req.Signals180d, scenarioTopK)
	if err != nil {
		return o.failed(ctx, start, query, err)
	}

	educationCount := req.EducationCount
	if educationCount <= 0 {
		educationCount = defaultEducationCount
	}
	offerCount := req.OfferCount
	if offerCount <= 0 {
		offerCount = defaultOfferCount
	}

	var education, offers []*Recommendation
	var educationErr, offersErr error

	// The two prompts are mutually independent; run them concurrently
	// and join before returning. Sub-errors are recovered locally, so
	// the group never propagates them.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		education, educationErr = o.generateOne(gctx, educationSystemPrompt,
			buildUserPrompt(req, contextBundle, scenarios, educationCount, o.maxContextLength), "education")
		return nil
	})
	g.Go(func() error {
		offers, offersErr = o.generateOne(gctx, offerSystemPrompt,
			buildUserPrompt(req, contextBundle, scenarios, offerCount, o.maxContextLength), "offers")
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		return &Result{
			Recommendations:  []*Recommendation{},
			ContextUsed:      contextUsed(query, contextBundle, scenarios),
			GenerationTimeMs: time.Since(start).Milliseconds(),
			Success:          false,
			Error:            "cancelled",
		}
	}

	result := &Result{
		Recommendations:  append(education, offers...),
		ContextUsed:      contextUsed(query, contextBundle, scenarios),
		GenerationTimeMs: time.Since(start).Milliseconds(),
		Success:          true,
	}

	subErrors := []string{}
	if educationErr != nil {
		subErrors = append(subErrors, "education: "+educationErr.Error())
	}
	if offersErr != nil {
		subErrors = append(subErrors, "offers: "+offersErr.Error())
	}
	if len(subErrors) > 0 {
		result.Error = strings.Join(subErrors, "; ")
	}
	if educationErr != nil && offersErr != nil {
		result.Success = false
	}

	if elapsed := time.Since(start); elapsed > latencyAlertThreshold {
		slog.Warn("slow generation",
			"user_id", req.UserID,
			"elapsed_ms", elapsed.Milliseconds())
	}

	return result
}

// generateOne invokes the capability for a single prompt and parses the
// response. A capability error yields an empty list plus the error; no
// retries are performed.
func (o *Orchestrator) generateOne(ctx context.Context, systemPrompt, userPrompt, kind string) ([]*Recommendation, error) {
	response, err := o.llm.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		slog.Warn("generation sub-result failed", "kind", kind, "error", err)
		return []*Recommendation{}, err
	}

	recommendations := ParseRecommendations(response)
	if kind == "education" {
		for _, rec := range recommendations {
			if rec.Category == "" {
				rec.Category = "education"
			}
		}
	} else {
		for _, rec := range recommendations {
			if rec.Category == "" {
				rec.Category = "partner_offer"
			}
		}
	}
	return recommendations, nil
}

// RegenerateRecommendation re-generates a single recommendation for one
// category: same prompt-build, invoke and defensive-parse contract
// specialized to one item.
func (o *Orchestrator) RegenerateRecommendation(ctx context.Context, req *Request, category string) (*Recommendation, error) {
	if o.llm == nil {
		return nil, ai.ErrNotConfigured
	}

	bundle, err := o.engine.RetrieveByCategory(ctx, category, scenarioTopK)
	if err != nil {
		return nil, err
	}

	userPrompt := buildUserPrompt(req, bundle, nil, 1, o.maxContextLength)
	response, err := o.llm.Complete(ctx, educationSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	recommendations := ParseRecommendations(response)
	if len(recommendations) == 0 {
		return nil, ai.ErrGeneration
	}
	rec := recommendations[0]
	if rec.Category == "" {
		rec.Category = category
	}
	return rec, nil
}

// EnhanceRationale rewrites a recommendation's rationale so it cites the
// user's concrete signal values. On any failure the original rationale
// is returned unchanged.
func (o *Orchestrator) EnhanceRationale(ctx context.Context, rec *Recommendation, signals queryengine.Signals) string {
	if o.llm == nil || rec == nil {
		if rec == nil {
			return ""
		}
		return rec.Rationale
	}

	var b strings.Builder
	b.WriteString("Recommendation: " + rec.Title + "\n")
	b.WriteString("Current rationale: " + rec.Rationale + "\n")
	b.WriteString("Signals:\n" + summarizeSignals(signals))

	response, err := o.llm.Complete(ctx, rationaleSystemPrompt, b.String())
	if err != nil || strings.TrimSpace(response) == "" {
		return rec.Rationale
	}
	return strings.TrimSpace(response)
}

func (o *Orchestrator) failed(ctx context.Context, start time.Time, query string, err error) *Result {
	message := err.Error()
	if ctx.Err() != nil {
		message = "cancelled"
	}
	return &Result{
		Recommendations:  []*Recommendation{},
		ContextUsed:      ContextUsed{Query: query},
		GenerationTimeMs: time.Since(start).Milliseconds(),
		Success:          false,
		Error:            message,
	}
}

func contextUsed(query string, contextBundle, scenarios *queryengine.ContextBundle) ContextUsed {
	used := ContextUsed{Query: query}
	if contextBundle != nil {
		used.DocCount = contextBundle.RetrievedCount
	}
	if scenarios != nil {
		used.ScenarioCount = scenarios.RetrievedCount
	}
	return used
}

// ScenarioDocTypes lists the document types consulted by the pipeline,
// exported for callers seeding or rebuilding the index.
var ScenarioDocTypes = []string{
	store.DocTypeScenario,
	store.DocTypeEducation,
	store.DocTypePartnerOffer,
	store.DocTypeStrategy,
}
