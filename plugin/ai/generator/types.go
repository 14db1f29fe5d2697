// Package generator assembles prompts from retrieved context and a user
// profile, invokes the generation capability, and defensively parses the
// structured output into recommendations.
package generator

import "github.com/finpilot/advisor/plugin/ai/queryengine"

// Request describes one generation call.
type Request struct {
	UserID      string
	Personas    []string
	Signals30d  queryengine.Signals
	Signals180d queryengine.Signals

	// Requested recommendation counts per type. Zero means the default.
	EducationCount int
	OfferCount     int
}

// Recommendation is one generated recommendation.
type Recommendation struct {
	UID            string `json:"uid"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	Rationale      string `json:"rationale"`
	Priority       string `json:"priority"`
	ExpectedImpact string `json:"expected_impact"`
	Category       string `json:"category"`
}

// ContextUsed summarizes what grounded the generation.
type ContextUsed struct {
	Query         string `json:"query"`
	DocCount      int    `json:"doc_count"`
	ScenarioCount int    `json:"scenario_count"`
}

// Result is the outcome of a generation call. Partial success is
// allowed: education may succeed while offers fail.
type Result struct {
	Recommendations  []*Recommendation `json:"recommendations"`
	ContextUsed      ContextUsed       `json:"context_used"`
	GenerationTimeMs int64             `json:"generation_time_ms"`
	Success          bool              `json:"success"`
	Error            string            `json:"error,omitempty"`
}
