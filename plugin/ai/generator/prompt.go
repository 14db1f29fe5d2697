package generator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/finpilot/advisor/plugin/ai/knowledge"
	"github.com/finpilot/advisor/plugin/ai/queryengine"
)

const educationSystemPrompt = `You are a financial guidance assistant. Using the retrieved knowledge and the user's financial signals, produce educational recommendations. Respond with a JSON array only; each element must have: title, content, rationale, priority (high|medium|low), expected_impact, category. The rationale must cite concrete numbers from the user's signals.`

const offerSystemPrompt = `You are a financial guidance assistant. Using the retrieved partner offers and the user's financial signals, select relevant partner product offers. Respond with a JSON array only; each element must have: title, content, rationale, priority (high|medium|low), expected_impact, category. Only include offers genuinely relevant to the user's situation.`

const rationaleSystemPrompt = `You are a financial guidance assistant. Rewrite the given recommendation rationale so it cites concrete numbers from the user's financial signals. Respond with the rationale text only.`

// buildUserPrompt renders the retrieved context, similar scenarios and
// signal summary into a single user prompt. Context is truncated to
// maxContextLength characters.
func buildUserPrompt(req *Request, contextBundle, scenarios *queryengine.ContextBundle, count int, maxContextLength int) string {
	var b strings.Builder

	b.WriteString("User personas: ")
	if len(req.Personas) == 0 {
		b.WriteString("(none)")
	} else {
		b.WriteString(strings.Join(req.Personas, ", "))
	}
	b.WriteString("\n\nFinancial signals (30d):\n")
	b.WriteString(summarizeSignals(req.Signals30d))
	b.WriteString("\nFinancial signals (180d):\n")
	b.WriteString(summarizeSignals(req.Signals180d))

	b.WriteString("\nRetrieved knowledge:\n")
	b.WriteString(renderContext(contextBundle, maxContextLength))

	if scenarios != nil && len(scenarios.Documents) > 0 {
		b.WriteString("\nSimilar past cases:\n")
		b.WriteString(renderContext(scenarios, maxContextLength/2))
	}

	fmt.Fprintf(&b, "\nProduce exactly %d recommendations as a JSON array.\n", count)
	return b.String()
}

func renderContext(bundle *queryengine.ContextBundle, maxLength int) string {
	if bundle == nil || len(bundle.Documents) == 0 {
		return "(no relevant documents found)\n"
	}

	var b strings.Builder
	for _, doc := range bundle.Documents {
		entry := fmt.Sprintf("[%d] (%s, similarity %.2f) %s%s\n", doc.Rank, doc.Type, doc.Similarity, doc.Content, metadataNote(doc))
		if maxLength > 0 && b.Len()+len(entry) > maxLength {
			break
		}
		b.WriteString(entry)
	}
	if b.Len() == 0 {
		return "(no relevant documents found)\n"
	}
	return b.String()
}

// metadataNote appends the kind-specific detail that matters in a
// prompt: a scenario's outcome, an offer's partner product, a
// strategy's situation.
func metadataNote(doc *queryengine.ContextDocument) string {
	meta, err := knowledge.DecodeMetadata(doc.Type, doc.Metadata)
	if err != nil {
		return ""
	}
	switch m := meta.(type) {
	case *knowledge.ScenarioMetadata:
		if m.Outcome != "" {
			return fmt.Sprintf(" (outcome: %s)", m.Outcome)
		}
	case *knowledge.PartnerOfferMetadata:
		if m.Partner != "" && m.Product != "" {
			return fmt.Sprintf(" (offer: %s %s)", m.Partner, m.Product)
		}
	case *knowledge.StrategyMetadata:
		if m.Situation != "" {
			return fmt.Sprintf(" (situation: %s)", m.Situation)
		}
	}
	return ""
}

// summarizeSignals renders a nested signal map with stable key ordering
// so identical profiles produce identical prompts.
func summarizeSignals(signals queryengine.Signals) string {
	if len(signals) == 0 {
		return "(none)\n"
	}

	categories := make([]string, 0, len(signals))
	for category := range signals {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var b strings.Builder
	for _, category := range categories {
		metrics := make([]string, 0, len(signals[category]))
		for metric := range signals[category] {
			metrics = append(metrics, metric)
		}
		sort.Strings(metrics)

		for _, metric := range metrics {
			fmt.Fprintf(&b, "- %s.%s = %v\n", category, metric, signals[category][metric])
		}
	}
	return b.String()
}
