package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finpilot/advisor/plugin/ai/experiment"
	"github.com/finpilot/advisor/plugin/ai/generator"
	"github.com/finpilot/advisor/plugin/ai/metrics"
	"github.com/finpilot/advisor/plugin/ai/queryengine"
)

var (
	generateProfilePath string
	generateDryRun      bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <user-id>",
	Short: "Generate recommendations for a user profile",
	Long: `Reads a profile JSON file ({"personas", "signals_30d", "signals_180d"}),
assigns the user to an experiment variant, runs the retrieval-augmented
pipeline for treatment users, and records the outcome. With --dry-run
only the generated query and retrieved context are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateProfilePath, "profile", "p", "", "path to the profile JSON file (required)")
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "only show the query and retrieved context")
	_ = generateCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(generateCmd)
}

type profilePayload struct {
	Personas    []string            `json:"personas"`
	Signals30d  queryengine.Signals `json:"signals_30d"`
	Signals180d queryengine.Signals `json:"signals_180d"`
}

func runGenerate(cmd *cobra.Command, args []string) error {
	userID := args[0]

	data, err := os.ReadFile(generateProfilePath)
	if err != nil {
		return fmt.Errorf("failed to read profile: %w", err)
	}
	var payload profilePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to parse profile: %w", err)
	}

	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	if generateDryRun {
		query := rt.engine.GenerateQuery(payload.Personas, payload.Signals30d, payload.Signals180d)
		bundle, err := rt.engine.RetrieveContext(cmd.Context(), query, rt.profile.DefaultTopK)
		if err != nil {
			return err
		}
		fmt.Printf("query: %s\n", query)
		fmt.Printf("retrieved: %d\n", bundle.RetrievedCount)
		for _, doc := range bundle.Documents {
			fmt.Printf("  [%d] %.3f (%s) %s\n", doc.Rank, doc.Similarity, doc.Type, doc.ID)
		}
		return nil
	}

	variant := rt.coordinator.AssignVariant(userID)
	fmt.Printf("variant: %s\n", variant)
	if variant == experiment.ControlVariant {
		fmt.Println("user is on the catalog path; no retrieval-augmented generation performed")
		return nil
	}

	result := rt.orchestrator.Generate(cmd.Context(), &generator.Request{
		UserID:      userID,
		Personas:    payload.Personas,
		Signals30d:  payload.Signals30d,
		Signals180d: payload.Signals180d,
	})

	rationales := make([]string, len(result.Recommendations))
	for i, rec := range result.Recommendations {
		rationales[i] = rec.Rationale
	}
	rt.coordinator.TrackGeneration(userID, variant, &experiment.GenerationOutcome{
		Success:             result.Success,
		LatencyMs:           result.GenerationTimeMs,
		RecommendationCount: len(result.Recommendations),
		Rationales:          rationales,
	})
	rt.collector.RecordGeneration(&metrics.GenerationEvent{
		UserID:              userID,
		Method:              metrics.MethodRAG,
		Variant:             variant,
		Success:             result.Success,
		LatencyMs:           result.GenerationTimeMs,
		RecommendationCount: len(result.Recommendations),
		CitationRate:        citationRate(rationales),
	})

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

// citationRate is the fraction of rationales citing at least one digit.
func citationRate(rationales []string) float64 {
	if len(rationales) == 0 {
		return 0
	}
	cited := 0
	for _, rationale := range rationales {
		for _, r := range rationale {
			if r >= '0' && r <= '9' {
				cited++
				break
			}
		}
	}
	return float64(cited) / float64(len(rationales))
}
