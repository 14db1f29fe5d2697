package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/finpilot/advisor/plugin/ai/knowledge"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the knowledge index",
}

var indexAddCmd = &cobra.Command{
	Use:   "add <documents.json>",
	Short: "Ingest documents from a JSON file",
	Long: `Reads a JSON array of documents ({"id", "type", "content", "metadata"})
and upserts them into the knowledge index. Malformed documents are
rejected individually; the rest of the batch still commits.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexAdd,
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  runIndexStats,
}

var indexDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete documents by id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndexDelete,
}

func init() {
	indexCmd.AddCommand(indexAddCmd, indexStatsCmd, indexDeleteCmd)
	rootCmd.AddCommand(indexCmd)
}

type documentPayload struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

func runIndexAdd(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	var payloads []documentPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	docs := make([]*knowledge.Document, len(payloads))
	for i, payload := range payloads {
		docs[i] = &knowledge.Document{
			ID:       payload.ID,
			Type:     payload.Type,
			Content:  payload.Content,
			Metadata: payload.Metadata,
		}
	}

	written, err := rt.index.Add(cmd.Context(), docs)
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d of %d documents\n", written, len(docs))
	return nil
}

func runIndexStats(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	stats, err := rt.index.Stats(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("documents: %d (dimensions: %d)\n", stats.DocumentCount, stats.Dimensions)
	fmt.Println("by type:")
	for _, docType := range sortedKeys(stats.TypeCounts) {
		fmt.Printf("  %-20s %d\n", docType, stats.TypeCounts[docType])
	}
	if len(stats.PersonaCounts) > 0 {
		fmt.Println("by persona:")
		for _, persona := range sortedKeys(stats.PersonaCounts) {
			fmt.Printf("  %-20s %d\n", persona, stats.PersonaCounts[persona])
		}
	}
	return nil
}

func runIndexDelete(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.index.Delete(cmd.Context(), args); err != nil {
		return err
	}
	fmt.Printf("deleted %d documents\n", len(args))
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
