package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/finpilot/advisor/store"
)

var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Inspect the rag-vs-catalog experiment",
}

var experimentStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show experiment configuration and assignment counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		fmt.Printf("experiment: %s\n", rt.coordinator.Describe())
		fmt.Printf("assignments this process: %d\n", rt.coordinator.AssignmentCount())
		return nil
	},
}

var experimentMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show per-variant experiment metrics and the rollout recommendation",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		encoded, err := json.MarshalIndent(rt.coordinator.Metrics(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		fmt.Printf("recommendation: %s\n", rt.coordinator.Recommendation())
		return nil
	},
}

var snapshotDays int

var experimentSnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Show persisted hourly metric snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		since := time.Now().Add(-time.Duration(snapshotDays) * 24 * time.Hour)
		snapshots, err := rt.store.ListMetricSnapshots(cmd.Context(), &store.FindMetricSnapshot{
			StartTime: &since,
		})
		if err != nil {
			return err
		}

		for _, snapshot := range snapshots {
			fmt.Printf("%s %-8s %-8s generations=%d success=%d avg_latency_ms=%d\n",
				snapshot.HourBucket.Format(time.RFC3339),
				snapshot.Method,
				snapshot.Variant,
				snapshot.GenerationCount,
				snapshot.SuccessCount,
				safeDiv(snapshot.LatencySumMs, snapshot.GenerationCount))
		}
		return nil
	},
}

func init() {
	experimentSnapshotsCmd.Flags().IntVar(&snapshotDays, "days", 7, "how many days back to list")
	experimentCmd.AddCommand(experimentStatusCmd, experimentMetricsCmd, experimentSnapshotsCmd)
	rootCmd.AddCommand(experimentCmd)
}

func safeDiv(sum, count int64) int64 {
	if count == 0 {
		return 0
	}
	return sum / count
}
