package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/stationmap-cli/internal/export"
	"github.com/sells-group/stationmap-cli/internal/model"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Backfill incomplete addresses via geocoding",
	Long:  "Checks each feature's address completeness, repairs incomplete ones via reverse (and optionally forward) geocoding with caching and rate limiting, and writes the reconciled exports.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := validateConfig(); err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		if input == "" {
			input = filepath.Join(regionDir(), "stations_with_rings.geojson")
		}
		// Flags turn modes on; config can enable them by default.
		interactive, _ := cmd.Flags().GetBool("interactive")
		interactive = interactive || cfg.Reconcile.Interactive
		forward, _ := cmd.Flags().GetBool("forward")
		forward = forward || cfg.Reconcile.ForwardFallback
		inPlace, _ := cmd.Flags().GetBool("in-place")
		inPlace = inPlace || cfg.Reconcile.InPlace

		features, err := loadFeatures(ctx, input)
		if err != nil {
			return err
		}

		reconciler, cache, err := buildReconciler(ctx, interactive, forward)
		if err != nil {
			return err
		}
		defer cache.Close() //nolint:errcheck

		summary, runErr := reconciler.ReconcileAll(ctx, features)

		// Side-output by default; overwriting the source record set is an
		// explicit opt-in.
		output := filepath.Join(regionDir(), "stations_reconciled.geojson")
		if inPlace {
			output = input
		}
		if err := writeExports(features, output); err != nil {
			return err
		}

		recordRun(ctx, cache, summary)
		printSummary(summary, output)
		return runErr
	},
}

func writeExports(features []*model.Feature, geojsonPath string) error {
	if err := export.WriteGeoJSON(features, region(), geojsonPath); err != nil {
		return err
	}
	if err := export.WriteRingCSVs(features, region(), filepath.Join(regionDir(), "rings_csv")); err != nil {
		return err
	}
	return export.WriteXLSX(features, region(), filepath.Join(regionDir(), "stations.xlsx"))
}

func printSummary(summary model.Summary, output string) {
	fmt.Println("\nSummary")
	fmt.Println("-------")
	fmt.Printf("Features processed:  %d\n", summary.Total)
	fmt.Printf("Already complete:    %d\n", summary.Complete)
	fmt.Printf("Auto-resolved:       %d\n", summary.AutoResolved)
	fmt.Printf("User-resolved:       %d\n", summary.UserResolved)
	fmt.Printf("Unresolved:          %d\n", summary.Unresolved)
	fmt.Printf("Ambiguous:           %d\n", summary.Ambiguous)
	if summary.ExtractionErrors > 0 {
		fmt.Printf("Extraction errors:   %d\n", summary.ExtractionErrors)
	}
	fmt.Printf("Output written to:   %s\n", output)
}

func init() {
	reconcileCmd.Flags().String("input", "", "input GeoJSON (default outputs/<region>/stations_with_rings.geojson)")
	reconcileCmd.Flags().Bool("interactive", false, "prompt the operator for unresolved or ambiguous addresses")
	reconcileCmd.Flags().Bool("forward", false, "enable forward (text-search) fallback after a reverse miss")
	reconcileCmd.Flags().Bool("in-place", false, "overwrite the input file instead of writing a fresh copy")
	rootCmd.AddCommand(reconcileCmd)
}
