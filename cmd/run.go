package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/stationmap-cli/internal/rings"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full extract, classify, and reconcile pipeline",
	Long:  "Streams the input extract, classifies the kept features into distance rings, reconciles incomplete addresses, and writes all exports in one pass.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := validateConfig(); err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		tag, _ := cmd.Flags().GetString("tag")
		interactive, _ := cmd.Flags().GetBool("interactive")
		interactive = interactive || cfg.Reconcile.Interactive
		forward, _ := cmd.Flags().GetBool("forward")
		forward = forward || cfg.Reconcile.ForwardFallback

		features, extractErrs, err := extractFeatures(ctx, input, tag)
		if err != nil {
			return err
		}

		classifier := rings.New(region())
		ambiguousRings := classifier.ClassifyAll(features)
		zap.L().Info("classification complete",
			zap.String("region", cfg.Region),
			zap.Int("features", len(features)),
			zap.Int("ambiguous", ambiguousRings),
		)

		reconciler, cache, err := buildReconciler(ctx, interactive, forward)
		if err != nil {
			return err
		}
		defer cache.Close() //nolint:errcheck

		summary, runErr := reconciler.ReconcileAll(ctx, features)
		summary.ExtractionErrors = extractErrs

		output := filepath.Join(regionDir(), "stations_reconciled.geojson")
		if err := writeExports(features, output); err != nil {
			return err
		}

		recordRun(ctx, cache, summary)
		fmt.Printf("Pipeline complete for region %q: %d features, %d ring-ambiguous\n",
			cfg.Region, len(features), ambiguousRings)
		printSummary(summary, output)
		return runErr
	},
}

func init() {
	runCmd.Flags().String("input", "", "extract file or directory of files (required)")
	runCmd.Flags().String("tag", "amenity=fire_station", "tag predicate, key=value or bare key")
	runCmd.Flags().Bool("interactive", false, "prompt the operator for unresolved or ambiguous addresses")
	runCmd.Flags().Bool("forward", false, "enable forward (text-search) fallback after a reverse miss")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}
