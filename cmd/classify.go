package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/stationmap-cli/internal/export"
	"github.com/sells-group/stationmap-cli/internal/rings"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Assign distance rings to extracted features",
	Long:  "Computes each feature's distance from the region center and assigns a ring index, flagging assignments within the buffer of a ring boundary.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := validateConfig(); err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		if input == "" {
			input = filepath.Join(regionDir(), "stations.geojson")
		}
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = filepath.Join(regionDir(), "stations_with_rings.geojson")
		}

		features, err := loadFeatures(ctx, input)
		if err != nil {
			return err
		}

		classifier := rings.New(region())
		ambiguous := classifier.ClassifyAll(features)

		zap.L().Info("classification complete",
			zap.String("region", cfg.Region),
			zap.Int("features", len(features)),
			zap.Int("ambiguous", ambiguous),
		)

		if err := export.WriteGeoJSON(features, region(), output); err != nil {
			return err
		}

		fmt.Printf("Classified %d features (%d boundary-ambiguous) to %s\n", len(features), ambiguous, output)
		return nil
	},
}

func init() {
	classifyCmd.Flags().String("input", "", "input GeoJSON (default outputs/<region>/stations.geojson)")
	classifyCmd.Flags().String("output", "", "output GeoJSON (default outputs/<region>/stations_with_rings.geojson)")
	rootCmd.AddCommand(classifyCmd)
}
