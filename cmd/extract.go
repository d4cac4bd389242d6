package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/stationmap-cli/internal/export"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract matching point features from a map data extract",
	Long:  "Streams a .pbf, .geojson, or .shp extract (or a directory of them), keeps point features matching the tag predicate, and writes them as GeoJSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := validateConfig(); err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		tag, _ := cmd.Flags().GetString("tag")
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = filepath.Join(regionDir(), "stations.geojson")
		}

		features, extractErrs, err := extractFeatures(ctx, input, tag)
		if err != nil {
			return err
		}

		if err := export.WriteGeoJSON(features, region(), output); err != nil {
			return err
		}

		fmt.Printf("Extracted %d features to %s", len(features), output)
		if extractErrs > 0 {
			fmt.Printf(" (%d extraction error(s), partial results kept)", extractErrs)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	extractCmd.Flags().String("input", "", "extract file or directory of files (required)")
	extractCmd.Flags().String("tag", "amenity=fire_station", "tag predicate, key=value or bare key")
	extractCmd.Flags().String("output", "", "output GeoJSON path (default outputs/<region>/stations.geojson)")
	_ = extractCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(extractCmd)
}
