package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the configured regions",
	Long:  "Prints the configured region table as YAML, including each region's center, ring thresholds, and boundary buffer.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := validateConfig(); err != nil {
			return err
		}

		out, err := yaml.Marshal(cfg.Regions)
		if err != nil {
			return eris.Wrap(err, "regions: marshal region table")
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
}
