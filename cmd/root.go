// Package main implements the geo-orchestrator command-line tool for
// batch address geocoding with provider fallback.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geo-orchestrator/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "geo-orchestrator",
	Short: "Batch address geocoding with HERE/Google/OSM fallback",
	Long:  "Geocodes a batch of addresses against HERE, Google, and OpenStreetMap, falling back across providers and address rewrites until a target precision is reached.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if v, _ := cmd.Flags().GetString("google-key"); v != "" {
			cfg.Providers.GoogleAPIKey = v
		}
		if v, _ := cmd.Flags().GetString("here-key"); v != "" {
			cfg.Providers.HEREAPIKey = v
		}
		if v, _ := cmd.Flags().GetString("osm-email"); v != "" {
			cfg.Providers.OSMEmail = v
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("google-key", "", "override providers.google_api_key")
	rootCmd.PersistentFlags().String("here-key", "", "override providers.here_api_key")
	rootCmd.PersistentFlags().String("osm-email", "", "override providers.osm_email")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
