package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/kmz2csv/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "kmz2csv",
	Short: "Convert KMZ/KML placemark files to enriched tabular exports",
	Long:  "Extracts point and polygon placemarks, assigns each point its enclosing boundary, optionally reverse-geocodes street names through a throttled cached lookup, and writes CSV or XLSX.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
