package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streetscope/blockgeo/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "blockgeo",
	Short: "Census block-group tagging for point datasets",
	Long:  "Indexes census block-group boundaries, resolves points to block groups and tracts, and appends the results to CSV/XLSX datasets.",
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
