package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DuKro90/draftcraft/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "draftcraft",
	Short: "Cost proposal engine for craft businesses",
	Long:  "Prices extracted job specifications through tiered factor resolution, configurable surcharge rules, and auditable breakdowns with benchmarks.",
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
