package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AlissonDuarte/itssafe-backend/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "itssafe",
	Short: "Risk-zone backend for crowd-reported occurrences",
	Long:  "Clusters reported occurrences into risk-zone polygons and serves them per map viewport, with import and migration tooling for the occurrence store.",
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
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
