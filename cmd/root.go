package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cluegrid/cluegrid/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cluegrid",
	Short: "Trivia grading engine and daily challenge server",
	Long:  "Grades free-text trivia responses through a deterministic matcher with an LLM judge fallback, and runs the daily challenge API.",
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
