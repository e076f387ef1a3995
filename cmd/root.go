package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raumwerk/standort-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "standort-cli",
	Short: "Standort- und Firmen-Score-Rechner",
	Long:  "Scores companies and Swiss municipalities on transit access, demographics, and proximity to stops, motorways, and parking, and exports the results as a spreadsheet report.",
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
