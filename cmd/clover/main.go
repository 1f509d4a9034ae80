// Package main is the entry point for the clover CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/config"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the clover CLI.
var rootCmd = &cobra.Command{
	Use:   "clover",
	Short: "Cross-retailer product grouping service",
	Long: `clover ingests raw retailer listings and resolves them into grouped
products. Listings are compared with deterministic rules first; pairs the
rules cannot settle are arbitrated by an LLM, and the resulting match graph
is clustered into product groups with one canonical listing each.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintln(os.Stderr, "No .env file found, using environment")
		}
		return nil
	},
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from config
func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}
