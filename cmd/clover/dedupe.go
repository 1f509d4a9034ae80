package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/listing"
	"github.com/Ramsey-B/clover/internal/repositories/productgroup"
	runrepo "github.com/Ramsey-B/clover/internal/repositories/run"
	"github.com/Ramsey-B/clover/internal/repositories/verdict"
	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/checkpoint"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/features"
	"github.com/Ramsey-B/clover/pkg/oracle"
	"github.com/Ramsey-B/clover/pkg/pipeline"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/rules"

	_ "github.com/lib/pq"
)

var (
	dedupeInput   string
	dedupeOutput  string
	dedupeProfile string
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Run one dedupe pass over listings",
	Long: `Runs the dedupe pipeline once. With --input the listings are read from a
JSON file and results are written to --output without touching Postgres;
otherwise listings come from the database and results are persisted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if dedupeProfile == "" {
			dedupeProfile = cfg.RuleProfile
		}

		input := dedupeInput
		if input == "" {
			input = cfg.DedupeInputFile
		}

		arbiter := oracle.New(cfg.OracleAPIKey, cfg.OracleBaseURL, oracle.Config{
			Model:        cfg.OracleModel,
			MaxAttempts:  cfg.OracleMaxAttempts,
			RetryDelay:   cfg.OracleRetryDelay,
			CallsPerSec:  cfg.OracleCallsPerSec,
			MaxBatchSize: cfg.OracleMaxBatchSize,
		}, logger)

		if input != "" {
			records, err := processor.LoadRecordsFromFile(input)
			if err != nil {
				return err
			}

			rcfg := rules.DefaultConfig()
			if dedupeProfile == string(rules.ProfileLenient) {
				rcfg.Profile = rules.ProfileLenient
			}

			store := checkpoint.New(cfg.CheckpointPath, cfg.CheckpointEvery, logger)
			pcfg := pipeline.DefaultConfig()
			pcfg.BlockCap = cfg.BlockCap
			pcfg.Workers = cfg.DedupeWorkerCount
			pcfg.MaxBatchSize = cfg.OracleMaxBatchSize

			pipe := pipeline.New(
				logger,
				features.New(features.DefaultConfig()),
				rules.New(rcfg),
				arbiter,
				store,
				canonical.New(arbiter, logger),
				pcfg,
			)

			result, err := pipe.Run(ctx, uuid.New().String(), records)
			if err != nil {
				return err
			}

			return writeResults(result, dedupeOutput)
		}

		db, err := database.Connect(dbConfig(cfg), logger)
		if err != nil {
			return err
		}
		defer db.Close()

		service := processor.NewRunService(
			logger,
			*cfg,
			listing.NewRepository(db, logger),
			verdict.NewRepository(db, logger),
			productgroup.NewRepository(db, logger),
			runrepo.NewRepository(db, logger),
			arbiter,
			nil,
			nil,
		)

		result, err := service.Execute(ctx, dedupeProfile)
		if err != nil {
			return err
		}

		return writeResults(result, dedupeOutput)
	},
}

func init() {
	dedupeCmd.Flags().StringVar(&dedupeInput, "input", "", "JSON file of listings to dedupe")
	dedupeCmd.Flags().StringVar(&dedupeOutput, "output", "", "file to write group results to (default stdout)")
	dedupeCmd.Flags().StringVar(&dedupeProfile, "profile", "", "rule profile: strict or lenient")
}

func writeResults(result *pipeline.Result, path string) error {
	data, err := json.MarshalIndent(result.Outputs, "", "  ")
	if err != nil {
		return err
	}

	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	return os.WriteFile(path, data, 0o644)
}
