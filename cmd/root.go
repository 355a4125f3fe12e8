// Package cmd implements the ctsvendor CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eykd/ctsvendor/internal/config"
	"github.com/eykd/ctsvendor/internal/logging"
	"github.com/eykd/ctsvendor/internal/pipeline"
)

// LogEnvVar sets the log level when --log-level is not given.
const LogEnvVar = "CTSVENDOR_LOG"

// ErrRunFailed marks errors already reported through the logger.
var ErrRunFailed = errors.New("vendoring failed")

type runFunc func(ctx context.Context, log *zap.Logger, opts pipeline.Options) error

// NewRootCmd creates the ctsvendor command.
func NewRootCmd() *cobra.Command {
	return newRootCmdWithRun(runPipeline, os.Getwd, os.Getenv)
}

func runPipeline(ctx context.Context, log *zap.Logger, opts pipeline.Options) error {
	return pipeline.New(log, pipeline.SystemTools).Run(ctx, opts)
}

func newRootCmdWithRun(run runFunc, getwd func() (string, error), getenv func(string) string) *cobra.Command {
	var (
		chunkSize  int
		logLevel   string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "ctsvendor [flags] <cts-checkout-path>",
		Short: "Vendor a WebGPU CTS checkout and install its chunked WPT tests",
		Long: "ctsvendor copies the Git-tracked files of a WebGPU CTS checkout into the\n" +
			"host repository, builds the CTS's WPT test documents, splits them into\n" +
			"chunks and installs the result into the host's WPT tests directory.\n\n" +
			"Run it from within the host repository.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			switch {
			case cmd.Flags().Changed("log-level"):
				cfg.LogLevel = logLevel
			case getenv(LogEnvVar) != "":
				cfg.LogLevel = getenv(LogEnvVar)
			}
			if cmd.Flags().Changed("chunk-size") {
				cfg.ChunkSize = chunkSize
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			level, err := logging.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}

			start, err := getwd()
			if err != nil {
				return fmt.Errorf("getting working directory: %w", err)
			}

			log := logging.New(cmd.ErrOrStderr(), level).With(zap.String("run", uuid.NewString()))
			defer func() { _ = log.Sync() }()

			opts := pipeline.Options{Checkout: args[0], Start: start, Config: cfg}
			if err := run(cmd.Context(), log, opts); err != nil {
				log.Error("vendoring failed", zap.Error(err))
				return fmt.Errorf("%w: %w", ErrRunFailed, err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", config.DefaultChunkSize, "number of test cases per chunked document")
	cmd.Flags().StringVar(&logLevel, "log-level", "info",
		"log verbosity: trace, debug, info, warn or error (default from $"+LogEnvVar+")")
	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML configuration file")

	return cmd
}
