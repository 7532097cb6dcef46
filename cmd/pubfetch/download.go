package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/pubmed-retrieval-service/internal/app"
	"github.com/helixir/pubmed-retrieval-service/internal/config"
	"github.com/helixir/pubmed-retrieval-service/internal/observability"
	"github.com/helixir/pubmed-retrieval-service/internal/report"
)

type configLoader func() (*config.Config, error)

var errNoPMIDs = errors.New("no PMIDs given: pass them as arguments or with --file")

func newDownloadCmd(load configLoader) *cobra.Command {
	var (
		file    string
		dir     string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "download [pmid...]",
		Short: "Download the documents of the given PMIDs",
		Long: "Download looks up every PMID in the registry, tries the configured mirrors " +
			"by DOI, PII and PMC identifier, and stores each validated document as <dir>/<pmid>.pdf. " +
			"PMIDs whose document could not be retrieved are written to the failed list.",
		RunE: func(cmd *cobra.Command, args []string) error {
			pmids, err := collectPMIDs(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(pmids) == 0 {
				return errNoPMIDs
			}

			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if dir != "" {
				cfg.Fetch.Dir = dir
			}
			if workers > 0 {
				cfg.Engine.Workers = workers
			}

			logger := newLogger(cfg).With().Str("component", "pubfetch").Logger()

			ctx, stop := signal.NotifyContext(runContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := a.Close(); closeErr != nil {
					logger.Error().Err(closeErr).Msg("failed to release resources")
				}
			}()

			result := a.Engine.Run(ctx, pmids)

			failedPath := cfg.FailedListPath()
			if err := report.WriteFailedList(failedPath, result.FailedPMIDs()); err != nil {
				return err
			}
			logger.Info().
				Str("path", failedPath).
				Int("failed", len(result.FailedPMIDs())).
				Msg("failed list written")

			_, err = fmt.Fprintln(cmd.OutOrStdout(), report.Summary(result))
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file with one PMID per line (# comments allowed, - for stdin)")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "destination directory (overrides fetch.dir)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "records processed concurrently (overrides engine.workers)")
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
}

// runContext returns cmd's context, or Background when the command runs
// outside Execute.
func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
