// Package main provides a CLI tool for database migrations.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/pubmed-retrieval-service/internal/config"
	"github.com/helixir/pubmed-retrieval-service/internal/database"
	"github.com/helixir/pubmed-retrieval-service/internal/observability"
)

func newRootCmd() *cobra.Command {
	var migrationsPath string

	cmd := &cobra.Command{
		Use:   "migrate <up|down|steps N|force V|version>",
		Short: "Apply or inspect database migrations",
		Long: "migrate runs one action against the database configured through " +
			"PUBRETRIEVE_DATABASE_* variables or the config file. steps takes a signed " +
			"count (negative rolls back); force sets the version after a failed migration.",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// Console output for the CLI tool.
			logger := observability.NewLogger(observability.LoggingConfig{
				Level:      "info",
				Format:     "console",
				Output:     "stdout",
				TimeFormat: time.RFC3339,
			})
			logger = logger.With().Str("component", "migrate").Logger()

			migrationDir := cfg.Database.MigrationPath
			if migrationsPath != "" {
				migrationDir = migrationsPath
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			db, err := database.New(ctx, &cfg.Database, logger)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close()

			migrator, err := database.NewMigrator(db, migrationDir, logger)
			if err != nil {
				return fmt.Errorf("create migrator: %w", err)
			}
			defer func() {
				if closeErr := migrator.Close(); closeErr != nil {
					logger.Error().Err(closeErr).Msg("failed to close migrator")
				}
			}()

			logger.Info().Strs("args", args).Msg("running migration command")
			if err := migrator.Run(args[0], args[1:]...); err != nil {
				return fmt.Errorf("migrate %s: %w", args[0], err)
			}
			if args[0] != "version" {
				return migrator.Run("version")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&migrationsPath, "path", "", "override the migrations directory path")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
