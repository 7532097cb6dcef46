package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/pubmed-retrieval-service/internal/app"
	"github.com/helixir/pubmed-retrieval-service/internal/record"
)

func newShowCmd(load configLoader) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "show <pmid>",
		Short: "Print the mapped record of a PMID as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pmid := strings.TrimSpace(args[0])

			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cfg).With().Str("component", "pubfetch").Logger()

			ctx := runContext(cmd)
			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			rec, err := a.Registry.FetchByID(ctx, pmid)
			if err != nil {
				return err
			}
			if save && a.RecordRepo != nil {
				if err := a.RecordRepo.SaveRecord(ctx, rec); err != nil {
					return err
				}
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), record.NewDocument(rec).String())
			return err
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "store the record when the database is enabled")
	return cmd
}
