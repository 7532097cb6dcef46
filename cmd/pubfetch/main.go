// Package main provides pubfetch, the batch retrieval CLI. It downloads the
// full-text documents of PubMed records into a directory and reports the
// records it could not retrieve.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixir/pubmed-retrieval-service/internal/config"
)

// newRootCmd builds the command tree. configPath is shared by subcommands.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "pubfetch",
		Short:         "Retrieve PubMed full-text documents from open mirrors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: search ./config.yaml, ./config, /etc/pubmed-retrieval-service)")

	load := func() (*config.Config, error) {
		if configPath != "" {
			return config.LoadFile(configPath)
		}
		return config.Load()
	}

	root.AddCommand(newDownloadCmd(load))
	root.AddCommand(newShowCmd(load))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
