package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the ledgerctl command tree. Commands that touch the
// ledger call open lazily so --help works without a database.
func NewRootCommand(open Opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the freight ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMigrateCommand(open),
		newSeedCommand(open),
		newDepreciationCommand(open),
		newReconcileCommand(open),
		newAgingCommand(open),
		newJobsCommand(),
	)
	return rootCmd
}

func withBackend(ctx context.Context, open Opener, fn func(Backend) error) error {
	backend, cleanup, err := open(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}
	return fn(backend)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMigrateCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd.Context(), open, func(b Backend) error {
				applied, err := b.Migrate(cmd.Context())
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				if len(applied) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
					return nil
				}
				for _, name := range applied {
					fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
				}
				return nil
			})
		},
	}
}
