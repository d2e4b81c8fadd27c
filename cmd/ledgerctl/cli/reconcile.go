package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReconcileCommand(open Opener) *cobra.Command {
	var repair bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare cached balances with journal lines and allocations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd.Context(), open, func(b Backend) error {
				summary, err := b.Reconcile(cmd.Context(), repair)
				if err != nil {
					return fmt.Errorf("reconcile: %w", err)
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), summary)
				}
				out := cmd.OutOrStdout()
				for _, d := range summary.Balances.Drifts {
					fmt.Fprintf(out, "account %s: stored %s expected %s\n", d.Code, d.Stored.StringFixed(2), d.Expected.StringFixed(2))
				}
				for _, report := range summary.OpenItems {
					for _, d := range report.Drifts {
						fmt.Fprintf(out, "%s %s %s: stored %s expected %s\n", report.Book, d.Kind, d.Number, d.Stored.StringFixed(2), d.Expected.StringFixed(2))
					}
				}
				for _, id := range summary.Balances.UnbalancedEntries {
					fmt.Fprintf(out, "unbalanced entry %s\n", id)
				}
				fmt.Fprintf(out, "drift %d, repaired %d\n", summary.Drift(), summary.Repaired())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "rewrite drifted caches from source rows")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}
