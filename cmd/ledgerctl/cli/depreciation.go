package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newDepreciationCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "depreciation",
		Short: "Fixed asset depreciation",
	}

	var asOf string
	var asJSON bool
	run := &cobra.Command{
		Use:   "run",
		Short: "Post monthly depreciation for the month containing --as-of",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := time.Parse(time.DateOnly, asOf)
			if err != nil {
				return fmt.Errorf("invalid --as-of %q: want YYYY-MM-DD", asOf)
			}
			return withBackend(cmd.Context(), open, func(b Backend) error {
				res, err := b.RunDepreciation(cmd.Context(), date, b.SystemUser())
				if err != nil {
					return fmt.Errorf("depreciation run: %w", err)
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				out := cmd.OutOrStdout()
				if res.Contended {
					fmt.Fprintf(out, "period %s: another run holds the lock\n", res.Period)
					return nil
				}
				fmt.Fprintf(out, "period %s: %d created, %d skipped, %d failed\n",
					res.Period, res.CreatedEntries, len(res.Skipped), len(res.Failed))
				for _, f := range res.Failed {
					fmt.Fprintf(out, "  failed %s: %s\n", f.AssetNumber, f.Error)
				}
				if len(res.Failed) > 0 {
					return fmt.Errorf("%d assets failed", len(res.Failed))
				}
				return nil
			})
		},
	}
	run.Flags().StringVar(&asOf, "as-of", "", "date inside the month to depreciate (YYYY-MM-DD)")
	_ = run.MarkFlagRequired("as-of")
	run.Flags().BoolVar(&asJSON, "json", false, "print the run result as JSON")

	cmd.AddCommand(run)
	return cmd
}
