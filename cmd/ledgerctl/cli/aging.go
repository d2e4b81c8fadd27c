package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/freightledger/internal/aging"
	"github.com/odyssey-erp/freightledger/internal/allocation"
)

func newAgingCommand(open Opener) *cobra.Command {
	var asOf string
	var party string
	var asJSON bool

	cmd := &cobra.Command{
		Use:       "aging ar|ap",
		Short:     "Print an aging report",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(allocation.BookReceivables), string(allocation.BookPayables)},
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, ok := allocation.SpecFor(allocation.Book(args[0]))
			if !ok {
				return fmt.Errorf("unknown book %q", args[0])
			}
			date := time.Now().UTC()
			if asOf != "" {
				parsed, err := time.Parse(time.DateOnly, asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of %q: want YYYY-MM-DD", asOf)
				}
				date = parsed
			}
			var partyID *uuid.UUID
			if party != "" {
				id, err := uuid.Parse(party)
				if err != nil {
					return fmt.Errorf("invalid --party: %w", err)
				}
				partyID = &id
			}
			return withBackend(cmd.Context(), open, func(b Backend) error {
				rows, err := b.Aging(cmd.Context(), spec, date, partyID)
				if err != nil {
					return fmt.Errorf("aging: %w", err)
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), rows)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PARTY\tBUCKET\tAMOUNT")
				for _, row := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", row.PartyID, row.Bucket, row.Amount.StringFixed(2))
				}
				fmt.Fprintf(tw, "TOTAL\t\t%s\n", aging.Total(rows).StringFixed(2))
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "report date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&party, "party", "", "restrict to one customer or supplier id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
	return cmd
}
