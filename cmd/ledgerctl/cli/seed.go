package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/freightledger/internal/accounting/accounts"
	"github.com/odyssey-erp/freightledger/internal/accounting/mappings"
)

func newSeedCommand(open Opener) *cobra.Command {
	var chartPath string
	var mappingPath string
	var skipMapping bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the chart of accounts and activate the account mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			chart, err := loadChart(chartPath)
			if err != nil {
				return err
			}
			var mapping mappings.File
			if !skipMapping {
				if mapping, err = loadMapping(mappingPath); err != nil {
					return err
				}
			}
			return withBackend(cmd.Context(), open, func(b Backend) error {
				created, err := b.SeedChart(cmd.Context(), chart)
				if err != nil {
					return fmt.Errorf("seed chart: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "accounts created: %d\n", created)
				if skipMapping {
					return nil
				}
				active, err := b.ActivateMappings(cmd.Context(), mapping, b.SystemUser())
				if err != nil {
					return fmt.Errorf("activate mapping: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "mapping %s active (%d categories)\n", active.ID, len(active.Accounts))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&chartPath, "chart", "", "chart YAML file (default: built-in freight chart)")
	cmd.Flags().StringVar(&mappingPath, "mapping", "", "mapping YAML file (default: built-in mapping)")
	cmd.Flags().BoolVar(&skipMapping, "skip-mapping", false, "seed accounts only")
	return cmd
}

func loadChart(path string) (accounts.Chart, error) {
	if path == "" {
		return accounts.DefaultChart()
	}
	f, err := os.Open(path)
	if err != nil {
		return accounts.Chart{}, fmt.Errorf("opening chart: %w", err)
	}
	defer f.Close()
	return accounts.LoadChart(f)
}

func loadMapping(path string) (mappings.File, error) {
	if path == "" {
		return mappings.DefaultFile()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mapping: %w", err)
	}
	defer f.Close()
	return mappings.LoadFile(f)
}
