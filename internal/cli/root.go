// Package cli wires the carbonledger commands: emissions compute, LCA
// evaluation, scenario planning, data quality, and factor-library
// management.
package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the carbonledger CLI.
// It wires up logging, tracing, and subcommands (compute, lca, scenario,
// quality, factors).
func NewRootCmd(ver string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "carbonledger",
		Short:   "GHG emissions and life-cycle calculation CLI",
		Long:    "carbonledger: Calculate GHG inventories, LCA stage totals, reduction scenarios, and data quality from activity data",
		Version: ver,
		Example: rootCmdExample,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd)
			return nil
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("factors-db", "", "path to the factor library database (overrides config)")
	cmd.AddCommand(NewComputeCmd(), NewLCACmd(), NewScenarioCmd(), NewQualityCmd(), newFactorsCmd())

	return cmd
}

const rootCmdExample = `  # Compute a GHG inventory from activity data
  carbonledger compute --input activities.csv

  # Browse results interactively
  carbonledger compute --input activities.csv --interactive

  # Evaluate life-cycle stages within a boundary
  carbonledger lca --input stages.csv --boundary cradle-to-gate

  # Apply a reduction plan and check targets
  carbonledger scenario --input activities.csv --plan plan.yaml

  # Score input data quality and intensity KPIs
  carbonledger quality --input activities.csv --production-units 1000

  # Manage the factor library
  carbonledger factors seed
  carbonledger factors list --region eu --year 2023
  carbonledger factors import custom_factors.csv`

// newFactorsCmd creates the factors command group with library management subcommands.
func newFactorsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "factors", Short: "Factor library management commands"}
	cmd.AddCommand(
		NewFactorsSeedCmd(), NewFactorsListCmd(),
		NewFactorsImportCmd(), NewFactorsCategoriesCmd(),
	)
	return cmd
}
