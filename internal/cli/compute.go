package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/carbonledger/internal/engine"
	"github.com/rshade/carbonledger/internal/ingest"
	"github.com/rshade/carbonledger/internal/logging"
)

// computeParams holds the parameters for the compute command execution.
type computeParams struct {
	inputPath   string
	region      string
	year        int
	output      string
	interactive bool
	savePath    string
}

// NewComputeCmd creates the "compute" command for GHG inventory calculation.
//
// Registered flags:
//   - --input: path to the activity-data CSV file (required)
//   - --region: factor region override (default from configuration)
//   - --year: factor year override (default from configuration)
//   - --output: output format, table or json (default from configuration)
//   - --interactive: browse results in the terminal UI
//   - --save: write a run record (JSON with ULID run ID) to the given path
func NewComputeCmd() *cobra.Command {
	var params computeParams

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute a GHG inventory from activity data",
		Long: `Compute scope 1/2/3 CO2e totals from a CSV of activity rows.

Rows without an emission factor are resolved against the factor library
using the configured region and year. Rows that cannot be resolved are
reported but excluded from totals.`,
		Example: computeExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeCompute(cmd, params)
		},
	}

	cmd.Flags().StringVar(&params.inputPath, "input", "", "Path to activity-data CSV (required)")
	cmd.Flags().StringVar(&params.region, "region", "", "Factor region (default from config)")
	cmd.Flags().IntVar(&params.year, "year", 0, "Factor year (default from config)")
	cmd.Flags().StringVar(&params.output, "output", "", "Output format: table or json")
	cmd.Flags().BoolVar(&params.interactive, "interactive", false, "Browse results interactively")
	cmd.Flags().StringVar(&params.savePath, "save", "", "Write a run record to the given path")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

const computeExample = `  # Compute from a CSV file
  carbonledger compute --input activities.csv

  # Use EU factors for 2023
  carbonledger compute --input activities.csv --region eu --year 2023

  # Output as JSON
  carbonledger compute --input activities.csv --output json

  # Persist a run record
  carbonledger compute --input activities.csv --save run.json`

// executeCompute runs the inventory calculation: parse the input CSV,
// load the factor snapshot, compute row CO2e and aggregates, render the
// chosen output, and optionally persist a run record.
func executeCompute(cmd *cobra.Command, params computeParams) error {
	ctx := cmd.Context()
	start := time.Now()

	log := logging.FromContext(ctx)
	log.Debug().Ctx(ctx).Str("operation", "compute").Str("input", params.inputPath).
		Msg("starting inventory calculation")

	dataset, err := readActivityFile(params.inputPath)
	if err != nil {
		return err
	}
	reportRowErrors(cmd, dataset.Errors)

	st, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	calcCtx, err := resolutionContext(ctx, cmd, st)
	if err != nil {
		return err
	}

	result, err := engine.NewCalculator().Compute(ctx, dataset.Rows, calcCtx)
	if err != nil {
		log.Error().Ctx(ctx).Err(err).Msg("failed to compute inventory")
		return fmt.Errorf("computing inventory: %w", err)
	}

	if err := RenderEmissionsOutput(cmd, params.output, params.interactive, result); err != nil {
		return err
	}

	log.Info().Ctx(ctx).Str("operation", "compute").Int("row_count", len(result.Rows)).
		Dur("duration_ms", time.Since(start)).Msg("inventory calculation complete")

	return saveRun(cmd, "emissions", params.savePath, result)
}

// readActivityFile parses the activity CSV at path.
func readActivityFile(path string) (*ingest.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input file: %w", err)
	}
	defer f.Close()

	dataset, err := ingest.ReadActivities(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return dataset, nil
}

// reportRowErrors prints skipped-row diagnostics to stderr.
func reportRowErrors(cmd *cobra.Command, rowErrs []ingest.RowError) {
	for _, rowErr := range rowErrs {
		cmd.PrintErrf("Skipping row: %s\n", rowErr.Error())
	}
}
