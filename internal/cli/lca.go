package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/carbonledger/internal/ingest"
	"github.com/rshade/carbonledger/internal/lca"
	"github.com/rshade/carbonledger/internal/logging"
	"github.com/rshade/carbonledger/internal/report"
)

// lcaParams holds the parameters for the lca command execution.
type lcaParams struct {
	inputPath      string
	boundary       string
	sensitivityPct float64
	threshold      float64
	output         string
	savePath       string
}

// NewLCACmd creates the "lca" command for life-cycle stage evaluation.
//
// Registered flags:
//   - --input: path to the stage-data CSV file (required)
//   - --boundary: system boundary preset (cradle-to-grave, cradle-to-gate, gate-to-gate)
//   - --sensitivity-pct: symmetric emission-factor sweep range in percent
//   - --threshold: cumulative-share cutoff for hotspot listing (0-1)
//   - --output: output format, table or json
//   - --save: write a run record to the given path
func NewLCACmd() *cobra.Command {
	var params lcaParams

	cmd := &cobra.Command{
		Use:   "lca",
		Short: "Evaluate life-cycle stages within a system boundary",
		Long: `Evaluate a CSV of life-cycle stage rows against a boundary preset.

Stages outside the boundary are reported but excluded from the filtered
total. Allocation factors outside [0,1] are clamped and flagged. The
sensitivity sweep varies each stage's emission factor one at a time.`,
		Example: lcaExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeLCA(cmd, params)
		},
	}

	cmd.Flags().StringVar(&params.inputPath, "input", "", "Path to stage-data CSV (required)")
	cmd.Flags().StringVar(&params.boundary, "boundary", string(lca.CradleToGrave),
		"System boundary: cradle-to-grave, cradle-to-gate, or gate-to-gate")
	cmd.Flags().Float64Var(&params.sensitivityPct, "sensitivity-pct", 10.0,
		"Sensitivity sweep range in percent")
	cmd.Flags().Float64Var(&params.threshold, "threshold", 0,
		"Hotspot cumulative-share cutoff (0 = default 0.8)")
	cmd.Flags().StringVar(&params.output, "output", "", "Output format: table or json")
	cmd.Flags().StringVar(&params.savePath, "save", "", "Write a run record to the given path")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

const lcaExample = `  # Full cradle-to-grave evaluation
  carbonledger lca --input stages.csv

  # Production boundary with a 20% sensitivity sweep
  carbonledger lca --input stages.csv --boundary cradle-to-gate --sensitivity-pct 20

  # Output as JSON
  carbonledger lca --input stages.csv --output json`

// executeLCA parses the stage CSV, evaluates it within the boundary, and
// renders stage totals, hotspots, and the sensitivity range.
func executeLCA(cmd *cobra.Command, params lcaParams) error {
	ctx := cmd.Context()
	start := time.Now()

	log := logging.FromContext(ctx)
	log.Debug().Ctx(ctx).Str("operation", "lca").Str("input", params.inputPath).
		Str("boundary", params.boundary).Msg("starting LCA evaluation")

	f, err := os.Open(params.inputPath)
	if err != nil {
		return fmt.Errorf("opening input file: %w", err)
	}
	defer f.Close()

	rows, rowErrs, err := readStages(f, params.inputPath)
	if err != nil {
		return err
	}
	reportRowErrors(cmd, rowErrs)

	result, err := lca.NewEngine().Evaluate(ctx, rows, lca.Options{
		Boundary:         lca.Boundary(params.boundary),
		SensitivityPct:   params.sensitivityPct,
		HotspotThreshold: params.threshold,
	})
	if err != nil {
		log.Error().Ctx(ctx).Err(err).Msg("failed to evaluate LCA")
		return fmt.Errorf("evaluating LCA: %w", err)
	}

	format, err := resolveOutputFormat(params.output)
	if err != nil {
		return err
	}
	if format == outputJSON {
		if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else if err := renderLCATable(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	log.Info().Ctx(ctx).Str("operation", "lca").Int("stage_count", len(result.Stages)).
		Dur("duration_ms", time.Since(start)).Msg("LCA evaluation complete")

	return saveRun(cmd, "lca", params.savePath, result)
}

func readStages(r io.Reader, path string) ([]lca.StageRow, []ingest.RowError, error) {
	rows, rowErrs, err := ingest.ReadStages(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return rows, rowErrs, nil
}

// renderLCATable renders stage totals, hotspots, and the sensitivity range.
func renderLCATable(w io.Writer, result *lca.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tAMOUNT\tFACTOR\tALLOCATION\tCO2E\tINCLUDED")
	for _, st := range result.Stages {
		included := "yes"
		if !st.Included {
			included = "no"
		}
		if st.Clamped {
			included += " (allocation clamped)"
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%.4f\t%.2f\t%s\t%s\n",
			st.Stage, st.Amount, st.Factor, st.Allocation, report.FormatCO2e(st.CO2e), included)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Boundary: %s\n", result.Boundary)
	fmt.Fprintf(w, "Filtered total: %s kg CO2e\n", report.FormatCO2e(result.FilteredTotal))

	if len(result.Hotspots) > 0 {
		fmt.Fprintln(w, "Hotspots:")
		for _, h := range result.Hotspots {
			fmt.Fprintf(w, "  %s: %s (%s of total)\n",
				h.Stage, report.FormatCO2e(h.CO2e), report.FormatPct(h.Share*100))
		}
	}

	if len(result.Sensitivity.PerStage) > 0 {
		fmt.Fprintf(w, "Sensitivity (±%.0f%%): %s to %s kg CO2e\n",
			result.Sensitivity.Pct,
			report.FormatCO2e(result.Sensitivity.LowTotal),
			report.FormatCO2e(result.Sensitivity.HighTotal))
	}

	for _, rowErr := range result.InvalidRows {
		fmt.Fprintf(w, "Invalid row: %s\n", rowErr.Error())
	}
	return nil
}
