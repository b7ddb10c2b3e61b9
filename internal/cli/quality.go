package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/carbonledger/internal/config"
	"github.com/rshade/carbonledger/internal/engine"
	"github.com/rshade/carbonledger/internal/logging"
	"github.com/rshade/carbonledger/internal/quality"
	"github.com/rshade/carbonledger/internal/report"
)

// qualityParams holds the parameters for the quality command execution.
type qualityParams struct {
	inputPath       string
	productionUnits float64
	revenueMUSD     float64
	employees       float64
	output          string
	savePath        string
}

// NewQualityCmd creates the "quality" command for data quality scoring.
//
// Registered flags:
//   - --input: path to the activity-data CSV file (required)
//   - --production-units, --revenue-musd, --employees: intensity-KPI
//     denominators (defaults from configuration)
//   - --output: output format, table or json
//   - --save: write a run record to the given path
func NewQualityCmd() *cobra.Command {
	var params qualityParams
	defaults := config.GetGlobalConfig().Denominators

	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Score input data quality and compute intensity KPIs",
		Long: `Score an activity-data CSV on a 0-100 scale by counting missing
values, non-numeric fields, duplicates, negatives, and statistical
outliers. KPIs divide the computed total by the given denominators and
are reported as undefined when a denominator is zero.`,
		Example: qualityExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeQuality(cmd, params)
		},
	}

	cmd.Flags().StringVar(&params.inputPath, "input", "", "Path to activity-data CSV (required)")
	cmd.Flags().Float64Var(&params.productionUnits, "production-units", defaults.ProductionUnits,
		"Production units for tCO2e/unit intensity")
	cmd.Flags().Float64Var(&params.revenueMUSD, "revenue-musd", defaults.RevenueMUSD,
		"Revenue in million USD for tCO2e/MUSD intensity")
	cmd.Flags().Float64Var(&params.employees, "employees", defaults.Employees,
		"Employee count for tCO2e/employee intensity")
	cmd.Flags().StringVar(&params.output, "output", "", "Output format: table or json")
	cmd.Flags().StringVar(&params.savePath, "save", "", "Write a run record to the given path")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

const qualityExample = `  # Score data quality
  carbonledger quality --input activities.csv

  # Include intensity KPIs
  carbonledger quality --input activities.csv --production-units 1000 --employees 250

  # Output as JSON
  carbonledger quality --input activities.csv --output json`

// executeQuality scores the raw rows, computes the inventory total for
// intensity KPIs, and renders the quality report.
func executeQuality(cmd *cobra.Command, params qualityParams) error {
	ctx := cmd.Context()
	start := time.Now()

	log := logging.FromContext(ctx)
	log.Debug().Ctx(ctx).Str("operation", "quality").Str("input", params.inputPath).
		Msg("starting quality assessment")

	dataset, err := readActivityFile(params.inputPath)
	if err != nil {
		return err
	}

	qualityReport := quality.NewScorer().Score(ctx, dataset.Raw)

	// KPIs need the inventory total; compute it from the typed rows
	// using the factor library.
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
		return fmt.Errorf("computing inventory for KPIs: %w", err)
	}

	qualityReport.KPIs = quality.ComputeKPIs(result.Total, quality.Denominators{
		ProductionUnits: params.productionUnits,
		RevenueMUSD:     params.revenueMUSD,
		Employees:       params.employees,
	})

	format, err := resolveOutputFormat(params.output)
	if err != nil {
		return err
	}
	if format == outputJSON {
		if err := writeJSON(cmd.OutOrStdout(), qualityReport); err != nil {
			return err
		}
	} else if err := renderQualityTable(cmd.OutOrStdout(), qualityReport); err != nil {
		return err
	}

	log.Info().Ctx(ctx).Str("operation", "quality").Float64("score", qualityReport.Score).
		Dur("duration_ms", time.Since(start)).Msg("quality assessment complete")

	return saveRun(cmd, "quality", params.savePath, qualityReport)
}

// renderQualityTable renders the score, issue counts, and KPIs.
func renderQualityTable(w io.Writer, qr *quality.Report) error {
	fmt.Fprintf(w, "Quality score: %.1f / 100 (%d rows)\n", qr.Score, qr.RowCount)

	if len(qr.Issues) > 0 {
		issues := make([]string, 0, len(qr.Issues))
		for issue := range qr.Issues {
			issues = append(issues, string(issue))
		}
		sort.Strings(issues)

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ISSUE\tCOUNT")
		for _, issue := range issues {
			fmt.Fprintf(tw, "%s\t%d\n", issue, qr.Issues[quality.IssueType(issue)])
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(qr.KPIs) > 0 {
		names := make([]string, 0, len(qr.KPIs))
		for name := range qr.KPIs {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(w, "KPIs:")
		for _, name := range names {
			kpi := qr.KPIs[name]
			if kpi.Defined {
				fmt.Fprintf(w, "  %s: %s\n", name, report.FormatCO2e(kpi.Value))
			} else {
				fmt.Fprintf(w, "  %s: undefined (zero denominator)\n", name)
			}
		}
	}
	return nil
}
