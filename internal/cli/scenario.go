package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/carbonledger/internal/engine"
	"github.com/rshade/carbonledger/internal/ingest"
	"github.com/rshade/carbonledger/internal/logging"
	"github.com/rshade/carbonledger/internal/report"
	"github.com/rshade/carbonledger/internal/scenario"
)

// scenarioParams holds the parameters for the scenario command execution.
type scenarioParams struct {
	inputPath string
	planPath  string
	region    string
	year      int
	output    string
	savePath  string
}

// NewScenarioCmd creates the "scenario" command for reduction planning.
//
// Registered flags:
//   - --input: path to the activity-data CSV file (required)
//   - --plan: path to the YAML reduction plan (required)
//   - --region, --year: factor context overrides
//   - --output: output format, table or json
//   - --save: write a run record to the given path
func NewScenarioCmd() *cobra.Command {
	var params scenarioParams

	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Apply a reduction plan and evaluate targets",
		Long: `Compute a baseline inventory, apply per-scope and per-activity
reduction fractions from a YAML plan, and evaluate reduction targets
against the achieved deltas.`,
		Example: scenarioExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeScenario(cmd, params)
		},
	}

	cmd.Flags().StringVar(&params.inputPath, "input", "", "Path to activity-data CSV (required)")
	cmd.Flags().StringVar(&params.planPath, "plan", "", "Path to YAML reduction plan (required)")
	cmd.Flags().StringVar(&params.region, "region", "", "Factor region (default from config)")
	cmd.Flags().IntVar(&params.year, "year", 0, "Factor year (default from config)")
	cmd.Flags().StringVar(&params.output, "output", "", "Output format: table or json")
	cmd.Flags().StringVar(&params.savePath, "save", "", "Write a run record to the given path")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

const scenarioExample = `  # Apply a plan to a baseline inventory
  carbonledger scenario --input activities.csv --plan plan.yaml

  # Output as JSON
  carbonledger scenario --input activities.csv --plan plan.yaml --output json`

// executeScenario computes the baseline, applies the plan, and renders
// the baseline/scenario comparison with target outcomes.
func executeScenario(cmd *cobra.Command, params scenarioParams) error {
	ctx := cmd.Context()
	start := time.Now()

	log := logging.FromContext(ctx)
	log.Debug().Ctx(ctx).Str("operation", "scenario").Str("input", params.inputPath).
		Str("plan", params.planPath).Msg("starting scenario evaluation")

	dataset, err := readActivityFile(params.inputPath)
	if err != nil {
		return err
	}
	reportRowErrors(cmd, dataset.Errors)

	plan, err := readPlanFile(params.planPath)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	calcCtx, err := resolutionContext(ctx, cmd, st)
	if err != nil {
		return err
	}

	baseline, err := engine.NewCalculator().Compute(ctx, dataset.Rows, calcCtx)
	if err != nil {
		return fmt.Errorf("computing baseline: %w", err)
	}

	result, err := scenario.NewPlanner().Plan(ctx, baseline, *plan)
	if err != nil {
		log.Error().Ctx(ctx).Err(err).Msg("failed to evaluate scenario")
		return fmt.Errorf("evaluating scenario: %w", err)
	}

	format, err := resolveOutputFormat(params.output)
	if err != nil {
		return err
	}
	if format == outputJSON {
		if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else if err := renderScenarioTable(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	log.Info().Ctx(ctx).Str("operation", "scenario").Bool("overall_pass", result.OverallPass).
		Dur("duration_ms", time.Since(start)).Msg("scenario evaluation complete")

	return saveRun(cmd, "scenario", params.savePath, result)
}

func readPlanFile(path string) (*scenario.Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening plan file: %w", err)
	}
	defer f.Close()

	plan, err := ingest.ReadPlan(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return plan, nil
}

// renderScenarioTable renders the per-scope comparison and target outcomes.
func renderScenarioTable(w io.Writer, result *scenario.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCOPE\tBASELINE\tSCENARIO\tDELTA\tDELTA%")
	for _, scope := range []engine.Scope{engine.Scope1, engine.Scope2, engine.Scope3} {
		delta, ok := result.ByScope[scope]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			scope,
			report.FormatCO2e(delta.Baseline),
			report.FormatCO2e(delta.Scenario),
			report.FormatCO2e(delta.Delta),
			report.FormatPct(delta.DeltaPct))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total: %s -> %s kg CO2e (%s)\n",
		report.FormatCO2e(result.Baseline.Total),
		report.FormatCO2e(result.Scenario.Total),
		report.FormatPct(result.DeltaPct))

	if len(result.Targets) > 0 {
		fmt.Fprintln(w, "Targets:")
		for _, tr := range result.Targets {
			status := "FAIL"
			if tr.Passed {
				status = "PASS"
			}
			fmt.Fprintf(w, "  %s: required %s, achieved %s [%s]\n",
				tr.Target.Scope,
				report.FormatPct(tr.Target.RequiredPct),
				report.FormatPct(tr.AchievedPct),
				status)
		}
		overall := "FAIL"
		if result.OverallPass {
			overall = "PASS"
		}
		fmt.Fprintf(w, "Overall: %s\n", overall)
	}

	for _, flag := range result.Flags {
		fmt.Fprintf(w, "Warning: %s\n", flag)
	}
	return nil
}
