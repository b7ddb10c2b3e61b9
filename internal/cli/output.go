package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rshade/carbonledger/internal/config"
	"github.com/rshade/carbonledger/internal/engine"
	"github.com/rshade/carbonledger/internal/report"
	"github.com/rshade/carbonledger/internal/tui"
)

// Output format names.
const (
	outputTable = "table"
	outputJSON  = "json"
)

// resolveOutputFormat applies the config default when the flag is empty
// and validates the result.
func resolveOutputFormat(format string) (string, error) {
	if format == "" {
		format = config.GetGlobalConfig().Output.DefaultFormat
	}
	switch format {
	case outputTable, outputJSON:
		return format, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RenderEmissionsOutput routes a computed result to JSON, the plain
// table, or the interactive browser.
func RenderEmissionsOutput(cmd *cobra.Command, format string, interactive bool, result *engine.Result) error {
	format, err := resolveOutputFormat(format)
	if err != nil {
		return err
	}

	// Structured output always bypasses the TUI.
	if format == outputJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}

	if interactive && isTerminal(os.Stdout) {
		p := tea.NewProgram(tui.NewResultsModel(result))
		if _, runErr := p.Run(); runErr != nil {
			return fmt.Errorf("failed to run interactive browser: %w", runErr)
		}
		return nil
	}

	return renderEmissionsTable(cmd.OutOrStdout(), result)
}

// renderEmissionsTable renders the plain tab-aligned result table plus
// the aggregate summary.
func renderEmissionsTable(w io.Writer, result *engine.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCOPE\tACTIVITY\tAMOUNT\tUNIT\tFACTOR\tCO2E\tSOURCE")

	for _, rr := range result.Rows {
		factorStr := fmt.Sprintf("%.4f", rr.Factor)
		co2eStr := report.FormatCO2e(rr.CO2e)
		source := rr.Provenance.Source
		if rr.Unresolved {
			factorStr, co2eStr, source = "-", "-", "unresolved"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\t%s\t%s\n",
			rr.Scope, rr.Row.Activity, rr.Amount, rr.Unit, factorStr, co2eStr, source)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total CO2e: %s kg\n", report.FormatCO2e(result.Total))
	for _, scope := range []engine.Scope{engine.Scope1, engine.Scope2, engine.Scope3} {
		if co2e, ok := result.ByScope[scope]; ok {
			fmt.Fprintf(w, "  %s: %s\n", scope, report.FormatCO2e(co2e))
		}
	}
	if result.UnresolvedCount > 0 {
		fmt.Fprintf(w, "Unresolved rows (excluded from totals): %d\n", result.UnresolvedCount)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
	return nil
}

// saveRun persists a run record to path when path is non-empty.
func saveRun(cmd *cobra.Command, kind, path string, payload any) error {
	if path == "" {
		return nil
	}

	run, err := report.NewRun(kind, payload)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating run file: %w", err)
	}
	defer f.Close()

	if err := run.WriteJSON(f); err != nil {
		return fmt.Errorf("writing run record: %w", err)
	}
	cmd.PrintErrf("Run %s saved to %s\n", run.ID, path)
	return nil
}
