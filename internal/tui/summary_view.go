package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rshade/carbonledger/internal/engine"
	"github.com/rshade/carbonledger/internal/report"
)

const borderPadding = 2

// RenderEmissionsSummary renders a boxed summary of a computed result:
// total CO2e, per-scope breakdown with shares sorted by descending
// contribution, and unresolved/warning counts when present.
func RenderEmissionsSummary(result *engine.Result, width int) string {
	if result == nil || len(result.Rows) == 0 {
		return InfoStyle.Render("No results to display.")
	}

	var content strings.Builder

	content.WriteString(HeaderStyle.Render("EMISSIONS SUMMARY"))
	content.WriteString("\n")

	content.WriteString(LabelStyle.Render("Total CO2e:  "))
	content.WriteString(ValueStyle.Render(report.FormatCO2e(result.Total) + " kg"))
	content.WriteString(LabelStyle.Render("    Rows: "))
	content.WriteString(ValueStyle.Render(strconv.Itoa(len(result.Rows))))
	content.WriteString("\n")

	type scopeShare struct {
		Scope engine.Scope
		CO2e  float64
	}
	var shares []scopeShare
	for scope, co2e := range result.ByScope {
		shares = append(shares, scopeShare{scope, co2e})
	}
	sort.Slice(shares, func(i, j int) bool {
		return shares[i].CO2e > shares[j].CO2e
	})

	var parts []string
	for _, s := range shares {
		pct := 0.0
		if result.Total > 0 {
			pct = (s.CO2e / result.Total) * 100 //nolint:mnd // Percentage calculation.
		}
		parts = append(parts, fmt.Sprintf("%s: %s (%.1f%%)", s.Scope, report.FormatCO2e(s.CO2e), pct))
	}
	content.WriteString(LabelStyle.Render(strings.Join(parts, "  ")))

	if result.UnresolvedCount > 0 {
		content.WriteString("\n")
		content.WriteString(WarnStyle.Render(
			fmt.Sprintf("%d row(s) without a resolvable emission factor (excluded from totals)", result.UnresolvedCount)))
	}
	if len(result.Warnings) > 0 {
		content.WriteString("\n")
		content.WriteString(SubtleStyle.Render(fmt.Sprintf("%d conversion warning(s)", len(result.Warnings))))
	}

	return BoxStyle.Width(width - borderPadding).Render(content.String())
}
