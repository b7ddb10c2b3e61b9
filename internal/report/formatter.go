package report

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer is the locale-aware message printer for number formatting.
// English locale for consistent thousand separators.
//
//nolint:gochecknoglobals // Global printer is idiomatic for x/text/message usage.
var printer = message.NewPrinter(language.English)

// FormatNumber formats an integer with thousand separators.
func FormatNumber(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatCO2e formats a CO2e mass with thousand separators and two
// decimals, e.g. "12,345.68".
func FormatCO2e(v float64) string {
	rounded := math.Round(v*100) / 100
	intPart, frac := math.Modf(rounded)
	return printer.Sprintf("%d", int64(intPart)) + fmt.Sprintf("%.2f", math.Abs(frac))[1:]
}

// FormatPct formats a percentage with one decimal, e.g. "23.5%".
func FormatPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
