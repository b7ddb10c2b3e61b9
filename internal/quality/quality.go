// Package quality scores an input activity table for data-integrity
// issues and computes emissions-intensity KPIs.
//
// Scoring runs on the raw, pre-coercion row schema so non-numeric values
// are still visible; the other calculation packages only ever see rows
// that already passed numeric validation. Penalty weights are fixed
// constants so scores stay comparable across runs.
package quality

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rshade/carbonledger/internal/logging"
)

// IssueType classifies a detected data-quality issue.
type IssueType string

// Issue types. A row may contribute to several counts at once.
const (
	IssueMissing    IssueType = "missing"
	IssueNonNumeric IssueType = "non_numeric"
	IssueDuplicate  IssueType = "duplicate"
	IssueNegative   IssueType = "negative"
	IssueOutlier    IssueType = "outlier"
)

// Fixed penalty weights per issue occurrence. Not configurable per call:
// a score of 73 must mean the same thing in every run.
const (
	weightMissing    = 5.0
	weightNonNumeric = 4.0
	weightDuplicate  = 3.0
	weightNegative   = 6.0
	weightOutlier    = 2.0
)

// Outlier detection parameters: a row is an outlier when its CO2e is more
// than outlierSigma standard deviations from its category group mean, and
// groups smaller than outlierMinGroup are skipped.
const (
	outlierSigma    = 3.0
	outlierMinGroup = 3
)

// Row is the raw pre-coercion input row. Numeric fields are strings
// because failing coercion is exactly what this package detects.
type Row struct {
	Category       string `json:"category"`
	Activity       string `json:"activity"`
	Unit           string `json:"unit"`
	Amount         string `json:"amount"`
	EmissionFactor string `json:"emission_factor"`
	CH4            string `json:"ch4"`
	N2O            string `json:"n2o"`
}

// KPI is an intensity metric value. Defined is false when the denominator
// was zero or missing; the value is never silently reported as zero.
type KPI struct {
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

// Report is the scoring output for one table.
type Report struct {
	Score    float64           `json:"score"`
	RowCount int               `json:"row_count"`
	Issues   map[IssueType]int `json:"issues"`
	KPIs     map[string]KPI    `json:"kpis,omitempty"`
}

// Denominators supplies the externally sourced KPI divisors. Zero means
// not provided.
type Denominators struct {
	ProductionUnits float64 `json:"production_units"`
	RevenueMUSD     float64 `json:"revenue_musd"`
	Employees       float64 `json:"employees"`
}

// Scorer assesses row tables. Stateless.
type Scorer struct{}

// NewScorer returns a Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score counts issues independently per type and derives the 0-100
// score. An empty table scores 0 with a single missing issue.
func (s *Scorer) Score(ctx context.Context, rows []Row) *Report {
	log := logging.FromContext(ctx)

	report := &Report{
		RowCount: len(rows),
		Issues:   make(map[IssueType]int),
	}
	if len(rows) == 0 {
		report.Issues[IssueMissing] = 1
		return report
	}

	seen := make(map[string]bool, len(rows))
	type parsedRow struct {
		category string
		co2e     float64
		ok       bool
	}
	parsed := make([]parsedRow, len(rows))

	for i, row := range rows {
		for _, field := range []string{row.Category, row.Activity, row.Unit, row.Amount} {
			if strings.TrimSpace(field) == "" {
				report.Issues[IssueMissing]++
			}
		}

		amount, amountOK := parseNumeric(row.Amount)
		factor, factorOK := parseNumeric(row.EmissionFactor)
		for _, check := range []struct {
			raw string
			ok  bool
		}{
			{row.Amount, amountOK},
			{row.EmissionFactor, factorOK},
			{row.CH4, numericOrEmpty(row.CH4)},
			{row.N2O, numericOrEmpty(row.N2O)},
		} {
			if strings.TrimSpace(check.raw) != "" && !check.ok {
				report.Issues[IssueNonNumeric]++
			}
		}

		key := dedupeKey(row)
		if seen[key] {
			report.Issues[IssueDuplicate]++
		}
		seen[key] = true

		if amountOK && amount < 0 {
			report.Issues[IssueNegative]++
		}
		if factorOK && factor < 0 {
			report.Issues[IssueNegative]++
		}

		if amountOK && factorOK {
			parsed[i] = parsedRow{
				category: strings.ToLower(strings.TrimSpace(row.Category)),
				co2e:     amount * factor,
				ok:       true,
			}
		}
	}

	// Outliers: z-score per scope-category group.
	groups := make(map[string][]float64)
	for _, p := range parsed {
		if p.ok {
			groups[p.category] = append(groups[p.category], p.co2e)
		}
	}
	for _, cat := range sortedKeys(groups) {
		values := groups[cat]
		if len(values) < outlierMinGroup {
			continue
		}
		mean, stddev := meanStddev(values)
		if stddev == 0 {
			continue
		}
		for _, v := range values {
			if math.Abs(v-mean) > outlierSigma*stddev {
				report.Issues[IssueOutlier]++
			}
		}
	}

	penalty := weightMissing*float64(report.Issues[IssueMissing]) +
		weightNonNumeric*float64(report.Issues[IssueNonNumeric]) +
		weightDuplicate*float64(report.Issues[IssueDuplicate]) +
		weightNegative*float64(report.Issues[IssueNegative]) +
		weightOutlier*float64(report.Issues[IssueOutlier])

	report.Score = math.Max(0, 100.0-penalty)

	log.Debug().
		Str("component", "quality").
		Int("rows", report.RowCount).
		Float64("score", report.Score).
		Msg("data quality scored")

	return report
}

// ComputeKPIs derives intensity metrics from the total and the supplied
// denominators. A zero or missing denominator yields Defined=false.
func ComputeKPIs(totalCO2e float64, d Denominators) map[string]KPI {
	kpis := map[string]KPI{
		"tco2e_per_unit":     intensity(totalCO2e, d.ProductionUnits),
		"tco2e_per_musd":     intensity(totalCO2e, d.RevenueMUSD),
		"tco2e_per_employee": intensity(totalCO2e, d.Employees),
	}
	return kpis
}

func intensity(total, denominator float64) KPI {
	if denominator <= 0 || math.IsNaN(denominator) || math.IsInf(denominator, 0) {
		return KPI{Defined: false}
	}
	return KPI{Value: total / denominator, Defined: true}
}

func parseNumeric(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func numericOrEmpty(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return true
	}
	_, ok := parseNumeric(raw)
	return ok
}

// dedupeKey is the duplicate-detection identity: (category, activity,
// unit), case-insensitive.
func dedupeKey(row Row) string {
	return strings.ToLower(strings.TrimSpace(row.Category)) + "|" +
		strings.ToLower(strings.TrimSpace(row.Activity)) + "|" +
		strings.ToLower(strings.TrimSpace(row.Unit))
}

func meanStddev(values []float64) (mean, stddev float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sumSq float64
	for _, v := range values {
		sumSq += (v - mean) * (v - mean)
	}
	stddev = math.Sqrt(sumSq / float64(len(values)))
	return mean, stddev
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
