package engine

import (
	"context"
	"math"
	"sort"

	"github.com/rshade/carbonledger/internal/factors"
	"github.com/rshade/carbonledger/internal/logging"
	"github.com/rshade/carbonledger/internal/units"
)

// Calculator computes CO2e per activity row and aggregates by scope and
// scope category. It holds no state between calls.
type Calculator struct{}

// NewCalculator returns a Calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// RowCO2e is the single-row CO2e primitive shared with the LCA engine:
//
//	co2e = amount*factor + amount*ch4*GWPCH4 + amount*n2o*GWPN2O
//
// where ch4 and n2o are per-unit gas masses.
func RowCO2e(amount, factor, ch4, n2o float64) float64 {
	return amount*factor + amount*ch4*GWPCH4 + amount*n2o*GWPN2O
}

// Compute calculates CO2e for each row and aggregates the batch.
//
// Per-row behavior:
//   - validation failures land in Result.InvalidRows; the batch proceeds
//   - an explicit row factor overrides any library lookup
//   - rows without a resolvable factor are marked Unresolved, retained,
//     and excluded from every total
//   - amounts are normalized to the factor record's unit; incompatible
//     units keep the unconverted amount and attach a warning
//   - zero-amount rows contribute zero and stay in the output
func (c *Calculator) Compute(ctx context.Context, rows []ActivityRow, calcCtx Context) (*Result, error) {
	log := logging.FromContext(ctx)

	resolver := factors.NewResolver(calcCtx.Snapshot)

	result := &Result{
		ByScope:    make(map[Scope]float64),
		ByCategory: make(map[string]float64),
	}

	for i, row := range rows {
		if rowErr := validateRow(i, row); rowErr != nil {
			result.InvalidRows = append(result.InvalidRows, *rowErr)
			continue
		}

		rr := c.computeRow(ctx, resolver, row, calcCtx)
		result.Rows = append(result.Rows, rr)

		if rr.Unresolved {
			result.UnresolvedCount++
			continue
		}

		result.Total += rr.CO2e
		result.ByScope[rr.Scope] += rr.CO2e
		result.ByCategory[rr.ScopeCategory] += rr.CO2e
		result.Warnings = append(result.Warnings, rr.Warnings...)
	}

	// Rows keep input order; batch warnings are sorted and deduplicated
	// so identical inputs serialize identically.
	result.Warnings = dedupeSorted(result.Warnings)

	log.Debug().
		Str("component", "engine").
		Str("operation", "compute").
		Int("rows", len(rows)).
		Int("invalid", len(result.InvalidRows)).
		Int("unresolved", result.UnresolvedCount).
		Float64("total_co2e", result.Total).
		Msg("emissions computed")

	return result, nil
}

// computeRow resolves the factor, normalizes the amount to the factor's
// unit basis, and applies the CO2e formula for one valid row.
func (c *Calculator) computeRow(ctx context.Context, resolver *factors.Resolver, row ActivityRow, calcCtx Context) RowResult {
	rr := RowResult{
		Row:    row,
		Scope:  NormalizeScope(row.Category),
		Amount: row.Amount,
		Unit:   units.Canonical(row.Unit),
	}

	factorUnit := row.Unit

	if row.EmissionFactor != nil {
		// Row override: the factor shares the row's unit basis.
		rr.Factor = *row.EmissionFactor
		rr.Provenance = factors.UserProvided()
		if row.Source != "" {
			rr.Provenance.Source = row.Source
		}
	} else {
		match, err := resolver.Resolve(ctx, factors.Query{
			Activity: row.Activity,
			Unit:     row.Unit,
			Region:   calcCtx.Region,
			Year:     calcCtx.Year,
		})
		if err != nil {
			// Any resolution failure leaves the row unresolved. A row
			// must never proceed with a zero-value factor.
			rr.Unresolved = true
			rr.ScopeCategory = string(rr.Scope)
			return rr
		}
		rr.Factor = match.Value
		rr.Provenance = match.Provenance
		factorUnit = match.Unit
	}

	amount, warn := units.Convert(row.Amount, row.Unit, factorUnit)
	if warn != nil {
		// Incompatible or unknown units: proceed with the unconverted
		// amount and surface the flag on the row.
		amount = row.Amount
		rr.Warnings = append(rr.Warnings, warn.String())
	}
	rr.Amount = amount
	rr.Unit = units.Normalize(factorUnit)

	ch4 := 0.0
	if row.CH4 != nil {
		ch4 = *row.CH4
	}
	n2o := 0.0
	if row.N2O != nil {
		n2o = *row.N2O
	}

	rr.CO2e = RowCO2e(amount, rr.Factor, ch4, n2o)

	rr.ScopeCategory = rr.Provenance.ScopeCategory
	if rr.ScopeCategory == "" {
		rr.ScopeCategory = string(rr.Scope)
	}
	return rr
}

// validateRow enforces the ingestion contract: required fields present,
// amount numeric, finite, and non-negative.
func validateRow(index int, row ActivityRow) *RowError {
	switch {
	case row.Category == "":
		return &RowError{Index: index, Field: "category", Reason: "required field missing"}
	case row.Activity == "":
		return &RowError{Index: index, Field: "activity", Reason: "required field missing"}
	case row.Unit == "":
		return &RowError{Index: index, Field: "unit", Reason: "required field missing"}
	case math.IsNaN(row.Amount) || math.IsInf(row.Amount, 0):
		return &RowError{Index: index, Field: "amount", Reason: "not a finite number"}
	case row.Amount < 0:
		return &RowError{Index: index, Field: "amount", Reason: "negative amount"}
	}

	if row.EmissionFactor != nil && (math.IsNaN(*row.EmissionFactor) || math.IsInf(*row.EmissionFactor, 0)) {
		return &RowError{Index: index, Field: "emission_factor", Reason: "not a finite number"}
	}
	return nil
}

// Aggregate recomputes totals from a set of row results. Scenario
// planning reuses it so scaled rows aggregate exactly like fresh ones.
func Aggregate(rows []RowResult) (total float64, byScope map[Scope]float64, byCategory map[string]float64, unresolved int) {
	byScope = make(map[Scope]float64)
	byCategory = make(map[string]float64)
	for _, rr := range rows {
		if rr.Unresolved {
			unresolved++
			continue
		}
		total += rr.CO2e
		byScope[rr.Scope] += rr.CO2e
		byCategory[rr.ScopeCategory] += rr.CO2e
	}
	return total, byScope, byCategory, unresolved
}

func dedupeSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	sort.Strings(in)
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
