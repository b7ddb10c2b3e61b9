// Package engine computes CO2e emissions from tabular activity data.
//
// The calculator is a pure function of its input rows and the read-only
// factor snapshot in the calculation context: no shared state, no hidden
// counters, and identical inputs always produce identical results. Rows
// that fail validation or factor resolution are reported, never silently
// zeroed, because a dropped row is an understated compliance number.
package engine

import (
	"fmt"
	"strings"

	"github.com/rshade/carbonledger/internal/factors"
)

// Global-warming potentials (AR5, 100-year horizon). Fixed named
// constants: a calculation run binds exactly one methodology version.
const (
	// GWPCH4 converts mass of CH4 to CO2-equivalent mass.
	GWPCH4 = 28.0

	// GWPN2O converts mass of N2O to CO2-equivalent mass.
	GWPN2O = 265.0
)

// Scope identifies a GHG Protocol scope.
type Scope string

// GHG Protocol scopes.
const (
	Scope1       Scope = "scope1"
	Scope2       Scope = "scope2"
	Scope3       Scope = "scope3"
	ScopeUnknown Scope = "unknown"
)

// scopeAliases maps the category spellings seen in real ingestion data to
// canonical scopes.
//
//nolint:gochecknoglobals // Fixed alias table.
var scopeAliases = map[string]Scope{
	"scope1": Scope1, "scope_1": Scope1, "scope 1": Scope1, "s1": Scope1,
	"scope2": Scope2, "scope_2": Scope2, "scope 2": Scope2, "s2": Scope2,
	"scope3": Scope3, "scope_3": Scope3, "scope 3": Scope3, "s3": Scope3,
}

// NormalizeScope maps a free-form category label to a canonical Scope.
// Unrecognized labels map to ScopeUnknown rather than failing.
func NormalizeScope(category string) Scope {
	norm := strings.ToLower(strings.TrimSpace(category))
	if s, ok := scopeAliases[norm]; ok {
		return s
	}
	return ScopeUnknown
}

// ActivityRow is one measured activity from the ingestion boundary.
// EmissionFactor, CH4, and N2O are optional; nil means absent, which is a
// different state than zero.
type ActivityRow struct {
	Category       string   `json:"category"`
	Activity       string   `json:"activity"`
	Unit           string   `json:"unit"`
	Amount         float64  `json:"amount"`
	EmissionFactor *float64 `json:"emission_factor,omitempty"`
	Source         string   `json:"source,omitempty"`
	CH4            *float64 `json:"ch4,omitempty"`
	N2O            *float64 `json:"n2o,omitempty"`
}

// RowResult is the computed outcome for one activity row.
type RowResult struct {
	Row           ActivityRow        `json:"row"`
	Scope         Scope              `json:"scope"`
	ScopeCategory string             `json:"scope_category"`
	Amount        float64            `json:"amount_normalized"`
	Unit          string             `json:"unit_normalized"`
	Factor        float64            `json:"emission_factor"`
	Provenance    factors.Provenance `json:"provenance"`
	CO2e          float64            `json:"co2e"`

	// Unresolved marks a row with no library factor and no override.
	// Unresolved rows are retained but excluded from every aggregate.
	Unresolved bool `json:"unresolved,omitempty"`

	// Warnings carries unit-conversion flags attached to this row.
	Warnings []string `json:"warnings,omitempty"`
}

// RowError reports a validation failure for one input row. The row is
// excluded from calculation; the batch proceeds.
type RowError struct {
	Index  int    `json:"index"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error implements the error interface.
func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Index, e.Field, e.Reason)
}

// Result is the emissions output for one calculation run. It is a value
// object: serialize it, reload it, and it compares identically to a fresh
// computation.
type Result struct {
	Rows            []RowResult        `json:"rows"`
	InvalidRows     []RowError         `json:"invalid_rows,omitempty"`
	Total           float64            `json:"total_co2e"`
	ByScope         map[Scope]float64  `json:"by_scope"`
	ByCategory      map[string]float64 `json:"by_scope_category"`
	UnresolvedCount int                `json:"unresolved_count"`
	Warnings        []string           `json:"warnings,omitempty"`
}

// Context is the read-only calculation context: the factor snapshot plus
// the (region, year) the caller is reporting for.
type Context struct {
	Region   string
	Year     int
	Snapshot *factors.Snapshot
}
