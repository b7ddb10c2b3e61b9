// Package report projects calculation results into flat, stable export
// structures for downstream formatting and storage collaborators.
//
// Nothing here re-derives values: tables and flow edges are projections
// of the aggregates and provenance the engine already computed, so a
// persisted result reloaded from JSON projects identically to a fresh
// one.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rshade/carbonledger/internal/engine"
	"github.com/rshade/carbonledger/internal/quality"
)

// Run wraps a calculation output with its identity: a ULID run ID and a
// UTC creation timestamp. Storage collaborators persist Runs verbatim.
type Run struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// NewRunID returns a new ULID run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// NewRun wraps payload in a Run of the given kind ("emissions", "lca",
// "scenario", "quality").
func NewRun(kind string, payload any) (*Run, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s run payload: %w", kind, err)
	}
	return &Run{
		ID:        NewRunID(),
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// WriteJSON serializes the run to w.
func (r *Run) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ReadRun deserializes a run previously written with WriteJSON.
func ReadRun(rd io.Reader) (*Run, error) {
	var run Run
	if err := json.NewDecoder(rd).Decode(&run); err != nil {
		return nil, fmt.Errorf("decoding run: %w", err)
	}
	return &run, nil
}

// EmissionsResult unpacks an "emissions" run payload.
func (r *Run) EmissionsResult() (*engine.Result, error) {
	if r.Kind != "emissions" {
		return nil, fmt.Errorf("run %s has kind %q, not emissions", r.ID, r.Kind)
	}
	var result engine.Result
	if err := json.Unmarshal(r.Payload, &result); err != nil {
		return nil, fmt.Errorf("decoding emissions payload: %w", err)
	}
	return &result, nil
}

// Table is a flat named table for export collaborators: fixed column
// order, stringly-typed cells, no nested structures.
type Table struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Metadata carries the reporting context stamped onto compliance tables.
type Metadata struct {
	Organization      string `json:"organization"`
	ReportingYear     string `json:"reporting_year"`
	ReportingStandard string `json:"reporting_standard"`
}

// ComplianceTables builds the compliance-oriented export tables from a
// result plus optional quality and KPI inputs. The table and column
// names are a stable contract with export collaborators.
func ComplianceTables(result *engine.Result, qr *quality.Report, kpis map[string]quality.KPI, meta Metadata) []Table {
	if meta.ReportingStandard == "" {
		meta.ReportingStandard = "GHG Protocol"
	}

	tables := []Table{
		scopeTable(result, meta),
		provenanceTable(result),
	}

	if len(kpis) > 0 {
		tables = append(tables, kpiTable(kpis))
	}
	if qr != nil {
		tables = append(tables, qualityTable(qr))
	}
	return tables
}

func scopeTable(result *engine.Result, meta Metadata) Table {
	t := Table{
		Name:    "ghg_scope_table",
		Columns: []string{"scope", "total_co2e", "reporting_standard", "reporting_year", "organization"},
	}

	scopes := make([]string, 0, len(result.ByScope))
	for scope := range result.ByScope {
		scopes = append(scopes, string(scope))
	}
	sort.Strings(scopes)

	for _, scope := range scopes {
		t.Rows = append(t.Rows, []string{
			scope,
			formatCell(result.ByScope[engine.Scope(scope)]),
			meta.ReportingStandard,
			meta.ReportingYear,
			meta.Organization,
		})
	}
	t.Rows = append(t.Rows, []string{"total", formatCell(result.Total), meta.ReportingStandard, meta.ReportingYear, meta.Organization})
	return t
}

// provenanceTable lists each resolved row's factor citation.
func provenanceTable(result *engine.Result) Table {
	t := Table{
		Name:    "factor_provenance",
		Columns: []string{"activity", "unit", "emission_factor", "source", "version", "region", "year"},
	}
	for _, rr := range result.Rows {
		if rr.Unresolved {
			continue
		}
		t.Rows = append(t.Rows, []string{
			rr.Row.Activity,
			rr.Unit,
			formatCell(rr.Factor),
			rr.Provenance.Source,
			rr.Provenance.Version,
			rr.Provenance.Region,
			fmt.Sprintf("%d", rr.Provenance.Year),
		})
	}
	return t
}

func kpiTable(kpis map[string]quality.KPI) Table {
	t := Table{
		Name:    "intensity_kpi",
		Columns: []string{"metric", "value"},
	}

	names := make([]string, 0, len(kpis))
	for name := range kpis {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		kpi := kpis[name]
		value := "undefined"
		if kpi.Defined {
			value = formatCell(kpi.Value)
		}
		t.Rows = append(t.Rows, []string{name, value})
	}
	return t
}

func qualityTable(qr *quality.Report) Table {
	t := Table{
		Name:    "data_quality",
		Columns: []string{"score", "row_count", "issue_type", "count"},
	}

	issues := make([]string, 0, len(qr.Issues))
	for issue := range qr.Issues {
		issues = append(issues, string(issue))
	}
	sort.Strings(issues)

	if len(issues) == 0 {
		t.Rows = append(t.Rows, []string{formatCell(qr.Score), fmt.Sprintf("%d", qr.RowCount), "none", "0"})
		return t
	}
	for _, issue := range issues {
		t.Rows = append(t.Rows, []string{
			formatCell(qr.Score),
			fmt.Sprintf("%d", qr.RowCount),
			issue,
			fmt.Sprintf("%d", qr.Issues[quality.IssueType(issue)]),
		})
	}
	return t
}

// Edge is one flowchart edge for Sankey-style rendering.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Value  float64 `json:"value"`
}

// FlowEdges builds scope-to-activity emission edges from a result,
// suitable for a Sankey diagram of emission sources. Rows are grouped by
// (scope, activity); unresolved rows are skipped.
func FlowEdges(result *engine.Result) []Edge {
	type key struct {
		scope    engine.Scope
		activity string
	}
	grouped := make(map[key]float64)
	for _, rr := range result.Rows {
		if rr.Unresolved {
			continue
		}
		grouped[key{rr.Scope, rr.Row.Activity}] += rr.CO2e
	}

	keys := make([]key, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].scope != keys[j].scope {
			return keys[i].scope < keys[j].scope
		}
		return keys[i].activity < keys[j].activity
	})

	edges := make([]Edge, 0, len(keys))
	for _, k := range keys {
		edges = append(edges, Edge{
			Source: string(k.scope),
			Target: k.activity,
			Value:  grouped[k],
		})
	}
	return edges
}

func formatCell(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
