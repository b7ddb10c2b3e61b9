package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/carbonledger/internal/engine"
	"github.com/rshade/carbonledger/internal/factors"
	"github.com/rshade/carbonledger/internal/quality"
)

func sampleResult() *engine.Result {
	rows := []engine.RowResult{
		{
			Row:           engine.ActivityRow{Category: "scope1", Activity: "diesel", Unit: "L", Amount: 100},
			Scope:         engine.Scope1,
			ScopeCategory: "stationary_combustion",
			Unit:          "l",
			Factor:        2.68,
			Provenance:    factors.Provenance{Source: "seed-library", Version: "1.0.0", Region: "global", Year: 2024},
			CO2e:          268,
		},
		{
			Row:           engine.ActivityRow{Category: "scope2", Activity: "electricity", Unit: "kWh", Amount: 1000},
			Scope:         engine.Scope2,
			ScopeCategory: "purchased_electricity",
			Unit:          "kwh",
			Factor:        0.4,
			Provenance:    factors.Provenance{Source: "seed-library", Version: "1.0.0", Region: "global", Year: 2024},
			CO2e:          400,
		},
		{
			Row:        engine.ActivityRow{Category: "scope3", Activity: "mystery", Unit: "kg", Amount: 5},
			Scope:      engine.Scope3,
			Unresolved: true,
		},
	}
	total, byScope, byCategory, unresolved := engine.Aggregate(rows)
	return &engine.Result{
		Rows:            rows,
		Total:           total,
		ByScope:         byScope,
		ByCategory:      byCategory,
		UnresolvedCount: unresolved,
	}
}

func TestRunRoundTrip(t *testing.T) {
	result := sampleResult()

	run, err := NewRun("emissions", result)
	require.NoError(t, err)
	assert.Len(t, run.ID, 26) // ULID length
	assert.Equal(t, "emissions", run.Kind)

	var buf bytes.Buffer
	require.NoError(t, run.WriteJSON(&buf))

	reloaded, err := ReadRun(&buf)
	require.NoError(t, err)
	assert.Equal(t, run.ID, reloaded.ID)

	restored, err := reloaded.EmissionsResult()
	require.NoError(t, err)

	// A reloaded result aggregates identically to the fresh one.
	assert.InDelta(t, result.Total, restored.Total, 1e-9)
	assert.Equal(t, result.ByScope, restored.ByScope)
	assert.Equal(t, result.UnresolvedCount, restored.UnresolvedCount)
}

func TestEmissionsResultKindMismatch(t *testing.T) {
	run, err := NewRun("lca", map[string]string{})
	require.NoError(t, err)

	_, err = run.EmissionsResult()
	assert.Error(t, err)
}

func TestComplianceTables(t *testing.T) {
	result := sampleResult()
	qr := &quality.Report{Score: 95, RowCount: 3, Issues: map[quality.IssueType]int{quality.IssueMissing: 1}}
	kpis := quality.ComputeKPIs(result.Total, quality.Denominators{ProductionUnits: 100})

	tables := ComplianceTables(result, qr, kpis, Metadata{Organization: "Acme", ReportingYear: "2024"})

	byName := map[string]Table{}
	for _, tbl := range tables {
		byName[tbl.Name] = tbl
	}

	scope := byName["ghg_scope_table"]
	require.NotEmpty(t, scope.Rows)
	last := scope.Rows[len(scope.Rows)-1]
	assert.Equal(t, "total", last[0])
	assert.Equal(t, "668.0000", last[1])
	assert.Equal(t, "GHG Protocol", last[2])

	// Unresolved rows carry no citation.
	prov := byName["factor_provenance"]
	assert.Len(t, prov.Rows, 2)

	kpi := byName["intensity_kpi"]
	require.Len(t, kpi.Rows, 3)
	for _, row := range kpi.Rows {
		if row[0] == "tco2e_per_employee" {
			assert.Equal(t, "undefined", row[1])
		}
	}

	dq := byName["data_quality"]
	require.Len(t, dq.Rows, 1)
	assert.Equal(t, "missing", dq.Rows[0][2])
}

func TestFlowEdges(t *testing.T) {
	edges := FlowEdges(sampleResult())

	// Unresolved rows are skipped; edges sort by scope then activity.
	require.Len(t, edges, 2)
	assert.Equal(t, Edge{Source: "scope1", Target: "diesel", Value: 268}, edges[0])
	assert.Equal(t, Edge{Source: "scope2", Target: "electricity", Value: 400}, edges[1])
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "18,248", FormatNumber(18248))
	assert.Equal(t, "1,234.57", FormatCO2e(1234.567))
	assert.Equal(t, "0.00", FormatCO2e(0))
	assert.Equal(t, "23.5%", FormatPct(23.456))
}
