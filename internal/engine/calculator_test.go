package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/carbonledger/internal/factors"
)

func fptr(v float64) *float64 { return &v }

func testContext() Context {
	return Context{
		Region: "global",
		Year:   2024,
		Snapshot: factors.NewSnapshot([]factors.Record{
			{Scope: "scope1", ScopeCategory: "stationary_combustion", Activity: "diesel", Unit: "L", Region: "global", Year: 2024, Value: 2.68, Source: "seed-library", Version: "1.0.0", Active: true},
			{Scope: "scope2", ScopeCategory: "purchased_electricity", Activity: "electricity", Unit: "kWh", Region: "global", Year: 2024, Value: 0.4, Source: "seed-library", Version: "1.0.0", Active: true},
		}),
	}
}

func TestComputeReferenceRow(t *testing.T) {
	calc := NewCalculator()

	result, err := calc.Compute(context.Background(), []ActivityRow{
		{Category: "scope1", Activity: "fuel", Unit: "L", Amount: 100, EmissionFactor: fptr(2.68)},
	}, testContext())
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	assert.InDelta(t, 268.0, result.Rows[0].CO2e, 1e-9)
	assert.InDelta(t, 268.0, result.Total, 1e-9)
	assert.Equal(t, factors.SourceUserProvided, result.Rows[0].Provenance.Source)
}

func TestComputeGWPConversion(t *testing.T) {
	calc := NewCalculator()

	// 10 units with factor 2.0 plus per-unit CH4 and N2O masses.
	result, err := calc.Compute(context.Background(), []ActivityRow{
		{
			Category:       "scope1",
			Activity:       "boiler fuel",
			Unit:           "kg",
			Amount:         10,
			EmissionFactor: fptr(2.0),
			CH4:            fptr(0.001),
			N2O:            fptr(0.0001),
		},
	}, testContext())
	require.NoError(t, err)

	want := 10*2.0 + 10*0.001*GWPCH4 + 10*0.0001*GWPN2O
	assert.InDelta(t, want, result.Total, 1e-9)
}

func TestComputeLibraryResolution(t *testing.T) {
	calc := NewCalculator()

	result, err := calc.Compute(context.Background(), []ActivityRow{
		{Category: "scope1", Activity: "Diesel", Unit: "L", Amount: 50},
		{Category: "scope2", Activity: "electricity", Unit: "kWh", Amount: 1000},
	}, testContext())
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	assert.InDelta(t, 50*2.68, result.Rows[0].CO2e, 1e-9)
	assert.Equal(t, "seed-library", result.Rows[0].Provenance.Source)
	assert.Equal(t, "stationary_combustion", result.Rows[0].ScopeCategory)
	assert.InDelta(t, 400.0, result.Rows[1].CO2e, 1e-9)
}

func TestComputeUnitNormalization(t *testing.T) {
	calc := NewCalculator()

	// Electricity reported in MWh against a per-kWh library factor.
	result, err := calc.Compute(context.Background(), []ActivityRow{
		{Category: "scope2", Activity: "electricity", Unit: "MWh", Amount: 2},
	}, testContext())
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	assert.InDelta(t, 2000.0, result.Rows[0].Amount, 1e-9)
	assert.InDelta(t, 800.0, result.Rows[0].CO2e, 1e-9)
	assert.Empty(t, result.Rows[0].Warnings)
}

func TestComputeUnitMismatchWarns(t *testing.T) {
	calc := NewCalculator()

	// Diesel reported by mass while the library factor is per litre.
	// The row proceeds with the unconverted amount plus a warning.
	result, err := calc.Compute(context.Background(), []ActivityRow{
		{Category: "scope1", Activity: "diesel", Unit: "kg", Amount: 100},
	}, testContext())
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	row := result.Rows[0]
	assert.False(t, row.Unresolved)
	assert.InDelta(t, 100.0, row.Amount, 1e-9)
	assert.InDelta(t, 268.0, row.CO2e, 1e-9)
	require.Len(t, row.Warnings, 1)
	assert.Contains(t, row.Warnings[0], "unit-mismatch")
	assert.NotEmpty(t, result.Warnings)
}

func TestComputeZeroAmountRetained(t *testing.T) {
	calc := NewCalculator()

	result, err := calc.Compute(context.Background(), []ActivityRow{
		{Category: "scope1", Activity: "diesel", Unit: "L", Amount: 0, EmissionFactor: fptr(99.9)},
	}, testContext())
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	assert.Zero(t, result.Rows[0].CO2e)
	assert.Zero(t, result.Total)
}

func TestComputeUnresolvedExcludedFromTotals(t *testing.T) {
	calc := NewCalculator()

	result, err := calc.Compute(context.Background(), []ActivityRow{
		{Category: "scope1", Activity: "diesel", Unit: "L", Amount: 10},
		{Category: "scope3", Activity: "unicorn feed", Unit: "kg", Amount: 500},
	}, testContext())
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	assert.True(t, result.Rows[1].Unresolved)
	assert.Equal(t, 1, result.UnresolvedCount)
	// Only the resolved diesel row contributes.
	assert.InDelta(t, 26.8, result.Total, 1e-9)
}

func TestComputeEmptySnapshotMarksAllUnresolved(t *testing.T) {
	calc := NewCalculator()

	// Every resolver failure leaves the row unresolved; nothing ever
	// computes against a zero-value factor.
	result, err := calc.Compute(context.Background(), []ActivityRow{
		{Category: "scope1", Activity: "diesel", Unit: "L", Amount: 10},
		{Category: "scope2", Activity: "electricity", Unit: "kWh", Amount: 100},
	}, Context{Region: "global", Year: 2024, Snapshot: factors.NewSnapshot(nil)})
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	for _, row := range result.Rows {
		assert.True(t, row.Unresolved)
		assert.Zero(t, row.CO2e)
	}
	assert.Equal(t, 2, result.UnresolvedCount)
	assert.Zero(t, result.Total)
}

func TestComputeValidationErrors(t *testing.T) {
	calc := NewCalculator()

	rows := []ActivityRow{
		{Category: "", Activity: "diesel", Unit: "L", Amount: 10},
		{Category: "scope1", Activity: "diesel", Unit: "L", Amount: -5},
		{Category: "scope1", Activity: "diesel", Unit: "L", Amount: 10},
	}

	result, err := calc.Compute(context.Background(), rows, testContext())
	require.NoError(t, err)

	require.Len(t, result.InvalidRows, 2)
	assert.Equal(t, "category", result.InvalidRows[0].Field)
	assert.Equal(t, "amount", result.InvalidRows[1].Field)
	// The valid row still computed.
	require.Len(t, result.Rows, 1)
	assert.InDelta(t, 26.8, result.Total, 1e-9)
}

func TestComputeIdempotent(t *testing.T) {
	calc := NewCalculator()
	rows := []ActivityRow{
		{Category: "scope1", Activity: "diesel", Unit: "L", Amount: 123.4},
		{Category: "scope2", Activity: "electricity", Unit: "MWh", Amount: 5.6},
		{Category: "scope3", Activity: "unknown thing", Unit: "kg", Amount: 7},
	}

	first, err := calc.Compute(context.Background(), rows, testContext())
	require.NoError(t, err)
	second, err := calc.Compute(context.Background(), rows, testContext())
	require.NoError(t, err)

	j1, err := json.Marshal(first)
	require.NoError(t, err)
	j2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, j1, j2)
}

func TestComputeAggregateConsistency(t *testing.T) {
	calc := NewCalculator()
	rows := []ActivityRow{
		{Category: "scope1", Activity: "diesel", Unit: "L", Amount: 10},
		{Category: "scope1", Activity: "diesel", Unit: "L", Amount: 20},
		{Category: "scope2", Activity: "electricity", Unit: "kWh", Amount: 300},
	}

	result, err := calc.Compute(context.Background(), rows, testContext())
	require.NoError(t, err)

	var scopeSum, categorySum float64
	for _, v := range result.ByScope {
		scopeSum += v
	}
	for _, v := range result.ByCategory {
		categorySum += v
	}
	assert.InDelta(t, result.Total, scopeSum, 1e-9)
	assert.InDelta(t, result.Total, categorySum, 1e-9)
}

func TestNormalizeScope(t *testing.T) {
	assert.Equal(t, Scope1, NormalizeScope("Scope 1"))
	assert.Equal(t, Scope2, NormalizeScope("scope_2"))
	assert.Equal(t, Scope3, NormalizeScope("S3"))
	assert.Equal(t, ScopeUnknown, NormalizeScope("sideways"))
}

func TestResultJSONRoundTrip(t *testing.T) {
	calc := NewCalculator()
	rows := []ActivityRow{
		{Category: "scope1", Activity: "diesel", Unit: "L", Amount: 10},
		{Category: "scope3", Activity: "unicorn feed", Unit: "kg", Amount: 500},
	}

	fresh, err := calc.Compute(context.Background(), rows, testContext())
	require.NoError(t, err)

	data, err := json.Marshal(fresh)
	require.NoError(t, err)

	var reloaded Result
	require.NoError(t, json.Unmarshal(data, &reloaded))

	// A previously serialized result must be treated identically to a
	// freshly computed one.
	assert.Equal(t, fresh.Total, reloaded.Total)
	assert.Equal(t, fresh.ByScope, reloaded.ByScope)
	assert.Equal(t, fresh.UnresolvedCount, reloaded.UnresolvedCount)

	total, byScope, _, unresolved := Aggregate(reloaded.Rows)
	assert.InDelta(t, fresh.Total, total, 1e-9)
	assert.Equal(t, fresh.ByScope, byScope)
	assert.Equal(t, fresh.UnresolvedCount, unresolved)
}
