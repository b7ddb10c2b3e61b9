package ingest_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/carbonledger/internal/engine"
	"github.com/rshade/carbonledger/internal/ingest"
)

func TestReadActivities(t *testing.T) {
	input := `category,activity,unit,amount,emission_factor,ch4,n2o
scope1,diesel,L,100,2.68,,
Scope 2,electricity,kWh,1000,0.4,0.001,0.0001
scope3,road freight,km,500,,,
`

	ds, err := ingest.ReadActivities(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, ds.Rows, 3)
	assert.Empty(t, ds.Errors)
	assert.Len(t, ds.Raw, 3)

	assert.Equal(t, "diesel", ds.Rows[0].Activity)
	assert.InDelta(t, 100.0, ds.Rows[0].Amount, 1e-9)
	require.NotNil(t, ds.Rows[0].EmissionFactor)
	assert.InDelta(t, 2.68, *ds.Rows[0].EmissionFactor, 1e-9)
	assert.Nil(t, ds.Rows[0].CH4)

	require.NotNil(t, ds.Rows[1].CH4)
	assert.InDelta(t, 0.001, *ds.Rows[1].CH4, 1e-9)

	// Missing factor stays nil so the library resolves it later.
	assert.Nil(t, ds.Rows[2].EmissionFactor)
}

func TestReadActivitiesHeaderAliases(t *testing.T) {
	input := `Scope,Activity Name,UoM,Quantity,EF
scope1,diesel,L,100,2.68
`

	ds, err := ingest.ReadActivities(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, engine.ActivityRow{
		Category: "scope1",
		Activity: "diesel",
		Unit:     "L",
		Amount:   100,
		EmissionFactor: func() *float64 {
			v := 2.68
			return &v
		}(),
	}, ds.Rows[0])
}

func TestReadActivitiesBadRowsKeptRaw(t *testing.T) {
	input := `category,activity,unit,amount,emission_factor
scope1,diesel,L,not-a-number,2.68
scope1,,L,50,2.68
scope2,electricity,kWh,1000,0.4
`

	ds, err := ingest.ReadActivities(strings.NewReader(input))
	require.NoError(t, err)

	// All three rows survive in raw form for quality scoring.
	assert.Len(t, ds.Raw, 3)
	// Only the clean row becomes a calculation row.
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "electricity", ds.Rows[0].Activity)

	require.Len(t, ds.Errors, 2)
	assert.Equal(t, 2, ds.Errors[0].Line)
	assert.Equal(t, "amount", ds.Errors[0].Field)
	assert.Equal(t, 3, ds.Errors[1].Line)
	assert.Equal(t, "activity", ds.Errors[1].Field)
}

func TestReadActivitiesMissingColumns(t *testing.T) {
	input := `activity,amount
diesel,100
`

	_, err := ingest.ReadActivities(strings.NewReader(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrMissingColumns)
	assert.Contains(t, err.Error(), "category")
	assert.Contains(t, err.Error(), "unit")
}

func TestReadActivitiesWithoutFactorColumn(t *testing.T) {
	// A file with no emission_factor header at all is valid: every row
	// gets its factor from the library.
	input := `category,activity,unit,amount
scope1,diesel,L,100
scope2,electricity,kWh,1000
`

	ds, err := ingest.ReadActivities(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, ds.Rows, 2)
	assert.Empty(t, ds.Errors)
	for _, row := range ds.Rows {
		assert.Nil(t, row.EmissionFactor)
	}
	assert.Empty(t, ds.Raw[0].EmissionFactor)
}

func TestReadActivitiesEmptyInput(t *testing.T) {
	input := "category,activity,unit,amount,emission_factor\n"

	_, err := ingest.ReadActivities(strings.NewReader(input))
	assert.ErrorIs(t, err, ingest.ErrNoRows)
}

func TestReadStages(t *testing.T) {
	input := `stage,amount,emission_factor,allocation_factor
raw-material,100,1.2,
Manufacturing,50,2.0,0.6
transport,30,0.5,oops
`

	rows, rowErrs, err := ingest.ReadStages(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "raw-material", rows[0].Stage)
	assert.Nil(t, rows[0].AllocationFactor)
	require.NotNil(t, rows[1].AllocationFactor)
	assert.InDelta(t, 0.6, *rows[1].AllocationFactor, 1e-9)

	require.Len(t, rowErrs, 1)
	assert.Equal(t, "allocation_factor", rowErrs[0].Field)
	assert.Equal(t, 4, rowErrs[0].Line)
}

func TestReadStagesMissingColumns(t *testing.T) {
	input := `stage,amount
transport,30
`

	_, _, err := ingest.ReadStages(strings.NewReader(input))
	assert.ErrorIs(t, err, ingest.ErrMissingColumns)
}

func TestReadPlan(t *testing.T) {
	input := `
reductions:
  scopes:
    scope1: 0.2
  activities:
    diesel: 0.5
targets:
  - scope: scope1
    required_pct: 20
    horizon: 2030
`

	plan, err := ingest.ReadPlan(strings.NewReader(input))
	require.NoError(t, err)
	assert.InDelta(t, 0.2, plan.Reductions.Scopes[engine.Scope1], 1e-9)
	assert.InDelta(t, 0.5, plan.Reductions.Activities["diesel"], 1e-9)
	require.Len(t, plan.Targets, 1)
	assert.Equal(t, engine.Scope1, plan.Targets[0].Scope)
}

func TestReadPlanUnknownKey(t *testing.T) {
	input := `
reductions:
  scopes:
    scope1: 0.2
tarrgets: []
`

	_, err := ingest.ReadPlan(strings.NewReader(input))
	assert.Error(t, err)
}
