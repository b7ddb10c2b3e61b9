package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rshade/carbonledger/internal/engine"
)

// baselineResult builds a baseline with scope1=100 (diesel), scope2=200
// (electricity), scope3=50 (freight), plus one unresolved row.
func baselineResult() *engine.Result {
	rows := []engine.RowResult{
		{Row: engine.ActivityRow{Category: "scope1", Activity: "diesel"}, Scope: engine.Scope1, ScopeCategory: "stationary_combustion", CO2e: 100},
		{Row: engine.ActivityRow{Category: "scope2", Activity: "electricity"}, Scope: engine.Scope2, ScopeCategory: "purchased_electricity", CO2e: 200},
		{Row: engine.ActivityRow{Category: "scope3", Activity: "road freight"}, Scope: engine.Scope3, ScopeCategory: "cat4_upstream_transport", CO2e: 50},
		{Row: engine.ActivityRow{Category: "scope3", Activity: "mystery"}, Scope: engine.Scope3, Unresolved: true},
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

func TestPlanScopeReduction(t *testing.T) {
	p := NewPlanner()

	result, err := p.Plan(context.Background(), baselineResult(), Plan{
		Reductions: Reductions{
			Scopes: map[engine.Scope]float64{engine.Scope1: 0.30},
		},
		Targets: []Target{{Scope: engine.Scope1, RequiredPct: 20}},
	})
	require.NoError(t, err)

	assert.InDelta(t, 350.0, result.Baseline.Total, 1e-9)
	assert.InDelta(t, 320.0, result.Scenario.Total, 1e-9)
	assert.InDelta(t, 30.0, result.Delta, 1e-9)

	s1 := result.ByScope[engine.Scope1]
	assert.InDelta(t, 30.0, s1.DeltaPct, 1e-9)
	require.Len(t, result.Targets, 1)
	assert.True(t, result.Targets[0].Passed)
	assert.True(t, result.OverallPass)
}

func TestPlanActivityOverridesScope(t *testing.T) {
	p := NewPlanner()

	result, err := p.Plan(context.Background(), baselineResult(), Plan{
		Reductions: Reductions{
			Scopes:     map[engine.Scope]float64{engine.Scope1: 0.10},
			Activities: map[string]float64{"Diesel": 0.50},
		},
	})
	require.NoError(t, err)

	// The activity-level 50% wins over the scope-level 10%.
	assert.InDelta(t, 50.0, result.ByScope[engine.Scope1].Scenario, 1e-9)
}

func TestPlanTargetFailureFailsOverall(t *testing.T) {
	p := NewPlanner()

	// Scope1 only reaches 15% against a 20% requirement; scope2 and
	// scope3 targets pass. All must pass, so the plan fails.
	result, err := p.Plan(context.Background(), baselineResult(), Plan{
		Reductions: Reductions{
			Scopes: map[engine.Scope]float64{
				engine.Scope1: 0.15,
				engine.Scope2: 0.40,
				engine.Scope3: 0.40,
			},
		},
		Targets: []Target{
			{Scope: engine.Scope1, RequiredPct: 20},
			{Scope: engine.Scope2, RequiredPct: 30},
			{Scope: engine.Scope3, RequiredPct: 30},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Targets, 3)
	assert.False(t, result.Targets[0].Passed)
	assert.True(t, result.Targets[1].Passed)
	assert.True(t, result.Targets[2].Passed)
	assert.False(t, result.OverallPass)
}

func TestPlanZeroBaseline(t *testing.T) {
	p := NewPlanner()

	empty := &engine.Result{
		ByScope:    map[engine.Scope]float64{},
		ByCategory: map[string]float64{},
	}
	result, err := p.Plan(context.Background(), empty, Plan{
		Reductions: Reductions{Scopes: map[engine.Scope]float64{engine.Scope1: 0.5}},
	})
	require.NoError(t, err)

	// Delta percentage is defined as 0 when the baseline is 0.
	assert.Zero(t, result.DeltaPct)
	assert.Zero(t, result.Delta)
}

func TestPlanReductionClamping(t *testing.T) {
	p := NewPlanner()

	result, err := p.Plan(context.Background(), baselineResult(), Plan{
		Reductions: Reductions{
			Scopes: map[engine.Scope]float64{
				engine.Scope1: 1.7,
				engine.Scope2: -0.3,
			},
		},
	})
	require.NoError(t, err)

	assert.Len(t, result.Flags, 2)
	// Clamped to 1: scope1 goes to zero. Clamped to 0: scope2 unchanged.
	assert.Zero(t, result.ByScope[engine.Scope1].Scenario)
	assert.InDelta(t, 200.0, result.ByScope[engine.Scope2].Scenario, 1e-9)
}

func TestPlanScenarioNeverExceedsBaseline(t *testing.T) {
	p := NewPlanner()

	result, err := p.Plan(context.Background(), baselineResult(), Plan{
		Reductions: Reductions{
			Scopes: map[engine.Scope]float64{
				engine.Scope1: 0.2,
				engine.Scope2: 0.0,
				engine.Scope3: 1.0,
			},
		},
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, result.Scenario.Total, result.Baseline.Total)
}

func TestPlanUnresolvedRowsStayExcluded(t *testing.T) {
	p := NewPlanner()

	result, err := p.Plan(context.Background(), baselineResult(), Plan{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Scenario.UnresolvedCount)
	assert.InDelta(t, result.Baseline.Total, result.Scenario.Total, 1e-9)
}

func TestPlanYAMLDecoding(t *testing.T) {
	raw := `
reductions:
  scopes:
    scope1: 0.30
  activities:
    diesel: 0.50
targets:
  - scope: scope1
    required_pct: 20
    horizon: 2030
`
	var plan Plan
	require.NoError(t, yaml.Unmarshal([]byte(raw), &plan))

	assert.InDelta(t, 0.30, plan.Reductions.Scopes[engine.Scope1], 1e-9)
	assert.InDelta(t, 0.50, plan.Reductions.Activities["diesel"], 1e-9)
	require.Len(t, plan.Targets, 1)
	assert.Equal(t, engine.Scope1, plan.Targets[0].Scope)
	assert.Equal(t, 2030, plan.Targets[0].Horizon)
}
