// Package scenario applies reduction assumptions to a baseline emissions
// result and evaluates reduction targets.
//
// Scenario rows are derived from baseline rows by scaling CO2e; nothing is
// recomputed from raw activity data, so a scenario is exactly comparable
// to its baseline.
package scenario

import (
	"context"
	"fmt"
	"sort"

	"github.com/rshade/carbonledger/internal/engine"
	"github.com/rshade/carbonledger/internal/factors"
	"github.com/rshade/carbonledger/internal/logging"
)

// Reductions maps scopes and activities to fractional reductions in
// [0,1]. Activity-level entries override scope-level ones for matching
// rows. Out-of-range fractions are clamped and flagged.
type Reductions struct {
	Scopes     map[engine.Scope]float64 `yaml:"scopes" json:"scopes"`
	Activities map[string]float64       `yaml:"activities" json:"activities"`
}

// Target is a required percentage reduction by a horizon year. An empty
// Scope targets the overall total.
type Target struct {
	Scope       engine.Scope `yaml:"scope" json:"scope"`
	RequiredPct float64      `yaml:"required_pct" json:"required_pct"`
	Horizon     int          `yaml:"horizon,omitempty" json:"horizon,omitempty"`
}

// Plan bundles reductions and targets, typically loaded from YAML.
type Plan struct {
	Reductions Reductions `yaml:"reductions" json:"reductions"`
	Targets    []Target   `yaml:"targets" json:"targets"`
}

// TargetResult is the evaluation of one target against the scenario.
type TargetResult struct {
	Target      Target  `json:"target"`
	AchievedPct float64 `json:"achieved_pct"`
	Passed      bool    `json:"passed"`
}

// ScopeDelta is the baseline/scenario comparison for one scope.
type ScopeDelta struct {
	Baseline float64 `json:"baseline"`
	Scenario float64 `json:"scenario"`
	Delta    float64 `json:"delta"`
	DeltaPct float64 `json:"delta_pct"`
}

// Result pairs a baseline with its derived scenario.
type Result struct {
	Baseline *engine.Result `json:"baseline"`
	Scenario *engine.Result `json:"scenario"`

	Delta    float64                      `json:"delta"`
	DeltaPct float64                      `json:"delta_pct"`
	ByScope  map[engine.Scope]ScopeDelta  `json:"by_scope"`
	Targets  []TargetResult               `json:"targets"`

	// OverallPass is true only when every target passes.
	OverallPass bool `json:"overall_pass"`

	// Flags records clamped reduction fractions.
	Flags []string `json:"flags,omitempty"`
}

// Planner derives scenarios from baselines. Stateless.
type Planner struct{}

// NewPlanner returns a Planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// Plan applies the reduction assumptions to baseline and evaluates the
// targets.
//
// Per row: scenario CO2e = baseline CO2e × (1 − r), where r is the
// activity-level reduction when one matches, else the scope-level one,
// else zero. Unresolved baseline rows stay unresolved and excluded.
// Delta percentage is defined as 0 when the baseline total is 0.
func (p *Planner) Plan(ctx context.Context, baseline *engine.Result, plan Plan) (*Result, error) {
	log := logging.FromContext(ctx)

	if baseline == nil {
		return nil, fmt.Errorf("baseline result is nil")
	}

	var flags []string
	clamp := func(label string, r float64) float64 {
		if r < 0 {
			flags = append(flags, fmt.Sprintf("reduction %q clamped from %g to 0", label, r))
			return 0
		}
		if r > 1 {
			flags = append(flags, fmt.Sprintf("reduction %q clamped from %g to 1", label, r))
			return 1
		}
		return r
	}

	scopeReductions := make(map[engine.Scope]float64, len(plan.Reductions.Scopes))
	for scope, r := range plan.Reductions.Scopes {
		scopeReductions[scope] = clamp(string(scope), r)
	}
	activityReductions := make(map[string]float64, len(plan.Reductions.Activities))
	for activity, r := range plan.Reductions.Activities {
		activityReductions[factors.NormalizeKey(activity)] = clamp(activity, r)
	}
	sort.Strings(flags)

	scenarioRows := make([]engine.RowResult, len(baseline.Rows))
	for i, rr := range baseline.Rows {
		scaled := rr
		if !rr.Unresolved {
			reduction, ok := activityReductions[factors.NormalizeKey(rr.Row.Activity)]
			if !ok {
				reduction = scopeReductions[rr.Scope]
			}
			scaled.CO2e = rr.CO2e * (1 - reduction)
		}
		scenarioRows[i] = scaled
	}

	total, byScope, byCategory, unresolved := engine.Aggregate(scenarioRows)
	scenario := &engine.Result{
		Rows:            scenarioRows,
		Total:           total,
		ByScope:         byScope,
		ByCategory:      byCategory,
		UnresolvedCount: unresolved,
	}

	result := &Result{
		Baseline: baseline,
		Scenario: scenario,
		Delta:    baseline.Total - scenario.Total,
		DeltaPct: deltaPct(baseline.Total, scenario.Total),
		ByScope:  make(map[engine.Scope]ScopeDelta),
		Flags:    flags,
	}

	for _, scope := range []engine.Scope{engine.Scope1, engine.Scope2, engine.Scope3, engine.ScopeUnknown} {
		base, baseOK := baseline.ByScope[scope]
		scen := scenario.ByScope[scope]
		if !baseOK && scen == 0 {
			continue
		}
		result.ByScope[scope] = ScopeDelta{
			Baseline: base,
			Scenario: scen,
			Delta:    base - scen,
			DeltaPct: deltaPct(base, scen),
		}
	}

	result.OverallPass = true
	for _, target := range plan.Targets {
		achieved := result.DeltaPct
		if target.Scope != "" {
			achieved = result.ByScope[target.Scope].DeltaPct
		}
		passed := achieved >= target.RequiredPct
		if !passed {
			result.OverallPass = false
		}
		result.Targets = append(result.Targets, TargetResult{
			Target:      target,
			AchievedPct: achieved,
			Passed:      passed,
		})
	}
	if len(plan.Targets) == 0 {
		result.OverallPass = false
	}

	log.Debug().
		Str("component", "scenario").
		Float64("baseline_total", baseline.Total).
		Float64("scenario_total", scenario.Total).
		Float64("delta_pct", result.DeltaPct).
		Bool("overall_pass", result.OverallPass).
		Msg("scenario planned")

	return result, nil
}

// deltaPct returns the percentage reduction from base to scen, defined as
// 0 when base is 0 to avoid a division error.
func deltaPct(base, scen float64) float64 {
	if base == 0 {
		return 0
	}
	return (base - scen) / base * 100.0
}
