// Package lca applies system-boundary presets and per-stage allocation to
// stage-level activity data.
//
// It is a simplified single-level model: one boundary filter, one
// allocation factor applied exactly once per row, and a one-factor-at-a-
// time linear sensitivity sweep. Stages outside the boundary are excluded
// from totals but retained in the output for traceability.
package lca

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/carbonledger/internal/engine"
	"github.com/rshade/carbonledger/internal/logging"
)

// constError is an immutable error type for sentinel errors.
type constError string

func (e constError) Error() string { return string(e) }

// ErrUnknownBoundary indicates a boundary preset outside the fixed
// enumeration. Unknown presets are rejected, not defaulted.
const ErrUnknownBoundary = constError("unknown boundary preset")

// ErrNoValidStages indicates no stage rows survived validation.
const ErrNoValidStages = constError("no valid stage rows")

// Boundary is a system-boundary preset.
type Boundary string

// The fixed boundary enumeration.
const (
	CradleToGrave Boundary = "cradle-to-grave"
	CradleToGate  Boundary = "cradle-to-gate"
	GateToGate    Boundary = "gate-to-gate"
)

// boundaryStages maps each preset to its ordered included stage list.
//
//nolint:gochecknoglobals // Fixed preset table.
var boundaryStages = map[Boundary][]string{
	CradleToGrave: {"raw-material", "transport", "manufacturing", "use", "end-of-life"},
	CradleToGate:  {"raw-material", "transport", "manufacturing"},
	GateToGate:    {"manufacturing"},
}

// Stages returns the ordered stage list for a preset.
func (b Boundary) Stages() ([]string, error) {
	stages, ok := boundaryStages[b]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBoundary, string(b))
	}
	return stages, nil
}

// StageRow is one stage-level activity input. AllocationFactor is the
// fraction of the stage's emissions attributed to the studied product;
// nil defaults to 1.0.
type StageRow struct {
	Stage            string   `json:"stage"`
	Amount           float64  `json:"amount"`
	EmissionFactor   float64  `json:"emission_factor"`
	AllocationFactor *float64 `json:"allocation_factor,omitempty"`
}

// StageResult is the evaluated outcome for one stage row.
type StageResult struct {
	Stage      string  `json:"stage"`
	Amount     float64 `json:"amount"`
	Factor     float64 `json:"emission_factor"`
	Allocation float64 `json:"allocation_factor"`
	CO2e       float64 `json:"co2e"`

	// Included reports whether the stage is inside the boundary and
	// contributes to the filtered total.
	Included bool `json:"included"`

	// Clamped flags an out-of-range allocation factor that was clamped
	// to [0,1] rather than silently accepted.
	Clamped bool `json:"clamped,omitempty"`
}

// FlowEdge is one Sankey-style edge: stage to aggregate sink with the
// allocated CO2e as the value.
type FlowEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Value  float64 `json:"value"`
}

// Hotspot ranks a stage by its share of the filtered total.
type Hotspot struct {
	Stage           string  `json:"stage"`
	CO2e            float64 `json:"co2e"`
	Share           float64 `json:"share"`
	CumulativeShare float64 `json:"cumulative_share"`
}

// StageSensitivity is the filtered-total range from sweeping one stage's
// emission factor while holding all others fixed.
type StageSensitivity struct {
	Stage     string  `json:"stage"`
	LowTotal  float64 `json:"low_total"`
	HighTotal float64 `json:"high_total"`
}

// Sensitivity is the one-factor-at-a-time sweep result.
type Sensitivity struct {
	Pct       float64            `json:"pct"`
	PerStage  []StageSensitivity `json:"per_stage"`
	LowTotal  float64            `json:"low_total"`
	HighTotal float64            `json:"high_total"`
}

// Result is the LCA output for one evaluation.
type Result struct {
	Boundary      Boundary           `json:"boundary"`
	FilteredTotal float64            `json:"filtered_total"`
	Stages        []StageResult      `json:"stages"`
	ByStage       map[string]float64 `json:"by_stage"`
	Flows         []FlowEdge         `json:"flows"`
	Hotspots      []Hotspot          `json:"hotspots"`
	Sensitivity   Sensitivity        `json:"sensitivity"`
	InvalidRows   []engine.RowError  `json:"invalid_rows,omitempty"`
}

// Options controls an evaluation.
type Options struct {
	Boundary Boundary

	// SensitivityPct is the symmetric sweep range, e.g. 20 for ±20%.
	SensitivityPct float64

	// HotspotThreshold is the cumulative-share cutoff for hotspot
	// listing; zero uses DefaultHotspotThreshold.
	HotspotThreshold float64
}

// DefaultHotspotThreshold lists stages until they cover 80% of the
// filtered total.
const DefaultHotspotThreshold = 0.80

// flowSink is the aggregate target node for Sankey edges.
const flowSink = "system"

// Engine evaluates LCA stage tables. Stateless.
type Engine struct{}

// NewEngine returns an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// NormalizeStage canonicalizes stage labels for matching: lowercase,
// trimmed, spaces and underscores collapsed to hyphens.
func NormalizeStage(stage string) string {
	s := strings.ToLower(strings.TrimSpace(stage))
	s = strings.ReplaceAll(s, "_", "-")
	return strings.ReplaceAll(s, " ", "-")
}

// Evaluate applies the boundary preset and allocation factors to the
// stage table.
//
// Invalid rows (empty stage, negative or non-finite amount or factor) are
// reported and skipped; the evaluation proceeds for the rest. Allocation
// factors outside [0,1] are clamped and flagged, applied exactly once per
// row. An unknown boundary preset is rejected with ErrUnknownBoundary.
func (e *Engine) Evaluate(ctx context.Context, rows []StageRow, opts Options) (*Result, error) {
	log := logging.FromContext(ctx)

	included, err := opts.Boundary.Stages()
	if err != nil {
		return nil, err
	}
	includedSet := make(map[string]bool, len(included))
	for _, s := range included {
		includedSet[s] = true
	}

	threshold := opts.HotspotThreshold
	if threshold <= 0 {
		threshold = DefaultHotspotThreshold
	}

	result := &Result{
		Boundary: opts.Boundary,
		ByStage:  make(map[string]float64),
	}

	for i, row := range rows {
		if rowErr := validateStageRow(i, row); rowErr != nil {
			result.InvalidRows = append(result.InvalidRows, *rowErr)
			continue
		}

		stage := NormalizeStage(row.Stage)

		allocation := 1.0
		clamped := false
		if row.AllocationFactor != nil {
			allocation = *row.AllocationFactor
			if allocation < 0 {
				allocation = 0
				clamped = true
			} else if allocation > 1 {
				allocation = 1
				clamped = true
			}
		}

		sr := StageResult{
			Stage:      stage,
			Amount:     row.Amount,
			Factor:     row.EmissionFactor,
			Allocation: allocation,
			CO2e:       engine.RowCO2e(row.Amount, row.EmissionFactor, 0, 0) * allocation,
			Included:   includedSet[stage],
			Clamped:    clamped,
		}
		result.Stages = append(result.Stages, sr)

		if sr.Included {
			result.FilteredTotal += sr.CO2e
			result.ByStage[stage] += sr.CO2e
		}
	}

	if len(result.Stages) == 0 {
		return nil, ErrNoValidStages
	}

	result.Flows = buildFlows(included, result.ByStage)
	result.Hotspots = rankHotspots(result.ByStage, result.FilteredTotal, threshold)

	if opts.SensitivityPct > 0 {
		sens, sensErr := e.sweep(ctx, result, opts.SensitivityPct)
		if sensErr != nil {
			return nil, sensErr
		}
		result.Sensitivity = sens
	}

	log.Debug().
		Str("component", "lca").
		Str("boundary", string(opts.Boundary)).
		Int("stages", len(result.Stages)).
		Int("invalid", len(result.InvalidRows)).
		Float64("filtered_total", result.FilteredTotal).
		Msg("lca evaluated")

	return result, nil
}

// sweep recomputes the filtered total with each included stage's emission
// factor moved to its low and high bound, one stage at a time. Stages are
// independent, so the fan-out uses an errgroup with indexed writes; the
// output order matches the stage order and stays deterministic.
func (e *Engine) sweep(ctx context.Context, result *Result, pct float64) (Sensitivity, error) {
	delta := pct / 100.0

	includedStages := sortedStages(result.ByStage)

	sens := Sensitivity{
		Pct:      pct,
		PerStage: make([]StageSensitivity, len(includedStages)),
	}

	g, _ := errgroup.WithContext(ctx)
	for i, stage := range includedStages {
		g.Go(func() error {
			stageCO2e := result.ByStage[stage]
			low := result.FilteredTotal - stageCO2e*delta
			high := result.FilteredTotal + stageCO2e*delta
			sens.PerStage[i] = StageSensitivity{Stage: stage, LowTotal: low, HighTotal: high}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Sensitivity{}, err
	}

	sens.LowTotal = result.FilteredTotal
	sens.HighTotal = result.FilteredTotal
	for _, s := range sens.PerStage {
		sens.LowTotal = math.Min(sens.LowTotal, s.LowTotal)
		sens.HighTotal = math.Max(sens.HighTotal, s.HighTotal)
	}
	return sens, nil
}

// buildFlows emits one edge per included stage with emissions, in preset
// order.
func buildFlows(included []string, byStage map[string]float64) []FlowEdge {
	var flows []FlowEdge
	for _, stage := range included {
		value, ok := byStage[stage]
		if !ok {
			continue
		}
		flows = append(flows, FlowEdge{Source: stage, Target: flowSink, Value: value})
	}
	return flows
}

// rankHotspots lists stages by descending share until the cumulative
// share reaches the threshold. The stage crossing the threshold is
// included.
func rankHotspots(byStage map[string]float64, total, threshold float64) []Hotspot {
	if total <= 0 {
		return nil
	}

	stages := sortedStages(byStage)
	sort.SliceStable(stages, func(i, j int) bool {
		return byStage[stages[i]] > byStage[stages[j]]
	})

	var hotspots []Hotspot
	cumulative := 0.0
	for _, stage := range stages {
		share := byStage[stage] / total
		cumulative += share
		hotspots = append(hotspots, Hotspot{
			Stage:           stage,
			CO2e:            byStage[stage],
			Share:           share,
			CumulativeShare: cumulative,
		})
		if cumulative >= threshold {
			break
		}
	}
	return hotspots
}

// sortedStages returns map keys in lexical order for deterministic
// iteration.
func sortedStages(byStage map[string]float64) []string {
	keys := make([]string, 0, len(byStage))
	for k := range byStage {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateStageRow(index int, row StageRow) *engine.RowError {
	switch {
	case strings.TrimSpace(row.Stage) == "":
		return &engine.RowError{Index: index, Field: "stage", Reason: "required field missing"}
	case math.IsNaN(row.Amount) || math.IsInf(row.Amount, 0):
		return &engine.RowError{Index: index, Field: "amount", Reason: "not a finite number"}
	case row.Amount < 0:
		return &engine.RowError{Index: index, Field: "amount", Reason: "negative amount"}
	case math.IsNaN(row.EmissionFactor) || math.IsInf(row.EmissionFactor, 0):
		return &engine.RowError{Index: index, Field: "emission_factor", Reason: "not a finite number"}
	}
	return nil
}
