// Package units normalizes physical-quantity units for emission
// calculations.
//
// It supports a closed set of canonical dimensions (energy, mass, volume,
// distance). Conversion within a dimension is a fixed multiplicative
// factor. Conversion never fails: unknown units and cross-dimension
// requests pass the amount through unchanged and attach a warning, because
// silently zeroing activity data is worse than flagging it.
package units

import (
	"fmt"
	"math"
	"strings"
)

// Dimension identifies a canonical physical dimension.
type Dimension string

// Supported dimensions.
const (
	DimensionEnergy   Dimension = "energy"
	DimensionMass     Dimension = "mass"
	DimensionVolume   Dimension = "volume"
	DimensionDistance Dimension = "distance"
)

// WarningKind classifies a conversion warning.
type WarningKind string

const (
	// WarningUnitMismatch flags a cross-dimension conversion request.
	// The amount is returned unchanged.
	WarningUnitMismatch WarningKind = "unit-mismatch"

	// WarningUnrecognizedUnit flags a unit absent from the canonical
	// table. The amount is returned unchanged.
	WarningUnrecognizedUnit WarningKind = "unrecognized-unit"
)

// Warning describes a non-fatal conversion problem. Callers attach it to
// row provenance rather than dropping the row.
type Warning struct {
	Kind WarningKind `json:"kind"`
	From string      `json:"from"`
	To   string      `json:"to"`
}

// String renders the warning for logs and reports.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %q -> %q", w.Kind, w.From, w.To)
}

// unitDef maps a unit to its dimension and its multiplier to the
// dimension's canonical unit.
type unitDef struct {
	dim       Dimension
	canonical string
	factor    float64
}

// unitTable is the closed canonical unit set. Keys are lowercase.
//
//nolint:gochecknoglobals // Fixed conversion table, never mutated.
var unitTable = map[string]unitDef{
	// Energy, canonical kWh.
	"kwh":   {DimensionEnergy, "kwh", 1.0},
	"mwh":   {DimensionEnergy, "kwh", 1000.0},
	"gj":    {DimensionEnergy, "kwh", 277.778},
	"therm": {DimensionEnergy, "kwh", 29.3001},

	// Mass, canonical kg.
	"kg": {DimensionMass, "kg", 1.0},
	"t":  {DimensionMass, "kg", 1000.0},
	"lb": {DimensionMass, "kg", 0.453592},

	// Volume, canonical L.
	"l":   {DimensionVolume, "l", 1.0},
	"gal": {DimensionVolume, "l", 3.78541},
	"m3":  {DimensionVolume, "l", 1000.0},

	// Distance, canonical km.
	"km": {DimensionDistance, "km", 1.0},
	"mi": {DimensionDistance, "km", 1.60934},
}

// Normalize lowercases and trims a unit label for table lookup.
func Normalize(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

// IsKnown reports whether unit is in the canonical table.
func IsKnown(unit string) bool {
	_, ok := unitTable[Normalize(unit)]
	return ok
}

// DimensionOf returns the dimension of a known unit.
func DimensionOf(unit string) (Dimension, bool) {
	def, ok := unitTable[Normalize(unit)]
	if !ok {
		return "", false
	}
	return def.dim, true
}

// Canonical returns the canonical unit for the dimension of the given
// unit, or the normalized input when the unit is unknown.
func Canonical(unit string) string {
	norm := Normalize(unit)
	if def, ok := unitTable[norm]; ok {
		return def.canonical
	}
	return norm
}

// Convert converts amount from one unit to another within the same
// dimension. It is a pure function of its arguments.
//
// Unknown units return the amount unchanged with a
// WarningUnrecognizedUnit. Cross-dimension requests return the amount
// unchanged with a WarningUnitMismatch. Non-finite amounts pass through
// untouched so the caller's validation can reject them.
func Convert(amount float64, from, to string) (float64, *Warning) {
	fromNorm := Normalize(from)
	toNorm := Normalize(to)

	if fromNorm == toNorm {
		return amount, nil
	}

	fromDef, fromOK := unitTable[fromNorm]
	toDef, toOK := unitTable[toNorm]

	if !fromOK || !toOK {
		return amount, &Warning{Kind: WarningUnrecognizedUnit, From: from, To: to}
	}
	if fromDef.dim != toDef.dim {
		return amount, &Warning{Kind: WarningUnitMismatch, From: from, To: to}
	}
	if math.IsInf(amount, 0) || math.IsNaN(amount) {
		return amount, nil
	}

	return amount * fromDef.factor / toDef.factor, nil
}
