// Package factors resolves emission factors for activity rows.
//
// A Snapshot is an immutable, point-in-time view of the active records in
// the factor library; the Resolver selects the applicable record for an
// (activity, unit) key under a (region, year) query context using a fixed
// precedence chain. The engine only ever reads snapshots, so concurrent
// library edits cannot change the outcome of an in-flight calculation.
package factors

import (
	"strings"

	"github.com/rshade/carbonledger/internal/units"
)

// DefaultRegion is the designated fallback region for records that apply
// everywhere.
const DefaultRegion = "global"

// SourceUserProvided marks provenance for row-level factor overrides.
const SourceUserProvided = "user-provided"

// Record is one emission-factor library entry. Value is mass CO2e per one
// canonical unit of the activity.
type Record struct {
	ID            uint    `json:"id"`
	Scope         string  `json:"scope"`
	ScopeCategory string  `json:"scope_category"`
	Activity      string  `json:"activity"`
	Unit          string  `json:"unit"`
	Region        string  `json:"region"`
	Year          int     `json:"year"`
	Value         float64 `json:"value"`
	Source        string  `json:"source"`
	Version       string  `json:"version"`
	Active        bool    `json:"active"`
}

// Key returns the normalized (activity, unit) lookup key for the record.
func (r Record) Key() (activity, unit string) {
	return NormalizeKey(r.Activity), units.Canonical(r.Unit)
}

// NormalizeKey lowercases and trims an activity label for matching.
func NormalizeKey(activity string) string {
	return strings.ToLower(strings.TrimSpace(activity))
}

// Provenance records where a factor value came from, carried per row
// through results so reports can cite it.
type Provenance struct {
	Source        string `json:"source"`
	Version       string `json:"version"`
	Region        string `json:"region"`
	Year          int    `json:"year"`
	ScopeCategory string `json:"scope_category,omitempty"`
}

// UserProvided is the provenance attached to row-level overrides.
func UserProvided() Provenance {
	return Provenance{Source: SourceUserProvided, Version: "n/a", Region: "n/a"}
}

// Snapshot is an immutable set of active factor records. Construct with
// NewSnapshot; the backing slice is copied and inactive records dropped.
type Snapshot struct {
	records []Record
}

// NewSnapshot copies recs into an immutable snapshot, keeping only active
// records and normalizing their lookup keys.
func NewSnapshot(recs []Record) *Snapshot {
	kept := make([]Record, 0, len(recs))
	for _, r := range recs {
		if !r.Active {
			continue
		}
		r.Activity = NormalizeKey(r.Activity)
		r.Unit = units.Canonical(r.Unit)
		r.Region = strings.ToLower(strings.TrimSpace(r.Region))
		if r.Region == "" {
			r.Region = DefaultRegion
		}
		kept = append(kept, r)
	}
	return &Snapshot{records: kept}
}

// Len returns the number of active records in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Records returns a copy of the snapshot's records.
func (s *Snapshot) Records() []Record {
	if s == nil {
		return nil
	}
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// candidates returns the records matching the normalized (activity, unit)
// key.
func (s *Snapshot) candidates(activity, unit string) []Record {
	var out []Record
	for _, r := range s.records {
		if r.Activity == activity && r.Unit == unit {
			out = append(out, r)
		}
	}
	return out
}

// candidatesAnyUnit returns the records for an activity regardless of
// unit, for the unit-mismatch fallback path.
func (s *Snapshot) candidatesAnyUnit(activity string) []Record {
	var out []Record
	for _, r := range s.records {
		if r.Activity == activity {
			out = append(out, r)
		}
	}
	return out
}
