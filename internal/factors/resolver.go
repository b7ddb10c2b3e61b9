package factors

import (
	"context"

	"github.com/Masterminds/semver/v3"

	"github.com/rshade/carbonledger/internal/logging"
	"github.com/rshade/carbonledger/internal/units"
)

// Query is the context for a factor lookup.
type Query struct {
	Activity string
	Unit     string
	Region   string
	Year     int
}

// PrecedenceRule narrows a candidate set. Rules run in order; the first
// rule returning a non-empty set decides the match, and remaining ties are
// broken by highest version.
type PrecedenceRule func(q Query, candidates []Record) []Record

// DefaultPrecedence is the standard rule chain:
//
//  1. exact (region, year) match
//  2. same region, closest year not after the query year
//  3. default region ("global"), same closest-year rule
//  4. most recent active record regardless of region
//
// The chain is data, not control flow, so callers with verified source
// behavior can substitute their own ordering via NewResolverWithPrecedence.
func DefaultPrecedence() []PrecedenceRule {
	return []PrecedenceRule{
		matchExactRegionYear,
		matchRegionClosestYear,
		matchDefaultRegion,
		matchMostRecent,
	}
}

// Match is a resolved factor: its value, the unit basis the value is
// expressed per, and its provenance.
type Match struct {
	Value      float64    `json:"value"`
	Unit       string     `json:"unit"`
	Provenance Provenance `json:"provenance"`
}

// Resolver selects emission factors from a snapshot.
type Resolver struct {
	snapshot   *Snapshot
	precedence []PrecedenceRule
}

// NewResolver builds a resolver over snap using DefaultPrecedence.
func NewResolver(snap *Snapshot) *Resolver {
	return NewResolverWithPrecedence(snap, DefaultPrecedence())
}

// NewResolverWithPrecedence builds a resolver with a custom rule chain.
func NewResolverWithPrecedence(snap *Snapshot, precedence []PrecedenceRule) *Resolver {
	return &Resolver{snapshot: snap, precedence: precedence}
}

// Resolve returns the applicable factor for the query, or
// ErrFactorNotFound / ErrEmptySnapshot. Resolution is deterministic: the
// same snapshot and query always select the same record.
//
// The (activity, unit) key is tried first. When no record carries the
// row's unit, resolution falls back to activity-only matching so the
// caller can flag the unit mismatch instead of losing the row.
func (r *Resolver) Resolve(ctx context.Context, q Query) (Match, error) {
	log := logging.FromContext(ctx)

	if r.snapshot.Len() == 0 {
		return Match{}, ErrEmptySnapshot
	}

	q.Activity = NormalizeKey(q.Activity)
	q.Unit = units.Canonical(q.Unit)
	q.Region = NormalizeKey(q.Region)
	if q.Region == "" {
		q.Region = DefaultRegion
	}

	candidates := r.snapshot.candidates(q.Activity, q.Unit)
	if len(candidates) == 0 {
		candidates = r.snapshot.candidatesAnyUnit(q.Activity)
	}
	if len(candidates) == 0 {
		log.Debug().
			Str("component", "factors").
			Str("activity", q.Activity).
			Str("unit", q.Unit).
			Msg("no factor candidates for key")
		return Match{}, ErrFactorNotFound
	}

	for _, rule := range r.precedence {
		matched := rule(q, candidates)
		if len(matched) == 0 {
			continue
		}

		rec := highestVersion(matched)
		log.Debug().
			Str("component", "factors").
			Str("activity", q.Activity).
			Str("region", rec.Region).
			Int("year", rec.Year).
			Str("version", rec.Version).
			Msg("factor resolved")

		return Match{
			Value: rec.Value,
			Unit:  rec.Unit,
			Provenance: Provenance{
				Source:        rec.Source,
				Version:       rec.Version,
				Region:        rec.Region,
				Year:          rec.Year,
				ScopeCategory: rec.ScopeCategory,
			},
		}, nil
	}

	return Match{}, ErrFactorNotFound
}

func matchExactRegionYear(q Query, candidates []Record) []Record {
	var out []Record
	for _, r := range candidates {
		if r.Region == q.Region && r.Year == q.Year {
			out = append(out, r)
		}
	}
	return out
}

// matchRegionClosestYear keeps same-region records with the highest year
// not after the query year.
func matchRegionClosestYear(q Query, candidates []Record) []Record {
	return closestYear(q.Year, filterRegion(candidates, q.Region))
}

// matchDefaultRegion falls back to the designated default region using the
// same closest-year rule.
func matchDefaultRegion(q Query, candidates []Record) []Record {
	if q.Region == DefaultRegion {
		return nil
	}
	return closestYear(q.Year, filterRegion(candidates, DefaultRegion))
}

// matchMostRecent keeps the most recent records regardless of region.
func matchMostRecent(_ Query, candidates []Record) []Record {
	best := -1
	for _, r := range candidates {
		if r.Year > best {
			best = r.Year
		}
	}
	var out []Record
	for _, r := range candidates {
		if r.Year == best {
			out = append(out, r)
		}
	}
	return out
}

func filterRegion(candidates []Record, region string) []Record {
	var out []Record
	for _, r := range candidates {
		if r.Region == region {
			out = append(out, r)
		}
	}
	return out
}

func closestYear(year int, candidates []Record) []Record {
	best := -1
	for _, r := range candidates {
		if r.Year <= year && r.Year > best {
			best = r.Year
		}
	}
	if best < 0 {
		return nil
	}
	var out []Record
	for _, r := range candidates {
		if r.Year == best {
			out = append(out, r)
		}
	}
	return out
}

// highestVersion breaks equal-rank ties by version. Versions that parse as
// semver are compared semantically; otherwise a plain string comparison is
// used so non-semver libraries still resolve deterministically.
func highestVersion(matched []Record) Record {
	best := matched[0]
	for _, r := range matched[1:] {
		if versionLess(best.Version, r.Version) {
			best = r
		}
	}
	return best
}

func versionLess(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.LessThan(vb)
	}
	return a < b
}
