package factors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *Snapshot {
	return NewSnapshot([]Record{
		{Activity: "diesel", Unit: "L", Region: "eu", Year: 2024, Value: 2.68, Source: "defra", Version: "2.0.0", Active: true},
		{Activity: "diesel", Unit: "L", Region: "eu", Year: 2022, Value: 2.70, Source: "defra", Version: "1.0.0", Active: true},
		{Activity: "diesel", Unit: "L", Region: "global", Year: 2024, Value: 2.65, Source: "ipcc", Version: "1.0.0", Active: true},
		{Activity: "diesel", Unit: "L", Region: "us", Year: 2025, Value: 2.60, Source: "epa", Version: "1.0.0", Active: true},
		{Activity: "diesel", Unit: "L", Region: "us", Year: 2020, Value: 2.75, Source: "epa-old", Version: "0.9.0", Active: false},
		{Activity: "electricity", Unit: "kWh", Region: "global", Year: 2024, Value: 0.4, Source: "iea", Version: "1.0.0", Active: true, ScopeCategory: "purchased_electricity"},
	})
}

func TestResolvePrecedence(t *testing.T) {
	resolver := NewResolver(testSnapshot())
	ctx := context.Background()

	tests := []struct {
		name       string
		query      Query
		wantValue  float64
		wantSource string
		wantErr    error
	}{
		{
			name:       "exact region year wins",
			query:      Query{Activity: "diesel", Unit: "L", Region: "eu", Year: 2024},
			wantValue:  2.68,
			wantSource: "defra",
		},
		{
			name:       "same region closest earlier year",
			query:      Query{Activity: "diesel", Unit: "L", Region: "eu", Year: 2023},
			wantValue:  2.70,
			wantSource: "defra",
		},
		{
			name:       "falls back to global for the year",
			query:      Query{Activity: "diesel", Unit: "L", Region: "jp", Year: 2024},
			wantValue:  2.65,
			wantSource: "ipcc",
		},
		{
			name:       "most recent any region as last resort",
			query:      Query{Activity: "diesel", Unit: "L", Region: "jp", Year: 2019},
			wantValue:  2.60,
			wantSource: "epa",
		},
		{
			name:       "empty region treated as default",
			query:      Query{Activity: "electricity", Unit: "kWh", Year: 2024},
			wantValue:  0.4,
			wantSource: "iea",
		},
		{
			name:    "unknown activity not found",
			query:   Query{Activity: "unobtainium", Unit: "kg", Region: "eu", Year: 2024},
			wantErr: ErrFactorNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := resolver.Resolve(ctx, tt.query)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.InDelta(t, tt.wantValue, match.Value, 1e-9)
			assert.Equal(t, tt.wantSource, match.Provenance.Source)
		})
	}
}

func TestResolveVersionTieBreak(t *testing.T) {
	snap := NewSnapshot([]Record{
		{Activity: "diesel", Unit: "L", Region: "eu", Year: 2024, Value: 2.10, Source: "a", Version: "1.9.0", Active: true},
		{Activity: "diesel", Unit: "L", Region: "eu", Year: 2024, Value: 2.20, Source: "b", Version: "1.10.0", Active: true},
	})
	resolver := NewResolver(snap)

	match, err := resolver.Resolve(context.Background(), Query{
		Activity: "diesel", Unit: "L", Region: "eu", Year: 2024,
	})
	require.NoError(t, err)

	// Semver comparison: 1.10.0 > 1.9.0, unlike a lexical compare.
	assert.InDelta(t, 2.20, match.Value, 1e-9)
	assert.Equal(t, "b", match.Provenance.Source)
}

func TestResolveInactiveExcluded(t *testing.T) {
	snap := NewSnapshot([]Record{
		{Activity: "diesel", Unit: "L", Region: "eu", Year: 2024, Value: 2.68, Active: false},
	})
	resolver := NewResolver(snap)

	_, err := resolver.Resolve(context.Background(), Query{
		Activity: "diesel", Unit: "L", Region: "eu", Year: 2024,
	})
	assert.ErrorIs(t, err, ErrEmptySnapshot)
}

func TestResolveUnitKeyNormalized(t *testing.T) {
	snap := NewSnapshot([]Record{
		// Library stores litres; the row says "L" with different casing.
		{Activity: " Diesel ", Unit: " l ", Region: "global", Year: 2024, Value: 2.68, Source: "defra", Version: "1.0.0", Active: true},
	})
	resolver := NewResolver(snap)

	match, err := resolver.Resolve(context.Background(), Query{
		Activity: "DIESEL", Unit: "L", Region: "global", Year: 2024,
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.68, match.Value, 1e-9)
}

func TestResolveUnitFallback(t *testing.T) {
	snap := NewSnapshot([]Record{
		{Activity: "diesel", Unit: "L", Region: "global", Year: 2024, Value: 2.68, Source: "defra", Version: "1.0.0", Active: true},
	})
	resolver := NewResolver(snap)

	// No kg-based diesel factor exists; the litre-based record is
	// returned so the caller can flag the mismatch.
	match, err := resolver.Resolve(context.Background(), Query{
		Activity: "diesel", Unit: "kg", Region: "global", Year: 2024,
	})
	require.NoError(t, err)
	assert.Equal(t, "l", match.Unit)
	assert.InDelta(t, 2.68, match.Value, 1e-9)
}

func TestResolveDeterministic(t *testing.T) {
	resolver := NewResolver(testSnapshot())
	q := Query{Activity: "diesel", Unit: "L", Region: "jp", Year: 2019}

	m1, err := resolver.Resolve(context.Background(), q)
	require.NoError(t, err)
	m2, err := resolver.Resolve(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, m1, m2)
}
