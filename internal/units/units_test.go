package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		from     string
		to       string
		want     float64
		wantKind WarningKind
	}{
		{
			name:   "mwh to kwh",
			amount: 2.5,
			from:   "MWh",
			to:     "kWh",
			want:   2500.0,
		},
		{
			name:   "gj to kwh",
			amount: 1.0,
			from:   "GJ",
			to:     "kWh",
			want:   277.778,
		},
		{
			name:   "tonnes to kg",
			amount: 3.0,
			from:   "t",
			to:     "kg",
			want:   3000.0,
		},
		{
			name:   "pounds to kg",
			amount: 10.0,
			from:   "lb",
			to:     "kg",
			want:   4.53592,
		},
		{
			name:   "gallons to litres",
			amount: 2.0,
			from:   "gal",
			to:     "L",
			want:   7.57082,
		},
		{
			name:   "miles to km",
			amount: 100.0,
			from:   "mi",
			to:     "km",
			want:   160.934,
		},
		{
			name:   "identical units untouched",
			amount: 42.0,
			from:   "kWh",
			to:     "kwh",
			want:   42.0,
		},
		{
			name:     "cross dimension flagged unchanged",
			amount:   50.0,
			from:     "kWh",
			to:       "kg",
			want:     50.0,
			wantKind: WarningUnitMismatch,
		},
		{
			name:     "unknown source unit flagged unchanged",
			amount:   7.0,
			from:     "bushels",
			to:       "kg",
			want:     7.0,
			wantKind: WarningUnrecognizedUnit,
		},
		{
			name:     "unknown target unit flagged unchanged",
			amount:   7.0,
			from:     "kg",
			to:       "stone",
			want:     7.0,
			wantKind: WarningUnrecognizedUnit,
		},
		{
			name:   "zero amount converts to zero",
			amount: 0.0,
			from:   "MWh",
			to:     "kWh",
			want:   0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warn := Convert(tt.amount, tt.from, tt.to)
			assert.InDelta(t, tt.want, got, 1e-9)

			if tt.wantKind == "" {
				assert.Nil(t, warn)
			} else {
				require.NotNil(t, warn)
				assert.Equal(t, tt.wantKind, warn.Kind)
			}
		})
	}
}

func TestConvertRoundTrip(t *testing.T) {
	pairs := []struct {
		a, b string
	}{
		{"kwh", "mwh"},
		{"kwh", "gj"},
		{"kwh", "therm"},
		{"kg", "t"},
		{"kg", "lb"},
		{"l", "gal"},
		{"l", "m3"},
		{"km", "mi"},
	}

	for _, p := range pairs {
		t.Run(p.a+"_"+p.b, func(t *testing.T) {
			const amount = 123.456

			forward, warn := Convert(amount, p.a, p.b)
			require.Nil(t, warn)

			back, warn := Convert(forward, p.b, p.a)
			require.Nil(t, warn)

			assert.InDelta(t, amount, back, 1e-9)
		})
	}
}

func TestDimensionOf(t *testing.T) {
	dim, ok := DimensionOf("Therm")
	require.True(t, ok)
	assert.Equal(t, DimensionEnergy, dim)

	_, ok = DimensionOf("parsec")
	assert.False(t, ok)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "kwh", Canonical("MWh"))
	assert.Equal(t, "kg", Canonical("lb"))
	assert.Equal(t, "widgets", Canonical(" Widgets "))
}
