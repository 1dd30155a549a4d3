package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name                   string
		aLat, aLng, bLat, bLng float64
		want                   float64
		tolerance              float64
	}{
		{
			name: "zero distance",
			aLat: 47.3769, aLng: 8.5417,
			bLat: 47.3769, bLng: 8.5417,
			want: 0, tolerance: 0.001,
		},
		{
			name: "zurich to bern",
			aLat: 47.3769, aLng: 8.5417,
			bLat: 46.9480, bLng: 7.4474,
			want: 95.2, tolerance: 1.5,
		},
		{
			name: "geneva to lausanne",
			aLat: 46.2044, aLng: 6.1432,
			bLat: 46.5197, bLng: 6.6323,
			want: 51.0, tolerance: 1.5,
		},
		{
			name: "antipodal-ish long haul",
			aLat: 0, aLng: 0,
			bLat: 0, bLng: 180,
			want: 20015, tolerance: 25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.aLat, tt.aLng, tt.bLat, tt.bLng)
			assert.InDelta(t, tt.want, got, tt.tolerance)
		})
	}
}

func TestDistanceKmPropagatesNaN(t *testing.T) {
	got := DistanceKm(math.NaN(), 8.5, 46.9, 7.4)
	assert.True(t, math.IsNaN(got), "NaN input must yield NaN, not a number")

	got = DistanceKm(47.3, 8.5, 46.9, math.NaN())
	assert.True(t, math.IsNaN(got))
}

func TestDistanceKmSymmetric(t *testing.T) {
	ab := DistanceKm(47.3769, 8.5417, 46.9480, 7.4474)
	ba := DistanceKm(46.9480, 7.4474, 47.3769, 8.5417)
	assert.InDelta(t, ab, ba, 1e-9)
}
