package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/courtside/refexchange/internal/domain"
)

func TestResolve(t *testing.T) {
	distance := domain.FilterSettings{
		Kind:      domain.FilterDistance,
		Enabled:   true,
		Threshold: 80,
		Overrides: map[string]float64{"ZH": 150, "BE": 40},
	}

	tests := []struct {
		name          string
		settings      domain.FilterSettings
		association   string
		wantEnabled   bool
		wantThreshold float64
	}{
		{
			name:          "no override for association falls back to global",
			settings:      distance,
			association:   "GE",
			wantEnabled:   true,
			wantThreshold: 80,
		},
		{
			name:          "override wins for its association",
			settings:      distance,
			association:   "ZH",
			wantEnabled:   true,
			wantThreshold: 150,
		},
		{
			name:          "empty association uses global",
			settings:      distance,
			association:   "",
			wantEnabled:   true,
			wantThreshold: 80,
		},
		{
			name: "non-overridable kind ignores overrides",
			settings: domain.FilterSettings{
				Kind:      domain.FilterGameGap,
				Enabled:   true,
				Threshold: 120,
				Overrides: map[string]float64{"ZH": 30},
			},
			association:   "ZH",
			wantEnabled:   true,
			wantThreshold: 120,
		},
		{
			name: "enabled flag is never per-association",
			settings: domain.FilterSettings{
				Kind:      domain.FilterTravelTime,
				Enabled:   false,
				Threshold: 60,
				Overrides: map[string]float64{"ZH": 90},
			},
			association:   "ZH",
			wantEnabled:   false,
			wantThreshold: 90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.settings, tt.association)
			assert.Equal(t, tt.wantEnabled, got.Enabled)
			assert.Equal(t, tt.wantThreshold, got.Threshold)
		})
	}
}

func TestResolveOverrideRoundTrip(t *testing.T) {
	s := domain.FilterSettings{
		Kind:      domain.FilterTravelTime,
		Enabled:   true,
		Threshold: 60,
		Overrides: map[string]float64{},
	}

	// No override: global default.
	assert.Equal(t, 60.0, Resolve(s, "VD").Threshold)

	// Set an override: resolution returns it.
	s.Overrides["VD"] = 45
	assert.Equal(t, 45.0, Resolve(s, "VD").Threshold)

	// Clear it: back to the default.
	delete(s.Overrides, "VD")
	assert.Equal(t, 60.0, Resolve(s, "VD").Threshold)
}

func TestResolveAllFillsDefaults(t *testing.T) {
	persisted := map[domain.FilterKind]domain.FilterSettings{
		domain.FilterDistance: {
			Kind:      domain.FilterDistance,
			Enabled:   true,
			Threshold: 50,
		},
	}

	states := ResolveAll(persisted, "")

	assert.Len(t, states, len(domain.FilterKinds))
	assert.True(t, states[domain.FilterDistance].Enabled)
	assert.Equal(t, 50.0, states[domain.FilterDistance].Threshold)
	// Unconfigured kinds come from defaults, disabled.
	assert.False(t, states[domain.FilterGameGap].Enabled)
	assert.Equal(t, 120.0, states[domain.FilterGameGap].Threshold)
}
