// Package settings owns filter configuration: built-in defaults, the global
// layer, and per-association threshold overrides, plus the resolution of the
// effective state for the active context.
package settings

import "github.com/courtside/refexchange/internal/domain"

// Defaults returns the built-in configuration of every filter kind. All
// filters start disabled so a fresh install shows the full marketplace.
func Defaults() map[domain.FilterKind]domain.FilterSettings {
	return map[domain.FilterKind]domain.FilterSettings{
		domain.FilterOwnership: {
			Kind: domain.FilterOwnership,
		},
		domain.FilterDistance: {
			Kind:      domain.FilterDistance,
			Threshold: 100, // km
			Overrides: map[string]float64{},
		},
		domain.FilterTravelTime: {
			Kind:      domain.FilterTravelTime,
			Threshold: 90, // minutes
			Overrides: map[string]float64{},
		},
		domain.FilterLevel: {
			Kind: domain.FilterLevel,
		},
		domain.FilterGameGap: {
			Kind:      domain.FilterGameGap,
			Threshold: 120, // minutes
		},
	}
}

// Resolve returns the effective state of one filter for the active
// association. The enabled flag is always the global one; the threshold
// comes from the association override when the kind supports overrides and
// one is present, otherwise from the global layer. Resolution never fails:
// an empty association code or a missing override falls back to the global
// default.
func Resolve(s domain.FilterSettings, associationCode string) domain.FilterState {
	state := domain.FilterState{
		Enabled:   s.Enabled,
		Threshold: s.Threshold,
	}

	if associationCode == "" || !domain.OverridableKind(s.Kind) {
		return state
	}
	if v, ok := s.Overrides[associationCode]; ok {
		state.Threshold = v
	}
	return state
}

// ResolveAll resolves every filter kind against the given persisted layer,
// filling in built-in defaults for kinds the user never configured.
func ResolveAll(persisted map[domain.FilterKind]domain.FilterSettings, associationCode string) map[domain.FilterKind]domain.FilterState {
	out := make(map[domain.FilterKind]domain.FilterState, len(domain.FilterKinds))
	defaults := Defaults()
	for _, kind := range domain.FilterKinds {
		s, ok := persisted[kind]
		if !ok {
			s = defaults[kind]
		}
		out[kind] = Resolve(s, associationCode)
	}
	return out
}
