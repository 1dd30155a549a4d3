package domain

// FilterKind identifies one of the composable marketplace filters.
type FilterKind string

const (
	// FilterOwnership hides the user's own postings from the open tab.
	FilterOwnership FilterKind = "ownership"
	// FilterDistance caps the car distance to the venue in kilometres.
	FilterDistance FilterKind = "distance"
	// FilterTravelTime caps the public-transit travel time in minutes.
	FilterTravelTime FilterKind = "travel_time"
	// FilterLevel hides offers requiring a stronger referee level.
	FilterLevel FilterKind = "level"
	// FilterGameGap enforces a minimum gap in minutes between a candidate
	// game and every one of the user's own confirmed assignments.
	FilterGameGap FilterKind = "game_gap"
)

// FilterKinds lists every filter in pipeline evaluation order.
var FilterKinds = []FilterKind{
	FilterLevel,
	FilterDistance,
	FilterTravelTime,
	FilterGameGap,
	FilterOwnership,
}

// FilterState is the resolved configuration of a single filter. Enabled is a
// user-level preference and always global; Threshold may come from a
// per-association override.
type FilterState struct {
	Enabled   bool    `json:"enabled"`
	Threshold float64 `json:"threshold"`
}

// FilterSettings is the persisted two-layer configuration of one filter: a
// global default plus per-association threshold overrides. Only distance and
// travel time carry overrides; the other kinds keep an empty map.
type FilterSettings struct {
	Kind      FilterKind         `json:"kind"`
	Enabled   bool               `json:"enabled"`
	Threshold float64            `json:"threshold"`
	Overrides map[string]float64 `json:"overrides,omitempty"`
}

// OverridableKind reports whether the filter kind supports per-association
// threshold overrides.
func OverridableKind(kind FilterKind) bool {
	return kind == FilterDistance || kind == FilterTravelTime
}

// TravelTimeEntry is one row of the travel-time lookup table built for the
// current pool snapshot. Entries are read-only; the whole table is replaced
// on every pool or home-location change.
type TravelTimeEntry struct {
	ExchangeID string `json:"exchange_id"`
	// Minutes is nil while loading and when the planner reported the journey
	// as unavailable; Loading distinguishes the two.
	Minutes *int `json:"minutes,omitempty"`
	Loading bool `json:"loading"`
}
