package domain

import "time"

// Assignment is one of the user's own confirmed officiating bookings. Only
// the start time matters to the engine; it feeds the minimum-gap filter.
type Assignment struct {
	ID         string    `json:"id"`
	GameID     string    `json:"game_id,omitempty"`
	StartingAt time.Time `json:"starting_at"`
	HallName   string    `json:"hall_name,omitempty"`
}

// Referee is the identity and skill profile of the signed-in official.
type Referee struct {
	ID              string   `json:"id"`
	Gradation       *float64 `json:"gradation,omitempty"`
	Home            *Coord   `json:"home,omitempty"`
	AssociationCode string   `json:"association_code,omitempty"`
}
