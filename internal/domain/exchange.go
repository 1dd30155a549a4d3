package domain

import (
	"math"
	"time"
)

// ExchangeStatus represents the lifecycle state of an exchange offer.
type ExchangeStatus string

const (
	// ExchangeStatusOpen means the offer is on the marketplace and can be
	// taken over by an eligible referee.
	ExchangeStatusOpen ExchangeStatus = "open"
	// ExchangeStatusApplied means another referee has applied for the offer
	// and the transfer is awaiting confirmation by the association.
	ExchangeStatusApplied ExchangeStatus = "applied"
	// ExchangeStatusClosed means the transfer has been completed or the
	// offer was withdrawn; no further actions are possible.
	ExchangeStatusClosed ExchangeStatus = "closed"
)

// RefereePosition identifies which officiating slot of a game is being
// exchanged. The position determines which convocation record backs the
// offer.
type RefereePosition string

const (
	PositionReferee1     RefereePosition = "referee1"
	PositionReferee2     RefereePosition = "referee2"
	PositionReferee3     RefereePosition = "referee3"
	PositionCommissioner RefereePosition = "commissioner"
)

// Coord is a WGS84 coordinate pair. A zero-value Coord is not a valid
// location; use HasCoord to distinguish "no venue on record" from a real
// position.
type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate carries usable data. NaN components
// count as unknown so that bad upstream data degrades to "no filtering"
// instead of silently excluding offers.
func (c Coord) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat != 0 || c.Lng != 0
}

// Game holds the fixture details of the assignment being exchanged.
type Game struct {
	StartingAt   time.Time `json:"starting_at"`
	Venue        *Coord    `json:"venue,omitempty"`
	HallName     string    `json:"hall_name,omitempty"`
	HomeTeamName string    `json:"home_team_name,omitempty"`
	AwayTeamName string    `json:"away_team_name,omitempty"`
}

// Exchange is an immutable snapshot of a posted offer to transfer an
// officiating assignment. Snapshots come from the remote pool and are never
// mutated locally; any change is observed through a pool refetch.
type Exchange struct {
	ID                string          `json:"id"`
	Status            ExchangeStatus  `json:"status"`
	SubmittedByID     string          `json:"submitted_by_id"`
	AppliedByID       string          `json:"applied_by_id,omitempty"`
	RequiredLevel     string          `json:"required_level,omitempty"`
	RequiredGradation *float64        `json:"required_gradation,omitempty"`
	Position          RefereePosition `json:"position"`
	AssociationCode   string          `json:"association_code,omitempty"`
	Game              Game            `json:"game"`

	// Convocations maps each officiating position of the game to the ID of
	// its underlying convocation record. Removal of an own offer goes
	// through the convocation, not the exchange itself.
	Convocations map[RefereePosition]string `json:"convocations,omitempty"`
}

// SubmittedBy reports whether the given referee posted this exchange.
func (e Exchange) SubmittedBy(refereeID string) bool {
	return refereeID != "" && e.SubmittedByID == refereeID
}

// AppliedBy reports whether the given referee is the current applicant.
func (e Exchange) AppliedBy(refereeID string) bool {
	return refereeID != "" && e.AppliedByID == refereeID
}

// ConvocationID resolves the convocation record backing this exchange from
// its referee position. It returns ErrConvocationNotFound when the position
// has no mapped convocation, which aborts a removal before any network call.
func (e Exchange) ConvocationID() (string, error) {
	id, ok := e.Convocations[e.Position]
	if !ok || id == "" {
		return "", ErrConvocationNotFound
	}
	return id, nil
}
