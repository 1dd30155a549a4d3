package refbase

import (
	"strconv"
	"strings"
	"time"

	"github.com/courtside/refexchange/internal/domain"
)

// APIExchange is the wire representation of an exchange offer as returned by
// the refbase API. Gradation values arrive as strings and are parsed
// leniently: a non-numeric value maps to "no requirement on record".
type APIExchange struct {
	ID                          string            `json:"id"`
	Status                      string            `json:"status"`
	SubmittedBy                 string            `json:"submittedBy"`
	AppliedBy                   string            `json:"appliedBy,omitempty"`
	RequiredLevel               string            `json:"requiredLevel,omitempty"`
	RequiredLevelGradationValue string            `json:"requiredLevelGradationValue,omitempty"`
	RefereePosition             string            `json:"refereePosition"`
	AssociationCode             string            `json:"associationCode,omitempty"`
	Game                        APIGame           `json:"game"`
	Convocations                map[string]string `json:"convocations,omitempty"`
}

// APIGame is the wire representation of the fixture behind an exchange.
type APIGame struct {
	StartingDateTime string   `json:"startingDateTime"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	HallName         string   `json:"hallName,omitempty"`
	HomeTeamName     string   `json:"homeTeamName,omitempty"`
	AwayTeamName     string   `json:"awayTeamName,omitempty"`
}

// APIConvocation is the wire representation of one of the user's own
// confirmed assignments.
type APIConvocation struct {
	ID               string `json:"id"`
	GameID           string `json:"gameId,omitempty"`
	StartingDateTime string `json:"startingDateTime"`
	HallName         string `json:"hallName,omitempty"`
}

// ToDomain converts the wire exchange into the domain snapshot. Optional and
// malformed fields degrade to absence; they never fail the conversion.
func (a APIExchange) ToDomain() domain.Exchange {
	x := domain.Exchange{
		ID:              a.ID,
		Status:          domain.ExchangeStatus(strings.ToLower(a.Status)),
		SubmittedByID:   a.SubmittedBy,
		AppliedByID:     a.AppliedBy,
		RequiredLevel:   a.RequiredLevel,
		Position:        domain.RefereePosition(a.RefereePosition),
		AssociationCode: a.AssociationCode,
		Game: domain.Game{
			HallName:     a.Game.HallName,
			HomeTeamName: a.Game.HomeTeamName,
			AwayTeamName: a.Game.AwayTeamName,
		},
	}

	if v, err := strconv.ParseFloat(strings.TrimSpace(a.RequiredLevelGradationValue), 64); err == nil {
		x.RequiredGradation = &v
	}
	if ts, err := time.Parse(time.RFC3339, a.Game.StartingDateTime); err == nil {
		x.Game.StartingAt = ts
	}
	if a.Game.Latitude != nil && a.Game.Longitude != nil {
		x.Game.Venue = &domain.Coord{Lat: *a.Game.Latitude, Lng: *a.Game.Longitude}
	}
	if len(a.Convocations) > 0 {
		x.Convocations = make(map[domain.RefereePosition]string, len(a.Convocations))
		for pos, id := range a.Convocations {
			x.Convocations[domain.RefereePosition(pos)] = id
		}
	}

	return x
}

// ToDomain converts the wire convocation into a domain assignment.
func (a APIConvocation) ToDomain() domain.Assignment {
	out := domain.Assignment{
		ID:       a.ID,
		GameID:   a.GameID,
		HallName: a.HallName,
	}
	if ts, err := time.Parse(time.RFC3339, a.StartingDateTime); err == nil {
		out.StartingAt = ts
	}
	return out
}
