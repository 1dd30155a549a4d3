package domain

import (
	"context"
	"time"
)

// ExchangeSource is the remote system of record for the exchange pool and
// its mutations. Each mutation is an idempotent-intent call: the engine
// guarantees at most one logical call per user action, the collaborator owns
// idempotency on the wire via the attempt token.
type ExchangeSource interface {
	// ListExchanges fetches the pool for one tab: the open marketplace or
	// the user's own submissions.
	ListExchanges(ctx context.Context, tab Tab) ([]Exchange, error)
	// Apply applies for an open exchange (take-over).
	Apply(ctx context.Context, exchangeID, attemptToken string) error
	// Withdraw retracts the user's pending application.
	Withdraw(ctx context.Context, exchangeID, attemptToken string) error
	// RemoveConvocation cancels the user's own posting through its
	// underlying convocation record.
	RemoveConvocation(ctx context.Context, convocationID, attemptToken string) error
	// Health probes reachability of the system of record.
	Health(ctx context.Context) error
}

// AssignmentSource provides the user's own confirmed assignment start times
// for the minimum-gap filter.
type AssignmentSource interface {
	ListAssignments(ctx context.Context) ([]Assignment, error)
}

// TravelTimePlanner is the external journey-planning capability. It returns
// the transit duration from home to venue arriving by the given time, or
// ErrUnavailable when no journey can be computed. Transport failures are
// treated identically to ErrUnavailable by the engine.
type TravelTimePlanner interface {
	PlanJourney(ctx context.Context, home, venue Coord, arriveBy time.Time) (minutes int, err error)
}
