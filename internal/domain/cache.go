package domain

import (
	"context"
	"time"
)

// ExchangeCache stores the last fetched pool snapshot per tab so the
// marketplace stays browsable while the system of record is unreachable.
type ExchangeCache interface {
	SetPool(ctx context.Context, tab Tab, exchanges []Exchange) error
	GetPool(ctx context.Context, tab Tab) ([]Exchange, error)
	Invalidate(ctx context.Context, tab Tab) error
}

// TravelTimeCache memoizes journey durations keyed by (home, venue,
// arrival), so rebuilding the per-pool lookup table does not re-query the
// planner for journeys it has already answered.
type TravelTimeCache interface {
	Get(ctx context.Context, home, venue Coord, arriveBy time.Time) (minutes int, err error)
	Set(ctx context.Context, home, venue Coord, arriveBy time.Time, minutes int) error
}

// RateLimiter throttles calls against external collaborators, most notably
// the journey planner during bulk travel-time table rebuilds.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}
