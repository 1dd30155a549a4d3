package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/courtside/refexchange/internal/domain"
)

const travelTimeTTL = 12 * time.Hour

// TravelTimeCache implements domain.TravelTimeCache. Journey durations are
// memoized by (home, venue, arrival hour): rebuilding the per-pool table
// after an invalidation must not re-query the planner for journeys it has
// already answered.
//
// Key schema:
//
//	traveltime:{homeLat,homeLng}:{venueLat,venueLng}:{arrival} - minutes
type TravelTimeCache struct {
	rdb *redis.Client
}

// NewTravelTimeCache creates a TravelTimeCache backed by the given Client.
func NewTravelTimeCache(c *Client) *TravelTimeCache {
	return &TravelTimeCache{rdb: c.Underlying()}
}

// journeyKey rounds coordinates to ~10m precision and the arrival to the
// hour, so tiny jitter in upstream data still hits the memo.
func journeyKey(home, venue domain.Coord, arriveBy time.Time) string {
	return fmt.Sprintf("traveltime:%.4f,%.4f:%.4f,%.4f:%s",
		home.Lat, home.Lng, venue.Lat, venue.Lng,
		arriveBy.UTC().Truncate(time.Hour).Format("2006-01-02T15"),
	)
}

// Get returns the memoized journey duration, or domain.ErrNotFound when the
// journey has not been answered yet.
func (tc *TravelTimeCache) Get(ctx context.Context, home, venue domain.Coord, arriveBy time.Time) (int, error) {
	minutes, err := tc.rdb.Get(ctx, journeyKey(home, venue, arriveBy)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("redis: get travel time: %w", err)
	}
	return minutes, nil
}

// Set memoizes a journey duration.
func (tc *TravelTimeCache) Set(ctx context.Context, home, venue domain.Coord, arriveBy time.Time, minutes int) error {
	if err := tc.rdb.Set(ctx, journeyKey(home, venue, arriveBy), minutes, travelTimeTTL).Err(); err != nil {
		return fmt.Errorf("redis: set travel time: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.TravelTimeCache = (*TravelTimeCache)(nil)
