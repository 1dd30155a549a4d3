package traveltime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/refexchange/internal/domain"
)

type fakePlanner struct {
	mu      sync.Mutex
	calls   int
	minutes map[string]int
	err     error
	// block, when set for a venue, stalls its journeys until closed.
	block map[string]chan struct{}
}

func (f *fakePlanner) PlanJourney(ctx context.Context, _, venue domain.Coord, _ time.Time) (int, error) {
	if gate, ok := f.block[coordKey(venue)]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.minutes[coordKey(venue)], nil
}

func (f *fakePlanner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func coordKey(c domain.Coord) string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lng)
}

type memoCache struct {
	mu    sync.Mutex
	data  map[string]int
	reads int
}

func newMemoCache() *memoCache {
	return &memoCache{data: make(map[string]int)}
}

func (m *memoCache) key(home, venue domain.Coord, arriveBy time.Time) string {
	return coordKey(home) + "|" + coordKey(venue) + "|" + arriveBy.UTC().Format(time.RFC3339)
}

func (m *memoCache) Get(_ context.Context, home, venue domain.Coord, arriveBy time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	minutes, ok := m.data[m.key(home, venue, arriveBy)]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return minutes, nil
}

func (m *memoCache) Set(_ context.Context, home, venue domain.Coord, arriveBy time.Time, minutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[m.key(home, venue, arriveBy)] = minutes
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func offer(id string, venue *domain.Coord) domain.Exchange {
	return domain.Exchange{
		ID:     id,
		Status: domain.ExchangeStatusOpen,
		Game: domain.Game{
			StartingAt: time.Date(2026, 3, 7, 18, 30, 0, 0, time.UTC),
			Venue:      venue,
		},
	}
}

func TestRebuildResolvesEntries(t *testing.T) {
	venue := domain.Coord{Lat: 47.37, Lng: 8.54}
	planner := &fakePlanner{minutes: map[string]int{coordKey(venue): 42}}
	home := domain.Coord{Lat: 46.95, Lng: 7.45}

	b := New(planner, nil, nil, testLogger())
	b.Rebuild(context.Background(), &home, []domain.Exchange{offer("x-1", &venue)})

	require.Eventually(t, func() bool { return !b.Loading() }, time.Second, 10*time.Millisecond)

	table := b.Snapshot()
	require.Contains(t, table, "x-1")
	entry := table["x-1"]
	require.NotNil(t, entry.Minutes)
	assert.Equal(t, 42, *entry.Minutes)
	assert.False(t, entry.Loading)
}

func TestRebuildSkipsEntriesWithoutCoordinates(t *testing.T) {
	planner := &fakePlanner{}
	home := domain.Coord{Lat: 46.95, Lng: 7.45}
	venue := domain.Coord{Lat: 47.37, Lng: 8.54}

	b := New(planner, nil, nil, testLogger())
	b.Rebuild(context.Background(), &home, []domain.Exchange{
		offer("no-venue", nil),
		offer("with-venue", &venue),
	})

	require.Eventually(t, func() bool { return !b.Loading() }, time.Second, 10*time.Millisecond)

	table := b.Snapshot()
	assert.Nil(t, table["no-venue"].Minutes, "an offer without a venue never resolves to a duration")
	assert.False(t, table["no-venue"].Loading)
	assert.Equal(t, 1, planner.callCount(), "only offers with coordinates reach the planner")
}

func TestRebuildWithoutHomeProducesUnknownEntries(t *testing.T) {
	planner := &fakePlanner{}
	venue := domain.Coord{Lat: 47.37, Lng: 8.54}

	b := New(planner, nil, nil, testLogger())
	b.Rebuild(context.Background(), nil, []domain.Exchange{offer("x-1", &venue)})

	table := b.Snapshot()
	assert.Nil(t, table["x-1"].Minutes)
	assert.False(t, table["x-1"].Loading)
	assert.Equal(t, 0, planner.callCount())
}

func TestRebuildUnreachableJourneyLeavesMinutesNil(t *testing.T) {
	planner := &fakePlanner{err: domain.ErrUnavailable}
	home := domain.Coord{Lat: 46.95, Lng: 7.45}
	venue := domain.Coord{Lat: 47.37, Lng: 8.54}

	b := New(planner, nil, nil, testLogger())
	b.Rebuild(context.Background(), &home, []domain.Exchange{offer("x-1", &venue)})

	require.Eventually(t, func() bool { return !b.Loading() }, time.Second, 10*time.Millisecond)

	entry := b.Snapshot()["x-1"]
	assert.Nil(t, entry.Minutes)
	assert.False(t, entry.Loading, "an unreachable journey is resolved, not loading")
}

func TestRebuildUsesMemoCache(t *testing.T) {
	venue := domain.Coord{Lat: 47.37, Lng: 8.54}
	home := domain.Coord{Lat: 46.95, Lng: 7.45}
	planner := &fakePlanner{minutes: map[string]int{coordKey(venue): 42}}
	cache := newMemoCache()

	b := New(planner, cache, nil, testLogger())

	pool := []domain.Exchange{offer("x-1", &venue)}
	b.Rebuild(context.Background(), &home, pool)
	require.Eventually(t, func() bool { return !b.Loading() }, time.Second, 10*time.Millisecond)
	require.Equal(t, 1, planner.callCount())

	// The second rebuild of the same pool answers from the memo.
	b.Rebuild(context.Background(), &home, pool)
	require.Eventually(t, func() bool { return !b.Loading() }, time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, planner.callCount(), "memoized journeys skip the planner")
	entry := b.Snapshot()["x-1"]
	require.NotNil(t, entry.Minutes)
	assert.Equal(t, 42, *entry.Minutes)
}

func TestRebuildOutlivesTriggeringContext(t *testing.T) {
	venue := domain.Coord{Lat: 47.37, Lng: 8.54}
	planner := &fakePlanner{minutes: map[string]int{coordKey(venue): 10}}
	home := domain.Coord{Lat: 46.95, Lng: 7.45}

	// A rebuild is typically triggered by a request whose context dies as
	// soon as the response is written; the table must still resolve.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := New(planner, nil, nil, testLogger())
	b.Rebuild(ctx, &home, []domain.Exchange{offer("x-1", &venue)})

	require.Eventually(t, func() bool { return !b.Loading() }, time.Second, 10*time.Millisecond)

	entry := b.Snapshot()["x-1"]
	require.NotNil(t, entry.Minutes)
	assert.Equal(t, 10, *entry.Minutes)
}

func TestStaleRebuildResultsAreDiscarded(t *testing.T) {
	venueA := domain.Coord{Lat: 47.37, Lng: 8.54}
	venueB := domain.Coord{Lat: 46.20, Lng: 6.14}
	home := domain.Coord{Lat: 46.95, Lng: 7.45}

	release := make(chan struct{})
	planner := &fakePlanner{
		minutes: map[string]int{coordKey(venueA): 99, coordKey(venueB): 17},
		block:   map[string]chan struct{}{coordKey(venueA): release},
	}

	b := New(planner, nil, nil, testLogger())

	// The first rebuild blocks inside the planner.
	b.Rebuild(context.Background(), &home, []domain.Exchange{offer("x-1", &venueA)})

	// A second rebuild supersedes it before any result lands.
	b.Rebuild(context.Background(), &home, []domain.Exchange{offer("x-2", &venueB)})
	close(release)

	require.Eventually(t, func() bool {
		entry, ok := b.Snapshot()["x-2"]
		return ok && !entry.Loading
	}, time.Second, 10*time.Millisecond)

	table := b.Snapshot()
	assert.NotContains(t, table, "x-1", "entries of a superseded rebuild are gone")
	require.NotNil(t, table["x-2"].Minutes)
	assert.Equal(t, 17, *table["x-2"].Minutes)
}
