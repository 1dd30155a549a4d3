// Package traveltime maintains the public-transit lookup table backing the
// travel-time filter. The table is rebuilt wholesale whenever the pool
// snapshot or the user's home location changes; results from a superseded
// rebuild are discarded by generation.
package traveltime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/courtside/refexchange/internal/domain"
)

const (
	// workers bounds concurrent planner queries during one rebuild.
	workers = 4

	// planRateKey and its limit throttle bulk rebuilds against the journey
	// planner so a large pool does not burst-exhaust the upstream quota.
	planRateKey    = "transit:journeys"
	planRateLimit  = 30
	planRateWindow = time.Minute

	rateRetryInterval = 100 * time.Millisecond
)

// Builder owns the travel-time table for the current pool snapshot. Readers
// get immutable copies; writers replace the whole table.
type Builder struct {
	planner domain.TravelTimePlanner
	cache   domain.TravelTimeCache
	limiter domain.RateLimiter
	logger  *slog.Logger

	mu         sync.Mutex
	generation uint64
	table      map[string]domain.TravelTimeEntry
}

// New creates a Builder. cache and limiter may be nil; without them every
// rebuild queries the planner directly and unthrottled.
func New(
	planner domain.TravelTimePlanner,
	cache domain.TravelTimeCache,
	limiter domain.RateLimiter,
	logger *slog.Logger,
) *Builder {
	return &Builder{
		planner: planner,
		cache:   cache,
		limiter: limiter,
		logger:  logger.With(slog.String("component", "traveltime")),
		table:   make(map[string]domain.TravelTimeEntry),
	}
}

type job struct {
	exchangeID string
	venue      domain.Coord
	arriveBy   time.Time
}

// Rebuild replaces the table for a new (pool, home) pair. It publishes
// loading placeholders synchronously and resolves them in the background;
// a rebuild started later supersedes this one, and any of its late results
// are dropped.
func (b *Builder) Rebuild(ctx context.Context, home *domain.Coord, exchanges []domain.Exchange) {
	b.mu.Lock()
	b.generation++
	gen := b.generation

	table := make(map[string]domain.TravelTimeEntry, len(exchanges))
	var jobs []job
	for _, x := range exchanges {
		entry := domain.TravelTimeEntry{ExchangeID: x.ID}
		if home != nil && home.Valid() && x.Game.Venue != nil && x.Game.Venue.Valid() {
			entry.Loading = true
			jobs = append(jobs, job{
				exchangeID: x.ID,
				venue:      *x.Game.Venue,
				arriveBy:   x.Game.StartingAt,
			})
		}
		table[x.ID] = entry
	}
	b.table = table
	b.mu.Unlock()

	if len(jobs) == 0 {
		return
	}

	b.logger.DebugContext(ctx, "travel time rebuild started",
		slog.Uint64("generation", gen),
		slog.Int("journeys", len(jobs)),
	)

	// The fill outlives the request that triggered the rebuild; only a
	// superseding rebuild abandons it.
	go b.fill(context.WithoutCancel(ctx), gen, *home, jobs)
}

// Snapshot returns a copy of the current table.
func (b *Builder) Snapshot() map[string]domain.TravelTimeEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]domain.TravelTimeEntry, len(b.table))
	for id, entry := range b.table {
		out[id] = entry
	}
	return out
}

// Loading reports whether any entry of the current table is still resolving.
func (b *Builder) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range b.table {
		if entry.Loading {
			return true
		}
	}
	return false
}

func (b *Builder) fill(ctx context.Context, gen uint64, home domain.Coord, jobs []job) {
	jobCh := make(chan job)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				minutes := b.resolve(ctx, home, j)
				b.store(gen, j.exchangeID, minutes)
			}
		}()
	}

	for _, j := range jobs {
		if b.stale(gen) || ctx.Err() != nil {
			break
		}
		jobCh <- j
	}
	close(jobCh)
	wg.Wait()
}

// resolve answers one journey: cache first, then the rate-limited planner.
// nil means the journey is unknown or unreachable.
func (b *Builder) resolve(ctx context.Context, home domain.Coord, j job) *int {
	if b.cache != nil {
		if minutes, err := b.cache.Get(ctx, home, j.venue, j.arriveBy); err == nil {
			return &minutes
		}
	}

	if err := b.throttle(ctx); err != nil {
		return nil
	}

	minutes, err := b.planner.PlanJourney(ctx, home, j.venue, j.arriveBy)
	if err != nil {
		if !errors.Is(err, domain.ErrUnavailable) {
			b.logger.WarnContext(ctx, "journey planning failed",
				slog.String("exchange_id", j.exchangeID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	if b.cache != nil {
		if err := b.cache.Set(ctx, home, j.venue, j.arriveBy, minutes); err != nil {
			b.logger.DebugContext(ctx, "travel time memo write failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return &minutes
}

func (b *Builder) throttle(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	for {
		allowed, err := b.limiter.Allow(ctx, planRateKey, planRateLimit, planRateWindow)
		if err != nil {
			// A broken limiter must not stall the table; proceed unthrottled.
			b.logger.DebugContext(ctx, "rate limiter unavailable",
				slog.String("error", err.Error()),
			)
			return nil
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(rateRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// store writes one resolved entry, unless a later rebuild has replaced the
// table in the meantime.
func (b *Builder) store(gen uint64, exchangeID string, minutes *int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation {
		return
	}
	entry, ok := b.table[exchangeID]
	if !ok {
		return
	}
	entry.Minutes = minutes
	entry.Loading = false
	b.table[exchangeID] = entry
}

func (b *Builder) stale(gen uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return gen != b.generation
}
