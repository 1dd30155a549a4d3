// Package service holds the engine's application services: the exchange pool
// with its offline snapshot fallback, the user's own assignments, and the
// browse composition that turns a raw pool into visible, actionable offers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/courtside/refexchange/internal/domain"
	"github.com/courtside/refexchange/internal/traveltime"
)

// PoolListener is notified whenever the visible pool may have changed, so
// connected clients can refetch. The websocket hub implements it.
type PoolListener interface {
	PoolChanged(tab domain.Tab)
}

// ExchangeService owns the marketplace pool. Fetches go to the system of
// record; the last successful snapshot is kept in Redis and served when the
// upstream is unreachable, so the marketplace stays browsable offline.
type ExchangeService struct {
	source    domain.ExchangeSource
	snapshots domain.ExchangeCache
	travel    *traveltime.Builder
	listener  PoolListener
	logger    *slog.Logger

	mu         sync.Mutex
	generation uint64
	pools      map[domain.Tab][]domain.Exchange
	hidden     map[string]struct{}
	home       *domain.Coord
}

// NewExchangeService creates an ExchangeService. snapshots, travel and
// listener may each be nil; the service then runs without the corresponding
// fallback, table, or notification.
func NewExchangeService(
	source domain.ExchangeSource,
	snapshots domain.ExchangeCache,
	travel *traveltime.Builder,
	listener PoolListener,
	logger *slog.Logger,
) *ExchangeService {
	return &ExchangeService{
		source:    source,
		snapshots: snapshots,
		travel:    travel,
		listener:  listener,
		logger:    logger.With(slog.String("component", "exchange_service")),
		pools:     make(map[domain.Tab][]domain.Exchange),
		hidden:    make(map[string]struct{}),
	}
}

// Pool returns the current pool for a tab. A fresh fetch updates the Redis
// snapshot and, for the open tab, triggers a travel-time table rebuild. When
// the system of record is unreachable the last known snapshot is served
// instead; only when no snapshot exists either does Pool fail.
//
// Exchanges hidden by a queued offline action stay hidden until a fresh fetch
// no longer carries them.
func (s *ExchangeService) Pool(ctx context.Context, tab domain.Tab) ([]domain.Exchange, error) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	exchanges, err := s.source.ListExchanges(ctx, tab)
	if err != nil {
		if errors.Is(err, domain.ErrOffline) || errors.Is(err, domain.ErrUnavailable) {
			return s.fallback(ctx, tab, err)
		}
		return nil, fmt.Errorf("exchange_service: list %s pool: %w", tab, err)
	}

	s.mu.Lock()
	if gen == s.generation {
		s.pools[tab] = exchanges
		s.pruneHiddenLocked()
	}
	home := s.home
	visible := s.withoutHiddenLocked(exchanges)
	s.mu.Unlock()

	if s.snapshots != nil {
		if err := s.snapshots.SetPool(ctx, tab, exchanges); err != nil {
			s.logger.WarnContext(ctx, "pool snapshot write failed",
				slog.String("tab", string(tab)),
				slog.String("error", err.Error()),
			)
		}
	}

	if tab == domain.TabOpen && s.travel != nil {
		s.travel.Rebuild(ctx, home, visible)
	}

	return visible, nil
}

// fallback serves the last known pool when the upstream is unreachable:
// Redis snapshot first, then the in-memory copy.
func (s *ExchangeService) fallback(ctx context.Context, tab domain.Tab, cause error) ([]domain.Exchange, error) {
	if s.snapshots != nil {
		if cached, err := s.snapshots.GetPool(ctx, tab); err == nil {
			s.logger.InfoContext(ctx, "serving cached pool snapshot",
				slog.String("tab", string(tab)),
				slog.Int("count", len(cached)),
			)
			s.mu.Lock()
			visible := s.withoutHiddenLocked(cached)
			s.mu.Unlock()
			return visible, nil
		}
	}

	s.mu.Lock()
	last, ok := s.pools[tab]
	visible := s.withoutHiddenLocked(last)
	s.mu.Unlock()
	if ok {
		return visible, nil
	}

	return nil, fmt.Errorf("exchange_service: list %s pool: %w", tab, cause)
}

// Find resolves one exchange by ID: cached pools first, then a fresh fetch
// of each tab. Actions are executed against the snapshot this returns.
func (s *ExchangeService) Find(ctx context.Context, exchangeID string) (domain.Exchange, error) {
	s.mu.Lock()
	for _, pool := range s.pools {
		for _, x := range pool {
			if x.ID == exchangeID {
				s.mu.Unlock()
				return x, nil
			}
		}
	}
	s.mu.Unlock()

	for _, tab := range []domain.Tab{domain.TabOpen, domain.TabMine} {
		pool, err := s.Pool(ctx, tab)
		if err != nil {
			continue
		}
		for _, x := range pool {
			if x.ID == exchangeID {
				return x, nil
			}
		}
	}
	return domain.Exchange{}, fmt.Errorf("exchange_service: find %s: %w", exchangeID, domain.ErrNotFound)
}

// Invalidate discards every cached pool so the next read refetches. Called
// after a delivered mutation and after an outbox drain.
func (s *ExchangeService) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	s.pools = make(map[domain.Tab][]domain.Exchange)
	s.mu.Unlock()

	var firstErr error
	for _, tab := range []domain.Tab{domain.TabOpen, domain.TabMine} {
		if s.snapshots != nil {
			if err := s.snapshots.Invalidate(ctx, tab); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("exchange_service: invalidate %s snapshot: %w", tab, err)
			}
		}
		s.notify(tab)
	}
	return firstErr
}

// HideLocally hides an exchange from every pool until a refetch confirms its
// server-side state. The optimistic effect of a queued offline action.
func (s *ExchangeService) HideLocally(exchangeID string) {
	s.mu.Lock()
	s.hidden[exchangeID] = struct{}{}
	s.mu.Unlock()

	s.logger.Info("exchange hidden locally",
		slog.String("exchange_id", exchangeID),
	)
	s.notify(domain.TabOpen)
	s.notify(domain.TabMine)
}

// SetHome updates the referee's home location and rebuilds the travel-time
// table for the current open pool.
func (s *ExchangeService) SetHome(ctx context.Context, home *domain.Coord) {
	s.mu.Lock()
	s.home = home
	pool := s.withoutHiddenLocked(s.pools[domain.TabOpen])
	s.mu.Unlock()

	if s.travel != nil {
		s.travel.Rebuild(ctx, home, pool)
	}
}

// Home returns the currently configured home location, or nil.
func (s *ExchangeService) Home() *domain.Coord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.home
}

// pruneHiddenLocked drops hidden IDs no cached pool carries anymore: the
// server has observed the queued action, the optimistic hide is obsolete.
func (s *ExchangeService) pruneHiddenLocked() {
	if len(s.hidden) == 0 {
		return
	}
	present := make(map[string]struct{})
	for _, pool := range s.pools {
		for _, x := range pool {
			present[x.ID] = struct{}{}
		}
	}
	for id := range s.hidden {
		if _, ok := present[id]; !ok {
			delete(s.hidden, id)
		}
	}
}

func (s *ExchangeService) withoutHiddenLocked(pool []domain.Exchange) []domain.Exchange {
	if len(s.hidden) == 0 {
		return pool
	}
	out := make([]domain.Exchange, 0, len(pool))
	for _, x := range pool {
		if _, ok := s.hidden[x.ID]; ok {
			continue
		}
		out = append(out, x)
	}
	return out
}

func (s *ExchangeService) notify(tab domain.Tab) {
	if s.listener != nil {
		s.listener.PoolChanged(tab)
	}
}
