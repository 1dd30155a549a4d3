package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/courtside/refexchange/internal/domain"
)

const poolTTL = 24 * time.Hour

// ExchangeCache implements domain.ExchangeCache using one JSON-serialized
// pool snapshot per tab. The generous TTL is deliberate: the snapshot is a
// fallback for browsing while the system of record is unreachable, not a
// freshness mechanism -- freshness comes from explicit invalidation after
// mutations.
//
// Key schema:
//
//	exchanges:pool:{tab} - JSON array of exchanges
type ExchangeCache struct {
	rdb *redis.Client
}

// NewExchangeCache creates an ExchangeCache backed by the given Client.
func NewExchangeCache(c *Client) *ExchangeCache {
	return &ExchangeCache{rdb: c.Underlying()}
}

func poolKey(tab domain.Tab) string { return "exchanges:pool:" + string(tab) }

// SetPool stores the latest fetched pool snapshot for a tab, replacing the
// previous snapshot wholesale.
func (ec *ExchangeCache) SetPool(ctx context.Context, tab domain.Tab, exchanges []domain.Exchange) error {
	data, err := json.Marshal(exchanges)
	if err != nil {
		return fmt.Errorf("redis: marshal pool %s: %w", tab, err)
	}
	if err := ec.rdb.Set(ctx, poolKey(tab), data, poolTTL).Err(); err != nil {
		return fmt.Errorf("redis: set pool %s: %w", tab, err)
	}
	return nil
}

// GetPool retrieves the last stored snapshot for a tab. It returns
// domain.ErrNotFound when no snapshot exists.
func (ec *ExchangeCache) GetPool(ctx context.Context, tab domain.Tab) ([]domain.Exchange, error) {
	data, err := ec.rdb.Get(ctx, poolKey(tab)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get pool %s: %w", tab, err)
	}

	var exchanges []domain.Exchange
	if err := json.Unmarshal(data, &exchanges); err != nil {
		return nil, fmt.Errorf("redis: unmarshal pool %s: %w", tab, err)
	}
	return exchanges, nil
}

// Invalidate removes the snapshot for a tab, forcing the next read through
// to the system of record.
func (ec *ExchangeCache) Invalidate(ctx context.Context, tab domain.Tab) error {
	if err := ec.rdb.Del(ctx, poolKey(tab)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate pool %s: %w", tab, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ExchangeCache = (*ExchangeCache)(nil)
