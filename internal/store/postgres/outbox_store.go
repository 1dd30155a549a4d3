package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtside/refexchange/internal/domain"
)

// OutboxStore implements domain.OutboxStore using PostgreSQL. Entries are
// inserted while offline and drained by the replayer; the unique constraint
// on attempt_token guarantees one persisted record per logical action even
// if a queue attempt itself is retried.
type OutboxStore struct {
	pool *pgxpool.Pool
}

// NewOutboxStore creates a new OutboxStore backed by the given pool.
func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{pool: pool}
}

// Insert queues a mutation for replay. Inserting the same attempt token
// twice is a no-op rather than an error.
func (s *OutboxStore) Insert(ctx context.Context, e domain.OutboxEntry) error {
	const query = `
		INSERT INTO mutation_outbox (
			id, kind, exchange_id, convocation_id, attempt_token,
			status, attempts, last_error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (attempt_token) DO NOTHING`

	var convocationID *string
	if e.ConvocationID != "" {
		convocationID = &e.ConvocationID
	}

	_, err := s.pool.Exec(ctx, query,
		e.ID, string(e.Kind), e.ExchangeID, convocationID, e.AttemptToken,
		string(e.Status), e.Attempts, nullIfEmpty(e.LastError), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert outbox entry %s: %w", e.ID, err)
	}
	return nil
}

// ListPending returns queued entries in insertion order.
func (s *OutboxStore) ListPending(ctx context.Context) ([]domain.OutboxEntry, error) {
	const query = `
		SELECT id, kind, exchange_id, convocation_id, attempt_token,
		       status, attempts, last_error, created_at, delivered_at
		FROM mutation_outbox
		WHERE status = 'pending'
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending outbox: %w", err)
	}
	defer rows.Close()

	return scanOutboxRows(rows)
}

// MarkDelivered records a successful replay.
func (s *OutboxStore) MarkDelivered(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE mutation_outbox SET status = 'delivered', delivered_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark outbox delivered %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecordAttempt notes a failed replay round while keeping the entry pending.
func (s *OutboxStore) RecordAttempt(ctx context.Context, id string, attempts int, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE mutation_outbox SET attempts = $2, last_error = $3 WHERE id = $1`,
		id, attempts, lastErr,
	)
	if err != nil {
		return fmt.Errorf("postgres: record outbox attempt %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkFailed records a permanently failed replay with its attempt count and
// last error.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE mutation_outbox SET status = 'failed', attempts = $2, last_error = $3 WHERE id = $1`,
		id, attempts, lastErr,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark outbox failed %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListDeliveredBefore returns delivered entries older than the cutoff, for
// archival.
func (s *OutboxStore) ListDeliveredBefore(ctx context.Context, before time.Time) ([]domain.OutboxEntry, error) {
	const query = `
		SELECT id, kind, exchange_id, convocation_id, attempt_token,
		       status, attempts, last_error, created_at, delivered_at
		FROM mutation_outbox
		WHERE status = 'delivered' AND delivered_at < $1
		ORDER BY delivered_at`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list delivered outbox: %w", err)
	}
	defer rows.Close()

	return scanOutboxRows(rows)
}

// DeleteDeliveredBefore removes delivered entries older than the cutoff once
// they have been archived.
func (s *OutboxStore) DeleteDeliveredBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM mutation_outbox WHERE status = 'delivered' AND delivered_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete delivered outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanOutboxRows(rows pgx.Rows) ([]domain.OutboxEntry, error) {
	var out []domain.OutboxEntry
	for rows.Next() {
		var e domain.OutboxEntry
		var kind, status string
		var convocationID, lastErr *string
		err := rows.Scan(
			&e.ID, &kind, &e.ExchangeID, &convocationID, &e.AttemptToken,
			&status, &e.Attempts, &lastErr, &e.CreatedAt, &e.DeliveredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan outbox entry: %w", err)
		}
		e.Kind = domain.ActionKind(kind)
		e.Status = domain.OutboxStatus(status)
		if convocationID != nil {
			e.ConvocationID = *convocationID
		}
		if lastErr != nil {
			e.LastError = *lastErr
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate outbox entries: %w", err)
	}
	return out, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time interface check.
var _ domain.OutboxStore = (*OutboxStore)(nil)
