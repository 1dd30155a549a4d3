package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtside/refexchange/internal/domain"
)

// SettingsStore implements domain.SettingsStore using PostgreSQL. The global
// layer lives in filter_settings, per-association threshold overrides in
// filter_overrides.
type SettingsStore struct {
	pool *pgxpool.Pool
}

// NewSettingsStore creates a new SettingsStore backed by the given pool.
func NewSettingsStore(pool *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

// GetAll returns the persisted settings for every configured filter kind,
// with overrides attached.
func (s *SettingsStore) GetAll(ctx context.Context) (map[domain.FilterKind]domain.FilterSettings, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT kind, enabled, threshold FROM filter_settings`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query filter settings: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.FilterKind]domain.FilterSettings)
	for rows.Next() {
		var cfg domain.FilterSettings
		var kind string
		if err := rows.Scan(&kind, &cfg.Enabled, &cfg.Threshold); err != nil {
			return nil, fmt.Errorf("postgres: scan filter settings: %w", err)
		}
		cfg.Kind = domain.FilterKind(kind)
		cfg.Overrides = map[string]float64{}
		out[cfg.Kind] = cfg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate filter settings: %w", err)
	}

	oRows, err := s.pool.Query(ctx,
		`SELECT kind, association_code, threshold FROM filter_overrides`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query filter overrides: %w", err)
	}
	defer oRows.Close()

	for oRows.Next() {
		var kind, assoc string
		var threshold float64
		if err := oRows.Scan(&kind, &assoc, &threshold); err != nil {
			return nil, fmt.Errorf("postgres: scan filter override: %w", err)
		}
		cfg, ok := out[domain.FilterKind(kind)]
		if !ok {
			// Override without a global row; surface it with zero defaults
			// rather than dropping it.
			cfg = domain.FilterSettings{
				Kind:      domain.FilterKind(kind),
				Overrides: map[string]float64{},
			}
		}
		cfg.Overrides[assoc] = threshold
		out[cfg.Kind] = cfg
	}
	if err := oRows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate filter overrides: %w", err)
	}

	return out, nil
}

// Upsert writes the global layer of one filter kind.
func (s *SettingsStore) Upsert(ctx context.Context, cfg domain.FilterSettings) error {
	const query = `
		INSERT INTO filter_settings (kind, enabled, threshold, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (kind) DO UPDATE
		SET enabled = EXCLUDED.enabled,
		    threshold = EXCLUDED.threshold,
		    updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, string(cfg.Kind), cfg.Enabled, cfg.Threshold); err != nil {
		return fmt.Errorf("postgres: upsert filter settings %s: %w", cfg.Kind, err)
	}
	return nil
}

// SetOverride writes a per-association threshold override. The parent global
// row is created on demand so overrides never dangle.
func (s *SettingsStore) SetOverride(ctx context.Context, kind domain.FilterKind, associationCode string, threshold float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin set override: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx,
		`INSERT INTO filter_settings (kind) VALUES ($1) ON CONFLICT (kind) DO NOTHING`,
		string(kind),
	); err != nil {
		return fmt.Errorf("postgres: ensure filter settings %s: %w", kind, err)
	}

	const query = `
		INSERT INTO filter_overrides (kind, association_code, threshold, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (kind, association_code) DO UPDATE
		SET threshold = EXCLUDED.threshold, updated_at = NOW()`

	if _, err := tx.Exec(ctx, query, string(kind), associationCode, threshold); err != nil {
		return fmt.Errorf("postgres: set override %s/%s: %w", kind, associationCode, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit set override: %w", err)
	}
	return nil
}

// ClearOverride removes a per-association override. Clearing an override
// that does not exist is not an error.
func (s *SettingsStore) ClearOverride(ctx context.Context, kind domain.FilterKind, associationCode string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM filter_overrides WHERE kind = $1 AND association_code = $2`,
		string(kind), associationCode,
	); err != nil {
		return fmt.Errorf("postgres: clear override %s/%s: %w", kind, associationCode, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SettingsStore = (*SettingsStore)(nil)
