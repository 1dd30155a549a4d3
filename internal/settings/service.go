package settings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/courtside/refexchange/internal/domain"
)

// Service mediates between callers and the persisted settings layer. Reads
// merge the store with built-in defaults; writes go straight through so the
// next filter recomputation observes them.
type Service struct {
	store  domain.SettingsStore
	logger *slog.Logger
}

// NewService creates a settings Service backed by the given store.
func NewService(store domain.SettingsStore, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With(slog.String("component", "settings")),
	}
}

// All returns the full two-layer configuration of every filter kind, with
// defaults filled in for kinds never configured.
func (s *Service) All(ctx context.Context) (map[domain.FilterKind]domain.FilterSettings, error) {
	persisted, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("settings: get all: %w", err)
	}

	out := Defaults()
	for kind, cfg := range persisted {
		out[kind] = cfg
	}
	return out, nil
}

// Effective resolves the state of every filter for the active association.
func (s *Service) Effective(ctx context.Context, associationCode string) (map[domain.FilterKind]domain.FilterState, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return ResolveAll(all, associationCode), nil
}

// SetGlobal writes the global layer (enabled flag + default threshold) of
// one filter. The enabled flag is global by design: enablement is a
// user-level preference, only the magnitude is context-specific.
func (s *Service) SetGlobal(ctx context.Context, kind domain.FilterKind, enabled bool, threshold float64) error {
	all, err := s.All(ctx)
	if err != nil {
		return err
	}
	cfg := all[kind]
	cfg.Kind = kind
	cfg.Enabled = enabled
	cfg.Threshold = threshold

	if err := s.store.Upsert(ctx, cfg); err != nil {
		return fmt.Errorf("settings: upsert %s: %w", kind, err)
	}

	s.logger.InfoContext(ctx, "filter settings updated",
		slog.String("kind", string(kind)),
		slog.Bool("enabled", enabled),
		slog.Float64("threshold", threshold),
	)
	return nil
}

// SetOverride writes a per-association threshold override for an
// overridable filter kind.
func (s *Service) SetOverride(ctx context.Context, kind domain.FilterKind, associationCode string, threshold float64) error {
	if !domain.OverridableKind(kind) {
		return fmt.Errorf("settings: %s does not support association overrides", kind)
	}
	if err := s.store.SetOverride(ctx, kind, associationCode, threshold); err != nil {
		return fmt.Errorf("settings: set override %s/%s: %w", kind, associationCode, err)
	}
	return nil
}

// ClearOverride removes a per-association override so the association falls
// back to the global default.
func (s *Service) ClearOverride(ctx context.Context, kind domain.FilterKind, associationCode string) error {
	if err := s.store.ClearOverride(ctx, kind, associationCode); err != nil {
		return fmt.Errorf("settings: clear override %s/%s: %w", kind, associationCode, err)
	}
	return nil
}
