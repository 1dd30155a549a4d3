package domain

import (
	"context"
	"io"
	"time"
)

// SettingsStore persists filter configuration across sessions: the global
// layer plus per-association threshold overrides.
type SettingsStore interface {
	// GetAll returns the persisted settings for every filter kind. Kinds
	// never configured by the user are absent; callers fall back to
	// defaults.
	GetAll(ctx context.Context) (map[FilterKind]FilterSettings, error)
	// Upsert writes the global layer (enabled + threshold) of one filter.
	Upsert(ctx context.Context, s FilterSettings) error
	// SetOverride writes a per-association threshold override.
	SetOverride(ctx context.Context, kind FilterKind, associationCode string, threshold float64) error
	// ClearOverride removes a per-association override, restoring the
	// global default for that association.
	ClearOverride(ctx context.Context, kind FilterKind, associationCode string) error
}

// OutboxStore persists mutations accepted while offline for later replay.
// Replay is at-least-once; the attempt token carried by each entry makes
// repeated delivery safe.
type OutboxStore interface {
	Insert(ctx context.Context, e OutboxEntry) error
	ListPending(ctx context.Context) ([]OutboxEntry, error)
	MarkDelivered(ctx context.Context, id string) error
	// RecordAttempt notes a failed replay round while keeping the entry
	// pending for the next one.
	RecordAttempt(ctx context.Context, id string, attempts int, lastErr string) error
	// MarkFailed abandons an entry after its final failed attempt.
	MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error
	// ListDeliveredBefore returns delivered entries older than the cutoff,
	// for archival.
	ListDeliveredBefore(ctx context.Context, before time.Time) ([]OutboxEntry, error)
	DeleteDeliveredBefore(ctx context.Context, before time.Time) (int64, error)
}

// BlobWriter uploads serialized archives to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver exports aged engine records to object storage.
type Archiver interface {
	// ArchiveOutbox uploads delivered outbox entries older than the cutoff
	// and returns how many were written.
	ArchiveOutbox(ctx context.Context, before time.Time) (int64, error)
	// ArchivePool uploads a snapshot of closed exchanges from the given
	// pool for audit purposes.
	ArchivePool(ctx context.Context, exchanges []Exchange, at time.Time) (int64, error)
}
