package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/courtside/refexchange/internal/domain"
)

// ArchiveImpl implements domain.Archiver: delivered outbox entries and
// closed-exchange snapshots are serialized to JSONL and uploaded to object
// storage. Delivered outbox entries are deleted from the primary store only
// after the upload succeeded.
type ArchiveImpl struct {
	writer domain.BlobWriter
	outbox domain.OutboxStore
	logger *slog.Logger
}

// NewArchiver creates an ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, outbox domain.OutboxStore, logger *slog.Logger) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		outbox: outbox,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveOutbox uploads delivered outbox entries older than the cutoff to
// archive/outbox/YYYY-MM.jsonl and then removes them from the primary store.
// It returns how many entries were archived.
func (a *ArchiveImpl) ArchiveOutbox(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.outbox.ListDeliveredBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive outbox query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive outbox marshal: %w", err)
	}

	path := archivePath("outbox", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive outbox upload: %w", err)
	}

	deleted, err := a.outbox.DeleteDeliveredBefore(ctx, before)
	if err != nil {
		// The archive exists; the next run retries the deletion.
		return int64(len(entries)), fmt.Errorf("s3blob: archive outbox cleanup: %w", err)
	}

	a.logger.InfoContext(ctx, "outbox archived",
		slog.String("path", path),
		slog.Int("entries", len(entries)),
		slog.Int64("deleted", deleted),
	)
	return int64(len(entries)), nil
}

// ArchivePool uploads a snapshot of closed exchanges for audit purposes at
// archive/exchanges/YYYY-MM-DD.jsonl. Open and applied offers are skipped;
// they are still live marketplace state.
func (a *ArchiveImpl) ArchivePool(ctx context.Context, exchanges []domain.Exchange, at time.Time) (int64, error) {
	closed := make([]domain.Exchange, 0, len(exchanges))
	for _, x := range exchanges {
		if x.Status == domain.ExchangeStatusClosed {
			closed = append(closed, x)
		}
	}
	if len(closed) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(closed)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive pool marshal: %w", err)
	}

	path := fmt.Sprintf("archive/exchanges/%s.jsonl", at.Format("2006-01-02"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive pool upload: %w", err)
	}

	a.logger.InfoContext(ctx, "pool snapshot archived",
		slog.String("path", path),
		slog.Int("exchanges", len(closed)),
	)
	return int64(len(closed)), nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/outbox/2026-02.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
