package s3blob

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/refexchange/internal/domain"
)

type memWriter struct {
	objects map[string]string
}

func newMemWriter() *memWriter {
	return &memWriter{objects: make(map[string]string)}
}

func (m *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = string(b)
	return nil
}

type fakeOutbox struct {
	delivered []domain.OutboxEntry
	deleted   int64
}

func (f *fakeOutbox) Insert(context.Context, domain.OutboxEntry) error { return nil }

func (f *fakeOutbox) ListPending(context.Context) ([]domain.OutboxEntry, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkDelivered(context.Context, string) error { return nil }

func (f *fakeOutbox) RecordAttempt(context.Context, string, int, string) error { return nil }

func (f *fakeOutbox) MarkFailed(context.Context, string, int, string) error { return nil }

func (f *fakeOutbox) ListDeliveredBefore(context.Context, time.Time) ([]domain.OutboxEntry, error) {
	return f.delivered, nil
}

func (f *fakeOutbox) DeleteDeliveredBefore(context.Context, time.Time) (int64, error) {
	f.deleted = int64(len(f.delivered))
	f.delivered = nil
	return f.deleted, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestArchiveOutboxUploadsThenDeletes(t *testing.T) {
	writer := newMemWriter()
	outbox := &fakeOutbox{delivered: []domain.OutboxEntry{
		{ID: "e-1", Kind: domain.ActionTakeOver, ExchangeID: "x-1", Status: domain.OutboxDelivered},
		{ID: "e-2", Kind: domain.ActionRemove, ExchangeID: "x-2", Status: domain.OutboxDelivered},
	}}

	a := NewArchiver(writer, outbox, testLogger())

	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	count, err := a.ArchiveOutbox(context.Background(), cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(2), outbox.deleted, "entries are deleted only after the upload")

	body, ok := writer.objects["archive/outbox/2026-02.jsonl"]
	require.True(t, ok)
	assert.Equal(t, 2, strings.Count(body, "\n"), "one JSON line per entry")
	assert.Contains(t, body, `"e-1"`)
}

func TestArchiveOutboxNothingToDo(t *testing.T) {
	writer := newMemWriter()
	a := NewArchiver(writer, &fakeOutbox{}, testLogger())

	count, err := a.ArchiveOutbox(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, writer.objects)
}

func TestArchivePoolOnlyClosedExchanges(t *testing.T) {
	writer := newMemWriter()
	a := NewArchiver(writer, &fakeOutbox{}, testLogger())

	at := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	count, err := a.ArchivePool(context.Background(), []domain.Exchange{
		{ID: "open-1", Status: domain.ExchangeStatusOpen},
		{ID: "closed-1", Status: domain.ExchangeStatusClosed},
	}, at)

	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	body, ok := writer.objects["archive/exchanges/2026-02-15.jsonl"]
	require.True(t, ok)
	assert.Contains(t, body, `"closed-1"`)
	assert.NotContains(t, body, `"open-1"`)
}
