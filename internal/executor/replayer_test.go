package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/refexchange/internal/domain"
)

func pendingEntry(id, token string) domain.OutboxEntry {
	return domain.OutboxEntry{
		ID:           id,
		Kind:         domain.ActionTakeOver,
		ExchangeID:   "x-1",
		AttemptToken: token,
		Status:       domain.OutboxPending,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestDrainDeliversPendingEntries(t *testing.T) {
	source := &fakeSource{}
	outbox := newMemOutbox()
	pool := &fakePool{}

	require.NoError(t, outbox.Insert(context.Background(), pendingEntry("e-1", "tok-1")))
	require.NoError(t, outbox.Insert(context.Background(), pendingEntry("e-2", "tok-2")))

	r := NewReplayer(source, outbox, newFakeConn(true), pool, nil, testLogger())
	r.Drain(context.Background())

	assert.Equal(t, int64(2), source.applyCalls.Load())
	assert.Len(t, outbox.byStatus(domain.OutboxDelivered), 2)
	assert.Empty(t, outbox.byStatus(domain.OutboxPending))
	assert.Equal(t, 1, pool.invalidations(), "a drain that delivered anything refreshes the pool once")

	source.mu.Lock()
	defer source.mu.Unlock()
	assert.ElementsMatch(t, []string{"tok-1", "tok-2"}, source.tokens,
		"replay reuses the original attempt tokens")
}

func TestDrainTreatsConflictAsDelivered(t *testing.T) {
	source := &fakeSource{err: domain.ErrAlreadyExists}
	outbox := newMemOutbox()

	require.NoError(t, outbox.Insert(context.Background(), pendingEntry("e-1", "tok-1")))

	r := NewReplayer(source, outbox, newFakeConn(true), &fakePool{}, nil, testLogger())
	r.Drain(context.Background())

	assert.Len(t, outbox.byStatus(domain.OutboxDelivered), 1,
		"a token conflict means the earlier delivery already took effect")
}

func TestDrainStopsWhenOfflineAgain(t *testing.T) {
	source := &fakeSource{err: domain.ErrOffline}
	outbox := newMemOutbox()
	pool := &fakePool{}

	require.NoError(t, outbox.Insert(context.Background(), pendingEntry("e-1", "tok-1")))
	require.NoError(t, outbox.Insert(context.Background(), pendingEntry("e-2", "tok-2")))

	r := NewReplayer(source, outbox, newFakeConn(true), pool, nil, testLogger())
	r.Drain(context.Background())

	assert.Equal(t, int64(1), source.applyCalls.Load(), "drain stops at the first offline failure")
	assert.Len(t, outbox.byStatus(domain.OutboxPending), 2, "both entries stay pending for the next round")
	assert.Equal(t, 0, pool.invalidations())
}

func TestReplayFailureKeepsEntryPending(t *testing.T) {
	source := &fakeSource{err: errors.New("rejected")}
	outbox := newMemOutbox()

	require.NoError(t, outbox.Insert(context.Background(), pendingEntry("e-1", "tok-1")))

	r := NewReplayer(source, outbox, newFakeConn(true), &fakePool{}, nil, testLogger())
	r.Drain(context.Background())

	pending := outbox.byStatus(domain.OutboxPending)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "rejected", pending[0].LastError)
}

func TestReplayAbandonsAfterMaxAttempts(t *testing.T) {
	source := &fakeSource{err: errors.New("rejected")}
	outbox := newMemOutbox()

	entry := pendingEntry("e-1", "tok-1")
	entry.Attempts = maxReplayAttempts - 1
	require.NoError(t, outbox.Insert(context.Background(), entry))

	r := NewReplayer(source, outbox, newFakeConn(true), &fakePool{}, nil, testLogger())
	r.Drain(context.Background())

	failed := outbox.byStatus(domain.OutboxFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, maxReplayAttempts, failed[0].Attempts)
	assert.Empty(t, outbox.byStatus(domain.OutboxPending))
}

func TestRunDrainsOnOnlineSignal(t *testing.T) {
	source := &fakeSource{}
	outbox := newMemOutbox()
	conn := newFakeConn(true)

	require.NoError(t, outbox.Insert(context.Background(), pendingEntry("e-1", "tok-1")))

	r := NewReplayer(source, outbox, conn, &fakePool{}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()

	conn.signal <- struct{}{}

	assert.Eventually(t, func() bool {
		return source.applyCalls.Load() == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
