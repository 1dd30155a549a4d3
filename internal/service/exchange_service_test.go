package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/refexchange/internal/domain"
)

type fakeSource struct {
	mu    sync.Mutex
	pools map[domain.Tab][]domain.Exchange
	err   error
	calls int
}

func (f *fakeSource) ListExchanges(_ context.Context, tab domain.Tab) ([]domain.Exchange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pools[tab], nil
}

func (f *fakeSource) Apply(context.Context, string, string) error             { return nil }
func (f *fakeSource) Withdraw(context.Context, string, string) error          { return nil }
func (f *fakeSource) RemoveConvocation(context.Context, string, string) error { return nil }
func (f *fakeSource) Health(context.Context) error                            { return nil }

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type memSnapshots struct {
	mu    sync.Mutex
	pools map[domain.Tab][]domain.Exchange
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{pools: make(map[domain.Tab][]domain.Exchange)}
}

func (m *memSnapshots) SetPool(_ context.Context, tab domain.Tab, exchanges []domain.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[tab] = exchanges
	return nil
}

func (m *memSnapshots) GetPool(_ context.Context, tab domain.Tab) ([]domain.Exchange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pool, ok := m.pools[tab]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return pool, nil
}

func (m *memSnapshots) Invalidate(_ context.Context, tab domain.Tab) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pools, tab)
	return nil
}

type recordingListener struct {
	mu      sync.Mutex
	changed []domain.Tab
}

func (r *recordingListener) PoolChanged(tab domain.Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, tab)
}

func (r *recordingListener) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changed)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func openOffer(id, submitter string) domain.Exchange {
	return domain.Exchange{ID: id, Status: domain.ExchangeStatusOpen, SubmittedByID: submitter}
}

func TestPoolServesFreshFetch(t *testing.T) {
	source := &fakeSource{pools: map[domain.Tab][]domain.Exchange{
		domain.TabOpen: {openOffer("x-1", "ref-2"), openOffer("x-2", "ref-3")},
	}}
	snapshots := newMemSnapshots()

	svc := NewExchangeService(source, snapshots, nil, nil, testLogger())

	pool, err := svc.Pool(context.Background(), domain.TabOpen)

	require.NoError(t, err)
	assert.Len(t, pool, 2)

	cached, err := snapshots.GetPool(context.Background(), domain.TabOpen)
	require.NoError(t, err)
	assert.Len(t, cached, 2, "a fresh fetch refreshes the snapshot cache")
}

func TestPoolFallsBackToSnapshotWhenOffline(t *testing.T) {
	source := &fakeSource{pools: map[domain.Tab][]domain.Exchange{
		domain.TabOpen: {openOffer("x-1", "ref-2")},
	}}
	snapshots := newMemSnapshots()

	svc := NewExchangeService(source, snapshots, nil, nil, testLogger())

	_, err := svc.Pool(context.Background(), domain.TabOpen)
	require.NoError(t, err)

	source.setErr(domain.ErrOffline)

	pool, err := svc.Pool(context.Background(), domain.TabOpen)

	require.NoError(t, err, "the last known pool keeps the marketplace browsable offline")
	assert.Len(t, pool, 1)
	assert.Equal(t, "x-1", pool[0].ID)
}

func TestPoolFailsOfflineWithoutAnySnapshot(t *testing.T) {
	source := &fakeSource{err: domain.ErrOffline}

	svc := NewExchangeService(source, nil, nil, nil, testLogger())

	_, err := svc.Pool(context.Background(), domain.TabOpen)

	assert.ErrorIs(t, err, domain.ErrOffline)
}

func TestHideLocallyMasksUntilRefetchDropsIt(t *testing.T) {
	source := &fakeSource{pools: map[domain.Tab][]domain.Exchange{
		domain.TabOpen: {openOffer("x-1", "ref-2"), openOffer("x-2", "ref-3")},
	}}

	svc := NewExchangeService(source, nil, nil, nil, testLogger())

	_, err := svc.Pool(context.Background(), domain.TabOpen)
	require.NoError(t, err)

	svc.HideLocally("x-1")

	pool, err := svc.Pool(context.Background(), domain.TabOpen)
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, "x-2", pool[0].ID, "hidden offers stay hidden while the server still lists them")

	// The server drops the exchange; the hide is obsolete and pruned.
	source.mu.Lock()
	source.pools[domain.TabOpen] = []domain.Exchange{openOffer("x-2", "ref-3")}
	source.mu.Unlock()

	pool, err = svc.Pool(context.Background(), domain.TabOpen)
	require.NoError(t, err)
	assert.Len(t, pool, 1)
}

func TestInvalidateNotifiesBothTabs(t *testing.T) {
	source := &fakeSource{}
	listener := &recordingListener{}

	svc := NewExchangeService(source, newMemSnapshots(), nil, listener, testLogger())

	require.NoError(t, svc.Invalidate(context.Background()))

	assert.Equal(t, 2, listener.count(), "both tabs get a change notification")
}

func TestHideLocallyNotifiesListener(t *testing.T) {
	listener := &recordingListener{}

	svc := NewExchangeService(&fakeSource{}, nil, nil, listener, testLogger())
	svc.HideLocally("x-1")

	assert.Equal(t, 2, listener.count())
}
