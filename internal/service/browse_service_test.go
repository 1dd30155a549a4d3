package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/refexchange/internal/domain"
	"github.com/courtside/refexchange/internal/settings"
)

type memSettingsStore struct {
	data map[domain.FilterKind]domain.FilterSettings
}

func newMemSettingsStore() *memSettingsStore {
	return &memSettingsStore{data: make(map[domain.FilterKind]domain.FilterSettings)}
}

func (m *memSettingsStore) GetAll(context.Context) (map[domain.FilterKind]domain.FilterSettings, error) {
	out := make(map[domain.FilterKind]domain.FilterSettings, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out, nil
}

func (m *memSettingsStore) Upsert(_ context.Context, s domain.FilterSettings) error {
	existing, ok := m.data[s.Kind]
	if ok {
		s.Overrides = existing.Overrides
	}
	m.data[s.Kind] = s
	return nil
}

func (m *memSettingsStore) SetOverride(_ context.Context, kind domain.FilterKind, code string, threshold float64) error {
	s := m.data[kind]
	s.Kind = kind
	if s.Overrides == nil {
		s.Overrides = make(map[string]float64)
	}
	s.Overrides[code] = threshold
	m.data[kind] = s
	return nil
}

func (m *memSettingsStore) ClearOverride(_ context.Context, kind domain.FilterKind, code string) error {
	delete(m.data[kind].Overrides, code)
	return nil
}

type fakeAssignments struct {
	assignments []domain.Assignment
}

func (f *fakeAssignments) ListAssignments(context.Context) ([]domain.Assignment, error) {
	return f.assignments, nil
}

func gradation(v float64) *float64 { return &v }

func browseFixture(t *testing.T, pool []domain.Exchange, store *memSettingsStore, viewer domain.Referee) *BrowseService {
	t.Helper()

	source := &fakeSource{pools: map[domain.Tab][]domain.Exchange{
		domain.TabOpen: pool,
		domain.TabMine: nil,
	}}
	exchanges := NewExchangeService(source, nil, nil, nil, testLogger())
	assignments := NewAssignmentService(&fakeAssignments{}, testLogger())
	settingsSvc := settings.NewService(store, testLogger())

	return NewBrowseService(exchanges, assignments, settingsSvc, nil, viewer, false, testLogger())
}

func TestBrowseResolvesActionsPerOffer(t *testing.T) {
	viewer := domain.Referee{ID: "ref-1"}
	pool := []domain.Exchange{
		openOffer("theirs", "ref-2"),
		openOffer("own", "ref-1"),
	}

	svc := browseFixture(t, pool, newMemSettingsStore(), viewer)

	res, err := svc.Browse(context.Background(), domain.TabOpen)

	require.NoError(t, err)
	require.Len(t, res.Offers, 2)

	actions := map[string]domain.ActionKind{}
	for _, o := range res.Offers {
		actions[o.Exchange.ID] = o.Action
	}
	assert.Equal(t, domain.ActionTakeOver, actions["theirs"])
	assert.Equal(t, domain.ActionRemove, actions["own"], "cancelling an own posting is a removal")
}

func TestBrowseAppliesEnabledFilters(t *testing.T) {
	viewer := domain.Referee{ID: "ref-1"}
	store := newMemSettingsStore()
	require.NoError(t, store.Upsert(context.Background(), domain.FilterSettings{
		Kind:    domain.FilterOwnership,
		Enabled: true,
	}))

	pool := []domain.Exchange{
		openOffer("theirs", "ref-2"),
		openOffer("own", "ref-1"),
	}

	svc := browseFixture(t, pool, store, viewer)

	res, err := svc.Browse(context.Background(), domain.TabOpen)

	require.NoError(t, err)
	require.Len(t, res.Offers, 1)
	assert.Equal(t, "theirs", res.Offers[0].Exchange.ID)
	assert.True(t, res.FiltersActive)
}

func TestBrowseSeedsLevelThresholdFromProfile(t *testing.T) {
	viewer := domain.Referee{ID: "ref-1", Gradation: gradation(3)}
	store := newMemSettingsStore()
	require.NoError(t, store.Upsert(context.Background(), domain.FilterSettings{
		Kind:    domain.FilterLevel,
		Enabled: true,
		// A persisted threshold is ignored for the level kind.
		Threshold: 99,
	}))

	within := openOffer("within", "ref-2")
	within.RequiredGradation = gradation(3)
	above := openOffer("above", "ref-3")
	above.RequiredGradation = gradation(2)

	svc := browseFixture(t, []domain.Exchange{within, above}, store, viewer)

	res, err := svc.Browse(context.Background(), domain.TabOpen)

	require.NoError(t, err)
	require.Len(t, res.Offers, 1)
	assert.Equal(t, "within", res.Offers[0].Exchange.ID,
		"offers demanding a stronger gradation than the viewer's are hidden")
}

func TestBrowseMineTabIsUnfiltered(t *testing.T) {
	viewer := domain.Referee{ID: "ref-1"}
	store := newMemSettingsStore()
	require.NoError(t, store.Upsert(context.Background(), domain.FilterSettings{
		Kind:    domain.FilterOwnership,
		Enabled: true,
	}))

	source := &fakeSource{pools: map[domain.Tab][]domain.Exchange{
		domain.TabMine: {openOffer("own", "ref-1")},
	}}
	exchanges := NewExchangeService(source, nil, nil, nil, testLogger())
	assignments := NewAssignmentService(&fakeAssignments{}, testLogger())
	svc := NewBrowseService(exchanges, assignments, settings.NewService(store, testLogger()), nil, viewer, false, testLogger())

	res, err := svc.Browse(context.Background(), domain.TabMine)

	require.NoError(t, err)
	require.Len(t, res.Offers, 1)
	assert.Equal(t, domain.ActionRemove, res.Offers[0].Action)
}
