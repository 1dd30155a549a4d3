package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/courtside/refexchange/internal/domain"
)

const viewer = "ref-1"

var (
	zurich = domain.Coord{Lat: 47.3769, Lng: 8.5417}
	bern   = domain.Coord{Lat: 46.9480, Lng: 7.4474}
)

func grad(v float64) *float64 { return &v }

func enabled(threshold float64) domain.FilterState {
	return domain.FilterState{Enabled: true, Threshold: threshold}
}

func openExchange(id string, mutate ...func(*domain.Exchange)) domain.Exchange {
	x := domain.Exchange{
		ID:            id,
		Status:        domain.ExchangeStatusOpen,
		SubmittedByID: "ref-9",
		Game: domain.Game{
			StartingAt: time.Date(2025, 12, 15, 18, 0, 0, 0, time.UTC),
		},
	}
	for _, m := range mutate {
		m(&x)
	}
	return x
}

func TestApplyLevelFilter(t *testing.T) {
	tests := []struct {
		name     string
		required *float64
		userGrad float64
		want     bool
	}{
		{name: "stronger user is kept", required: grad(3), userGrad: 2, want: true},
		{name: "equal gradation is kept", required: grad(3), userGrad: 3, want: true},
		{name: "weaker user is excluded", required: grad(3), userGrad: 4, want: false},
		{name: "absent requirement is kept", required: nil, userGrad: 4, want: true},
		{name: "unknown own gradation is kept", required: grad(3), userGrad: 0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := openExchange("x-1", func(x *domain.Exchange) {
				x.RequiredGradation = tt.required
			})
			res := Apply([]domain.Exchange{x}, Context{
				Tab:      domain.TabOpen,
				ViewerID: viewer,
				Filters: map[domain.FilterKind]domain.FilterState{
					domain.FilterLevel: enabled(tt.userGrad),
				},
			})
			assert.Equal(t, tt.want, len(res.Visible) == 1)
		})
	}
}

func TestApplyDistanceFilter(t *testing.T) {
	far := openExchange("far", func(x *domain.Exchange) { x.Game.Venue = &bern })
	near := openExchange("near", func(x *domain.Exchange) { x.Game.Venue = &zurich })
	noVenue := openExchange("no-venue")

	ctx := Context{
		Tab:      domain.TabOpen,
		ViewerID: viewer,
		Home:     &zurich,
		Filters: map[domain.FilterKind]domain.FilterState{
			domain.FilterDistance: enabled(30),
		},
	}

	res := Apply([]domain.Exchange{far, near, noVenue}, ctx)

	ids := visibleIDs(res)
	assert.NotContains(t, ids, "far", "Zurich to Bern is ~95km, over the 30km cap")
	assert.Contains(t, ids, "near")
	assert.Contains(t, ids, "no-venue", "unknown distance never excludes")
}

func TestApplyDistanceFilterWithoutHome(t *testing.T) {
	far := openExchange("far", func(x *domain.Exchange) { x.Game.Venue = &bern })

	res := Apply([]domain.Exchange{far}, Context{
		Tab:      domain.TabOpen,
		ViewerID: viewer,
		Home:     nil,
		Filters: map[domain.FilterKind]domain.FilterState{
			domain.FilterDistance: enabled(1),
		},
	})

	assert.Len(t, res.Visible, 1, "no home location set: distance filter must keep everything regardless of threshold")
}

func TestApplyTravelTimeFilter(t *testing.T) {
	mins := func(m int) *int { return &m }

	pool := []domain.Exchange{
		openExchange("quick"),
		openExchange("slow"),
		openExchange("loading"),
		openExchange("unavailable"),
		openExchange("missing"),
	}

	ctx := Context{
		Tab:      domain.TabOpen,
		ViewerID: viewer,
		TravelTimes: map[string]domain.TravelTimeEntry{
			"quick":       {ExchangeID: "quick", Minutes: mins(35)},
			"slow":        {ExchangeID: "slow", Minutes: mins(140)},
			"loading":     {ExchangeID: "loading", Loading: true},
			"unavailable": {ExchangeID: "unavailable"},
		},
		Filters: map[domain.FilterKind]domain.FilterState{
			domain.FilterTravelTime: enabled(60),
		},
	}

	res := Apply(pool, ctx)

	ids := visibleIDs(res)
	assert.Contains(t, ids, "quick")
	assert.NotContains(t, ids, "slow")
	assert.Contains(t, ids, "loading")
	assert.Contains(t, ids, "unavailable")
	assert.Contains(t, ids, "missing")
	assert.True(t, res.TravelDataDegraded, "unavailable or missing lookups must be reported upward")
}

func TestApplyGameGapFilter(t *testing.T) {
	// Confirmed assignment at 17:00Z, candidate at 18:00Z: a 60 minute gap.
	assignment := domain.Assignment{
		ID:         "a-1",
		StartingAt: time.Date(2025, 12, 15, 17, 0, 0, 0, time.UTC),
	}
	candidate := openExchange("x-1")

	tests := []struct {
		name        string
		threshold   float64
		assignments []domain.Assignment
		want        bool
	}{
		{name: "gap below threshold excludes", threshold: 120, assignments: []domain.Assignment{assignment}, want: false},
		{name: "gap above threshold keeps", threshold: 30, assignments: []domain.Assignment{assignment}, want: true},
		{name: "gap checked symmetrically against later bookings", threshold: 120,
			assignments: []domain.Assignment{{ID: "a-2", StartingAt: time.Date(2025, 12, 15, 19, 0, 0, 0, time.UTC)}},
			want:        false},
		{name: "no assignment data loaded skips the check", threshold: 120, assignments: nil, want: true},
		{name: "loaded but empty calendar keeps", threshold: 120, assignments: []domain.Assignment{}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Apply([]domain.Exchange{candidate}, Context{
				Tab:         domain.TabOpen,
				ViewerID:    viewer,
				Assignments: tt.assignments,
				Filters: map[domain.FilterKind]domain.FilterState{
					domain.FilterGameGap: enabled(tt.threshold),
				},
			})
			assert.Equal(t, tt.want, len(res.Visible) == 1)
		})
	}
}

func TestApplyOwnershipFilter(t *testing.T) {
	own := openExchange("own", func(x *domain.Exchange) { x.SubmittedByID = viewer })
	foreign := openExchange("foreign")

	filters := map[domain.FilterKind]domain.FilterState{
		domain.FilterOwnership: {Enabled: true},
	}

	// Hidden on the open marketplace.
	res := Apply([]domain.Exchange{own, foreign}, Context{
		Tab:      domain.TabOpen,
		ViewerID: viewer,
		Filters:  filters,
	})
	assert.Equal(t, []string{"foreign"}, visibleIDs(res))

	// Present, unfiltered, on the submissions tab.
	res = Apply([]domain.Exchange{own}, Context{
		Tab:      domain.TabMine,
		ViewerID: viewer,
		Filters:  filters,
	})
	assert.Equal(t, []string{"own"}, visibleIDs(res))
}

func TestApplyMineTabNeverFiltered(t *testing.T) {
	x := openExchange("x-1", func(x *domain.Exchange) {
		x.SubmittedByID = viewer
		x.RequiredGradation = grad(1)
		x.Game.Venue = &bern
	})

	res := Apply([]domain.Exchange{x}, Context{
		Tab:      domain.TabMine,
		ViewerID: viewer,
		Home:     &zurich,
		Filters: map[domain.FilterKind]domain.FilterState{
			domain.FilterLevel:     enabled(4),
			domain.FilterDistance:  enabled(1),
			domain.FilterOwnership: {Enabled: true},
		},
	})

	assert.Len(t, res.Visible, 1)
	assert.False(t, res.FiltersActive)
}

func TestApplyReportsFiltersActive(t *testing.T) {
	res := Apply(nil, Context{
		Tab:      domain.TabOpen,
		ViewerID: viewer,
		Filters: map[domain.FilterKind]domain.FilterState{
			domain.FilterDistance: enabled(10),
		},
	})
	assert.True(t, res.FiltersActive)
	assert.Empty(t, res.Visible)

	res = Apply(nil, Context{Tab: domain.TabOpen, ViewerID: viewer})
	assert.False(t, res.FiltersActive)
}

func TestApplyStrictUnknownPolicy(t *testing.T) {
	noVenue := openExchange("no-venue")

	res := Apply([]domain.Exchange{noVenue}, Context{
		Tab:           domain.TabOpen,
		ViewerID:      viewer,
		Home:          &zurich,
		StrictUnknown: true,
		Filters: map[domain.FilterKind]domain.FilterState{
			domain.FilterDistance: enabled(100),
		},
	})

	assert.Empty(t, res.Visible, "strict policy excludes offers with unknown distance")
}

func visibleIDs(res Result) []string {
	ids := make([]string, 0, len(res.Visible))
	for _, x := range res.Visible {
		ids = append(ids, x.ID)
	}
	return ids
}
