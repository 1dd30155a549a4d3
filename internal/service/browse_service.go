package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/courtside/refexchange/internal/domain"
	"github.com/courtside/refexchange/internal/eligibility"
	"github.com/courtside/refexchange/internal/filter"
	"github.com/courtside/refexchange/internal/settings"
	"github.com/courtside/refexchange/internal/traveltime"
)

// Offer is one visible exchange paired with the single action the viewer may
// take on it.
type Offer struct {
	Exchange domain.Exchange   `json:"exchange"`
	Action   domain.ActionKind `json:"action"`
}

// BrowseResult is what a marketplace view renders: the visible offers plus
// the flags empty-state and degraded-data messaging need.
type BrowseResult struct {
	Offers             []Offer `json:"offers"`
	FiltersActive      bool    `json:"filters_active"`
	TravelDataDegraded bool    `json:"travel_data_degraded"`
	TravelTimesLoading bool    `json:"travel_times_loading"`
}

// BrowseService assembles one consistent snapshot per request -- pool,
// resolved filter settings, travel-time table, own assignments -- runs the
// filter pipeline over it, and resolves the legal action per visible offer.
type BrowseService struct {
	pool        *ExchangeService
	assignments *AssignmentService
	settings    *settings.Service
	travel      *traveltime.Builder
	viewer      domain.Referee
	strict      bool
	logger      *slog.Logger
}

// NewBrowseService creates a BrowseService for one viewer. strictUnknown
// flips the pipeline from inclusive to exclusive handling of offers whose
// filter input is missing.
func NewBrowseService(
	pool *ExchangeService,
	assignments *AssignmentService,
	settingsSvc *settings.Service,
	travel *traveltime.Builder,
	viewer domain.Referee,
	strictUnknown bool,
	logger *slog.Logger,
) *BrowseService {
	return &BrowseService{
		pool:        pool,
		assignments: assignments,
		settings:    settingsSvc,
		travel:      travel,
		viewer:      viewer,
		strict:      strictUnknown,
		logger:      logger.With(slog.String("component", "browse_service")),
	}
}

// Browse returns the visible, actionable offers for one tab.
func (s *BrowseService) Browse(ctx context.Context, tab domain.Tab) (BrowseResult, error) {
	pool, err := s.pool.Pool(ctx, tab)
	if err != nil {
		return BrowseResult{}, fmt.Errorf("browse: %w", err)
	}

	states, err := s.settings.Effective(ctx, s.viewer.AssociationCode)
	if err != nil {
		return BrowseResult{}, fmt.Errorf("browse: %w", err)
	}
	s.seedLevelThreshold(states)

	fctx := filter.Context{
		Tab:           tab,
		ViewerID:      s.viewer.ID,
		Home:          s.pool.Home(),
		Filters:       states,
		StrictUnknown: s.strict,
	}
	if st, ok := states[domain.FilterGameGap]; ok && st.Enabled {
		fctx.Assignments = s.assignments.Assignments(ctx)
	}
	var loading bool
	if s.travel != nil {
		fctx.TravelTimes = s.travel.Snapshot()
		loading = s.travel.Loading()
	}

	res := filter.Apply(pool, fctx)

	offers := make([]Offer, 0, len(res.Visible))
	for _, x := range res.Visible {
		offers = append(offers, Offer{
			Exchange: x,
			Action:   eligibility.ActionFor(x, s.viewer.ID, tab),
		})
	}

	s.logger.DebugContext(ctx, "pool browsed",
		slog.String("tab", string(tab)),
		slog.Int("pool", len(pool)),
		slog.Int("visible", len(offers)),
		slog.Bool("filters_active", res.FiltersActive),
	)

	return BrowseResult{
		Offers:             offers,
		FiltersActive:      res.FiltersActive,
		TravelDataDegraded: res.TravelDataDegraded,
		TravelTimesLoading: loading,
	}, nil
}

// Viewer returns the referee this service browses as.
func (s *BrowseService) Viewer() domain.Referee {
	return s.viewer
}

// seedLevelThreshold stamps the viewer's own gradation into the level
// filter's state; the persisted threshold is ignored for this kind because
// the comparison baseline is the profile, not a setting.
func (s *BrowseService) seedLevelThreshold(states map[domain.FilterKind]domain.FilterState) {
	st, ok := states[domain.FilterLevel]
	if !ok {
		return
	}
	if s.viewer.Gradation != nil {
		st.Threshold = *s.viewer.Gradation
	} else {
		st.Threshold = 0
	}
	states[domain.FilterLevel] = st
}
