// Package filter implements the marketplace filter pipeline: a deterministic
// function from one consistent input snapshot (pool, resolved settings,
// travel-time table, own assignments) to the visible subset.
//
// Every stage is independently skippable and AND-ed with the others. Missing
// data is inclusive by default: an offer whose distance or travel time is
// unknown is still shown, because hiding it would be silent data loss to the
// user. Deployments wanting the opposite flip Context.StrictUnknown.
package filter

import (
	"math"
	"time"

	"github.com/courtside/refexchange/internal/domain"
	"github.com/courtside/refexchange/internal/geo"
)

// Context is the full input snapshot the pipeline evaluates against. It is
// assembled once per recomputation; the pipeline never reads shared state.
type Context struct {
	Tab      domain.Tab
	ViewerID string

	// Home is the referee's home location; nil disables distance filtering
	// for lack of data.
	Home *domain.Coord

	// Assignments are the user's own confirmed bookings. A nil slice means
	// assignment data is not loaded and the gap check is skipped entirely;
	// an empty slice means "loaded, none booked".
	Assignments []domain.Assignment

	// TravelTimes is the lookup table built for the current pool snapshot,
	// keyed by exchange ID.
	TravelTimes map[string]domain.TravelTimeEntry

	// Filters is the resolved per-kind state for the active association.
	Filters map[domain.FilterKind]domain.FilterState

	// StrictUnknown excludes offers whose filter input is missing instead
	// of keeping them.
	StrictUnknown bool
}

// Result is the pipeline output. FiltersActive is reported separately from
// the visible set so empty-state messaging can distinguish "no exchanges
// exist" from "filters hid everything". TravelDataDegraded tells the UI that
// travel-time lookups were missing or unavailable while the filter was on.
type Result struct {
	Visible            []domain.Exchange
	FiltersActive      bool
	TravelDataDegraded bool
}

// Apply evaluates the pool against the context. Stage order is fixed (level,
// distance, travel time, minimum gap, ownership) for test determinism; the
// stages are independent predicates, so order does not change the final set.
//
// Filters only apply to the open marketplace. The user's own submissions tab
// is returned unfiltered, always.
func Apply(pool []domain.Exchange, ctx Context) Result {
	if ctx.Tab != domain.TabOpen {
		return Result{Visible: pool}
	}

	res := Result{
		Visible:       make([]domain.Exchange, 0, len(pool)),
		FiltersActive: anyEnabled(ctx.Filters),
	}

	for _, x := range pool {
		if !keepByLevel(x, ctx) {
			continue
		}
		if !keepByDistance(x, ctx) {
			continue
		}
		keep, degraded := keepByTravelTime(x, ctx)
		if degraded {
			res.TravelDataDegraded = true
		}
		if !keep {
			continue
		}
		if !keepByGameGap(x, ctx) {
			continue
		}
		if !keepByOwnership(x, ctx) {
			continue
		}
		res.Visible = append(res.Visible, x)
	}

	return res
}

func anyEnabled(filters map[domain.FilterKind]domain.FilterState) bool {
	for _, st := range filters {
		if st.Enabled {
			return true
		}
	}
	return false
}

// keepByLevel keeps offers whose required gradation is absent or not
// stronger than the user's. Lower gradation value means higher skill tier,
// so the comparison direction is inverted relative to naive level-ordering
// intuition. The state's threshold is the user's own gradation value.
func keepByLevel(x domain.Exchange, ctx Context) bool {
	st, ok := ctx.Filters[domain.FilterLevel]
	if !ok || !st.Enabled {
		return true
	}
	if x.RequiredGradation == nil {
		return !ctx.StrictUnknown
	}
	if st.Threshold <= 0 {
		// Own gradation unknown: nothing to compare against.
		return !ctx.StrictUnknown
	}
	return st.Threshold <= *x.RequiredGradation
}

// keepByDistance keeps offers within the effective car-distance threshold,
// or whose distance is unknown (no venue on record, no home location set, or
// NaN coordinates).
func keepByDistance(x domain.Exchange, ctx Context) bool {
	st, ok := ctx.Filters[domain.FilterDistance]
	if !ok || !st.Enabled {
		return true
	}
	if ctx.Home == nil || !ctx.Home.Valid() || x.Game.Venue == nil || !x.Game.Venue.Valid() {
		return !ctx.StrictUnknown
	}

	km := geo.DistanceKm(ctx.Home.Lat, ctx.Home.Lng, x.Game.Venue.Lat, x.Game.Venue.Lng)
	if math.IsNaN(km) {
		return !ctx.StrictUnknown
	}
	return km <= st.Threshold
}

// keepByTravelTime keeps offers whose cached transit minutes are within the
// effective threshold. A missing, still-loading, or unavailable entry keeps
// the offer and marks the result degraded so the UI can indicate it.
func keepByTravelTime(x domain.Exchange, ctx Context) (keep, degraded bool) {
	st, ok := ctx.Filters[domain.FilterTravelTime]
	if !ok || !st.Enabled {
		return true, false
	}

	entry, ok := ctx.TravelTimes[x.ID]
	if !ok || entry.Minutes == nil {
		if ok && entry.Loading {
			return !ctx.StrictUnknown, false
		}
		return !ctx.StrictUnknown, true
	}
	return float64(*entry.Minutes) <= st.Threshold, false
}

// keepByGameGap keeps offers whose game start is at least the threshold away
// from every one of the user's confirmed assignment starts, checked
// symmetrically in both directions. With no assignment data loaded the check
// is skipped entirely.
func keepByGameGap(x domain.Exchange, ctx Context) bool {
	st, ok := ctx.Filters[domain.FilterGameGap]
	if !ok || !st.Enabled {
		return true
	}
	if ctx.Assignments == nil {
		return true
	}

	required := time.Duration(st.Threshold) * time.Minute
	for _, a := range ctx.Assignments {
		gap := x.Game.StartingAt.Sub(a.StartingAt)
		if gap < 0 {
			gap = -gap
		}
		if gap < required {
			return false
		}
	}
	return true
}

// keepByOwnership drops the user's own postings when "hide own" is on. This
// stage only ever runs on the open tab; Apply short-circuits the mine tab.
func keepByOwnership(x domain.Exchange, ctx Context) bool {
	st, ok := ctx.Filters[domain.FilterOwnership]
	if !ok || !st.Enabled {
		return true
	}
	return !x.SubmittedBy(ctx.ViewerID)
}
