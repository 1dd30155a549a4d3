// Package eligibility decides which action a viewer may take on an exchange
// offer. The decision is a pure function of the offer snapshot, the viewer's
// identity, and the active tab -- never of any UI state.
package eligibility

import "github.com/courtside/refexchange/internal/domain"

// ActionFor maps (exchange, viewer, tab) to the single legal primary action.
// There is never more than one valid action per tab for a given offer.
//
// On the user's own submissions tab everything is removable. On the open
// marketplace: an open offer can be taken over by others or cancelled by its
// owner; an applied offer can be removed by its owner or withdrawn by the
// applicant; a closed offer admits nothing.
func ActionFor(x domain.Exchange, viewerID string, tab domain.Tab) domain.ActionKind {
	if tab == domain.TabMine {
		return domain.ActionRemove
	}

	switch x.Status {
	case domain.ExchangeStatusOpen:
		if x.SubmittedBy(viewerID) {
			// Cancelling an own posting is modelled as removal.
			return domain.ActionRemove
		}
		return domain.ActionTakeOver

	case domain.ExchangeStatusApplied:
		if x.SubmittedBy(viewerID) {
			return domain.ActionRemove
		}
		if x.AppliedBy(viewerID) {
			return domain.ActionWithdraw
		}
		return domain.ActionNone

	case domain.ExchangeStatusClosed:
		return domain.ActionNone

	default:
		return domain.ActionNone
	}
}

// RemoveTarget resolves the convocation record a removal must be issued
// against. It returns domain.ErrConvocationNotFound when the offer's referee
// position has no mapped convocation; callers must abort before any network
// call rather than silently no-op.
func RemoveTarget(x domain.Exchange) (string, error) {
	return x.ConvocationID()
}
