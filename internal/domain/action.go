package domain

import "time"

// Tab identifies which marketplace view the user is looking at. The open
// marketplace is filtered; the user's own submissions are always shown in
// full.
type Tab string

const (
	TabOpen Tab = "open"
	TabMine Tab = "mine"
)

// ActionKind is a user-initiated mutation against an exchange offer.
type ActionKind string

const (
	// ActionTakeOver applies for another referee's offer.
	ActionTakeOver ActionKind = "take_over"
	// ActionWithdraw retracts the user's own pending application.
	ActionWithdraw ActionKind = "withdraw"
	// ActionRemove cancels the user's own posting by removing the exchange
	// from its underlying convocation.
	ActionRemove ActionKind = "remove"
	// ActionNone means no action is legal for the viewer.
	ActionNone ActionKind = "none"
)

// MutationRequest describes one logical action against one exchange. The
// attempt token is the idempotency key carried to the wire; repeated
// delivery of the same token must produce the effect of a single execution.
type MutationRequest struct {
	Kind         ActionKind `json:"kind"`
	ExchangeID   string     `json:"exchange_id"`
	AttemptToken string     `json:"attempt_token"`
}

// ExecuteOutcome tells the caller how Execute disposed of the request.
type ExecuteOutcome string

const (
	// OutcomeDelivered means the remote call succeeded.
	OutcomeDelivered ExecuteOutcome = "delivered"
	// OutcomeQueued means the device was offline and the request was saved
	// for replay once connectivity returns.
	OutcomeQueued ExecuteOutcome = "queued"
)

// OutboxStatus is the replay state of a queued mutation.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxDelivered OutboxStatus = "delivered"
	OutboxFailed    OutboxStatus = "failed"
)

// OutboxEntry is a mutation persisted while offline, replayed at least once
// when connectivity returns. The attempt token makes repeated delivery safe.
type OutboxEntry struct {
	ID            string       `json:"id"`
	Kind          ActionKind   `json:"kind"`
	ExchangeID    string       `json:"exchange_id"`
	ConvocationID string       `json:"convocation_id,omitempty"`
	AttemptToken  string       `json:"attempt_token"`
	Status        OutboxStatus `json:"status"`
	Attempts      int          `json:"attempts"`
	LastError     string       `json:"last_error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	DeliveredAt   *time.Time   `json:"delivered_at,omitempty"`
}
