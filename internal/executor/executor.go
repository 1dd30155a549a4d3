// Package executor carries out confirmed marketplace actions against the
// system of record: exactly one logical call per user action, offline
// queueing with optimistic local effects, and pool invalidation on success.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/courtside/refexchange/internal/domain"
)

// Pool is the executor's view of the exchange pool service: invalidate after
// a delivered mutation, hide optimistically after a queued one.
type Pool interface {
	Invalidate(ctx context.Context) error
	HideLocally(exchangeID string)
}

// Connectivity is the executor's view of the reachability monitor.
type Connectivity interface {
	Online() bool
	ReportOffline()
}

// DialogCloser closes the confirmation dialog tied to an action kind once
// the action has been disposed of.
type DialogCloser interface {
	Close()
}

// Executor executes mutations with at-most-one in-flight execution per
// (action kind, exchange). Concurrent duplicates share the first call's
// pending result instead of issuing a second network call.
type Executor struct {
	source  domain.ExchangeSource
	outbox  domain.OutboxStore
	conn    Connectivity
	pool    Pool
	dialogs map[domain.ActionKind]DialogCloser
	flight  singleflight.Group
	logger  *slog.Logger
}

// New creates an Executor. dialogs may be nil or partial; kinds without a
// registered dialog simply skip the close step.
func New(
	source domain.ExchangeSource,
	outbox domain.OutboxStore,
	conn Connectivity,
	pool Pool,
	dialogs map[domain.ActionKind]DialogCloser,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		source:  source,
		outbox:  outbox,
		conn:    conn,
		pool:    pool,
		dialogs: dialogs,
		logger:  logger.With(slog.String("component", "executor")),
	}
}

// Execute carries out one confirmed action. The in-flight map is keyed by
// (kind, exchange ID): a second call for the same key while the first is
// pending joins it and observes the same outcome.
//
// Delivered: the remote call succeeded, the pool was invalidated, and the
// action's dialog closed. Queued: the system of record is unreachable, the
// request was persisted for replay, and an optimistic local effect applied.
// Any other error leaves the pool untouched so the offer stays actionable.
func (e *Executor) Execute(ctx context.Context, kind domain.ActionKind, x domain.Exchange) (domain.ExecuteOutcome, error) {
	key := string(kind) + ":" + x.ID

	v, err, shared := e.flight.Do(key, func() (any, error) {
		return e.execute(ctx, kind, x)
	})
	if shared {
		e.logger.DebugContext(ctx, "duplicate action coalesced",
			slog.String("kind", string(kind)),
			slog.String("exchange_id", x.ID),
		)
	}
	if err != nil {
		return "", err
	}
	return v.(domain.ExecuteOutcome), nil
}

func (e *Executor) execute(ctx context.Context, kind domain.ActionKind, x domain.Exchange) (domain.ExecuteOutcome, error) {
	log := e.logger.With(
		slog.String("kind", string(kind)),
		slog.String("exchange_id", x.ID),
	)

	// Resolve the removal target before anything touches the network; an
	// unresolvable convocation aborts the action outright.
	var convocationID string
	if kind == domain.ActionRemove {
		var err error
		convocationID, err = x.ConvocationID()
		if err != nil {
			log.ErrorContext(ctx, "convocation lookup failed",
				slog.String("position", string(x.Position)),
			)
			return "", err
		}
	}

	token := uuid.New().String()

	if !e.conn.Online() {
		return e.queue(ctx, kind, x, convocationID, token, log)
	}

	err := e.deliver(ctx, kind, x.ID, convocationID, token)
	if errors.Is(err, domain.ErrOffline) {
		e.conn.ReportOffline()
		return e.queue(ctx, kind, x, convocationID, token, log)
	}
	if err != nil {
		log.WarnContext(ctx, "action failed",
			slog.String("error", err.Error()),
		)
		return "", err
	}

	log.InfoContext(ctx, "action delivered",
		slog.String("attempt_token", token),
	)

	if err := e.pool.Invalidate(ctx); err != nil {
		// The mutation went through; a failed invalidation only delays the
		// refresh until the next scheduled fetch.
		log.WarnContext(ctx, "pool invalidation failed",
			slog.String("error", err.Error()),
		)
	}
	e.closeDialog(kind)

	return domain.OutcomeDelivered, nil
}

// queue persists the request for replay, applies the optimistic local
// effect, and closes the dialog. Queueing is not an error: the user is told
// the action was saved for later.
func (e *Executor) queue(ctx context.Context, kind domain.ActionKind, x domain.Exchange, convocationID, token string, log *slog.Logger) (domain.ExecuteOutcome, error) {
	entry := domain.OutboxEntry{
		ID:            uuid.New().String(),
		Kind:          kind,
		ExchangeID:    x.ID,
		ConvocationID: convocationID,
		AttemptToken:  token,
		Status:        domain.OutboxPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := e.outbox.Insert(ctx, entry); err != nil {
		return "", fmt.Errorf("executor: queue %s for %s: %w", kind, x.ID, err)
	}

	e.pool.HideLocally(x.ID)
	e.closeDialog(kind)

	log.InfoContext(ctx, "action queued for replay",
		slog.String("attempt_token", token),
	)
	return domain.OutcomeQueued, nil
}

// deliver issues the remote call for one action kind.
func (e *Executor) deliver(ctx context.Context, kind domain.ActionKind, exchangeID, convocationID, token string) error {
	switch kind {
	case domain.ActionTakeOver:
		return e.source.Apply(ctx, exchangeID, token)
	case domain.ActionWithdraw:
		return e.source.Withdraw(ctx, exchangeID, token)
	case domain.ActionRemove:
		return e.source.RemoveConvocation(ctx, convocationID, token)
	default:
		return fmt.Errorf("executor: %w: %s", domain.ErrActionNotAllowed, kind)
	}
}

func (e *Executor) closeDialog(kind domain.ActionKind) {
	if d, ok := e.dialogs[kind]; ok && d != nil {
		d.Close()
	}
}
