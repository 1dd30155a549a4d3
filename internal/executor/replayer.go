package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/courtside/refexchange/internal/domain"
	"github.com/courtside/refexchange/internal/notify"
)

const (
	// maxReplayAttempts is how many replay rounds an entry may fail before
	// it is marked failed and reported to the user.
	maxReplayAttempts = 5
	// replayInterval is the periodic drain fallback for entries queued
	// while the monitor believed we were online.
	replayInterval = 2 * time.Minute
)

// OnlineSignaler exposes the connectivity monitor's offline-to-online
// transition channel.
type OnlineSignaler interface {
	Online() bool
	OnlineSignal() <-chan struct{}
}

// Replayer drains the mutation outbox: at-least-once delivery against the
// system of record, with the entry's original attempt token so repeated
// delivery collapses server-side into a single effect.
type Replayer struct {
	source   domain.ExchangeSource
	outbox   domain.OutboxStore
	conn     OnlineSignaler
	pool     Pool
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewReplayer creates a Replayer. notifier may be nil.
func NewReplayer(
	source domain.ExchangeSource,
	outbox domain.OutboxStore,
	conn OnlineSignaler,
	pool Pool,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *Replayer {
	return &Replayer{
		source:   source,
		outbox:   outbox,
		conn:     conn,
		pool:     pool,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "replayer")),
	}
}

// Run drains the outbox whenever connectivity returns, plus on a slow
// periodic tick, until the context is cancelled.
func (r *Replayer) Run(ctx context.Context) error {
	online := r.conn.OnlineSignal()

	ticker := time.NewTicker(replayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-online:
			r.Drain(ctx)
		case <-ticker.C:
			if r.conn.Online() {
				r.Drain(ctx)
			}
		}
	}
}

// Drain replays every pending entry in insertion order. It stops early when
// the system of record goes unreachable again; remaining entries stay
// pending for the next round.
func (r *Replayer) Drain(ctx context.Context) {
	entries, err := r.outbox.ListPending(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "outbox list failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if len(entries) == 0 {
		return
	}

	r.logger.InfoContext(ctx, "draining outbox",
		slog.Int("pending", len(entries)),
	)

	delivered := 0
	for _, entry := range entries {
		if err := r.replay(ctx, entry); err != nil {
			if errors.Is(err, domain.ErrOffline) || errors.Is(err, context.Canceled) {
				break
			}
			continue
		}
		delivered++
	}

	if delivered > 0 {
		if err := r.pool.Invalidate(ctx); err != nil {
			r.logger.WarnContext(ctx, "pool invalidation after drain failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

// replay delivers one entry with its original attempt token.
func (r *Replayer) replay(ctx context.Context, entry domain.OutboxEntry) error {
	log := r.logger.With(
		slog.String("outbox_id", entry.ID),
		slog.String("kind", string(entry.Kind)),
		slog.String("exchange_id", entry.ExchangeID),
	)

	err := r.deliver(ctx, entry)
	if err == nil || errors.Is(err, domain.ErrAlreadyExists) {
		// Conflict means an earlier delivery of this token already took
		// effect; that is success for an at-least-once replay.
		if markErr := r.outbox.MarkDelivered(ctx, entry.ID); markErr != nil {
			log.WarnContext(ctx, "mark delivered failed",
				slog.String("error", markErr.Error()),
			)
		}
		log.InfoContext(ctx, "queued action delivered")
		r.notify(ctx, notify.EventReplayDelivered,
			"Saved action delivered",
			fmt.Sprintf("Your %s for game exchange %s went through.", describe(entry.Kind), entry.ExchangeID),
		)
		return nil
	}

	if errors.Is(err, domain.ErrOffline) {
		log.DebugContext(ctx, "still offline, keeping entry pending")
		return err
	}

	attempts := entry.Attempts + 1
	if attempts >= maxReplayAttempts {
		if markErr := r.outbox.MarkFailed(ctx, entry.ID, attempts, err.Error()); markErr != nil {
			log.WarnContext(ctx, "mark failed failed",
				slog.String("error", markErr.Error()),
			)
		}
		log.ErrorContext(ctx, "queued action abandoned",
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
		r.notify(ctx, notify.EventReplayFailed,
			"Saved action failed",
			fmt.Sprintf("Your %s for game exchange %s could not be delivered: %v.", describe(entry.Kind), entry.ExchangeID, err),
		)
		return err
	}

	// Keep the entry pending for the next round, but record the attempt.
	if markErr := r.outbox.RecordAttempt(ctx, entry.ID, attempts, err.Error()); markErr != nil {
		log.WarnContext(ctx, "record attempt failed",
			slog.String("error", markErr.Error()),
		)
	}
	log.WarnContext(ctx, "replay attempt failed",
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
	return err
}

func (r *Replayer) deliver(ctx context.Context, entry domain.OutboxEntry) error {
	switch entry.Kind {
	case domain.ActionTakeOver:
		return r.source.Apply(ctx, entry.ExchangeID, entry.AttemptToken)
	case domain.ActionWithdraw:
		return r.source.Withdraw(ctx, entry.ExchangeID, entry.AttemptToken)
	case domain.ActionRemove:
		return r.source.RemoveConvocation(ctx, entry.ConvocationID, entry.AttemptToken)
	default:
		return fmt.Errorf("replayer: %w: %s", domain.ErrActionNotAllowed, entry.Kind)
	}
}

func (r *Replayer) notify(ctx context.Context, event, title, message string) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(ctx, event, title, message)
}

func describe(kind domain.ActionKind) string {
	switch kind {
	case domain.ActionTakeOver:
		return "application"
	case domain.ActionWithdraw:
		return "withdrawal"
	case domain.ActionRemove:
		return "removal"
	default:
		return string(kind)
	}
}
