package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/alpaltug/shuffl-repo/internal/engine"
	"github.com/alpaltug/shuffl-repo/internal/trigger"
	"github.com/alpaltug/shuffl-repo/pkg/dispatch"
	"github.com/alpaltug/shuffl-repo/pkg/notify"
)

// NewProcessor builds the stream processor that drives one event through the
// engine: claim, resolve, build, fan out, reconcile.
//
// Error discipline: before the claim is taken, infrastructure errors are
// returned so the host redelivers (no side effects have happened and the
// claim keeps a later retry idempotent). After the claim, every failure is
// absorbed locally; surfacing it would only trigger a redelivery that the
// guard immediately suppresses.
func NewProcessor(
	guard *engine.Guard,
	resolver *engine.Resolver,
	builder *engine.Builder,
	fanout *engine.Fanout,
	reconciler *engine.Reconciler,
	users dispatch.UserDirectory,
	cleaner dispatch.NotificationCleaner,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[trigger.Result] {

	return func(ctx context.Context, original messagepipeline.Message, result *trigger.Result) error {
		if result.CleanupRideID != "" {
			runCleanup(ctx, cleaner, result.CleanupRideID, logger)
			return nil
		}

		ev := result.Event
		log := logger.With(
			"event_id", ev.ID,
			"kind", string(ev.Kind),
			"pubsub_msg_id", original.ID,
		)

		claim, err := guard.TryClaim(ctx, ev.ID)
		if err != nil {
			log.Error("Claim store unavailable; leaving event for redelivery", "err", err)
			return err
		}
		if claim == engine.AlreadyHandled {
			return nil
		}

		recipients, err := resolver.Resolve(ctx, ev)
		if err != nil {
			switch {
			case errors.Is(err, notify.ErrSelfFriendRequest), errors.Is(err, notify.ErrMalformedEvent):
				log.Warn("Rejecting invalid event", "err", err)
			case errors.Is(err, dispatch.ErrConversationNotFound):
				log.Info("Conversation absent; nothing to deliver", "err", err)
			default:
				log.Error("Recipient resolution failed", "err", err)
			}
			return nil
		}
		if len(recipients) == 0 {
			log.Info("Event resolved to no recipients; dropping.")
			return nil
		}

		payload := builder.Build(ctx, ev)

		outcomes, err := fanout.Dispatch(ctx, recipients, payload)
		if err != nil {
			log.Error("Dispatch failed; event will not be redelivered", "err", err)
			return nil
		}

		// The multicast has returned (possibly partially successful); only
		// now does the claim record completion.
		guard.MarkDelivered(ctx, ev.ID)

		reconciler.Prune(ctx, recipients, outcomes)

		// Badges count unread notifications: bump them only when at least one
		// device actually accepted the message.
		if anyDelivered(outcomes) {
			for _, userID := range recipients {
				if err := users.IncrementBadge(ctx, userID); err != nil {
					log.Warn("Badge increment failed", "user_id", userID, "err", err)
				}
			}
		}

		log.Info("Event dispatched", "recipients", len(recipients), "tokens", len(outcomes))
		return nil
	}
}

func anyDelivered(outcomes map[string]notify.Outcome) bool {
	for _, o := range outcomes {
		if o.Class == notify.OutcomeDelivered {
			return true
		}
	}
	return false
}

func runCleanup(ctx context.Context, cleaner dispatch.NotificationCleaner, rideID string, logger *slog.Logger) {
	deleted, err := cleaner.PurgeRideNotifications(ctx, rideID)
	if err != nil {
		logger.Warn("Queued-notification cleanup incomplete", "ride_id", rideID, "deleted", deleted, "err", err)
		return
	}
	if deleted > 0 {
		logger.Info("Purged queued notifications for activated ride", "ride_id", rideID, "deleted", deleted)
	}
}
