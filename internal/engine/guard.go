// Package engine implements the fan-out-and-dedup core: idempotency guarding,
// recipient resolution, payload building, multicast dispatch, and token
// reconciliation.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alpaltug/shuffl-repo/pkg/dispatch"
)

// ClaimResult is the outcome of an idempotency check.
type ClaimResult int

const (
	// Claimed means this invocation won the right to deliver the event.
	Claimed ClaimResult = iota
	// AlreadyHandled means a prior (or concurrent) invocation holds the
	// claim. Not an error: the expected outcome of duplicate delivery.
	AlreadyHandled
)

// Guard enforces at-most-once delivery per event ID on top of the claim
// store's atomic create.
type Guard struct {
	claims dispatch.ClaimStore
	logger *slog.Logger
}

func NewGuard(claims dispatch.ClaimStore, logger *slog.Logger) *Guard {
	return &Guard{
		claims: claims,
		logger: logger.With("component", "IdempotencyGuard"),
	}
}

// TryClaim claims eventID. The underlying store runs a transactional
// read-modify-write, so concurrent duplicate invocations racing on the same
// event ID resolve to exactly one Claimed result.
func (g *Guard) TryClaim(ctx context.Context, eventID string) (ClaimResult, error) {
	won, err := g.claims.TryClaim(ctx, eventID)
	if err != nil {
		return AlreadyHandled, fmt.Errorf("claim transaction failed for event %s: %w", eventID, err)
	}
	if !won {
		g.logger.Debug("Duplicate event suppressed.", "event_id", eventID)
		return AlreadyHandled, nil
	}
	return Claimed, nil
}

// MarkDelivered records completion. Called only after the multicast call has
// returned, never before it is issued.
func (g *Guard) MarkDelivered(ctx context.Context, eventID string) {
	if err := g.claims.MarkDelivered(ctx, eventID); err != nil {
		// The claim itself still suppresses duplicates; losing the flag only
		// costs observability.
		g.logger.Warn("Failed to mark claim delivered", "event_id", eventID, "err", err)
	}
}
