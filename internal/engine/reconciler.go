package engine

import (
	"context"
	"log/slog"

	"github.com/alpaltug/shuffl-repo/pkg/dispatch"
	"github.com/alpaltug/shuffl-repo/pkg/notify"
)

// Reconciler turns classified dispatch failures into token-store mutations
// and runs the periodic duplicate-token compaction sweep.
type Reconciler struct {
	store  dispatch.TokenStorage
	logger *slog.Logger
}

func NewReconciler(store dispatch.TokenStorage, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger.With("component", "TokenReconciler"),
	}
}

// Prune removes every permanently-failed token from every resolved recipient.
// The aggregate multicast list loses the token-to-owner mapping, so removal
// is attempted against all recipients; ArrayRemove is a no-op for users who
// don't hold the token. Transient failures leave the store untouched.
func (r *Reconciler) Prune(ctx context.Context, recipients []string, outcomes map[string]notify.Outcome) {
	var dead []string
	for _, o := range outcomes {
		if o.Permanent() {
			dead = append(dead, o.Token)
		}
	}
	if len(dead) == 0 {
		return
	}

	r.logger.Info("Pruning permanently failed tokens", "count", len(dead), "recipients", len(recipients))
	for _, userID := range recipients {
		if err := r.store.RemoveTokens(ctx, userID, dead); err != nil {
			r.logger.Warn("Failed to remove dead tokens", "user_id", userID, "err", err)
		}
	}
}

// CompactAll replaces every user's token set with its deduplicated version,
// writing back only when something changed. Running it twice in a row
// produces no second round of writes. Returns the number of users rewritten.
func (r *Reconciler) CompactAll(ctx context.Context) (int, error) {
	compacted := 0
	err := r.store.ForEachUser(ctx, func(userID string, tokens []string) error {
		deduped := dedupeTokens(tokens)
		if len(deduped) == len(tokens) {
			return nil
		}
		if err := r.store.SetTokens(ctx, userID, deduped); err != nil {
			// Best effort: one bad write should not abort the sweep.
			r.logger.Warn("Failed to compact token set", "user_id", userID, "err", err)
			return nil
		}
		compacted++
		return nil
	})
	if err != nil {
		return compacted, err
	}
	r.logger.Info("Token compaction sweep complete", "users_rewritten", compacted)
	return compacted, nil
}

func dedupeTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
