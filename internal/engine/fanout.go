package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alpaltug/shuffl-repo/pkg/dispatch"
	"github.com/alpaltug/shuffl-repo/pkg/notify"
)

const defaultFetchConcurrency = 8

// Fanout aggregates device tokens across the resolved recipients and issues
// the single multicast call.
type Fanout struct {
	tokens      dispatch.TokenStore
	channel     dispatch.Multicaster
	logger      *slog.Logger
	concurrency int
}

func NewFanout(tokens dispatch.TokenStore, channel dispatch.Multicaster, concurrency int, logger *slog.Logger) *Fanout {
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}
	return &Fanout{
		tokens:      tokens,
		channel:     channel,
		logger:      logger.With("component", "FanoutDispatcher"),
		concurrency: concurrency,
	}
}

// Dispatch fetches each recipient's token set concurrently (bounded), unions
// them into one deduplicated list in recipient order, and sends once. An
// empty aggregate set short-circuits with no network call. Partial per-token
// failure is not an error: the outcome map carries the mixed results.
func (f *Fanout) Dispatch(ctx context.Context, recipients []string, payload notify.Payload) (map[string]notify.Outcome, error) {
	if len(recipients) == 0 {
		return map[string]notify.Outcome{}, nil
	}

	// Fetch per recipient into a position-indexed slice so the aggregate
	// order stays deterministic regardless of fetch completion order.
	fetched := make([][]string, len(recipients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, userID := range recipients {
		g.Go(func() error {
			tokens, err := f.tokens.TokensFor(gctx, userID)
			if err != nil {
				return fmt.Errorf("token fetch for %s: %w", userID, err)
			}
			fetched[i] = tokens
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Cross-recipient dedup: two users may share a token, and a single
	// user's stored set may hold duplicates until compaction runs.
	seen := make(map[string]struct{})
	var aggregate []string
	for _, tokens := range fetched {
		for _, t := range tokens {
			if t == "" {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			aggregate = append(aggregate, t)
		}
	}

	if len(aggregate) == 0 {
		f.logger.Info("No devices registered for any recipient; dropping notification.",
			"recipients", len(recipients))
		return map[string]notify.Outcome{}, nil
	}

	results, err := f.channel.Send(ctx, aggregate, payload)
	if err != nil {
		return nil, fmt.Errorf("multicast send: %w", err)
	}

	outcomes := make(map[string]notify.Outcome, len(results))
	for _, res := range results {
		outcomes[res.Token] = res
	}
	return outcomes, nil
}
