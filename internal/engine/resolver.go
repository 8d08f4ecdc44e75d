package engine

import (
	"context"
	"fmt"

	"github.com/alpaltug/shuffl-repo/pkg/dispatch"
	"github.com/alpaltug/shuffl-repo/pkg/notify"
)

// Resolver computes the ordered recipient set for an event. It never mutates
// state: pure function of the event plus at most one participant lookup.
type Resolver struct {
	conversations dispatch.ConversationStore
}

func NewResolver(conversations dispatch.ConversationStore) *Resolver {
	return &Resolver{conversations: conversations}
}

// Resolve returns the recipient user IDs for the event, deterministically
// ordered and never containing the originator. Validation failures and
// missing conversations surface as errors for the caller to absorb.
func (r *Resolver) Resolve(ctx context.Context, ev *notify.Event) ([]string, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	switch ev.Kind {
	case notify.KindFriendRequest, notify.KindNewParticipant:
		// Single-target variants: the engine does not fan out to the whole
		// room for a join notice.
		return []string{ev.TargetUserID}, nil

	case notify.KindChatMessage:
		participants, err := r.conversations.Participants(ctx, ev.Channel, ev.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("chat %s lookup: %w", ev.ConversationID, err)
		}
		return excludeOriginator(participants, ev.OriginatorID), nil

	case notify.KindRideChatMessage:
		participants, err := r.conversations.RideParticipants(ctx, ev.RideState, ev.RideID)
		if err != nil {
			return nil, fmt.Errorf("ride %s (%s) lookup: %w", ev.RideID, ev.RideState, err)
		}
		return excludeOriginator(participants, ev.OriginatorID), nil
	}

	return nil, fmt.Errorf("%w: unknown event kind %q", notify.ErrMalformedEvent, ev.Kind)
}

// excludeOriginator drops the sender and compacts duplicates while preserving
// first-seen order, so a dirty participant array cannot double-notify.
func excludeOriginator(participants []string, originatorID string) []string {
	seen := make(map[string]struct{}, len(participants))
	recipients := make([]string, 0, len(participants))
	for _, p := range participants {
		if p == "" || p == originatorID {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		recipients = append(recipients, p)
	}
	return recipients
}
