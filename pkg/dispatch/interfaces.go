// Package dispatch defines the contracts between the notification engine and
// its external collaborators: the document store, the multicast push channel,
// and the device-token store.
package dispatch

import (
	"context"
	"errors"

	"github.com/alpaltug/shuffl-repo/pkg/notify"
)

var (
	// ErrConversationNotFound is returned by lookups when the referenced chat
	// or ride record is absent. The pipeline treats this as terminal but
	// benign: logged, never surfaced to the trigger host.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrUserNotFound is returned by directory lookups for an absent user.
	ErrUserNotFound = errors.New("user not found")
)

// TokenStore manages a user's device-token set.
type TokenStore interface {
	// TokensFor returns the user's stored tokens as-is (duplicates included
	// until compaction runs). An absent user or field yields an empty set,
	// never an error.
	TokensFor(ctx context.Context, userID string) ([]string, error)

	// AddToken appends a token to the user's set (set-union, no duplicates).
	AddToken(ctx context.Context, userID, token string) error

	// RemoveTokens subtracts tokens from the user's set. Removing an absent
	// token, or from an absent user, is a no-op.
	RemoveTokens(ctx context.Context, userID string, tokens []string) error
}

// TokenCompactor exposes the bulk operations the periodic compaction sweep
// needs on top of TokenStore.
type TokenCompactor interface {
	// ForEachUser invokes fn with every user's ID and stored token set.
	ForEachUser(ctx context.Context, fn func(userID string, tokens []string) error) error

	// SetTokens replaces the user's token set wholesale.
	SetTokens(ctx context.Context, userID string, tokens []string) error
}

// TokenStorage is the full token-store surface the engine wires together.
type TokenStorage interface {
	TokenStore
	TokenCompactor
}

// UserDirectory reads user profile data the payload builder and badge
// accounting need.
type UserDirectory interface {
	// Username returns the user's display name, or ErrUserNotFound.
	Username(ctx context.Context, userID string) (string, error)

	// IncrementBadge bumps the user's unread badge counter by one.
	IncrementBadge(ctx context.Context, userID string) error
}

// ConversationStore reads participant sets. Read-only to the engine.
type ConversationStore interface {
	// Participants returns the participant user IDs of a direct or referral
	// chat, or ErrConversationNotFound.
	Participants(ctx context.Context, channel notify.ChatChannel, conversationID string) ([]string, error)

	// RideParticipants returns the participant user IDs of a ride group. The
	// active/pending discriminator is an explicit input, never inferred.
	RideParticipants(ctx context.Context, state notify.RideState, rideID string) ([]string, error)
}

// ClaimStore persists delivery claims keyed by event ID.
type ClaimStore interface {
	// TryClaim atomically creates the claim record for eventID. It returns
	// true when this caller won the claim and false when the event was
	// already handled; two concurrent callers can never both win.
	TryClaim(ctx context.Context, eventID string) (bool, error)

	// MarkDelivered flips the claim's delivered flag after a successful
	// multicast. Claims are never otherwise updated or deleted.
	MarkDelivered(ctx context.Context, eventID string) error
}

// Multicaster is the outbound push-delivery primitive: many tokens, one
// payload, one call. The result slice is ordered exactly as the submitted
// token list.
type Multicaster interface {
	Send(ctx context.Context, tokens []string, payload notify.Payload) ([]notify.Outcome, error)
}

// NotificationCleaner is the best-effort consumer that drops queued
// direct-notification documents once their ride goes active.
type NotificationCleaner interface {
	// PurgeRideNotifications deletes every queued notification document whose
	// rideId field matches, across all users. Returns the number deleted.
	PurgeRideNotifications(ctx context.Context, rideID string) (int, error)
}
