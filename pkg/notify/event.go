// Package notify contains the domain model shared by the notification engine:
// the normalized event union, the push payload, and per-token dispatch outcomes.
package notify

import (
	"errors"
	"fmt"
	"time"
)

// EventKind tags the variants of the event union.
type EventKind string

const (
	KindFriendRequest   EventKind = "friend_request"
	KindNewParticipant  EventKind = "new_participant"
	KindChatMessage     EventKind = "chat_message"
	KindRideChatMessage EventKind = "ride_chat_message"
)

// RideState selects which of the two parallel ride collections an event
// originated from. The resolver never infers this; the trigger adapter
// records it explicitly.
type RideState string

const (
	RideActive  RideState = "active"
	RidePending RideState = "pending"
)

// ChatChannel distinguishes direct chats from referral chats, which live in
// separate collections but share the chat-message event shape.
type ChatChannel string

const (
	ChatDirect   ChatChannel = "direct"
	ChatReferral ChatChannel = "referral"
)

var (
	ErrSelfFriendRequest = errors.New("friend request originator and target are the same user")
	ErrMalformedEvent    = errors.New("malformed event")
)

// Event is the normalized description of a domain occurrence that may trigger
// a notification. ID is derived deterministically from the trigger document
// path, so duplicate deliveries of the same underlying document creation
// produce the same ID.
type Event struct {
	ID           string
	Kind         EventKind
	OriginatorID string
	OccurredAt   time.Time

	// Friend request / new participant: the single user being notified.
	TargetUserID string

	// Chat message.
	ConversationID string
	Channel        ChatChannel

	// Ride chat message / new participant.
	RideID    string
	RideState RideState

	// Chat content and optional ride metadata.
	Content        string
	JoinedUsername string
	Dropoff        string
}

// Validate checks the variant-specific required fields. A self-referential
// friend request is rejected here rather than at resolution time so the
// pipeline can log it as a validation failure before any lookups.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing event id", ErrMalformedEvent)
	}
	switch e.Kind {
	case KindFriendRequest:
		if e.TargetUserID == "" || e.OriginatorID == "" {
			return fmt.Errorf("%w: friend request requires originator and target", ErrMalformedEvent)
		}
		if e.TargetUserID == e.OriginatorID {
			return ErrSelfFriendRequest
		}
	case KindNewParticipant:
		if e.TargetUserID == "" {
			return fmt.Errorf("%w: new participant requires a target user", ErrMalformedEvent)
		}
		if e.RideID == "" {
			return fmt.Errorf("%w: new participant requires a ride id", ErrMalformedEvent)
		}
	case KindChatMessage:
		if e.ConversationID == "" || e.OriginatorID == "" {
			return fmt.Errorf("%w: chat message requires conversation and sender", ErrMalformedEvent)
		}
		if e.Channel != ChatDirect && e.Channel != ChatReferral {
			return fmt.Errorf("%w: unknown chat channel %q", ErrMalformedEvent, e.Channel)
		}
	case KindRideChatMessage:
		if e.RideID == "" || e.OriginatorID == "" {
			return fmt.Errorf("%w: ride chat message requires ride and sender", ErrMalformedEvent)
		}
		if e.RideState != RideActive && e.RideState != RidePending {
			return fmt.Errorf("%w: unknown ride state %q", ErrMalformedEvent, e.RideState)
		}
	default:
		return fmt.Errorf("%w: unknown event kind %q", ErrMalformedEvent, e.Kind)
	}
	return nil
}
