package trigger

import (
	"fmt"
	"strings"

	"github.com/alpaltug/shuffl-repo/pkg/notify"
)

// Collection names the trigger streams are attached to.
const (
	colUsers         = "users"
	colNotifications = "notifications"
	colChats         = "chats"
	colReferralChats = "referralChats"
	colActiveRides   = "activeRides"
	colPendingRides  = "pendingRides"
	colMessages      = "messages"
)

// Result is the normalized form of one trigger delivery: either a domain
// event for the dispatch pipeline, or a ride-cleanup request for the hook
// that runs outside it.
type Result struct {
	Event         *notify.Event
	CleanupRideID string
}

// Normalize routes a raw trigger payload by its document path and builds the
// typed event. Unroutable paths and missing required fields are errors; the
// transformer turns those into skips so the host's dead-letter handling can
// take over.
func Normalize(payload []byte) (*Result, error) {
	env, err := ParseEnvelope(payload)
	if err != nil {
		return nil, err
	}
	doc := env.Value

	path, err := doc.Path()
	if err != nil {
		return nil, err
	}
	segs := strings.Split(path, "/")

	switch {
	case len(segs) == 4 && segs[0] == colUsers && segs[2] == colNotifications:
		return normalizeDirectNotification(doc, path, segs[1])

	case len(segs) == 4 && segs[0] == colChats && segs[2] == colMessages:
		return normalizeChatMessage(doc, path, notify.ChatDirect, segs[1])

	case len(segs) == 4 && segs[0] == colReferralChats && segs[2] == colMessages:
		return normalizeChatMessage(doc, path, notify.ChatReferral, segs[1])

	case len(segs) == 4 && segs[0] == colActiveRides && segs[2] == colMessages:
		return normalizeRideChatMessage(doc, path, notify.RideActive, segs[1])

	case len(segs) == 4 && segs[0] == colPendingRides && segs[2] == colMessages:
		return normalizeRideChatMessage(doc, path, notify.RidePending, segs[1])

	case len(segs) == 2 && segs[0] == colActiveRides:
		// Ride went active: queued notifications for it are now stale.
		return &Result{CleanupRideID: segs[1]}, nil
	}

	return nil, fmt.Errorf("unroutable document path %q", path)
}

// normalizeDirectNotification handles the queued-notification stream, which
// multiplexes friend requests and new-participant notices via a type field.
func normalizeDirectNotification(doc DocumentValue, path, recipientID string) (*Result, error) {
	ev := &notify.Event{
		ID:           EventID(path),
		OriginatorID: doc.Str("fromUid"),
		OccurredAt:   doc.CreateTime,
		TargetUserID: recipientID,
	}

	switch doc.Str("type") {
	case string(notify.KindFriendRequest):
		ev.Kind = notify.KindFriendRequest
	case string(notify.KindNewParticipant):
		ev.Kind = notify.KindNewParticipant
		ev.RideID = doc.Str("rideId")
		ev.JoinedUsername = doc.Str("newUsername")
		ev.Dropoff = doc.Str("dropoff")
	default:
		return nil, fmt.Errorf("notification %s has unknown type %q", path, doc.Str("type"))
	}

	return &Result{Event: ev}, nil
}

func normalizeChatMessage(doc DocumentValue, path string, channel notify.ChatChannel, chatID string) (*Result, error) {
	ev := &notify.Event{
		ID:             EventID(path),
		Kind:           notify.KindChatMessage,
		OriginatorID:   doc.Str("fromUid"),
		OccurredAt:     doc.CreateTime,
		ConversationID: chatID,
		Channel:        channel,
		Content:        doc.Str("content"),
	}
	return &Result{Event: ev}, nil
}

func normalizeRideChatMessage(doc DocumentValue, path string, state notify.RideState, rideID string) (*Result, error) {
	ev := &notify.Event{
		ID:           EventID(path),
		Kind:         notify.KindRideChatMessage,
		OriginatorID: doc.Str("fromUid"),
		OccurredAt:   doc.CreateTime,
		RideID:       rideID,
		RideState:    state,
		Content:      doc.Str("content"),
		Dropoff:      doc.Str("dropoff"),
	}
	return &Result{Event: ev}, nil
}
