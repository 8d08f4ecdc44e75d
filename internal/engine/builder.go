package engine

import (
	"context"
	"log/slog"

	"github.com/alpaltug/shuffl-repo/pkg/dispatch"
	"github.com/alpaltug/shuffl-repo/pkg/notify"
)

// usernameFallback stands in when the originator's display name cannot be
// resolved; a missing username never fails the pipeline.
const usernameFallback = "Someone"

// Builder maps a typed event to its notification payload.
type Builder struct {
	users  dispatch.UserDirectory
	logger *slog.Logger
}

func NewBuilder(users dispatch.UserDirectory, logger *slog.Logger) *Builder {
	return &Builder{
		users:  users,
		logger: logger.With("component", "PayloadBuilder"),
	}
}

// Build constructs the title/body/data payload for the event.
func (b *Builder) Build(ctx context.Context, ev *notify.Event) notify.Payload {
	switch ev.Kind {
	case notify.KindFriendRequest:
		return notify.Payload{
			Title: "New Friend Request",
			Body:  b.username(ctx, ev.OriginatorID) + " sent you a friend request",
			Data: map[string]string{
				"type":    string(notify.KindFriendRequest),
				"fromUid": ev.OriginatorID,
			},
		}

	case notify.KindNewParticipant:
		name := ev.JoinedUsername
		if name == "" {
			name = b.username(ctx, ev.OriginatorID)
		}
		return notify.Payload{
			Title: "New Ride Participant",
			Body:  "@" + name + " has joined the waiting room",
			Data: map[string]string{
				"type":   string(notify.KindNewParticipant),
				"rideId": ev.RideID,
			},
		}

	case notify.KindRideChatMessage:
		data := map[string]string{
			"type":      string(notify.KindRideChatMessage),
			"rideId":    ev.RideID,
			"rideState": string(ev.RideState),
			"fromUid":   ev.OriginatorID,
		}
		if ev.Dropoff != "" {
			data["dropoff"] = ev.Dropoff
		}
		return notify.Payload{
			Title: "@" + b.username(ctx, ev.OriginatorID),
			Body:  ev.Content,
			Data:  data,
		}

	default: // KindChatMessage
		return notify.Payload{
			Title: "@" + b.username(ctx, ev.OriginatorID),
			Body:  ev.Content,
			Data: map[string]string{
				"type":    string(notify.KindChatMessage),
				"chatId":  ev.ConversationID,
				"fromUid": ev.OriginatorID,
			},
		}
	}
}

func (b *Builder) username(ctx context.Context, userID string) string {
	name, err := b.users.Username(ctx, userID)
	if err != nil || name == "" {
		b.logger.Debug("Username unavailable, using placeholder", "user_id", userID, "err", err)
		return usernameFallback
	}
	return name
}
