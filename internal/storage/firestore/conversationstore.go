package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alpaltug/shuffl-repo/pkg/dispatch"
	"github.com/alpaltug/shuffl-repo/pkg/notify"
)

const (
	chatsCollection         = "chats"
	referralChatsCollection = "referralChats"
	activeRidesCollection   = "activeRides"
	pendingRidesCollection  = "pendingRides"
)

type participantsDoc struct {
	Participants []string `firestore:"participants"`
}

// ConversationStore resolves participant sets for chats and ride groups.
// Read-only: the engine never mutates conversation records.
type ConversationStore struct {
	client *firestore.Client
}

func NewConversationStore(client *firestore.Client) *ConversationStore {
	return &ConversationStore{client: client}
}

func (s *ConversationStore) Participants(ctx context.Context, channel notify.ChatChannel, conversationID string) ([]string, error) {
	collection := chatsCollection
	if channel == notify.ChatReferral {
		collection = referralChatsCollection
	}
	return s.participants(ctx, collection, conversationID)
}

func (s *ConversationStore) RideParticipants(ctx context.Context, state notify.RideState, rideID string) ([]string, error) {
	collection := activeRidesCollection
	if state == notify.RidePending {
		collection = pendingRidesCollection
	}
	return s.participants(ctx, collection, rideID)
}

func (s *ConversationStore) participants(ctx context.Context, collection, docID string) ([]string, error) {
	snap, err := s.client.Collection(collection).Doc(docID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, dispatch.ErrConversationNotFound
		}
		return nil, fmt.Errorf("%s/%s fetch: %w", collection, docID, err)
	}

	var doc participantsDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("%s/%s decode: %w", collection, docID, err)
	}
	return doc.Participants, nil
}
