package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const claimsCollection = "deliveryClaims"

// claimDoc is the delivery-claim record: created exactly once per event ID,
// never updated afterwards except to flip the delivered flag, never deleted
// by the engine.
type claimDoc struct {
	ClaimedAt time.Time `firestore:"claimedAt"`
	Delivered bool      `firestore:"delivered"`
}

// ClaimStore persists delivery claims with a transactional read-modify-write,
// so concurrent duplicate invocations racing on one event ID cannot both
// observe the claim as absent.
type ClaimStore struct {
	client *firestore.Client
}

func NewClaimStore(client *firestore.Client) *ClaimStore {
	return &ClaimStore{client: client}
}

func (s *ClaimStore) TryClaim(ctx context.Context, eventID string) (bool, error) {
	ref := s.client.Collection(claimsCollection).Doc(eventID)

	claimed := false
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(ref)
		if err == nil {
			// Claim exists: a prior or concurrent invocation owns delivery.
			claimed = false
			return nil
		}
		if status.Code(err) != codes.NotFound {
			return err
		}
		if err := tx.Create(ref, claimDoc{ClaimedAt: time.Now().UTC()}); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("claim %s transaction: %w", eventID, err)
	}
	return claimed, nil
}

func (s *ClaimStore) MarkDelivered(ctx context.Context, eventID string) error {
	_, err := s.client.Collection(claimsCollection).Doc(eventID).Update(ctx, []firestore.Update{
		{Path: "delivered", Value: true},
	})
	if err != nil {
		return fmt.Errorf("claim %s mark delivered: %w", eventID, err)
	}
	return nil
}
