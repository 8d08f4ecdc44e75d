// Package firestore implements the engine's persistence contracts against
// Google Cloud Firestore.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alpaltug/shuffl-repo/pkg/dispatch"
)

const (
	usersCollection = "users"
	tokensField     = "deviceTokens"
	badgeCountField = "badgeCount"
)

// userDoc is the subset of the user profile the engine reads.
type userDoc struct {
	Username     string   `firestore:"username"`
	DeviceTokens []string `firestore:"deviceTokens"`
}

// UserStore reads and mutates user device-token sets and profile fields.
// Implements dispatch.TokenStorage and dispatch.UserDirectory.
type UserStore struct {
	client *firestore.Client
}

func NewUserStore(client *firestore.Client) *UserStore {
	return &UserStore{client: client}
}

func (s *UserStore) TokensFor(ctx context.Context, userID string) ([]string, error) {
	snap, err := s.userRef(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("user %s fetch: %w", userID, err)
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("user %s decode: %w", userID, err)
	}
	return doc.DeviceTokens, nil
}

func (s *UserStore) AddToken(ctx context.Context, userID, token string) error {
	_, err := s.userRef(userID).Set(ctx, map[string]interface{}{
		tokensField: firestore.ArrayUnion(token),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("user %s token add: %w", userID, err)
	}
	return nil
}

func (s *UserStore) RemoveTokens(ctx context.Context, userID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	values := make([]interface{}, len(tokens))
	for i, t := range tokens {
		values[i] = t
	}
	_, err := s.userRef(userID).Update(ctx, []firestore.Update{
		{Path: tokensField, Value: firestore.ArrayRemove(values...)},
	})
	if err != nil {
		// Removing from an absent user is a no-op, not a failure.
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("user %s token remove: %w", userID, err)
	}
	return nil
}

func (s *UserStore) SetTokens(ctx context.Context, userID string, tokens []string) error {
	_, err := s.userRef(userID).Update(ctx, []firestore.Update{
		{Path: tokensField, Value: tokens},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("user %s token set: %w", userID, err)
	}
	return nil
}

func (s *UserStore) ForEachUser(ctx context.Context, fn func(userID string, tokens []string) error) error {
	iter := s.client.Collection(usersCollection).Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("user iteration: %w", err)
		}

		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			// Corrupt profile rows are skipped, not fatal to the sweep.
			continue
		}
		if err := fn(snap.Ref.ID, doc.DeviceTokens); err != nil {
			return err
		}
	}
}

func (s *UserStore) Username(ctx context.Context, userID string) (string, error) {
	snap, err := s.userRef(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", dispatch.ErrUserNotFound
		}
		return "", fmt.Errorf("user %s fetch: %w", userID, err)
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return "", fmt.Errorf("user %s decode: %w", userID, err)
	}
	return doc.Username, nil
}

func (s *UserStore) IncrementBadge(ctx context.Context, userID string) error {
	_, err := s.userRef(userID).Update(ctx, []firestore.Update{
		{Path: badgeCountField, Value: firestore.Increment(1)},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("user %s badge increment: %w", userID, err)
	}
	return nil
}

func (s *UserStore) userRef(userID string) *firestore.DocumentRef {
	return s.client.Collection(usersCollection).Doc(userID)
}
