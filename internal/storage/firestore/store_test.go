//go:build integration

package firestore_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/alpaltug/shuffl-repo/internal/storage/firestore"
	"github.com/alpaltug/shuffl-repo/pkg/dispatch"
	"github.com/alpaltug/shuffl-repo/pkg/notify"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupSuite(t *testing.T) (context.Context, *firestore.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	projectID := "test-notify-store"
	conn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	client, err := firestore.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return ctx, client
}

func TestUserStore_Integration(t *testing.T) {
	ctx, client := setupSuite(t)
	store := fs.NewUserStore(client)

	t.Run("Token Lifecycle", func(t *testing.T) {
		userID := uuid.NewString()

		// 1. Register
		require.NoError(t, store.AddToken(ctx, userID, "token-ios-1"))
		require.NoError(t, store.AddToken(ctx, userID, "token-android-1"))

		// 2. Fetch and verify
		tokens, err := store.TokensFor(ctx, userID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"token-ios-1", "token-android-1"}, tokens)

		// 3. Remove one
		require.NoError(t, store.RemoveTokens(ctx, userID, []string{"token-ios-1"}))

		tokens, err = store.TokensFor(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, []string{"token-android-1"}, tokens)
	})

	t.Run("ArrayUnion Deduplicates Re-Registration", func(t *testing.T) {
		userID := uuid.NewString()

		require.NoError(t, store.AddToken(ctx, userID, "token-1"))
		require.NoError(t, store.AddToken(ctx, userID, "token-1"))

		tokens, err := store.TokensFor(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, tokens, 1)
	})

	t.Run("Unknown User Has No Tokens", func(t *testing.T) {
		tokens, err := store.TokensFor(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, tokens)
	})

	t.Run("Remove From Unknown User Is A No-Op", func(t *testing.T) {
		assert.NoError(t, store.RemoveTokens(ctx, uuid.NewString(), []string{"token-x"}))
	})

	t.Run("SetTokens Replaces The Whole Set", func(t *testing.T) {
		userID := uuid.NewString()
		require.NoError(t, store.AddToken(ctx, userID, "token-a"))
		require.NoError(t, store.AddToken(ctx, userID, "token-b"))

		require.NoError(t, store.SetTokens(ctx, userID, []string{"token-a"}))

		tokens, err := store.TokensFor(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, []string{"token-a"}, tokens)
	})

	t.Run("Username Lookup", func(t *testing.T) {
		userID := uuid.NewString()
		_, err := client.Collection("users").Doc(userID).Set(ctx, map[string]interface{}{
			"username": "alice",
		})
		require.NoError(t, err)

		name, err := store.Username(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "alice", name)

		_, err = store.Username(ctx, uuid.NewString())
		assert.ErrorIs(t, err, dispatch.ErrUserNotFound)
	})

	t.Run("Badge Increments", func(t *testing.T) {
		userID := uuid.NewString()
		_, err := client.Collection("users").Doc(userID).Set(ctx, map[string]interface{}{
			"username": "bob",
		})
		require.NoError(t, err)

		require.NoError(t, store.IncrementBadge(ctx, userID))
		require.NoError(t, store.IncrementBadge(ctx, userID))

		snap, err := client.Collection("users").Doc(userID).Get(ctx)
		require.NoError(t, err)
		badge, err := snap.DataAt("badgeCount")
		require.NoError(t, err)
		assert.EqualValues(t, 2, badge)
	})
}

func TestClaimStore_Integration(t *testing.T) {
	ctx, client := setupSuite(t)
	store := fs.NewClaimStore(client)

	t.Run("First Claim Wins, Second Loses", func(t *testing.T) {
		eventID := uuid.NewString()

		won, err := store.TryClaim(ctx, eventID)
		require.NoError(t, err)
		assert.True(t, won)

		won, err = store.TryClaim(ctx, eventID)
		require.NoError(t, err)
		assert.False(t, won)
	})

	t.Run("Concurrent Claims Resolve To One Winner", func(t *testing.T) {
		eventID := uuid.NewString()

		const n = 10
		var wg sync.WaitGroup
		results := make([]bool, n)
		wg.Add(n)
		for i := range n {
			go func() {
				defer wg.Done()
				won, err := store.TryClaim(ctx, eventID)
				assert.NoError(t, err)
				results[i] = won
			}()
		}
		wg.Wait()

		winners := 0
		for _, won := range results {
			if won {
				winners++
			}
		}
		assert.Equal(t, 1, winners)
	})

	t.Run("MarkDelivered Flips The Flag", func(t *testing.T) {
		eventID := uuid.NewString()
		won, err := store.TryClaim(ctx, eventID)
		require.NoError(t, err)
		require.True(t, won)

		require.NoError(t, store.MarkDelivered(ctx, eventID))

		snap, err := client.Collection("deliveryClaims").Doc(eventID).Get(ctx)
		require.NoError(t, err)
		delivered, err := snap.DataAt("delivered")
		require.NoError(t, err)
		assert.Equal(t, true, delivered)
	})
}

func TestConversationStore_Integration(t *testing.T) {
	ctx, client := setupSuite(t)
	store := fs.NewConversationStore(client)

	seed := func(t *testing.T, collection, docID string, participants []string) {
		t.Helper()
		_, err := client.Collection(collection).Doc(docID).Set(ctx, map[string]interface{}{
			"participants": participants,
		})
		require.NoError(t, err)
	}

	t.Run("Direct And Referral Chats Read Different Collections", func(t *testing.T) {
		seed(t, "chats", "chat-1", []string{"user-a", "user-b"})
		seed(t, "referralChats", "chat-1", []string{"user-c", "user-d"})

		direct, err := store.Participants(ctx, notify.ChatDirect, "chat-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"user-a", "user-b"}, direct)

		referral, err := store.Participants(ctx, notify.ChatReferral, "chat-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"user-c", "user-d"}, referral)
	})

	t.Run("Ride State Selects The Collection", func(t *testing.T) {
		seed(t, "activeRides", "ride-1", []string{"user-a"})
		seed(t, "pendingRides", "ride-1", []string{"user-b"})

		active, err := store.RideParticipants(ctx, notify.RideActive, "ride-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"user-a"}, active)

		pending, err := store.RideParticipants(ctx, notify.RidePending, "ride-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"user-b"}, pending)
	})

	t.Run("Missing Conversation Surfaces Sentinel", func(t *testing.T) {
		_, err := store.Participants(ctx, notify.ChatDirect, uuid.NewString())
		assert.ErrorIs(t, err, dispatch.ErrConversationNotFound)
	})
}

func TestCleaner_Integration(t *testing.T) {
	ctx, client := setupSuite(t)
	cleaner := fs.NewCleaner(client, newTestLogger())

	seedNotification := func(t *testing.T, userID, rideID string) {
		t.Helper()
		_, _, err := client.Collection("users").Doc(userID).
			Collection("notifications").Add(ctx, map[string]interface{}{
			"type":   "new_participant",
			"rideId": rideID,
		})
		require.NoError(t, err)
	}

	t.Run("Purges Matching Notifications Across Users", func(t *testing.T) {
		rideID := uuid.NewString()
		otherRide := uuid.NewString()
		seedNotification(t, "user-a", rideID)
		seedNotification(t, "user-b", rideID)
		seedNotification(t, "user-c", otherRide)

		deleted, err := cleaner.PurgeRideNotifications(ctx, rideID)
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)

		// The unrelated ride's notification survives.
		remaining, err := client.CollectionGroup("notifications").
			Where("rideId", "==", otherRide).Documents(ctx).GetAll()
		require.NoError(t, err)
		assert.Len(t, remaining, 1)
	})

	t.Run("No Matches Deletes Nothing", func(t *testing.T) {
		deleted, err := cleaner.PurgeRideNotifications(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})
}
