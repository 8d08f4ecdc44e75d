package firestore

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

const (
	notificationsCollection = "notifications"
	rideIDField             = "rideId"
)

// Cleaner drops queued direct-notification documents once their ride goes
// active. Best effort: individual delete failures are logged and skipped,
// never retried.
type Cleaner struct {
	client *firestore.Client
	logger *slog.Logger
}

func NewCleaner(client *firestore.Client, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		client: client,
		logger: logger.With("component", "NotificationCleaner"),
	}
}

// PurgeRideNotifications deletes every queued notification whose rideId field
// matches, across all users' notification subcollections.
func (c *Cleaner) PurgeRideNotifications(ctx context.Context, rideID string) (int, error) {
	iter := c.client.CollectionGroup(notificationsCollection).
		Where(rideIDField, "==", rideID).
		Documents(ctx)
	defer iter.Stop()

	deleted := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return deleted, nil
		}
		if err != nil {
			return deleted, fmt.Errorf("queued notification query for ride %s: %w", rideID, err)
		}

		if _, err := snap.Ref.Delete(ctx); err != nil {
			c.logger.Warn("Failed to delete queued notification",
				"ride_id", rideID, "doc", snap.Ref.Path, "err", err)
			continue
		}
		deleted++
	}
}
