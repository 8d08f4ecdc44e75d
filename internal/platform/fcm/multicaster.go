// Package fcm adapts Firebase Cloud Messaging to the engine's multicast
// channel contract.
package fcm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"firebase.google.com/go/v4/messaging"

	"github.com/alpaltug/shuffl-repo/pkg/notify"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows us to mock the client for unit testing.
type MessagingClient interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Multicaster issues one FCM multicast per call and classifies each token's
// result. Note: *messaging.Client automatically satisfies MessagingClient.
type Multicaster struct {
	client      MessagingClient
	logger      *slog.Logger
	maxAttempts int
	baseDelay   time.Duration
}

func NewMulticaster(client MessagingClient, logger *slog.Logger) *Multicaster {
	return &Multicaster{
		client:      client,
		logger:      logger.With("component", "FCMMulticaster"),
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
}

// Send submits the token list with the payload and returns per-token
// outcomes ordered exactly as submitted. Only a full-request transport error
// is retried (bounded, with backoff); per-token failures are classified and
// returned, never retried here.
func (m *Multicaster) Send(ctx context.Context, tokens []string, payload notify.Payload) ([]notify.Outcome, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   payload.Data,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
	}

	br, err := m.sendWithRetry(ctx, msg)
	if err != nil {
		return nil, err
	}
	if br == nil {
		// Whole batch rejected as invalid; nothing classifiable per token.
		return nil, nil
	}

	outcomes := make([]notify.Outcome, len(tokens))
	for idx, resp := range br.Responses {
		outcomes[idx] = classify(tokens[idx], resp)
	}

	m.logger.Info("Multicast dispatched",
		"tokens", len(tokens),
		"success", br.SuccessCount,
		"failed", br.FailureCount)
	return outcomes, nil
}

func (m *Multicaster) sendWithRetry(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	var lastErr error
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.baseDelay << (attempt - 1)):
			}
		}

		br, err := m.client.SendEachForMulticast(ctx, msg)
		if err == nil {
			return br, nil
		}

		if messaging.IsInvalidArgument(err) {
			// Malformed request, not a transport fault; retrying cannot help.
			m.logger.Error("FCM rejected batch as InvalidArgument (dropping)", "err", err)
			return nil, nil
		}

		lastErr = err
		m.logger.Warn("FCM transport error", "attempt", attempt+1, "err", err)
	}
	return nil, fmt.Errorf("fcm transport failed after %d attempts: %w", m.maxAttempts, lastErr)
}

// classify buckets one send response. Exactly two reason codes qualify as
// permanent: an invalid registration token and a token no longer registered.
// Everything else (quota, backend unavailability) is transient and must not
// trigger pruning.
func classify(token string, resp *messaging.SendResponse) notify.Outcome {
	if resp.Success {
		return notify.Outcome{Token: token, Class: notify.OutcomeDelivered}
	}
	if messaging.IsInvalidArgument(resp.Error) {
		return notify.Outcome{Token: token, Class: notify.OutcomePermanent, Reason: notify.ReasonInvalidToken}
	}
	if messaging.IsRegistrationTokenNotRegistered(resp.Error) {
		return notify.Outcome{Token: token, Class: notify.OutcomePermanent, Reason: notify.ReasonNotRegistered}
	}
	return notify.Outcome{Token: token, Class: notify.OutcomeTransient, Reason: resp.Error.Error()}
}
