package engine_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alpaltug/shuffl-repo/internal/engine"
	"github.com/alpaltug/shuffl-repo/pkg/notify"
)

// fakeTokenStore is a thread-safe map-backed store; the fanout fetches
// concurrently so a testify mock's ordering assertions are too strict here.
type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string][]string
}

func (f *fakeTokenStore) TokensFor(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[userID], nil
}

func (f *fakeTokenStore) AddToken(_ context.Context, _ string, _ string) error { return nil }

func (f *fakeTokenStore) RemoveTokens(_ context.Context, _ string, _ []string) error { return nil }

type mockMulticaster struct {
	mock.Mock
}

func (m *mockMulticaster) Send(ctx context.Context, tokens []string, payload notify.Payload) ([]notify.Outcome, error) {
	args := m.Called(ctx, tokens, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notify.Outcome), args.Error(1)
}

func deliveredAll(tokens []string) []notify.Outcome {
	outcomes := make([]notify.Outcome, len(tokens))
	for i, t := range tokens {
		outcomes[i] = notify.Outcome{Token: t, Class: notify.OutcomeDelivered}
	}
	return outcomes
}

func TestFanout_Dispatch(t *testing.T) {
	ctx := context.Background()
	payload := notify.Payload{Title: "t", Body: "b"}

	t.Run("Shared Token Sent Exactly Once", func(t *testing.T) {
		store := &fakeTokenStore{tokens: map[string][]string{
			"user-a": {"tok-1", "tok-2"},
			"user-b": {"tok-2", "tok-3"},
		}}
		channel := new(mockMulticaster)
		channel.On("Send", mock.Anything, []string{"tok-1", "tok-2", "tok-3"}, payload).
			Return(deliveredAll([]string{"tok-1", "tok-2", "tok-3"}), nil).Once()

		fanout := engine.NewFanout(store, channel, 4, newTestLogger())
		outcomes, err := fanout.Dispatch(ctx, []string{"user-a", "user-b"}, payload)

		require.NoError(t, err)
		assert.Len(t, outcomes, 3)
		channel.AssertExpectations(t)
	})

	t.Run("Aggregate Order Follows Recipient Order", func(t *testing.T) {
		store := &fakeTokenStore{tokens: map[string][]string{
			"user-a": {"tok-a"},
			"user-b": {"tok-b"},
			"user-c": {"tok-c"},
		}}
		channel := new(mockMulticaster)
		// Concurrent fetches must not shuffle the send list.
		channel.On("Send", mock.Anything, []string{"tok-a", "tok-b", "tok-c"}, payload).
			Return(deliveredAll([]string{"tok-a", "tok-b", "tok-c"}), nil).Once()

		fanout := engine.NewFanout(store, channel, 2, newTestLogger())
		_, err := fanout.Dispatch(ctx, []string{"user-a", "user-b", "user-c"}, payload)

		require.NoError(t, err)
		channel.AssertExpectations(t)
	})

	t.Run("No Tokens Means No Network Call", func(t *testing.T) {
		store := &fakeTokenStore{tokens: map[string][]string{}}
		channel := new(mockMulticaster)

		fanout := engine.NewFanout(store, channel, 4, newTestLogger())
		outcomes, err := fanout.Dispatch(ctx, []string{"user-a", "user-b"}, payload)

		require.NoError(t, err)
		assert.Empty(t, outcomes)
		channel.AssertNotCalled(t, "Send")
	})

	t.Run("No Recipients Short-Circuits", func(t *testing.T) {
		channel := new(mockMulticaster)
		fanout := engine.NewFanout(&fakeTokenStore{}, channel, 4, newTestLogger())

		outcomes, err := fanout.Dispatch(ctx, nil, payload)

		require.NoError(t, err)
		assert.Empty(t, outcomes)
		channel.AssertNotCalled(t, "Send")
	})

	t.Run("Outcome Map Keyed By Token", func(t *testing.T) {
		store := &fakeTokenStore{tokens: map[string][]string{
			"user-a": {"tok-good", "tok-dead"},
		}}
		channel := new(mockMulticaster)
		channel.On("Send", mock.Anything, mock.Anything, payload).Return([]notify.Outcome{
			{Token: "tok-good", Class: notify.OutcomeDelivered},
			{Token: "tok-dead", Class: notify.OutcomePermanent, Reason: notify.ReasonNotRegistered},
		}, nil).Once()

		fanout := engine.NewFanout(store, channel, 4, newTestLogger())
		outcomes, err := fanout.Dispatch(ctx, []string{"user-a"}, payload)

		require.NoError(t, err)
		assert.Equal(t, notify.OutcomeDelivered, outcomes["tok-good"].Class)
		assert.True(t, outcomes["tok-dead"].Permanent())
	})
}
