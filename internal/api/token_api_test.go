package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/alpaltug/shuffl-repo/internal/api"
)

// --- Mocks ---
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) TokensFor(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTokenStore) AddToken(ctx context.Context, userID, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

func (m *MockTokenStore) RemoveTokens(ctx context.Context, userID string, tokens []string) error {
	args := m.Called(ctx, userID, tokens)
	return args.Error(0)
}

// --- Setup ---
func setupAPI(t *testing.T) (*api.TokenAPI, *MockTokenStore) {
	t.Helper()
	mockStore := new(MockTokenStore)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.NewTokenAPI(mockStore, logger), mockStore
}

// Helper to inject UserID into context (simulating Auth Middleware)
func withUser(req *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(req.Context(), userID)
	return req.WithContext(ctx)
}

// --- Tests ---

func TestRegisterToken(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		apiHandler, mockStore := setupAPI(t)
		body, _ := json.Marshal(map[string]string{"token": "fcm-token-abc"})
		req := withUser(httptest.NewRequest("POST", "/api/v1/register/token", bytes.NewReader(body)), "user-123")
		w := httptest.NewRecorder()

		mockStore.On("AddToken", mock.Anything, "user-123", "fcm-token-abc").Return(nil)

		apiHandler.RegisterToken(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("Rejects Empty Token", func(t *testing.T) {
		apiHandler, _ := setupAPI(t)
		body, _ := json.Marshal(map[string]string{"token": ""})
		req := withUser(httptest.NewRequest("POST", "/api/v1/register/token", bytes.NewReader(body)), "user-123")
		w := httptest.NewRecorder()

		apiHandler.RegisterToken(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Rejects Malformed JSON", func(t *testing.T) {
		apiHandler, _ := setupAPI(t)
		req := withUser(httptest.NewRequest("POST", "/api/v1/register/token", bytes.NewReader([]byte("{"))), "user-123")
		w := httptest.NewRecorder()

		apiHandler.RegisterToken(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Rejects Missing Auth Context", func(t *testing.T) {
		apiHandler, mockStore := setupAPI(t)
		body, _ := json.Marshal(map[string]string{"token": "fcm-token-abc"})
		req := httptest.NewRequest("POST", "/api/v1/register/token", bytes.NewReader(body))
		w := httptest.NewRecorder()

		apiHandler.RegisterToken(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockStore.AssertNotCalled(t, "AddToken")
	})

	t.Run("Storage Failure Is A 500", func(t *testing.T) {
		apiHandler, mockStore := setupAPI(t)
		body, _ := json.Marshal(map[string]string{"token": "fcm-token-abc"})
		req := withUser(httptest.NewRequest("POST", "/api/v1/register/token", bytes.NewReader(body)), "user-123")
		w := httptest.NewRecorder()

		mockStore.On("AddToken", mock.Anything, "user-123", "fcm-token-abc").
			Return(errors.New("firestore down"))

		apiHandler.RegisterToken(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestUnregisterToken(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		apiHandler, mockStore := setupAPI(t)
		body, _ := json.Marshal(map[string]string{"token": "fcm-token-abc"})
		req := withUser(httptest.NewRequest("POST", "/api/v1/unregister/token", bytes.NewReader(body)), "user-123")
		w := httptest.NewRecorder()

		mockStore.On("RemoveTokens", mock.Anything, "user-123", []string{"fcm-token-abc"}).Return(nil)

		apiHandler.UnregisterToken(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("Storage Failure Still Returns NoContent", func(t *testing.T) {
		apiHandler, mockStore := setupAPI(t)
		body, _ := json.Marshal(map[string]string{"token": "fcm-token-abc"})
		req := withUser(httptest.NewRequest("POST", "/api/v1/unregister/token", bytes.NewReader(body)), "user-123")
		w := httptest.NewRecorder()

		mockStore.On("RemoveTokens", mock.Anything, "user-123", []string{"fcm-token-abc"}).
			Return(errors.New("firestore down"))

		apiHandler.UnregisterToken(w, req)

		// Unregister is idempotent towards the client.
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
