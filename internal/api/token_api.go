package api

import (
	"encoding/json"
	"net/http"

	"log/slog"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/alpaltug/shuffl-repo/pkg/dispatch"
)

// TokenAPI exposes device-token registration for the mobile client. Tokens
// land in the same per-user set the fan-out dispatcher reads.
type TokenAPI struct {
	Store  dispatch.TokenStore
	Logger *slog.Logger
}

func NewTokenAPI(store dispatch.TokenStore, logger *slog.Logger) *TokenAPI {
	return &TokenAPI{
		Store:  store,
		Logger: logger,
	}
}

type TokenRequest struct {
	Token string `json:"token"`
}

func (api *TokenAPI) RegisterToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	// User identifiers here are Firestore document IDs, not handles, so the
	// ID claim is the one the auth middleware is guaranteed to populate.
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := api.Store.AddToken(ctx, userID, req.Token); err != nil {
		api.Logger.Error("failed to register token", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (api *TokenAPI) UnregisterToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := api.Store.RemoveTokens(ctx, userID, []string{req.Token}); err != nil {
		// Log but don't fail hard; idempotency is preferred for unregister
		api.Logger.Warn("failed to unregister token", "err", err)
	}

	w.WriteHeader(http.StatusNoContent)
}
