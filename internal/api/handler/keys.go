package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/aigrader/internal/api/middleware"
	"github.com/kiranshivaraju/aigrader/internal/api/response"
	"github.com/kiranshivaraju/aigrader/internal/apikey"
	"github.com/kiranshivaraju/aigrader/internal/store"
	"github.com/kiranshivaraju/aigrader/pkg/models"
)

// KeyStore manages a tenant's API keys.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error
}

type createdKey struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	KeyPrefix string    `json:"key_prefix"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCreateKeyHandler returns an http.HandlerFunc for POST /api/v1/admin/keys.
// The raw key appears only in this response.
func NewCreateKeyHandler(s KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, response.CodeInvalidToken, "Missing tenant", nil)
			return
		}

		var req struct {
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.Scopes) == 0 {
			req.Scopes = []string{models.ScopePredict}
		}

		raw, key, err := apikey.Generate(tenantID, req.Name, req.Scopes)
		if err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, err.Error(), nil)
			return
		}

		if err := s.CreateAPIKey(r.Context(), key); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusConflict, response.CodeDuplicateKey,
					"API key with this name already exists", nil)
				return
			}
			slog.Error("creating api key", "tenant_id", tenantID, "error", err)
			response.Error(w, http.StatusInternalServerError, response.CodeInternal, "Failed to create key", nil)
			return
		}

		slog.Info("api key created", "tenant_id", tenantID, "key_id", key.ID, "key_prefix", key.KeyPrefix)
		response.Created(w, createdKey{
			ID:        key.ID,
			Name:      key.Name,
			Key:       raw,
			KeyPrefix: key.KeyPrefix,
			Scopes:    key.Scopes,
			CreatedAt: key.CreatedAt,
		})
	}
}

// NewListKeysHandler returns an http.HandlerFunc for GET /api/v1/admin/keys.
func NewListKeysHandler(s KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, response.CodeInvalidToken, "Missing tenant", nil)
			return
		}

		keys, err := s.ListAPIKeys(r.Context(), tenantID)
		if err != nil {
			slog.Error("listing api keys", "tenant_id", tenantID, "error", err)
			response.Error(w, http.StatusInternalServerError, response.CodeInternal, "Failed to list keys", nil)
			return
		}
		if keys == nil {
			keys = []*models.APIKey{}
		}
		response.JSON(w, keys)
	}
}

// NewRevokeKeyHandler returns an http.HandlerFunc for DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(s KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, response.CodeInvalidToken, "Missing tenant", nil)
			return
		}

		keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid key ID", nil)
			return
		}

		if callerID, ok := mw.GetAPIKeyID(r); ok && callerID == keyID {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest,
				"A key cannot revoke itself", nil)
			return
		}

		if err := s.RevokeAPIKey(r.Context(), keyID, tenantID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, response.CodeKeyNotFound, "API key not found", nil)
				return
			}
			slog.Error("revoking api key", "key_id", keyID, "error", err)
			response.Error(w, http.StatusInternalServerError, response.CodeInternal, "Failed to revoke key", nil)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
