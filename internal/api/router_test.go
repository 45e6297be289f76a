package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/aigrader/internal/api"
	mw "github.com/kiranshivaraju/aigrader/internal/api/middleware"
	"github.com/kiranshivaraju/aigrader/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- stub key store: holds at most one key ---

type stubKeyStore struct {
	keys []*models.APIKey
}

func (s *stubKeyStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}
func (s *stubKeyStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

// --- stub counter ---

type stubCounter struct{}

func (c *stubCounter) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- router tests ---

func newTestRouter(keys ...*models.APIKey) http.Handler {
	return api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(&stubKeyStore{keys: keys}),
		RateLimit: mw.NewRateLimit(&stubCounter{}, 60),
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
	})
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter()
	id := uuid.NewString()

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/predict/objectives/async"},
		{"POST", "/api/v1/predict/sentiment/async"},
		{"GET", "/api/v1/predict/status/" + id},
		{"GET", "/api/v1/predict/objectives/result/" + id},
		{"GET", "/api/v1/predict/sentiment/result/" + id},
		{"GET", "/api/v1/tasks"},
		{"GET", "/api/v1/ws"},
		{"GET", "/api/v1/ws/client-1"},
		{"POST", "/api/v1/admin/keys"},
		{"GET", "/api/v1/admin/keys"},
		{"DELETE", "/api/v1/admin/keys/" + id},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "INVALID_TOKEN", errObj["code"])
		})
	}
}

func TestRouter_UnwiredHandler_NotImplemented(t *testing.T) {
	rawKey := "ag_route_1234567890abcdef"
	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.MinCost)
	require.NoError(t, err)
	router := newTestRouter(&models.APIKey{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		KeyHash:   string(hash),
		KeyPrefix: rawKey[:8],
		Scopes:    []string{models.ScopeAdmin},
	})

	for _, ep := range []struct{ method, path string }{
		{"GET", "/api/v1/tasks"},
		{"GET", "/api/v1/ws"},
		{"POST", "/api/v1/predict/objectives"},
		{"POST", "/api/v1/predict/objectives/model/llama3"},
	} {
		req := httptest.NewRequest(ep.method, ep.path, nil)
		req.Header.Set("Authorization", "Bearer "+rawKey)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotImplemented, w.Code, ep.path)
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
