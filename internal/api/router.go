package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/aigrader/internal/api/middleware"
	"github.com/kiranshivaraju/aigrader/internal/api/response"
	"github.com/kiranshivaraju/aigrader/pkg/models"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	GradeObjectivesHandler  http.HandlerFunc
	SubmitObjectivesHandler http.HandlerFunc
	SubmitSentimentHandler  http.HandlerFunc
	StatusHandler           http.HandlerFunc
	ObjectivesResultHandler http.HandlerFunc
	SentimentResultHandler  http.HandlerFunc
	ListTasksHandler        http.HandlerFunc

	// Realtime serves the WebSocket endpoint.
	Realtime http.Handler

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopePredict))

			r.Route("/api/v1/predict", func(r chi.Router) {
				grade := orNotImplemented(deps.GradeObjectivesHandler)
				r.Post("/objectives", grade)
				r.Post("/objectives/model/{modelName}", grade)
				r.Post("/objectives/async", orNotImplemented(deps.SubmitObjectivesHandler))
				r.Post("/sentiment/async", orNotImplemented(deps.SubmitSentimentHandler))
				r.Get("/status/{taskID}", orNotImplemented(deps.StatusHandler))
				r.Get("/objectives/result/{taskID}", orNotImplemented(deps.ObjectivesResultHandler))
				r.Get("/sentiment/result/{taskID}", orNotImplemented(deps.SentimentResultHandler))
			})

			r.Get("/api/v1/tasks", orNotImplemented(deps.ListTasksHandler))

			ws := orNotImplementedHandler(deps.Realtime)
			r.Handle("/api/v1/ws", ws)
			r.Handle("/api/v1/ws/{clientID}", ws)
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeAdmin))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return notImplemented
}

func orNotImplementedHandler(h http.Handler) http.Handler {
	if h != nil {
		return h
	}
	return http.HandlerFunc(notImplemented)
}

func notImplemented(w http.ResponseWriter, _ *http.Request) {
	response.Error(w, http.StatusNotImplemented, response.CodeNotImplemented, "Endpoint not yet implemented", nil)
}
