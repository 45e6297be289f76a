package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kiranshivaraju/aigrader/internal/api/response"
)

const healthCheckTimeout = 3 * time.Second

// Check pings one dependency. Stats, when set, is reported under its name in a
// healthy response.
type Check struct {
	Name  string
	Ping  func(ctx context.Context) error
	Stats func() any
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health. Every check
// runs on each request; any failure answers 503 DEGRADED with per-check details.
func NewHealthHandler(checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		results := make(map[string]string, len(checks))
		stats := make(map[string]any)
		healthy := true
		for _, c := range checks {
			if c.Stats != nil {
				stats[c.Name] = c.Stats()
			}
			if err := c.Ping(ctx); err != nil {
				slog.Warn("health check failed", "check", c.Name, "error", err)
				results[c.Name] = "degraded"
				healthy = false
				continue
			}
			results[c.Name] = "ok"
		}

		if !healthy {
			response.Error(w, http.StatusServiceUnavailable, response.CodeDegraded,
				"One or more services degraded", results)
			return
		}
		body := map[string]any{"status": "ok", "checks": results}
		if len(stats) > 0 {
			body["stats"] = stats
		}
		response.JSON(w, body)
	}
}
