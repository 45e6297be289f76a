package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	mw "github.com/kiranshivaraju/aigrader/internal/api/middleware"
	"github.com/kiranshivaraju/aigrader/internal/api/response"
	"github.com/kiranshivaraju/aigrader/internal/store"
	"github.com/kiranshivaraju/aigrader/pkg/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// TaskLister reads the task ledger.
type TaskLister interface {
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]*models.Task, int, error)
}

// NewListTasksHandler returns an http.HandlerFunc for GET /api/v1/tasks.
// Supports page, limit, kind and status query parameters.
func NewListTasksHandler(s TaskLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, response.CodeInvalidToken, "Missing tenant", nil)
			return
		}

		q := r.URL.Query()
		page, err := positiveIntParam(q.Get("page"), 1)
		if err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "page must be a positive integer", nil)
			return
		}
		limit, err := positiveIntParam(q.Get("limit"), defaultPageLimit)
		if err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "limit must be a positive integer", nil)
			return
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}

		kind := strings.TrimSpace(q.Get("kind"))
		if kind != "" && !models.IsValidKind(kind) {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "unknown task kind", nil)
			return
		}
		status := strings.ToUpper(strings.TrimSpace(q.Get("status")))

		tasks, total, err := s.ListTasks(r.Context(), store.TaskFilter{
			TenantID: tenantID,
			Kind:     kind,
			Status:   status,
			Page:     page,
			Limit:    limit,
		})
		if err != nil {
			slog.Error("listing tasks", "tenant_id", tenantID, "error", err)
			response.Error(w, http.StatusInternalServerError, response.CodeInternal, "Failed to list tasks", nil)
			return
		}
		if tasks == nil {
			tasks = []*models.Task{}
		}

		response.Collection(w, tasks, response.NewPaginationMeta(page, limit, total))
	}
}

func positiveIntParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
