package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/aigrader/internal/ai"
	mw "github.com/kiranshivaraju/aigrader/internal/api/middleware"
	"github.com/kiranshivaraju/aigrader/internal/api/response"
	"github.com/kiranshivaraju/aigrader/internal/task"
	"github.com/kiranshivaraju/aigrader/pkg/models"
)

// maxBodyBytes bounds submission bodies; thesis texts are long but not unbounded.
const maxBodyBytes = 1 << 20

// Predictor defines the task operations the predict handlers depend on.
type Predictor interface {
	SubmitObjectives(ctx context.Context, tenantID uuid.UUID, req task.ObjectivesRequest) (*task.Submission, error)
	SubmitSentiment(ctx context.Context, tenantID uuid.UUID, req task.SentimentRequest) (*task.Submission, error)
	Status(ctx context.Context, taskID string) (*task.StatusView, error)
	ObjectivesResult(ctx context.Context, taskID string) (*models.ObjectivesEvaluation, error)
	SentimentResult(ctx context.Context, taskID string) (*models.SentimentResult, error)
}

// ObjectivesGrader grades objectives within the request.
type ObjectivesGrader interface {
	GradeObjectives(ctx context.Context, req task.ObjectivesRequest) (*models.ObjectivesEvaluation, error)
}

// NewGradeObjectivesHandler returns an http.HandlerFunc for POST /api/v1/predict/objectives
// and POST /api/v1/predict/objectives/model/{modelName}. The path model, when present,
// replaces model_name from the body. The evaluation is returned in the response.
func NewGradeObjectivesHandler(svc ObjectivesGrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req task.ObjectivesRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if model := chi.URLParam(r, "modelName"); model != "" {
			req.ModelName = model
		}

		eval, err := svc.GradeObjectives(r.Context(), req)
		if err != nil {
			writeGradeError(w, err)
			return
		}
		response.JSON(w, eval)
	}
}

// NewSubmitObjectivesHandler returns an http.HandlerFunc for
// POST /api/v1/predict/objectives/async.
func NewSubmitObjectivesHandler(svc Predictor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, response.CodeInvalidToken, "Missing tenant", nil)
			return
		}

		var req task.ObjectivesRequest
		if !decodeBody(w, r, &req) {
			return
		}

		sub, err := svc.SubmitObjectives(r.Context(), tenantID, req)
		if err != nil {
			writeSubmitError(w, err)
			return
		}
		response.Accepted(w, sub)
	}
}

// NewSubmitSentimentHandler returns an http.HandlerFunc for
// POST /api/v1/predict/sentiment/async.
func NewSubmitSentimentHandler(svc Predictor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, response.CodeInvalidToken, "Missing tenant", nil)
			return
		}

		var req task.SentimentRequest
		if !decodeBody(w, r, &req) {
			return
		}

		sub, err := svc.SubmitSentiment(r.Context(), tenantID, req)
		if err != nil {
			writeSubmitError(w, err)
			return
		}
		response.Accepted(w, sub)
	}
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/v1/predict/status/{taskID}.
// Unknown task ids answer 200 with status PENDING.
func NewStatusHandler(svc Predictor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, ok := taskIDParam(w, r)
		if !ok {
			return
		}

		view, err := svc.Status(r.Context(), taskID)
		if err != nil {
			slog.Error("reading task status", "task_id", taskID, "error", err)
			response.Error(w, http.StatusInternalServerError, response.CodeInternal,
				"Failed to read task status", nil)
			return
		}
		response.JSON(w, view)
	}
}

// NewObjectivesResultHandler returns an http.HandlerFunc for
// GET /api/v1/predict/objectives/result/{taskID}.
func NewObjectivesResultHandler(svc Predictor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, ok := taskIDParam(w, r)
		if !ok {
			return
		}

		result, err := svc.ObjectivesResult(r.Context(), taskID)
		if err != nil {
			writeResultError(w, taskID, err)
			return
		}
		response.JSON(w, result)
	}
}

// NewSentimentResultHandler returns an http.HandlerFunc for
// GET /api/v1/predict/sentiment/result/{taskID}.
func NewSentimentResultHandler(svc Predictor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, ok := taskIDParam(w, r)
		if !ok {
			return
		}

		result, err := svc.SentimentResult(r.Context(), taskID)
		if err != nil {
			writeResultError(w, taskID, err)
			return
		}
		response.JSON(w, result)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid JSON body", nil)
		return false
	}
	return true
}

func taskIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	taskID := strings.TrimSpace(chi.URLParam(r, "taskID"))
	if taskID == "" {
		response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "task id is required", nil)
		return "", false
	}
	return taskID, true
}

func writeValidationError(w http.ResponseWriter, verr *task.ValidationError) {
	code := response.CodeValidation
	if verr.Status == http.StatusBadRequest {
		code = response.CodeInvalidRequest
	}
	response.Error(w, verr.Status, code, verr.Message, map[string]string{"field": verr.Field})
}

func writeSubmitError(w http.ResponseWriter, err error) {
	var verr *task.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.Is(err, task.ErrQueueUnavailable):
		slog.Error("task submission not enqueued", "error", err)
		response.Error(w, http.StatusServiceUnavailable, response.CodeQueueUnavailable,
			"The task queue is not available", nil)
	default:
		slog.Error("task submission failed", "error", err)
		response.Error(w, http.StatusInternalServerError, response.CodeInternal,
			"An unexpected error occurred", nil)
	}
}

func writeResultError(w http.ResponseWriter, taskID string, err error) {
	var failure *task.JobFailure
	switch {
	case errors.Is(err, task.ErrNotReady):
		response.Accepted(w, task.Submission{TaskID: taskID, Status: models.SubmittedStatus})
	case errors.As(err, &failure):
		response.Error(w, http.StatusInternalServerError, response.CodeTaskFailed,
			"Task failed", map[string]string{"detail": failure.Detail})
	case errors.Is(err, task.ErrSchemaMismatch):
		slog.Warn("stored result does not match endpoint schema", "task_id", taskID, "error", err)
		response.Error(w, http.StatusUnprocessableEntity, response.CodeSchemaMismatch,
			"Stored result does not match the expected schema", nil)
	default:
		slog.Error("reading task result", "task_id", taskID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.CodeInternal,
			"Failed to read task result", nil)
	}
}

func writeGradeError(w http.ResponseWriter, err error) {
	var verr *task.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.Is(err, ai.ErrUnknownModel):
		response.Error(w, http.StatusUnprocessableEntity, response.CodeValidation, err.Error(),
			map[string]string{"field": "model_name"})
	case errors.Is(err, ai.ErrInferenceTimeout), errors.Is(err, context.DeadlineExceeded):
		slog.Warn("inline grading timed out", "error", err)
		response.Error(w, http.StatusGatewayTimeout, response.CodeAITimeout,
			"The model did not answer in time", nil)
	case errors.Is(err, ai.ErrProviderUnavailable), errors.Is(err, ai.ErrInvalidResponse):
		slog.Error("inline grading failed", "error", err)
		response.Error(w, http.StatusBadGateway, response.CodeAIUnavailable,
			"The model provider failed to grade the objectives", map[string]string{"detail": err.Error()})
	case errors.Is(err, task.ErrGradingUnavailable):
		response.Error(w, http.StatusServiceUnavailable, response.CodeAIUnavailable,
			"Inline grading is not configured", nil)
	default:
		slog.Error("inline grading failed", "error", err)
		response.Error(w, http.StatusInternalServerError, response.CodeInternal,
			"An unexpected error occurred", nil)
	}
}
