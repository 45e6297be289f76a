package task

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotReady is returned when a result is requested before the task finished.
	// It is not a failure; callers retry later.
	ErrNotReady = errors.New("task result not ready")
	// ErrSchemaMismatch is returned when a stored result cannot be decoded into the
	// contract of the endpoint that asked for it.
	ErrSchemaMismatch = errors.New("stored result does not match the expected schema")
	// ErrQueueUnavailable is returned when a validated submission could not be enqueued.
	ErrQueueUnavailable = errors.New("work queue unavailable")
	// ErrGradingUnavailable is returned by GradeObjectives when no grader is configured.
	ErrGradingUnavailable = errors.New("inline grading not configured")
)

// ValidationError rejects a submission before anything is stored or enqueued.
// Status is the HTTP status the API answers with.
type ValidationError struct {
	Status  int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func unprocessable(field, msg string) *ValidationError {
	return &ValidationError{Status: http.StatusUnprocessableEntity, Field: field, Message: msg}
}

func badRequest(field, msg string) *ValidationError {
	return &ValidationError{Status: http.StatusBadRequest, Field: field, Message: msg}
}

// JobFailure is returned for a task that reached FAILURE. Detail is the stored error.
type JobFailure struct {
	TaskID string
	Detail string
}

func (e *JobFailure) Error() string {
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Detail)
}
