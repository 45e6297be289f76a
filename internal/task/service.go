// Package task accepts grading submissions and answers status and result polls.
// Submissions are validated, recorded and enqueued without waiting for the worker.
package task

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/aigrader/internal/cache"
	"github.com/kiranshivaraju/aigrader/internal/queue"
	"github.com/kiranshivaraju/aigrader/internal/store"
	"github.com/kiranshivaraju/aigrader/pkg/models"
)

// Ledger is the part of the store the service writes to.
type Ledger interface {
	CreateTask(ctx context.Context, task *models.Task) error
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status string, opts ...store.TaskUpdateOption) error
}

// Submission is returned to the client as soon as a task is enqueued.
type Submission struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// StatusView is the answer to a status poll. Result is null until the task is terminal;
// for a failed task it holds the error string.
type StatusView struct {
	TaskID string          `json:"task_id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// Service implements submission and polling.
type Service struct {
	ledger           Ledger
	results          cache.ResultStore
	broker           queue.Broker
	minContentLength int
	grader           ObjectivesGrader
	gradeTimeout     time.Duration
	logger           *slog.Logger
	now              func() time.Time
}

type Option func(*Service)

// WithMinContentLength overrides DefaultMinContentLength.
func WithMinContentLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.minContentLength = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service.
func NewService(ledger Ledger, results cache.ResultStore, broker queue.Broker, opts ...Option) *Service {
	s := &Service{
		ledger:           ledger,
		results:          results,
		broker:           broker,
		minContentLength: DefaultMinContentLength,
		gradeTimeout:     DefaultGradeTimeout,
		logger:           slog.Default(),
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitObjectives validates req and enqueues an objectives grading task.
func (s *Service) SubmitObjectives(ctx context.Context, tenantID uuid.UUID, req ObjectivesRequest) (*Submission, error) {
	req, err := normalizeObjectives(req, s.minContentLength)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, tenantID, queue.TaskMessage{
		Kind:               models.TaskKindObjectives,
		ModelName:          req.ModelName,
		Content:            req.Content,
		SpecificObjectives: req.SpecificObjectives,
	})
}

// SubmitSentiment validates req and enqueues a sentiment task.
func (s *Service) SubmitSentiment(ctx context.Context, tenantID uuid.UUID, req SentimentRequest) (*Submission, error) {
	req, err := normalizeSentiment(req, s.minContentLength)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, tenantID, queue.TaskMessage{
		Kind:      models.TaskKindSentiment,
		ModelName: req.ModelName,
		Content:   req.Content,
	})
}

// submit records the task as PENDING in the ledger and the result store, then
// publishes exactly one work message. It never waits for the task to run.
func (s *Service) submit(ctx context.Context, tenantID uuid.UUID, msg queue.TaskMessage) (*Submission, error) {
	id := uuid.New()
	now := s.now()

	t := &models.Task{
		ID:        id,
		TenantID:  tenantID,
		Kind:      msg.Kind,
		ModelName: msg.ModelName,
		Status:    models.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ledger.CreateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	taskID := id.String()
	if err := s.results.CreatePending(ctx, taskID, msg.Kind); err != nil {
		s.failSubmission(ctx, id, msg.Kind, fmt.Sprintf("recording task: %v", err))
		return nil, fmt.Errorf("recording task: %w", err)
	}

	msg.TaskID = taskID
	msg.TenantID = tenantID.String()
	msg.EnqueuedAt = now
	if err := s.broker.Publish(ctx, msg); err != nil {
		s.logger.Error("enqueue failed", "task_id", taskID, "kind", msg.Kind, "error", err)
		s.failSubmission(ctx, id, msg.Kind, fmt.Sprintf("enqueue: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	s.logger.Info("task submitted", "task_id", taskID, "kind", msg.Kind, "tenant_id", tenantID)
	return &Submission{TaskID: taskID, Status: models.SubmittedStatus}, nil
}

// failSubmission marks a task that never reached the queue as FAILURE so polls
// do not report it PENDING forever.
func (s *Service) failSubmission(ctx context.Context, id uuid.UUID, kind, detail string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.results.Complete(ctx, models.TaskRecord{
		TaskID: id.String(),
		Kind:   kind,
		Status: models.TaskStatusFailure,
		Error:  detail,
	}); err != nil && !errors.Is(err, cache.ErrTerminalState) {
		s.logger.Warn("marking task failed in result store", "task_id", id, "error", err)
	}
	if err := s.ledger.UpdateTaskStatus(ctx, id, models.TaskStatusFailure, store.WithErrorMessage(detail)); err != nil {
		s.logger.Warn("marking task failed in ledger", "task_id", id, "error", err)
	}
}

// Status reports the current state of taskID. Ids that were never submitted, or whose
// record expired, are reported as PENDING. A record that cannot be decoded is reported
// as FAILURE. Only a result store outage is an error.
func (s *Service) Status(ctx context.Context, taskID string) (*StatusView, error) {
	rec, found, err := s.results.GetRecord(ctx, taskID)
	if errors.Is(err, cache.ErrMalformedRecord) {
		s.logger.Warn("unreadable task record", "task_id", taskID, "error", err)
		detail := "task record is unreadable"
		result, _ := json.Marshal(detail)
		return &StatusView{TaskID: taskID, Status: models.TaskStatusFailure, Result: result, Error: detail}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading task %s: %w", taskID, err)
	}
	if !found {
		return &StatusView{TaskID: taskID, Status: models.TaskStatusPending}, nil
	}

	view := &StatusView{TaskID: taskID, Status: rec.Status}
	switch rec.Status {
	case models.TaskStatusSuccess:
		view.Result = rec.Result
	case models.TaskStatusFailure:
		detail, _ := json.Marshal(rec.Error)
		view.Result = detail
		view.Error = rec.Error
	}
	return view, nil
}

// ObjectivesResult returns the evaluation of a finished objectives task.
func (s *Service) ObjectivesResult(ctx context.Context, taskID string) (*models.ObjectivesEvaluation, error) {
	raw, err := s.terminalResult(ctx, taskID, models.TaskKindObjectives)
	if err != nil {
		return nil, err
	}
	return decodeStrict[models.ObjectivesEvaluation](raw)
}

// SentimentResult returns the result of a finished sentiment task.
func (s *Service) SentimentResult(ctx context.Context, taskID string) (*models.SentimentResult, error) {
	raw, err := s.terminalResult(ctx, taskID, models.TaskKindSentiment)
	if err != nil {
		return nil, err
	}
	return decodeStrict[models.SentimentResult](raw)
}

func (s *Service) terminalResult(ctx context.Context, taskID, kind string) (json.RawMessage, error) {
	rec, found, err := s.results.GetRecord(ctx, taskID)
	if err != nil {
		if errors.Is(err, cache.ErrMalformedRecord) {
			return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
		return nil, fmt.Errorf("reading task %s: %w", taskID, err)
	}
	if !found || !rec.Terminal() {
		return nil, ErrNotReady
	}
	if rec.Status == models.TaskStatusFailure {
		return nil, &JobFailure{TaskID: taskID, Detail: rec.Error}
	}
	if rec.Kind != kind {
		return nil, fmt.Errorf("%w: task %s is a %q task", ErrSchemaMismatch, taskID, rec.Kind)
	}
	return rec.Result, nil
}

type validator interface {
	Validate() error
}

// decodeStrict decodes raw into T, rejecting unknown fields, trailing data and
// payloads that fail T's own validation.
func decodeStrict[T any, PT interface {
	*T
	validator
}](raw json.RawMessage) (*T, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty result", ErrSchemaMismatch)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	out := new(T)
	if err := dec.Decode(out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after result", ErrSchemaMismatch)
	}
	if err := PT(out).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return out, nil
}

// Snapshot returns the push message for taskID if it already finished.
// The realtime endpoint sends it to clients that subscribe after completion.
func (s *Service) Snapshot(ctx context.Context, taskID string) (models.Notification, bool) {
	rec, found, err := s.results.GetRecord(ctx, taskID)
	if err != nil || !found || !rec.Terminal() {
		return models.Notification{}, false
	}
	return models.NotificationFromRecord(rec), true
}
