package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task statuses. The same values are stored in the result store, carried on
// notifications and persisted in the task ledger.
const (
	TaskStatusPending = "PENDING"
	TaskStatusStarted = "STARTED"
	TaskStatusSuccess = "SUCCESS"
	TaskStatusFailure = "FAILURE"
)

// Task kinds. Each kind has its own worker handler and result schema.
const (
	TaskKindObjectives = "objectives"
	TaskKindSentiment  = "sentiment"
)

// SubmittedStatus is the status string returned to clients on submission.
const SubmittedStatus = "Processing"

var validTaskTransitions = map[string][]string{
	TaskStatusPending: {TaskStatusStarted, TaskStatusSuccess, TaskStatusFailure},
	TaskStatusStarted: {TaskStatusSuccess, TaskStatusFailure},
}

// IsTerminalStatus reports whether status is SUCCESS or FAILURE.
func IsTerminalStatus(status string) bool {
	return status == TaskStatusSuccess || status == TaskStatusFailure
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range validTaskTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsValidKind reports whether kind names a known task kind.
func IsValidKind(kind string) bool {
	return kind == TaskKindObjectives || kind == TaskKindSentiment
}

// Task is a row of the task ledger. It records who submitted what and how it ended;
// the result payload itself lives only in the result store.
type Task struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	TenantID     uuid.UUID  `db:"tenant_id"     json:"tenant_id"`
	Kind         string     `db:"kind"          json:"kind"`
	ModelName    string     `db:"model_name"    json:"model_name,omitempty"`
	Status       string     `db:"status"        json:"status"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// TaskRecord is the result store entry for one task.
type TaskRecord struct {
	TaskID   string          `json:"task_id"`
	Kind     string          `json:"kind"`
	Status   string          `json:"status"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	DateDone *time.Time      `json:"date_done,omitempty"`
}

// Terminal reports whether the record has reached SUCCESS or FAILURE.
func (r TaskRecord) Terminal() bool {
	return IsTerminalStatus(r.Status)
}

// Notification is the message published on the broadcast channel when a task finishes.
// It is ephemeral: nothing stores or redelivers it.
type Notification struct {
	TaskID string          `json:"task_id"`
	Kind   string          `json:"kind,omitempty"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NotificationFromRecord builds the push message for a terminal record.
func NotificationFromRecord(r TaskRecord) Notification {
	return Notification{
		TaskID: r.TaskID,
		Kind:   r.Kind,
		Status: r.Status,
		Result: r.Result,
		Error:  r.Error,
	}
}
