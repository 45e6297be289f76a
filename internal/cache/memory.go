package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kiranshivaraju/aigrader/pkg/models"
)

// MemoryResultStore is an in-process ResultStore without expiry.
// It backs unit tests.
type MemoryResultStore struct {
	mu      sync.Mutex
	records map[string]models.TaskRecord
}

func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{records: make(map[string]models.TaskRecord)}
}

func (m *MemoryResultStore) CreatePending(_ context.Context, taskID, kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[taskID]; ok {
		return nil
	}
	m.records[taskID] = models.TaskRecord{TaskID: taskID, Kind: kind, Status: models.TaskStatusPending}
	return nil
}

func (m *MemoryResultStore) MarkStarted(_ context.Context, taskID, kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[taskID]
	if ok && rec.Terminal() {
		return ErrTerminalState
	}
	rec.TaskID = taskID
	if rec.Kind == "" {
		rec.Kind = kind
	}
	rec.Status = models.TaskStatusStarted
	m.records[taskID] = rec
	return nil
}

func (m *MemoryResultStore) Complete(_ context.Context, next models.TaskRecord) error {
	if !next.Terminal() {
		return fmt.Errorf("complete task %s: status %q is not terminal", next.TaskID, next.Status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[next.TaskID]; ok && rec.Terminal() {
		return ErrTerminalState
	}
	if next.DateDone == nil {
		now := time.Now().UTC()
		next.DateDone = &now
	}
	m.records[next.TaskID] = next
	return nil
}

func (m *MemoryResultStore) GetRecord(_ context.Context, taskID string) (models.TaskRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[taskID]
	return rec, ok, nil
}

// Put stores rec as is, bypassing transition checks.
func (m *MemoryResultStore) Put(rec models.TaskRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.TaskID] = rec
}
