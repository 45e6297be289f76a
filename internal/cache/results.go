package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kiranshivaraju/aigrader/pkg/models"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrTerminalState is returned when a write targets a record that already reached
	// SUCCESS or FAILURE. Terminal records are never overwritten.
	ErrTerminalState = errors.New("task record already terminal")
	// ErrMalformedRecord is returned when a task key holds data that is not a task record.
	ErrMalformedRecord = errors.New("malformed task record")
	// ErrContention is returned when a record kept changing under an optimistic transaction.
	ErrContention = errors.New("task record contention")
)

const maxTxRetries = 5

// ResultStore holds one status/result record per task with a finite TTL.
// It is the authoritative source for polling clients.
type ResultStore interface {
	// CreatePending writes a PENDING record unless one already exists.
	CreatePending(ctx context.Context, taskID, kind string) error
	// MarkStarted moves a record to STARTED. Returns ErrTerminalState if it already finished.
	MarkStarted(ctx context.Context, taskID, kind string) error
	// Complete writes a terminal record. Returns ErrTerminalState if one already exists.
	Complete(ctx context.Context, rec models.TaskRecord) error
	// GetRecord returns the record for taskID. found is false when the key does not exist.
	GetRecord(ctx context.Context, taskID string) (rec models.TaskRecord, found bool, err error)
}

func (c *RedisCache) CreatePending(ctx context.Context, taskID, kind string) error {
	data, err := json.Marshal(models.TaskRecord{
		TaskID: taskID,
		Kind:   kind,
		Status: models.TaskStatusPending,
	})
	if err != nil {
		return fmt.Errorf("marshal task record: %w", err)
	}
	return c.client.SetNX(ctx, TaskMetaKey(taskID), data, c.resultTTL).Err()
}

func (c *RedisCache) MarkStarted(ctx context.Context, taskID, kind string) error {
	return c.update(ctx, taskID, func(rec *models.TaskRecord, exists bool) error {
		if exists && rec.Terminal() {
			return ErrTerminalState
		}
		rec.TaskID = taskID
		if rec.Kind == "" {
			rec.Kind = kind
		}
		rec.Status = models.TaskStatusStarted
		return nil
	})
}

func (c *RedisCache) Complete(ctx context.Context, next models.TaskRecord) error {
	if !next.Terminal() {
		return fmt.Errorf("complete task %s: status %q is not terminal", next.TaskID, next.Status)
	}
	if next.DateDone == nil {
		now := time.Now().UTC()
		next.DateDone = &now
	}
	return c.update(ctx, next.TaskID, func(rec *models.TaskRecord, exists bool) error {
		if exists && rec.Terminal() {
			return ErrTerminalState
		}
		*rec = next
		return nil
	})
}

func (c *RedisCache) GetRecord(ctx context.Context, taskID string) (models.TaskRecord, bool, error) {
	raw, err := c.client.Get(ctx, TaskMetaKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.TaskRecord{}, false, nil
	}
	if err != nil {
		return models.TaskRecord{}, false, err
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return models.TaskRecord{}, true, err
	}
	return rec, true, nil
}

// update applies mutate to the current record inside a WATCH/MULTI transaction,
// retrying when another writer touched the key in between.
func (c *RedisCache) update(ctx context.Context, taskID string, mutate func(rec *models.TaskRecord, exists bool) error) error {
	key := TaskMetaKey(taskID)

	txf := func(tx *redis.Tx) error {
		var rec models.TaskRecord
		exists := true

		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			exists = false
		case err != nil:
			return err
		default:
			if rec, err = decodeRecord(raw); err != nil {
				return err
			}
		}

		if err := mutate(&rec, exists); err != nil {
			return err
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal task record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.resultTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := c.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

func decodeRecord(raw []byte) (models.TaskRecord, error) {
	var rec models.TaskRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if rec.TaskID == "" || rec.Status == "" {
		return rec, fmt.Errorf("%w: missing task_id or status", ErrMalformedRecord)
	}
	return rec, nil
}
