package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/kiranshivaraju/aigrader/internal/broadcast"
)

var (
	// ErrSubscriptionClosed is returned by Run when the broadcast stream ends on its own.
	ErrSubscriptionClosed = errors.New("broadcast subscription closed")
	// ErrListenerStopped is returned by Ping while the listener holds no subscription.
	ErrListenerStopped = errors.New("notification listener not running")
)

// Listener is the single process-wide subscriber that routes notifications from the
// broadcast channel to the connection watching each task. Messages for tasks nobody
// watches are dropped; nothing is retried.
type Listener struct {
	subscriber broadcast.Subscriber
	registry   *Registry
	logger     *slog.Logger

	running   atomic.Bool
	delivered atomic.Int64
	dropped   atomic.Int64
}

// ListenerStats counts routed messages since start.
type ListenerStats struct {
	Delivered int64 `json:"delivered"`
	Dropped   int64 `json:"dropped"`
}

func NewListener(subscriber broadcast.Subscriber, registry *Registry, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{subscriber: subscriber, registry: registry, logger: logger}
}

// Run subscribes and routes messages until ctx is cancelled. The subscription is
// closed on every return path. A failed subscription is not restarted.
func (l *Listener) Run(ctx context.Context) error {
	sub, err := l.subscriber.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	l.running.Store(true)
	defer l.running.Store(false)

	l.logger.Info("notification listener started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("notification listener stopped")
			return nil
		case raw, ok := <-sub.Messages():
			if !ok {
				return ErrSubscriptionClosed
			}
			l.route(raw)
		}
	}
}

func (l *Listener) route(raw []byte) {
	var head struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &head); err != nil || head.TaskID == "" {
		l.dropped.Add(1)
		l.logger.Warn("dropping malformed notification", "error", err, "bytes", len(raw))
		return
	}

	if !l.registry.Deliver(head.TaskID, raw) {
		l.dropped.Add(1)
		l.logger.Debug("no live connection for notification, dropping",
			"task_id", head.TaskID, "status", head.Status)
		return
	}

	l.delivered.Add(1)
	l.logger.Info("notification pushed", "task_id", head.TaskID, "status", head.Status)
}

// Ping reports whether Run currently holds a subscription.
func (l *Listener) Ping(context.Context) error {
	if !l.running.Load() {
		return ErrListenerStopped
	}
	return nil
}

func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		Delivered: l.delivered.Load(),
		Dropped:   l.dropped.Load(),
	}
}
