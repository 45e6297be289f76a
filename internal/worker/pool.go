// Package worker consumes task messages from the work queue and runs them.
//
// Each task goes through one pipeline: skip if already terminal, mark STARTED, run the
// handler under a timeout, then finalize. Finalize writes the terminal record, publishes
// the notification, updates the ledger and acknowledges the message, in that order.
// Failures are published even when the record write fails.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/aigrader/internal/broadcast"
	"github.com/kiranshivaraju/aigrader/internal/cache"
	"github.com/kiranshivaraju/aigrader/internal/queue"
	"github.com/kiranshivaraju/aigrader/internal/store"
	"github.com/kiranshivaraju/aigrader/pkg/models"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 4
	DefaultTimeout     = 300 * time.Second
)

// Ledger receives best-effort status updates for the task ledger.
type Ledger interface {
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status string, opts ...store.TaskUpdateOption) error
}

// Pool runs a fixed number of workers over one queue consumer.
type Pool struct {
	broker      queue.Broker
	results     cache.ResultStore
	publisher   broadcast.Publisher
	handlers    map[string]Handler
	ledger      Ledger
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

type Option func(*Pool)

func WithConcurrency(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithTimeout bounds each handler run.
func WithTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLedger enables task ledger updates.
func WithLedger(l Ledger) Option {
	return func(p *Pool) { p.ledger = l }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPool(broker queue.Broker, results cache.ResultStore, publisher broadcast.Publisher, handlers map[string]Handler, opts ...Option) *Pool {
	p := &Pool{
		broker:      broker,
		results:     results,
		publisher:   publisher,
		handlers:    handlers,
		concurrency: DefaultConcurrency,
		timeout:     DefaultTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes until ctx is cancelled or the broker closes the delivery stream.
// In-flight tasks are finished before Run returns.
func (p *Pool) Run(ctx context.Context) error {
	deliveries, err := p.broker.Consume(ctx)
	if err != nil {
		return fmt.Errorf("starting consumer: %w", err)
	}

	p.logger.Info("worker pool started", "concurrency", p.concurrency, "timeout", p.timeout)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.concurrency; i++ {
		g.Go(func() error {
			for d := range deliveries {
				p.process(gctx, d)
			}
			return nil
		})
	}
	err = g.Wait()
	p.logger.Info("worker pool stopped")
	return err
}

func (p *Pool) process(ctx context.Context, d queue.Delivery) {
	msg := d.Message
	log := p.logger.With("task_id", msg.TaskID, "kind", msg.Kind)

	rec, found, err := p.results.GetRecord(ctx, msg.TaskID)
	if err != nil && !errors.Is(err, cache.ErrMalformedRecord) {
		log.Error("reading task record", "error", err)
		p.nack(log, d)
		return
	}
	if found && rec.Terminal() {
		log.Info("task already finished, skipping redelivery", "status", rec.Status)
		p.ack(log, d)
		return
	}

	if err := p.results.MarkStarted(ctx, msg.TaskID, msg.Kind); err != nil {
		if errors.Is(err, cache.ErrTerminalState) {
			p.ack(log, d)
			return
		}
		log.Warn("marking task started", "error", err)
	}
	p.updateLedger(ctx, log, msg.TaskID, models.TaskStatusStarted, "")

	start := time.Now()
	outcome := p.execute(ctx, msg)

	if ctx.Err() != nil && errors.Is(outcome.Err, context.Canceled) {
		log.Warn("task interrupted by shutdown, requeueing")
		if err := d.Nack(true); err != nil {
			log.Error("nack failed", "error", err)
		}
		return
	}

	log.Info("task finished", "status", outcome.Status(), "duration", time.Since(start))
	p.finalize(context.WithoutCancel(ctx), log, d, outcome)
}

// execute runs the handler for msg's kind. Panics and missing handlers become failures.
func (p *Pool) execute(ctx context.Context, msg queue.TaskMessage) (out Outcome) {
	handler, ok := p.handlers[msg.Kind]
	if !ok {
		return Failed(fmt.Errorf("no handler for task kind %q", msg.Kind))
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic in task handler", "task_id", msg.TaskID, "error", r)
			out = Failed(fmt.Errorf("panic: %v", r))
		}
	}()

	out = handler(runCtx, msg)
	if out.Err == nil && out.Result == nil {
		out = Failed(errors.New("handler returned no result"))
	}
	return out
}

// finalize persists, publishes, records and acknowledges, in that order.
//
// A failure is always published, even when the record could not be written. A success
// whose record could not be written is published as a failure once the delivery is
// dropped.
func (p *Pool) finalize(ctx context.Context, log *slog.Logger, d queue.Delivery, outcome Outcome) {
	msg := d.Message
	rec := outcome.record(msg.TaskID, msg.Kind)

	if err := p.results.Complete(ctx, rec); err != nil {
		if errors.Is(err, cache.ErrTerminalState) {
			log.Info("task already finished by another worker")
			p.ack(log, d)
			return
		}
		log.Error("writing task result", "error", err, "redelivered", d.Redelivered)

		switch {
		case rec.Status == models.TaskStatusFailure:
			p.publish(ctx, log, models.NotificationFromRecord(rec))
		case d.Redelivered:
			p.publish(ctx, log, models.Notification{
				TaskID: msg.TaskID,
				Kind:   msg.Kind,
				Status: models.TaskStatusFailure,
				Error:  fmt.Sprintf("storing result: %v", err),
			})
		}
		if d.Redelivered {
			detail := rec.Error
			if detail == "" {
				detail = fmt.Sprintf("storing result: %v", err)
			}
			p.updateLedger(ctx, log, msg.TaskID, models.TaskStatusFailure, detail)
		}
		p.nack(log, d)
		return
	}

	p.publish(ctx, log, models.NotificationFromRecord(rec))
	p.updateLedger(ctx, log, msg.TaskID, rec.Status, rec.Error)
	p.ack(log, d)
}

// publish is best effort: the result store, not the broadcast channel, is authoritative.
func (p *Pool) publish(ctx context.Context, log *slog.Logger, n models.Notification) {
	if err := p.publisher.Publish(ctx, n); err != nil {
		log.Warn("publishing notification", "status", n.Status, "error", err)
	}
}

func (p *Pool) updateLedger(ctx context.Context, log *slog.Logger, taskID, status, detail string) {
	if p.ledger == nil {
		return
	}
	id, err := uuid.Parse(taskID)
	if err != nil {
		return
	}
	var opts []store.TaskUpdateOption
	if detail != "" {
		opts = append(opts, store.WithErrorMessage(detail))
	}
	err = p.ledger.UpdateTaskStatus(ctx, id, status, opts...)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidTransition):
		log.Debug("ledger update skipped", "status", status, "error", err)
	default:
		log.Warn("updating task ledger", "status", status, "error", err)
	}
}

func (p *Pool) ack(log *slog.Logger, d queue.Delivery) {
	if err := d.Ack(); err != nil {
		log.Error("ack failed", "error", err)
	}
}

// nack requeues a delivery once. A message that was already redelivered is dropped.
func (p *Pool) nack(log *slog.Logger, d queue.Delivery) {
	if err := d.Nack(!d.Redelivered); err != nil {
		log.Error("nack failed", "error", err)
	}
}
