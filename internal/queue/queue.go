// Package queue is the durable work queue between the submission API and the worker pool.
package queue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClosed is returned when using a broker after Close.
	ErrClosed = errors.New("queue closed")
	// ErrFull is returned by bounded brokers that cannot accept another message.
	ErrFull = errors.New("queue full")
)

// TaskMessage is the work item for one task. It carries everything a worker needs;
// workers never read the submission request.
type TaskMessage struct {
	TaskID             string    `json:"task_id"`
	Kind               string    `json:"kind"`
	TenantID           string    `json:"tenant_id,omitempty"`
	ModelName          string    `json:"model_name,omitempty"`
	Content            string    `json:"content"`
	SpecificObjectives []string  `json:"specific_objectives,omitempty"`
	EnqueuedAt         time.Time `json:"enqueued_at"`
}

// Broker publishes task messages and hands them to consumers with manual acknowledgement.
type Broker interface {
	Publish(ctx context.Context, msg TaskMessage) error
	// Consume streams deliveries until ctx is cancelled or the broker closes.
	Consume(ctx context.Context) (<-chan Delivery, error)
	Ping(ctx context.Context) error
	Close() error
}

// Delivery is one received message. Exactly one of Ack or Nack must be called.
type Delivery struct {
	Message TaskMessage
	// Redelivered is set when the broker has handed this message out before.
	Redelivered bool

	ack  func() error
	nack func(requeue bool) error
}

// NewDelivery builds a Delivery around broker-specific acknowledgement callbacks.
func NewDelivery(msg TaskMessage, redelivered bool, ack func() error, nack func(requeue bool) error) Delivery {
	return Delivery{Message: msg, Redelivered: redelivered, ack: ack, nack: nack}
}

func (d Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nack rejects the delivery. With requeue the broker hands it out again.
func (d Delivery) Nack(requeue bool) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(requeue)
}
