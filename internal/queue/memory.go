package queue

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity bounds a MemoryBroker created with capacity 0.
const DefaultMemoryCapacity = 1024

type memoryEntry struct {
	msg         TaskMessage
	redelivered bool
}

// MemoryBroker is an in-process Broker for embedded single-process runs and tests.
// Messages do not survive a restart.
type MemoryBroker struct {
	mu     sync.RWMutex
	ch     chan memoryEntry
	closed bool

	statsMu   sync.Mutex
	published int
	acked     int
	nacked    int
}

func NewMemoryBroker(capacity int) *MemoryBroker {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryBroker{ch: make(chan memoryEntry, capacity)}
}

func (b *MemoryBroker) Publish(ctx context.Context, msg TaskMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.enqueue(memoryEntry{msg: msg}); err != nil {
		return err
	}
	b.statsMu.Lock()
	b.published++
	b.statsMu.Unlock()
	return nil
}

func (b *MemoryBroker) enqueue(e memoryEntry) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case b.ch <- e:
		return nil
	default:
		return ErrFull
	}
}

// Consume may be called more than once; consumers compete for messages.
func (b *MemoryBroker) Consume(ctx context.Context) (<-chan Delivery, error) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case e, ok := <-b.ch:
				if !ok {
					return
				}
				select {
				case out <- b.delivery(e):
				case <-ctx.Done():
					_ = b.enqueue(memoryEntry{msg: e.msg, redelivered: true})
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *MemoryBroker) delivery(e memoryEntry) Delivery {
	var once sync.Once
	settle := func(fn func() error) error {
		var err error
		once.Do(func() { err = fn() })
		return err
	}
	return NewDelivery(e.msg, e.redelivered,
		func() error {
			return settle(func() error {
				b.statsMu.Lock()
				b.acked++
				b.statsMu.Unlock()
				return nil
			})
		},
		func(requeue bool) error {
			return settle(func() error {
				b.statsMu.Lock()
				b.nacked++
				b.statsMu.Unlock()
				if requeue {
					return b.enqueue(memoryEntry{msg: e.msg, redelivered: true})
				}
				return nil
			})
		},
	)
}

func (b *MemoryBroker) Ping(_ context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	return nil
}

// Len returns the number of messages waiting for a consumer.
func (b *MemoryBroker) Len() int {
	return len(b.ch)
}

// Published returns the number of messages accepted by Publish.
func (b *MemoryBroker) Published() int {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.published
}

// Acked returns the number of acknowledged deliveries.
func (b *MemoryBroker) Acked() int {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.acked
}

// Nacked returns the number of rejected deliveries.
func (b *MemoryBroker) Nacked() int {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.nacked
}
