package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kiranshivaraju/aigrader/pkg/models"
)

const memoryBuffer = 64

// MemoryBroadcaster is an in-process Publisher and Subscriber with the same
// at-most-once semantics as the Redis channel: messages published with no
// subscriber are dropped, and so are messages for a subscriber whose buffer is full.
// Used by tests.
type MemoryBroadcaster struct {
	mu     sync.Mutex
	subs   map[*memorySubscription]struct{}
	closed bool
}

func NewMemoryBroadcaster() *MemoryBroadcaster {
	return &MemoryBroadcaster{subs: make(map[*memorySubscription]struct{})}
}

func (b *MemoryBroadcaster) Publish(ctx context.Context, n models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return b.PublishRaw(ctx, data)
}

// PublishRaw sends data unchanged, which lets tests inject malformed messages.
func (b *MemoryBroadcaster) PublishRaw(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	for s := range b.subs {
		select {
		case s.out <- data:
		default:
		}
	}
	return nil
}

func (b *MemoryBroadcaster) Subscribe(_ context.Context) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	s := &memorySubscription{parent: b, out: make(chan []byte, memoryBuffer)}
	b.subs[s] = struct{}{}
	return s, nil
}

// Subscribers returns the number of open subscriptions.
func (b *MemoryBroadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription; their message channels are closed.
func (b *MemoryBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		close(s.out)
	}
}

type memorySubscription struct {
	parent *MemoryBroadcaster
	out    chan []byte
}

func (s *memorySubscription) Messages() <-chan []byte {
	return s.out
}

func (s *memorySubscription) Close() error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	if _, ok := s.parent.subs[s]; ok {
		delete(s.parent.subs, s)
		close(s.out)
	}
	return nil
}
