// Package broadcast carries task completion notifications from workers to the
// front process over a single Redis Pub/Sub channel.
//
// Delivery is at-most-once: a message published while no subscriber is listening is gone,
// and a new subscription starts empty.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/kiranshivaraju/aigrader/pkg/models"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the channel shared by every task kind.
const DefaultChannel = "task_results"

// ErrClosed is returned when publishing on a closed broadcaster.
var ErrClosed = errors.New("broadcast channel closed")

// Publisher sends notifications to every current subscriber.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// Subscriber opens a subscription to the channel.
type Subscriber interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is a live, unbounded stream of raw messages.
// Close must be called on every exit path; it releases the underlying connection.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// RedisBroadcaster publishes and subscribes on one Redis Pub/Sub channel.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

func NewRedisBroadcaster(client *redis.Client, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroadcaster{client: client, channel: channel}
}

// Channel returns the channel name.
func (b *RedisBroadcaster) Channel() string {
	return b.channel
}

func (b *RedisBroadcaster) Publish(ctx context.Context, n models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe blocks until Redis confirms the subscription, so nothing published after
// it returns is missed.
func (b *RedisBroadcaster) Subscribe(ctx context.Context) (Subscription, error) {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}

	sub := &redisSubscription{ps: ps, out: make(chan []byte)}
	go sub.pump(ps.Channel())
	return sub, nil
}

type redisSubscription struct {
	ps        *redis.PubSub
	out       chan []byte
	closeOnce sync.Once
}

// pump copies payloads from the go-redis channel until it is closed.
func (s *redisSubscription) pump(in <-chan *redis.Message) {
	defer close(s.out)
	for msg := range in {
		s.out <- []byte(msg.Payload)
	}
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.ps.Close()
		// Unblock pump if the consumer stopped reading.
		go func() {
			for range s.out {
			}
		}()
	})
	return err
}
