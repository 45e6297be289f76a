package queue

import (
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/aigrader/internal/config"
)

// Connect opens the broker selected by cfg.Driver. prefetch bounds unacknowledged
// deliveries and is normally the worker concurrency.
func Connect(cfg config.QueueConfig, prefetch int, logger *slog.Logger) (Broker, error) {
	switch cfg.Driver {
	case "rabbitmq":
		return NewRabbitMQ(RabbitMQConfig{
			URL:        cfg.URL,
			Exchange:   cfg.Exchange,
			Queue:      cfg.Name,
			RoutingKey: cfg.RoutingKey,
			Prefetch:   prefetch,
			Logger:     logger,
		})
	case "memory":
		return NewMemoryBroker(DefaultMemoryCapacity), nil
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
	}
}
