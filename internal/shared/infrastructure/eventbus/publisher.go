// Package eventbus delivers fire-and-forget UI-refresh notifications.
// The in-process bus is the default; an AMQP publisher mirrors events to a
// topic exchange for remote consumers.
package eventbus

import (
	"context"
	"log/slog"
)

// Publisher sends a serialized event with a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
}

// NoopPublisher discards all events. Used when no bus is configured.
type NoopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher creates a publisher that logs and drops events.
func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

// Publish logs the event at debug level and discards it.
func (p *NoopPublisher) Publish(_ context.Context, routingKey string, _ []byte) error {
	p.logger.Debug("event discarded", "routing_key", routingKey)
	return nil
}
