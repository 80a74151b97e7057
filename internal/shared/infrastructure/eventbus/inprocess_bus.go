package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler consumes a published event.
type Handler func(ctx context.Context, routingKey string, payload []byte)

// InProcessBus is an in-memory event bus for local mode (no RabbitMQ).
// Events are delivered synchronously to registered handlers. Handler
// failures never propagate to publishers.
type InProcessBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *slog.Logger
}

// NewInProcessBus creates a new in-process event bus.
func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for a routing key. The empty key
// subscribes to all events.
func (b *InProcessBus) Subscribe(routingKey string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[routingKey] = append(b.handlers[routingKey], handler)
}

// Publish dispatches the event to all matching handlers synchronously.
func (b *InProcessBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[routingKey])+len(b.handlers[""]))
	handlers = append(handlers, b.handlers[routingKey]...)
	handlers = append(handlers, b.handlers[""]...)
	b.mu.RUnlock()

	start := time.Now()
	for _, handler := range handlers {
		handler(ctx, routingKey, payload)
	}

	b.logger.Debug("event dispatched",
		"routing_key", routingKey,
		"handlers", len(handlers),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
