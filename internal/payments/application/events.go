package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/satchel/internal/payments/domain"
	"github.com/voltmesh/satchel/internal/shared/infrastructure/eventbus"
)

// Notifications emits fire-and-forget UI-refresh events. Publish failures
// are logged and swallowed; the core does not depend on subscribers.
type Notifications struct {
	bus    eventbus.Publisher
	logger *slog.Logger
}

func NewNotifications(bus eventbus.Publisher, logger *slog.Logger) Notifications {
	if bus == nil {
		bus = eventbus.NewNoopPublisher(logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Notifications{bus: bus, logger: logger}
}

func (n Notifications) emit(ctx context.Context, routingKey string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("failed to marshal event", "routing_key", routingKey, "error", err)
		return
	}
	if err := n.bus.Publish(ctx, routingKey, payload); err != nil {
		n.logger.Warn("failed to publish event", "routing_key", routingKey, "error", err)
	}
}

func (n Notifications) activityAdded(ctx context.Context, activity *domain.Activity) {
	n.emit(ctx, domain.RoutingActivityAdded, domain.ActivityAddedEvent{
		ActivityID: activity.ID,
		Type:       activity.Type,
		Status:     activity.Status,
		OccurredAt: time.Now().UTC(),
	})
}

func (n Notifications) activityUpdated(ctx context.Context, id uuid.UUID, status domain.ActivityStatus, detail string) {
	n.emit(ctx, domain.RoutingActivityUpdated, domain.ActivityUpdatedEvent{
		ActivityID: id,
		Status:     status,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	})
}

func (n Notifications) subscriptionStatusChanged(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus) {
	n.emit(ctx, domain.RoutingSubscriptionStatusChanged, domain.SubscriptionStatusChangedEvent{
		SubscriptionID: id,
		Status:         status,
		OccurredAt:     time.Now().UTC(),
	})
}
