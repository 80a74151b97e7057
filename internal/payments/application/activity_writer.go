package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

// ActivityBuilder produces one candidate activity record. Builders are
// ordered from richest to barest; later builders omit enrichment data that
// may be unavailable or unstorable.
type ActivityBuilder func() *domain.Activity

// ActivityWriter persists ledger entries with a tiered fallback: builders
// are tried in order until one persists. Losing the settlement outcome is
// worse than losing enrichment detail, so the write degrades rather than
// aborts.
type ActivityWriter struct {
	activities domain.ActivityRepository
	events     Notifications
	logger     *slog.Logger
}

// NewActivityWriter creates a tiered activity writer.
func NewActivityWriter(activities domain.ActivityRepository, events Notifications, logger *slog.Logger) *ActivityWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityWriter{activities: activities, events: events, logger: logger}
}

// Write persists the first builder that succeeds and announces it on the
// bus. An error is returned only when every tier fails.
func (w *ActivityWriter) Write(ctx context.Context, builders ...ActivityBuilder) (*domain.Activity, error) {
	var lastErr error
	for tier, build := range builders {
		activity := build()
		if activity == nil {
			continue
		}
		if err := w.activities.Add(ctx, activity); err != nil {
			lastErr = err
			w.logger.Warn("activity write failed, degrading",
				"tier", tier,
				"activity_id", activity.ID,
				"error", err,
			)
			continue
		}
		if tier > 0 {
			w.logger.Info("activity persisted with degraded detail",
				"tier", tier,
				"activity_id", activity.ID,
			)
		}
		w.events.activityAdded(ctx, activity)
		return activity, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no activity builders provided")
	}
	return nil, fmt.Errorf("all activity write tiers failed: %w", lastErr)
}
