package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

// MonitorConfig controls the settlement poller.
type MonitorConfig struct {
	// PollInterval is the time between invoice lookups.
	PollInterval time.Duration
	// RetryDelay is the wait before the single retry after a failed lookup.
	RetryDelay time.Duration
	// Timeout is the absolute wall-clock limit measured from the persisted
	// started entry, so a restart resumes the countdown correctly.
	Timeout time.Duration
}

// DefaultMonitorConfig returns the standard intervals: a 30 s poll, a 5 s
// retry delay, and a 5 minute absolute timeout.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval: 30 * time.Second,
		RetryDelay:   5 * time.Second,
		Timeout:      5 * time.Minute,
	}
}

// Monitor resolves activities whose settlement outcome was not known
// synchronously. Each activity is tracked independently; monitoring one
// never blocks another.
type Monitor struct {
	activities domain.ActivityRepository
	statuses   domain.PaymentStatusRepository
	wallet     domain.Wallet
	events     Notifications
	config     MonitorConfig
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	watching map[uuid.UUID]struct{}
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
}

// NewMonitor creates a settlement monitor polling the wallet's
// invoice-lookup capability.
func NewMonitor(activities domain.ActivityRepository, statuses domain.PaymentStatusRepository, wallet domain.Wallet, events Notifications, config MonitorConfig, logger *slog.Logger) *Monitor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultMonitorConfig().PollInterval
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultMonitorConfig().RetryDelay
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultMonitorConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		activities: activities,
		statuses:   statuses,
		wallet:     wallet,
		events:     events,
		config:     config,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		watching:   make(map[uuid.UUID]struct{}),
	}
}

// SetClock overrides the monitor's clock. Intended for tests.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// Start loads all pending activities that carry an invoice and begins
// tracking each. Safe to call more than once; activities already tracked
// are not tracked twice.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.runCtx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
		m.running = true
	}
	m.mu.Unlock()

	pending, err := m.activities.FindPendingWithInvoice(ctx)
	if err != nil {
		return fmt.Errorf("load pending activities: %w", err)
	}

	for _, activity := range pending {
		m.Watch(activity)
	}

	m.logger.Info("settlement monitor started", "pending", len(pending))
	return nil
}

// Watch begins tracking a single activity. A no-op when the activity is
// already being tracked. The poll runs on the monitor's own context, not
// the caller's, so Stop cancels it no matter who registered it.
func (m *Monitor) Watch(activity *domain.Activity) {
	if activity.Invoice == "" || activity.Status != domain.ActivityPending {
		return
	}

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	if _, exists := m.watching[activity.ID]; exists {
		m.mu.Unlock()
		return
	}
	m.watching[activity.ID] = struct{}{}
	runCtx := m.runCtx
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.watching, activity.ID)
			m.mu.Unlock()
		}()
		m.track(runCtx, activity)
	}()
}

// Stop cancels all outstanding polls and waits for them to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.logger.Info("settlement monitor stopped")
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Watching returns the number of activities currently tracked.
func (m *Monitor) Watching() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watching)
}

func (m *Monitor) track(ctx context.Context, activity *domain.Activity) {
	startedAt, ok := m.startedAt(ctx, activity.Invoice)
	if !ok {
		// Nothing recorded the payment as started; nothing to measure.
		m.logger.Debug("no started entry for invoice, skipping",
			"activity_id", activity.ID,
		)
		return
	}

	deadline := startedAt.Add(m.config.Timeout)
	if !m.now().Before(deadline) {
		m.fail(ctx, activity, "payment timed out")
		return
	}

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.now().Before(deadline) {
				m.fail(ctx, activity, "payment timed out")
				return
			}

			status, err := m.wallet.LookupInvoice(ctx, activity.Invoice)
			if err != nil {
				status, err = m.retryLookup(ctx, activity.Invoice)
				if err != nil {
					m.fail(ctx, activity, "invoice lookup failed")
					return
				}
			}
			if status.Settled() {
				m.complete(ctx, activity)
				return
			}
		}
	}
}

// retryLookup waits the retry delay and tries the lookup one more time.
func (m *Monitor) retryLookup(ctx context.Context, invoice string) (domain.InvoiceStatus, error) {
	select {
	case <-ctx.Done():
		return domain.InvoiceStatus{}, ctx.Err()
	case <-time.After(m.config.RetryDelay):
	}
	return m.wallet.LookupInvoice(ctx, invoice)
}

// startedAt returns the timestamp of the most recent started entry.
func (m *Monitor) startedAt(ctx context.Context, invoice string) (time.Time, bool) {
	entries, err := m.statuses.ListByInvoice(ctx, invoice)
	if err != nil {
		m.logger.Error("failed to load payment status entries",
			"invoice", invoice,
			"error", err,
		)
		return time.Time{}, false
	}

	var latest time.Time
	found := false
	for _, entry := range entries {
		if entry.ActionType == domain.PaymentStarted && entry.CreatedAt.After(latest) {
			latest = entry.CreatedAt
			found = true
		}
	}
	return latest, found
}

func (m *Monitor) complete(ctx context.Context, activity *domain.Activity) {
	m.finish(ctx, activity, domain.ActivityPositive, "payment completed", domain.PaymentCompleted)
}

func (m *Monitor) fail(ctx context.Context, activity *domain.Activity, detail string) {
	m.finish(ctx, activity, domain.ActivityNegative, detail, domain.PaymentFailed)
}

func (m *Monitor) finish(ctx context.Context, activity *domain.Activity, status domain.ActivityStatus, detail string, action domain.PaymentActionType) {
	if err := m.activities.UpdateStatus(ctx, activity.ID, status, detail); err != nil {
		m.logger.Error("failed to finish monitored activity",
			"activity_id", activity.ID,
			"error", err,
		)
		return
	}
	if err := m.statuses.Append(ctx, domain.PaymentStatusEntry{
		Invoice:    activity.Invoice,
		ActionType: action,
		CreatedAt:  m.now(),
	}); err != nil {
		m.logger.Error("failed to append payment status",
			"invoice", activity.Invoice,
			"error", err,
		)
	}
	m.events.activityUpdated(ctx, activity.ID, status, detail)

	m.logger.Info("monitored payment resolved",
		"activity_id", activity.ID,
		"status", status,
		"detail", detail,
	)
}
