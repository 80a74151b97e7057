package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

// ReconcilerConfig controls the background sweep of stale pending
// activities.
type ReconcilerConfig struct {
	// SweepInterval is the time between sweeps.
	SweepInterval time.Duration
	// Timeout is the settlement window measured from the persisted started
	// entry. Pending activities past the window are failed.
	Timeout time.Duration
}

// DefaultReconcilerConfig returns the standard sweep settings.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		SweepInterval: time.Minute,
		Timeout:       DefaultMonitorConfig().Timeout,
	}
}

// ReconcilerStats is a snapshot of sweep progress.
type ReconcilerStats struct {
	IsRunning   bool
	SweepCount  int64
	FailedCount int64
	LastSweepAt time.Time
	LastError   string
}

// Reconciler fails pending activities whose settlement window lapsed while
// no process was watching them, typically after a crash or restart. It
// needs no wallet access: the persisted started entry alone decides
// whether the window has passed.
type Reconciler struct {
	activities domain.ActivityRepository
	statuses   domain.PaymentStatusRepository
	events     Notifications
	config     ReconcilerConfig
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	stats   ReconcilerStats
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewReconciler creates a stale-settlement reconciler.
func NewReconciler(activities domain.ActivityRepository, statuses domain.PaymentStatusRepository, events Notifications, config ReconcilerConfig, logger *slog.Logger) *Reconciler {
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultReconcilerConfig().SweepInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultReconcilerConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		activities: activities,
		statuses:   statuses,
		events:     events,
		config:     config,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the reconciler's clock. Intended for tests.
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// Start begins sweeping in the background until Stop or context
// cancellation.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler already running")
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.running = true
	r.stats.IsRunning = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.config.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				failed, err := r.Sweep(ctx)
				r.record(failed, err)
			}
		}
	}()

	r.logger.Info("settlement reconciler started",
		"sweep_interval", r.config.SweepInterval,
		"timeout", r.config.Timeout,
	)
	return nil
}

// Stop halts sweeping and waits for the in-flight sweep to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.stats.IsRunning = false
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	r.logger.Info("settlement reconciler stopped")
}

// GetStats returns a snapshot of sweep progress.
func (r *Reconciler) GetStats() ReconcilerStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Sweep fails every pending activity whose settlement window has lapsed
// and returns how many were failed.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	pending, err := r.activities.FindPendingWithInvoice(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pending activities: %w", err)
	}

	failed := 0
	for _, activity := range pending {
		startedAt, ok := r.startedAt(ctx, activity.Invoice)
		if !ok {
			continue
		}
		if r.now().Before(startedAt.Add(r.config.Timeout)) {
			continue
		}
		if err := r.fail(ctx, activity); err != nil {
			r.logger.Error("failed to reconcile stale activity",
				"activity_id", activity.ID,
				"error", err,
			)
			continue
		}
		failed++
	}
	return failed, nil
}

func (r *Reconciler) startedAt(ctx context.Context, invoice string) (time.Time, bool) {
	entries, err := r.statuses.ListByInvoice(ctx, invoice)
	if err != nil {
		r.logger.Error("failed to load payment status entries",
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

func (r *Reconciler) fail(ctx context.Context, activity *domain.Activity) error {
	const detail = "payment timed out"
	if err := r.activities.UpdateStatus(ctx, activity.ID, domain.ActivityNegative, detail); err != nil {
		return err
	}
	if err := r.statuses.Append(ctx, domain.PaymentStatusEntry{
		Invoice:    activity.Invoice,
		ActionType: domain.PaymentFailed,
		CreatedAt:  r.now(),
	}); err != nil {
		r.logger.Error("failed to append payment status",
			"invoice", activity.Invoice,
			"error", err,
		)
	}
	r.events.activityUpdated(ctx, activity.ID, domain.ActivityNegative, detail)

	r.logger.Info("stale pending activity failed",
		"activity_id", activity.ID,
		"invoice", activity.Invoice,
	)
	return nil
}

func (r *Reconciler) record(failed int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.SweepCount++
	r.stats.FailedCount += int64(failed)
	r.stats.LastSweepAt = r.now()
	if err != nil {
		r.stats.LastError = err.Error()
	} else {
		r.stats.LastError = ""
	}
}
