package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

// LockConfig controls lock acquisition retries.
type LockConfig struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultLockConfig returns the standard retry policy: 5 attempts with a
// fixed 600 ms backoff, roughly 3 s before giving up.
func DefaultLockConfig() LockConfig {
	return LockConfig{Attempts: 5, Backoff: 600 * time.Millisecond}
}

// LockManager serializes concurrent settlement attempts per subscription.
// It is the sole serialization point: unrelated subscriptions settle in
// parallel.
type LockManager struct {
	locks  domain.ProcessingLockRepository
	config LockConfig
	logger *slog.Logger
}

// NewLockManager creates a lock manager.
func NewLockManager(locks domain.ProcessingLockRepository, config LockConfig, logger *slog.Logger) *LockManager {
	if config.Attempts <= 0 {
		config.Attempts = DefaultLockConfig().Attempts
	}
	if config.Backoff <= 0 {
		config.Backoff = DefaultLockConfig().Backoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LockManager{locks: locks, config: config, logger: logger}
}

// WithLock runs fn while holding the per-subscription advisory lock.
// When all attempts fail it returns ErrLockTimeout; callers treat that as
// "someone else is handling it", not a payment failure. The lock is always
// released when fn returns.
func (m *LockManager) WithLock(ctx context.Context, subscriptionID uuid.UUID, fn func(ctx context.Context) error) error {
	acquired := false
	for attempt := 1; attempt <= m.config.Attempts; attempt++ {
		ok, err := m.locks.TryAcquire(ctx, subscriptionID)
		if err != nil {
			return err
		}
		if ok {
			acquired = true
			break
		}
		if attempt == m.config.Attempts {
			break
		}

		m.logger.Debug("subscription locked, retrying",
			"subscription_id", subscriptionID,
			"attempt", attempt,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.config.Backoff):
		}
	}
	if !acquired {
		return domain.ErrLockTimeout
	}

	defer func() {
		if err := m.locks.Release(ctx, subscriptionID); err != nil {
			m.logger.Error("failed to release processing lock",
				"subscription_id", subscriptionID,
				"error", err,
			)
		}
	}()

	return fn(ctx)
}
