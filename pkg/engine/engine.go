// Package engine assembles the reconciliation services from configuration.
// The embedding application supplies its stores and platform adapters and
// gets back the wired dispatcher, settlement monitor, and reconciler.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/voltmesh/satchel/internal/payments/application"
	"github.com/voltmesh/satchel/internal/payments/domain"
	"github.com/voltmesh/satchel/internal/payments/infrastructure/lock"
	"github.com/voltmesh/satchel/internal/payments/infrastructure/rates"
	"github.com/voltmesh/satchel/internal/shared/infrastructure/eventbus"
	"github.com/voltmesh/satchel/pkg/config"
)

// Deps are the collaborators the embedding application supplies. The
// stores come from the persistence package; the rest are platform
// adapters.
type Deps struct {
	Activities    domain.ActivityRepository
	Statuses      domain.PaymentStatusRepository
	Subscriptions domain.SubscriptionRepository
	Markers       domain.RequestMarkerRepository

	// Locks backs the per-subscription processing lock. Ignored when the
	// config names a Redis URL; required otherwise.
	Locks domain.ProcessingLockRepository

	// Wallet performs payments and invoice lookups. Optional; without it
	// payment requests are declined and the settlement monitor is not
	// built.
	Wallet domain.Wallet

	// Notifier reports resolutions back to the requesting counterparty.
	Notifier domain.Notifier

	// Rates converts fiat declared amounts. Optional; without it fiat
	// requests are declined.
	Rates domain.RateService

	// Wallets resolves ecash wallets by mint and unit. Optional.
	Wallets domain.WalletRegistry

	// Grants is the signer capability allow-list. Optional.
	Grants domain.PermissionGrants

	// Publisher fans ledger events out to the UI. Optional.
	Publisher eventbus.Publisher

	Logger *slog.Logger
}

// Engine bundles the wired application services.
type Engine struct {
	dispatcher *application.Dispatcher
	monitor    *application.Monitor
	reconciler *application.Reconciler
	locks      domain.ProcessingLockRepository
	redis      *redis.Client
}

// New wires the engine from configuration. When cfg.RedisURL is set the
// per-subscription lock uses Redis leases instead of Deps.Locks, and any
// rate service is wrapped in a circuit breaker so a failing provider
// declines instead of stalling settlement.
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Activities == nil || deps.Statuses == nil || deps.Subscriptions == nil || deps.Markers == nil {
		return nil, errors.New("activity, payment status, subscription, and marker stores are required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("notifier is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	locks := deps.Locks
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		locks = lock.NewRedisLockRepository(redisClient, cfg.LockLease)
	}
	if locks == nil {
		return nil, errors.New("lock repository is required without a redis url")
	}

	rateService := deps.Rates
	if rateService != nil {
		rateService = rates.NewBreakerRateService(rateService, rates.DefaultBreakerConfig(), logger)
	}

	events := application.NewNotifications(deps.Publisher, logger)
	normalizer := application.NewNormalizer(rateService, logger)
	matcher := application.NewToleranceMatcher(application.ToleranceConfig{
		SmallBand:        cfg.ToleranceSmallBand,
		LargeBand:        cfg.ToleranceLargeBand,
		BandBoundaryMsat: cfg.ToleranceBoundaryMsat,
	}, rateService, logger)
	validator := application.NewValidator(deps.Subscriptions)
	lockManager := application.NewLockManager(locks, application.LockConfig{
		Attempts: cfg.LockAttempts,
		Backoff:  cfg.LockBackoff,
	}, logger)
	writer := application.NewActivityWriter(deps.Activities, events, logger)

	executor := application.NewExecutor(application.ExecutorDeps{
		Activities:        deps.Activities,
		Statuses:          deps.Statuses,
		Subscriptions:     deps.Subscriptions,
		Writer:            writer,
		Normalizer:        normalizer,
		Matcher:           matcher,
		Validator:         validator,
		Locks:             lockManager,
		Notifier:          deps.Notifier,
		Events:            events,
		PreferredCurrency: cfg.PreferredCurrency,
		Logger:            logger,
	})

	var monitor *application.Monitor
	if deps.Wallet != nil {
		monitor = application.NewMonitor(deps.Activities, deps.Statuses, deps.Wallet, events, application.MonitorConfig{
			PollInterval: cfg.MonitorPollInterval,
			RetryDelay:   cfg.MonitorRetryDelay,
			Timeout:      cfg.MonitorTimeout,
		}, logger)
	}

	reconciler := application.NewReconciler(deps.Activities, deps.Statuses, events, application.ReconcilerConfig{
		SweepInterval: cfg.MonitorPollInterval,
		Timeout:       cfg.MonitorTimeout,
	}, logger)

	dispatcher := application.NewDispatcher(application.DispatcherDeps{
		Markers:       deps.Markers,
		Activities:    deps.Activities,
		Subscriptions: deps.Subscriptions,
		Writer:        writer,
		Executor:      executor,
		Normalizer:    normalizer,
		Wallet:        deps.Wallet,
		Wallets:       deps.Wallets,
		Grants:        deps.Grants,
		Notifier:      deps.Notifier,
		Events:        events,
		Logger:        logger,
	})

	return &Engine{
		dispatcher: dispatcher,
		monitor:    monitor,
		reconciler: reconciler,
		locks:      locks,
		redis:      redisClient,
	}, nil
}

// Dispatcher returns the approve/deny entry point.
func (e *Engine) Dispatcher() *application.Dispatcher {
	return e.dispatcher
}

// Monitor returns the settlement poller, or nil when no wallet was
// supplied.
func (e *Engine) Monitor() *application.Monitor {
	return e.monitor
}

// Reconciler returns the background sweep that fails stale pending
// settlements.
func (e *Engine) Reconciler() *application.Reconciler {
	return e.reconciler
}

// Close releases owned connections. Stores supplied by the caller stay
// open.
func (e *Engine) Close() error {
	if e.redis != nil {
		return e.redis.Close()
	}
	return nil
}
