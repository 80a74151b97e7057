// Package rates wraps currency conversion with a circuit breaker so a
// failing rate provider cannot stall every fiat settlement attempt.
package rates

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/voltmesh/satchel/internal/payments/domain"
)

// BreakerConfig configures the conversion circuit breaker.
type BreakerConfig struct {
	// MaxRequests is the number of probe requests allowed while half-open.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	// FailureThreshold trips the breaker after this many consecutive
	// failures.
	FailureThreshold uint32
}

// DefaultBreakerConfig returns the standard breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerRateService decorates a RateService with a circuit breaker.
// When the breaker is open, conversions fail fast; callers already treat
// conversion failure as "cannot verify", so an open breaker declines
// rather than approving on stale data.
type BreakerRateService struct {
	inner   domain.RateService
	breaker *gobreaker.CircuitBreaker[float64]
	logger  *slog.Logger
}

// NewBreakerRateService wraps the given rate service.
func NewBreakerRateService(inner domain.RateService, config BreakerConfig, logger *slog.Logger) *BreakerRateService {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        "rate-service",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("rate service breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	return &BreakerRateService{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[float64](settings),
		logger:  logger,
	}
}

// ConvertAmount converts through the breaker.
func (s *BreakerRateService) ConvertAmount(ctx context.Context, amount float64, from, to string) (float64, error) {
	return s.breaker.Execute(func() (float64, error) {
		return s.inner.ConvertAmount(ctx, amount, from, to)
	})
}
