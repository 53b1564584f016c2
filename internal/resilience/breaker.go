package resilience

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/shubhsaxena/search-layout/internal/config"
	"github.com/shubhsaxena/search-layout/internal/observability"
)

// NewCircuitBreaker guards one analytics backend. It trips after
// FailureThreshold consecutive failures and reports its state as a gauge
// labelled with name.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	observability.CircuitBreakerState.WithLabelValues(name).Set(stateValue(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("backend", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			observability.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Do runs fn with retries inside the circuit breaker. The whole retry loop
// counts as one breaker request, so a read that needed retries but succeeded
// does not move the breaker toward open.
func Do[T any](ctx context.Context, cb *gobreaker.CircuitBreaker, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	out, err := cb.Execute(func() (any, error) {
		var result T
		retryErr := Retry(ctx, cfg, func() error {
			var execErr error
			result, execErr = fn()
			return execErr
		})
		return result, retryErr
	})
	if err != nil {
		return zero, err
	}
	result, ok := out.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected result type %T from circuit breaker", out)
	}
	return result, nil
}
