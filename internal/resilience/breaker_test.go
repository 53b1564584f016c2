package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/shubhsaxena/search-layout/internal/config"
	"github.com/shubhsaxena/search-layout/internal/models"
	"github.com/shubhsaxena/search-layout/internal/observability"
)

func testBreakerConfig(threshold uint32) config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: threshold,
	}
}

func TestNewCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker("test-start", testBreakerConfig(3), zap.NewNop())

	if cb.Name() != "test-start" {
		t.Errorf("expected name test-start, got %s", cb.Name())
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected closed, got %s", cb.State())
	}
	if got := testutil.ToFloat64(observability.CircuitBreakerState.WithLabelValues("test-start")); got != 0 {
		t.Errorf("expected gauge 0, got %v", got)
	}
}

func TestNewCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test-open", testBreakerConfig(2), zap.NewNop())

	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, errors.New("down") })
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected open after 2 failures, got %s", cb.State())
	}
	if got := testutil.ToFloat64(observability.CircuitBreakerState.WithLabelValues("test-open")); got != 2 {
		t.Errorf("expected gauge 2, got %v", got)
	}

	_, err := cb.Execute(func() (any, error) { return nil, nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
}

func TestStateValue(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		want  float64
	}{
		{gobreaker.StateClosed, 0},
		{gobreaker.StateHalfOpen, 1},
		{gobreaker.StateOpen, 2},
	}
	for _, tt := range tests {
		if got := stateValue(tt.state); got != tt.want {
			t.Errorf("stateValue(%s) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestDo_ReturnsTypedResult(t *testing.T) {
	cb := NewCircuitBreaker("do-ok", testBreakerConfig(5), zap.NewNop())

	calls := 0
	got, err := Do(context.Background(), cb, fastRetry(3), func() ([]models.IntentCount, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		return []models.IntentCount{{Intent: models.IntentHowTo, Count: 4}}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Count != 4 {
		t.Errorf("unexpected result %+v", got)
	}
	if cb.Counts().TotalFailures != 0 {
		t.Errorf("a retried success must not count as a breaker failure, got %d", cb.Counts().TotalFailures)
	}
}

func TestDo_PropagatesError(t *testing.T) {
	cb := NewCircuitBreaker("do-fail", testBreakerConfig(5), zap.NewNop())
	sentinel := errors.New("es down")

	got, err := Do(context.Background(), cb, fastRetry(2), func() (*models.CurationResponse, error) {
		return nil, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel, got %v", err)
	}
	if got != nil {
		t.Errorf("expected zero result, got %+v", got)
	}
	if cb.Counts().ConsecutiveFailures != 1 {
		t.Errorf("expected 1 breaker failure for the whole retry loop, got %d", cb.Counts().ConsecutiveFailures)
	}
}

func TestDo_OpenBreakerSkipsCall(t *testing.T) {
	cb := NewCircuitBreaker("do-open", testBreakerConfig(1), zap.NewNop())
	_, _ = Do(context.Background(), cb, fastRetry(1), func() (int, error) { return 0, errors.New("down") })

	called := false
	_, err := Do(context.Background(), cb, fastRetry(1), func() (int, error) {
		called = true
		return 1, nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if called {
		t.Error("open breaker must not call fn")
	}
}
