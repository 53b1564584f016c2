package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/shubhsaxena/search-layout/internal/models"
	"github.com/shubhsaxena/search-layout/internal/orchestrator"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type ESHealthChecker interface {
	HealthCheck(ctx context.Context) (string, error)
}

// HealthHandler reports liveness and readiness. Only critical components
// fail readiness; analytics backends are optional and at worst degrade it.
type HealthHandler struct {
	checks   map[string]HealthChecker
	critical map[string]bool
	esCheck  ESHealthChecker
	logger   *zap.Logger
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checks:   make(map[string]HealthChecker),
		critical: make(map[string]bool),
		logger:   logger,
	}
}

func (h *HealthHandler) Register(name string, checker HealthChecker) {
	h.checks[name] = checker
}

func (h *HealthHandler) RegisterCritical(name string, checker HealthChecker) {
	h.checks[name] = checker
	h.critical[name] = true
}

func (h *HealthHandler) RegisterES(checker ESHealthChecker) {
	h.esCheck = checker
}

type componentHealth struct {
	Status   string `json:"status"`
	Critical bool   `json:"critical,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	results := make(map[string]componentHealth)
	var mu sync.Mutex
	record := func(name string, ch componentHealth) {
		mu.Lock()
		results[name] = ch
		mu.Unlock()
	}

	p := pool.New().WithMaxGoroutines(8)
	for name, checker := range h.checks {
		p.Go(func() {
			start := time.Now()
			err := checker.HealthCheck(ctx)
			ch := componentHealth{
				Status:   "healthy",
				Critical: h.critical[name],
				Latency:  time.Since(start).String(),
			}
			if err != nil {
				ch.Status = "unhealthy"
				ch.Error = err.Error()
			}
			record(name, ch)
		})
	}

	if h.esCheck != nil {
		p.Go(func() {
			start := time.Now()
			status, err := h.esCheck.HealthCheck(ctx)
			ch := componentHealth{
				Status:  status,
				Latency: time.Since(start).String(),
			}
			if err != nil {
				ch.Error = err.Error()
			}
			record("elasticsearch", ch)
		})
	}

	p.Wait()

	overallStatus := http.StatusOK
	overall := "healthy"
	for name, ch := range results {
		if ch.Status != "unhealthy" && ch.Status != "red" {
			continue
		}
		if ch.Critical {
			overallStatus = http.StatusServiceUnavailable
			overall = "unavailable"
			break
		}
		overall = "degraded"
		h.logger.Debug("optional component unhealthy", zap.String("component", name))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(overallStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":     overall,
		"components": results,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// ClassifierCheck runs a canary query through the classifier tables and
// verifies the result, catching a broken keyword or layout table at startup.
type ClassifierCheck struct {
	classifier *orchestrator.IntentClassifier
	layouts    *orchestrator.LayoutSelector
}

func NewClassifierCheck() *ClassifierCheck {
	return &ClassifierCheck{
		classifier: orchestrator.NewIntentClassifier(),
		layouts:    orchestrator.NewLayoutSelector(),
	}
}

func (c *ClassifierCheck) HealthCheck(_ context.Context) error {
	const canary = "How to make matcha"
	if got := c.classifier.Classify(canary); got != models.IntentHowTo {
		return fmt.Errorf("canary %q classified as %s, want %s", canary, got, models.IntentHowTo)
	}
	for _, intent := range c.classifier.Intents() {
		if n := len(c.layouts.Select(intent).Modules); n != len(models.AllModules()) {
			return fmt.Errorf("intent %s has %d layout entries, want %d", intent, n, len(models.AllModules()))
		}
	}
	return nil
}
