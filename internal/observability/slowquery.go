package observability

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/search-layout/internal/models"
)

const (
	severityNormal   = "normal"
	severityWarning  = "warning"
	severityCritical = "critical"

	analyticsWriteTimeout = 2 * time.Second
)

// SlowQueryDetector flags analytics reads (breakdowns, curation searches)
// that exceed the configured thresholds. A nil detector is a no-op.
type SlowQueryDetector struct {
	warningThreshold  time.Duration
	criticalThreshold time.Duration
	logger            *zap.Logger
	analyticsWriter   AnalyticsWriter
	now               func() time.Time
}

// AnalyticsWriter persists slow read records. The ClickHouse client
// implements it against the query_performance table.
type AnalyticsWriter interface {
	WriteQueryPerformance(ctx context.Context, event *models.AnalyticsEvent) error
}

func NewSlowQueryDetector(warning, critical time.Duration, logger *zap.Logger, aw AnalyticsWriter) *SlowQueryDetector {
	return &SlowQueryDetector{
		warningThreshold:  warning,
		criticalThreshold: critical,
		logger:            logger,
		analyticsWriter:   aw,
		now:               time.Now,
	}
}

// Intercept records one analytics read. subject is what was read: the window
// for breakdowns, the normalized query for curation searches. Only its hash is
// logged or stored.
func (sqd *SlowQueryDetector) Intercept(ctx context.Context, subject string, queryType string, duration time.Duration, rows int64) {
	if sqd == nil || duration <= sqd.warningThreshold {
		return
	}

	traceID := TraceIDFromContext(ctx)
	severity := sqd.classifySeverity(duration)
	hash := models.QueryHash(subject)

	SlowQueryCounter.WithLabelValues(severity, queryType).Inc()

	sqd.logger.Warn("slow analytics read",
		zap.String("trace_id", traceID),
		zap.String("query_hash", hash),
		zap.String("query_type", queryType),
		zap.Int64("duration_ms", duration.Milliseconds()),
		zap.Int64("rows", rows),
		zap.String("severity", severity),
	)

	if sqd.analyticsWriter == nil {
		return
	}

	event := &models.AnalyticsEvent{
		EventType:  "query_performance",
		QueryHash:  hash,
		QueryType:  queryType,
		DurationMs: float64(duration.Milliseconds()),
		Rows:       rows,
		Timestamp:  sqd.now().UTC(),
		TraceID:    traceID,
	}

	// The caller's context is usually about to be cancelled, so the write
	// gets its own deadline.
	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), analyticsWriteTimeout)
		defer cancel()
		if err := sqd.analyticsWriter.WriteQueryPerformance(writeCtx, event); err != nil {
			sqd.logger.Error("writing slow read record failed",
				zap.String("trace_id", traceID),
				zap.Error(err),
			)
		}
	}()
}

func (sqd *SlowQueryDetector) classifySeverity(d time.Duration) string {
	switch {
	case d > sqd.criticalThreshold:
		return severityCritical
	case d > sqd.warningThreshold:
		return severityWarning
	default:
		return severityNormal
	}
}
