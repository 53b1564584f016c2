package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/search-layout/internal/config"
	"github.com/shubhsaxena/search-layout/internal/models"
	"github.com/shubhsaxena/search-layout/internal/observability"
)

// ErrUnavailable is returned by the analytics reads when the backing store
// was not configured or could not be reached at startup.
var ErrUnavailable = errors.New("analytics backend unavailable")

// EventPublisher ships classification events to the analytics pipeline.
type EventPublisher interface {
	PublishClassification(ctx context.Context, event *models.ClassificationEvent) error
}

// StatsCache serves trending counters and caches breakdown aggregates.
type StatsCache interface {
	TopIntents(ctx context.Context, region string, limit int) ([]models.IntentCount, error)
	GetBreakdown(ctx context.Context, window string) (*models.IntentBreakdown, error)
	SetBreakdown(ctx context.Context, window string, b *models.IntentBreakdown) error
}

// BreakdownQuerier aggregates classification events over a time window.
type BreakdownQuerier interface {
	QueryIntentBreakdown(ctx context.Context, since time.Time) ([]models.IntentCount, error)
}

// CurationSearcher searches queries that fell through to the general intent.
type CurationSearcher interface {
	UnmatchedIndexPattern(region string) string
	SearchUnmatched(ctx context.Context, index string, query map[string]any) (*models.CurationResponse, error)
}

type Orchestrator struct {
	classifier *IntentClassifier
	layouts    *LayoutSelector
	parser     *QueryParser
	builder    *QueryBuilder
	publisher  EventPublisher
	stats      StatsCache
	breakdown  BreakdownQuerier
	curation   CurationSearcher
	slowQuery  *observability.SlowQueryDetector
	cfg        config.AnalyticsConfig
	logger     *zap.Logger
	now        func() time.Time
}

// Backends groups the optional collaborators. Any of them may be nil; the
// classification path never depends on them.
type Backends struct {
	Publisher EventPublisher
	Stats     StatsCache
	Breakdown BreakdownQuerier
	Curation  CurationSearcher
}

func New(
	backends Backends,
	slowQuery *observability.SlowQueryDetector,
	cfg config.AnalyticsConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		classifier: NewIntentClassifier(),
		layouts:    NewLayoutSelector(),
		parser:     NewQueryParser(),
		builder:    NewQueryBuilder(),
		publisher:  backends.Publisher,
		stats:      backends.Stats,
		breakdown:  backends.Breakdown,
		curation:   backends.Curation,
		slowQuery:  slowQuery,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Classify picks the intent and layout for req.Query. It is total over all
// inputs: analytics failures are logged and never surface to the caller.
func (o *Orchestrator) Classify(ctx context.Context, req *models.ClassifyRequest) *models.ClassifyResponse {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "orchestrator.classify")
	defer span.End()

	parsed := o.parser.Parse(req.Query)
	intent, keyword := o.classifier.Match(parsed.Lowered)
	layout := o.layouts.Select(intent)
	fallback := keyword == ""

	took := time.Since(start)
	span.SetAttributes(
		attribute.String("intent", intent.String()),
		attribute.Bool("fallback", fallback),
	)
	observability.ClassificationsTotal.WithLabelValues(intent.String(), matchLabel(fallback)).Inc()
	observability.ClassificationDuration.Observe(took.Seconds())

	o.logger.Debug("query classified",
		zap.String("request_id", req.RequestID),
		zap.String("query_hash", models.QueryHash(parsed.Normalized)),
		zap.String("intent", intent.String()),
		zap.String("keyword", keyword),
	)

	o.publish(ctx, req, parsed, intent, keyword)

	return &models.ClassifyResponse{
		Intent: intent,
		Layout: layout.Modules,
		Render: RenderOrder(layout.Modules),
		Metadata: models.ResponseMetadata{
			RequestID:      req.RequestID,
			MatchedKeyword: keyword,
			Fallback:       fallback,
			TookUs:         took.Microseconds(),
		},
	}
}

func (o *Orchestrator) publish(ctx context.Context, req *models.ClassifyRequest, parsed *models.ParsedQuery, intent models.Intent, keyword string) {
	if o.publisher == nil || !o.cfg.PublishEvents || parsed.Normalized == "" {
		return
	}

	event := &models.ClassificationEvent{
		EventID:        uuid.NewString(),
		Query:          parsed.Normalized,
		QueryHash:      models.QueryHash(parsed.Normalized),
		Tokens:         parsed.Tokens,
		Intent:         intent,
		MatchedKeyword: keyword,
		Fallback:       keyword == "",
		Region:         req.Region,
		UserID:         req.UserID,
		Timestamp:      o.now().UTC(),
	}

	if err := o.publisher.PublishClassification(ctx, event); err != nil {
		observability.EventsPublishedTotal.WithLabelValues("error").Inc()
		o.logger.Warn("publishing classification event failed",
			zap.String("request_id", req.RequestID),
			zap.Error(err),
		)
		return
	}
	observability.EventsPublishedTotal.WithLabelValues("success").Inc()
}

// ListIntents describes every intent in classification order.
func (o *Orchestrator) ListIntents() []models.IntentInfo {
	intents := o.classifier.Intents()
	out := make([]models.IntentInfo, 0, len(intents))
	for _, intent := range intents {
		out = append(out, models.IntentInfo{
			Intent:   intent,
			Examples: o.classifier.Examples(intent),
			Layout:   o.layouts.Select(intent).Modules,
		})
	}
	return out
}

func (o *Orchestrator) Examples(intent models.Intent) []string {
	return o.classifier.Examples(intent)
}

// Keywords returns the match terms for intent in evaluation order.
func (o *Orchestrator) Keywords(intent models.Intent) []string {
	return o.classifier.Keywords(intent)
}

// Layout returns the module configuration for intent without classifying.
func (o *Orchestrator) Layout(intent models.Intent) models.LayoutConfig {
	return o.layouts.Select(intent)
}

func (o *Orchestrator) Trending(ctx context.Context, region string, limit int) ([]models.IntentCount, error) {
	if o.stats == nil {
		return nil, ErrUnavailable
	}
	if limit <= 0 || limit > len(models.AllIntents()) {
		limit = len(models.AllIntents())
	}
	return o.stats.TopIntents(ctx, region, limit)
}

// Breakdown counts classifications per intent over the trailing window.
// Results are cached per window.
func (o *Orchestrator) Breakdown(ctx context.Context, window time.Duration) (*models.IntentBreakdown, error) {
	if o.breakdown == nil {
		return nil, ErrUnavailable
	}
	if window <= 0 {
		window = o.cfg.DefaultWindow
	}
	if window > o.cfg.MaxWindow {
		window = o.cfg.MaxWindow
	}
	key := window.String()

	ctx, span := observability.StartSpan(ctx, "orchestrator.breakdown",
		attribute.String("window", key),
	)
	defer span.End()

	if o.stats != nil {
		cached, err := o.stats.GetBreakdown(ctx, key)
		if err != nil {
			o.logger.Warn("breakdown cache lookup error", zap.Error(err))
		}
		if cached != nil {
			cached.CacheHit = true
			return cached, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.QueryTimeout)
	defer cancel()

	start := time.Now()
	counts, err := o.breakdown.QueryIntentBreakdown(ctx, o.now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("intent breakdown (window=%s): %w", key, err)
	}

	result := &models.IntentBreakdown{
		Window:  key,
		Intents: counts,
	}
	for _, c := range counts {
		result.Total += c.Count
	}
	o.slowQuery.Intercept(ctx, key, "breakdown", time.Since(start), int64(len(counts)))

	if o.stats != nil {
		if err := o.stats.SetBreakdown(ctx, key, result); err != nil {
			o.logger.Warn("breakdown cache set error", zap.Error(err))
		}
	}

	return result, nil
}

// SearchUnmatched finds general-intent queries for keyword curation.
func (o *Orchestrator) SearchUnmatched(ctx context.Context, req *models.CurationRequest) (*models.CurationResponse, error) {
	if o.curation == nil {
		return nil, ErrUnavailable
	}
	if req.Size <= 0 {
		req.Size = o.cfg.DefaultPageSize
	}
	if req.Size > o.cfg.MaxPageSize {
		req.Size = o.cfg.MaxPageSize
	}

	ctx, span := observability.StartSpan(ctx, "orchestrator.search_unmatched")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.QueryTimeout)
	defer cancel()

	start := time.Now()
	parsed := o.parser.Parse(req.Query)
	query := o.builder.BuildCurationQuery(parsed, req)

	resp, err := o.curation.SearchUnmatched(ctx, o.curation.UnmatchedIndexPattern(req.Region), query)
	if err != nil {
		return nil, fmt.Errorf("searching unmatched queries: %w", err)
	}
	resp.TookMs = time.Since(start).Milliseconds()
	o.slowQuery.Intercept(ctx, parsed.Normalized, "curation", time.Since(start), resp.Total)

	return resp, nil
}

func matchLabel(fallback bool) string {
	if fallback {
		return "fallback"
	}
	return "keyword"
}
