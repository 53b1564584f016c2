package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/search-layout/internal/config"
	"github.com/shubhsaxena/search-layout/internal/models"
	"github.com/shubhsaxena/search-layout/internal/observability"
	"github.com/shubhsaxena/search-layout/internal/resilience"
)

const (
	breakdownSQL = `
		SELECT
			intent,
			count() AS cnt
		FROM classification_events
		WHERE timestamp >= ?
		GROUP BY intent
		ORDER BY cnt DESC
	`

	insertClassificationSQL = `
		INSERT INTO classification_events (
			event_id, query_hash, query, intent, matched_keyword,
			fallback, region, user_id, timestamp
		)
	`

	insertQueryPerformanceSQL = `
		INSERT INTO query_performance (
			event_type, query_hash, query_type, duration_ms,
			rows, timestamp, trace_id
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
)

var tableDDL = []string{
	`CREATE TABLE IF NOT EXISTS classification_events (
		event_id String,
		query_hash String,
		query String,
		intent LowCardinality(String),
		matched_keyword String,
		fallback Bool,
		region LowCardinality(String),
		user_id String,
		timestamp DateTime64(3)
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, intent, query_hash)
	TTL toDateTime(timestamp) + INTERVAL 90 DAY`,

	`CREATE TABLE IF NOT EXISTS query_performance (
		event_type String,
		query_hash String,
		query_type String,
		duration_ms Float64,
		rows Int64,
		timestamp DateTime,
		trace_id String
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, query_hash)`,
}

type Client struct {
	conn    driver.Conn
	breaker *gobreaker.CircuitBreaker
	retry   resilience.RetryConfig
	logger  *zap.Logger
}

func NewClient(cfg config.ClickHouseConfig, analytics config.AnalyticsConfig, logger *zap.Logger) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addresses,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": int(cfg.QueryTimeout.Seconds()),
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	logger.Info("clickhouse client connected", zap.Strings("addresses", cfg.Addresses))

	return &Client{
		conn:    conn,
		breaker: resilience.NewCircuitBreaker("clickhouse", analytics.CircuitBreaker, logger),
		retry:   resilience.RetryConfigFrom(analytics.Retry),
		logger:  logger,
	}, nil
}

// QueryIntentBreakdown counts classification events per intent since the
// given instant, most frequent first.
func (c *Client) QueryIntentBreakdown(ctx context.Context, since time.Time) ([]models.IntentCount, error) {
	ctx, span := observability.StartSpan(ctx, "ch.query_intent_breakdown",
		attribute.String("since", since.UTC().Format(time.RFC3339)),
	)
	defer span.End()

	start := time.Now()
	counts, err := resilience.Do(ctx, c.breaker, c.retry, func() ([]models.IntentCount, error) {
		return c.queryIntentBreakdown(ctx, since)
	})
	if err != nil {
		observability.CHQueryDuration.WithLabelValues("breakdown", "error").Observe(time.Since(start).Seconds())
		span.RecordError(err)
		return nil, err
	}

	observability.CHQueryDuration.WithLabelValues("breakdown", "success").Observe(time.Since(start).Seconds())
	return counts, nil
}

func (c *Client) queryIntentBreakdown(ctx context.Context, since time.Time) ([]models.IntentCount, error) {
	rows, err := c.conn.Query(ctx, breakdownSQL, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("ch breakdown query: %w", err)
	}
	defer rows.Close()

	counts := make([]models.IntentCount, 0, len(models.AllIntents()))
	for rows.Next() {
		var intent string
		var count uint64
		if err := rows.Scan(&intent, &count); err != nil {
			return nil, fmt.Errorf("scanning breakdown row: %w", err)
		}
		if !models.Intent(intent).Valid() {
			continue
		}
		counts = append(counts, models.IntentCount{Intent: models.Intent(intent), Count: int64(count)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating breakdown rows: %w", err)
	}
	return counts, nil
}

// InsertClassifications writes events in a single native batch.
func (c *Client) InsertClassifications(ctx context.Context, events []*models.ClassificationEvent) error {
	if len(events) == 0 {
		return nil
	}

	start := time.Now()
	batch, err := c.conn.PrepareBatch(ctx, insertClassificationSQL)
	if err != nil {
		return fmt.Errorf("preparing classification batch: %w", err)
	}

	for _, e := range events {
		if err := batch.Append(
			e.EventID,
			e.QueryHash,
			e.Query,
			string(e.Intent),
			e.MatchedKeyword,
			e.Fallback,
			e.Region,
			e.UserID,
			e.Timestamp,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("appending classification %s: %w", e.EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		observability.CHQueryDuration.WithLabelValues("insert", "error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("sending classification batch of %d: %w", len(events), err)
	}

	observability.CHQueryDuration.WithLabelValues("insert", "success").Observe(time.Since(start).Seconds())
	return nil
}

func (c *Client) WriteQueryPerformance(ctx context.Context, event *models.AnalyticsEvent) error {
	return c.conn.Exec(ctx, insertQueryPerformanceSQL,
		event.EventType,
		event.QueryHash,
		event.QueryType,
		event.DurationMs,
		event.Rows,
		event.Timestamp,
		event.TraceID,
	)
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) EnsureTables(ctx context.Context) error {
	for _, ddl := range tableDDL {
		if err := c.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}

	c.logger.Info("clickhouse tables ensured")
	return nil
}
