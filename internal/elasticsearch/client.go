package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/search-layout/internal/config"
	"github.com/shubhsaxena/search-layout/internal/models"
	"github.com/shubhsaxena/search-layout/internal/observability"
	"github.com/shubhsaxena/search-layout/internal/resilience"
)

const unmatchedKind = "unmatched"

type Client struct {
	es       *elasticsearch.Client
	cb       *gobreaker.CircuitBreaker
	cfg      config.ElasticsearchConfig
	retryCfg resilience.RetryConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewClient(cfg config.ElasticsearchConfig, analytics config.AnalyticsConfig, logger *zap.Logger) (*Client, error) {
	esCfg := elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	res, err := es.Ping()
	if err != nil {
		return nil, fmt.Errorf("pinging elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch ping returned status: %s", res.Status())
	}

	logger.Info("elasticsearch client connected", zap.Strings("addresses", cfg.Addresses))

	return &Client{
		es:       es,
		cb:       resilience.NewCircuitBreaker("elasticsearch", analytics.CircuitBreaker, logger),
		cfg:      cfg,
		retryCfg: resilience.RetryConfigFrom(analytics.Retry),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// SearchUnmatched runs query against the unmatched-query indices matched by
// index. Missing indices yield an empty result rather than an error.
func (c *Client) SearchUnmatched(ctx context.Context, index string, query map[string]any) (*models.CurationResponse, error) {
	ctx, span := observability.StartSpan(ctx, "es.search_unmatched",
		attribute.String("es.index", index),
	)
	defer span.End()

	start := time.Now()
	result, err := resilience.Do(ctx, c.cb, c.retryCfg, func() (*models.CurationResponse, error) {
		return c.executeSearch(ctx, index, query)
	})

	duration := time.Since(start)
	if err != nil {
		observability.ESQueryDuration.WithLabelValues(index, "error").Observe(duration.Seconds())
		span.RecordError(err)
		return nil, fmt.Errorf("es search (index=%s): %w", index, err)
	}
	observability.ESQueryDuration.WithLabelValues(index, "success").Observe(duration.Seconds())

	return result, nil
}

func (c *Client) executeSearch(ctx context.Context, index string, query map[string]any) (*models.CurationResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshaling es query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(body)),
		c.es.Search.WithTimeout(c.cfg.RequestTimeout),
		c.es.Search.WithTrackTotalHits(true),
		c.es.Search.WithIgnoreUnavailable(true),
		c.es.Search.WithAllowNoIndices(true),
	)
	if err != nil {
		return nil, fmt.Errorf("executing es search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("es search error status=%s body=%s", res.Status(), string(bodyBytes))
	}

	return decodeSearchResponse(res.Body)
}

func decodeSearchResponse(r io.Reader) (*models.CurationResponse, error) {
	var esResp esSearchResponse
	if err := json.NewDecoder(r).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("decoding es response: %w", err)
	}

	results := make([]models.UnmatchedQuery, 0, len(esResp.Hits.Hits))
	for _, h := range esResp.Hits.Hits {
		q := models.UnmatchedQuery{
			ID:    h.ID,
			Score: h.Score,
		}
		if h.Source != nil {
			q.Query = h.Source.Query
			q.Tokens = h.Source.Tokens
			q.Region = h.Source.Region
			q.LastSeen = h.Source.LastSeen
		}
		results = append(results, q)
	}

	return &models.CurationResponse{
		Results: results,
		Total:   esResp.Hits.Total.Value,
		TookMs:  esResp.Took,
	}, nil
}

func (c *Client) BulkIndex(ctx context.Context, actions []models.IndexAction) error {
	if len(actions) == 0 {
		return nil
	}

	ctx, span := observability.StartSpan(ctx, "es.bulk_index",
		attribute.Int("batch_size", len(actions)),
	)
	defer span.End()

	payload, err := encodeBulk(actions)
	if err != nil {
		return err
	}

	res, err := c.es.Bulk(
		bytes.NewReader(payload),
		c.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("executing bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk request error status=%s body=%s", res.Status(), string(bodyBytes))
	}

	var bulkResp bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("decoding bulk response: %w", err)
	}

	return bulkResp.err()
}

// encodeBulk renders actions as an NDJSON bulk body.
func encodeBulk(actions []models.IndexAction) ([]byte, error) {
	var buf bytes.Buffer
	for _, action := range actions {
		inner := map[string]any{
			"_index": action.Index,
			"_id":    action.ID,
		}
		if action.Routing != "" {
			inner["routing"] = action.Routing
		}

		metaLine, err := json.Marshal(map[string]any{action.Action: inner})
		if err != nil {
			return nil, fmt.Errorf("marshaling bulk meta: %w", err)
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')

		if action.Action != "delete" && action.Body != nil {
			bodyLine, err := json.Marshal(action.Body)
			if err != nil {
				return nil, fmt.Errorf("marshaling bulk body: %w", err)
			}
			buf.Write(bodyLine)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

// UnmatchedIndex names the monthly write index for region.
func (c *Client) UnmatchedIndex(region string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s-%s", c.cfg.IndexPrefix, unmatchedKind, indexRegion(region), at.UTC().Format("2006.01"))
}

// UnmatchedIndexPattern covers every month for region, or every region when
// region is empty.
func (c *Client) UnmatchedIndexPattern(region string) string {
	if region == "" {
		return fmt.Sprintf("%s-%s-*", c.cfg.IndexPrefix, unmatchedKind)
	}
	return fmt.Sprintf("%s-%s-%s-*", c.cfg.IndexPrefix, unmatchedKind, indexRegion(region))
}

func indexRegion(region string) string {
	if region == "" {
		return "global"
	}
	return strings.ToLower(region)
}

func (c *Client) HealthCheck(ctx context.Context) (string, error) {
	res, err := c.es.Cluster.Health(
		c.es.Cluster.Health.WithContext(ctx),
	)
	if err != nil {
		return "red", fmt.Errorf("es health check: %w", err)
	}
	defer res.Body.Close()

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return "red", fmt.Errorf("decoding health response: %w", err)
	}
	return health.Status, nil
}

func (c *Client) Close() error {
	return nil
}

// ES response types

type esSearchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		Total struct {
			Value    int64  `json:"value"`
			Relation string `json:"relation"`
		} `json:"total"`
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

type esHit struct {
	Index  string           `json:"_index"`
	ID     string           `json:"_id"`
	Score  float64          `json:"_score"`
	Source *unmatchedSource `json:"_source"`
}

type unmatchedSource struct {
	Query    string    `json:"query"`
	Tokens   []string  `json:"tokens"`
	Region   string    `json:"region"`
	LastSeen time.Time `json:"last_seen"`
}

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

func (r *bulkResponse) err() error {
	if !r.Errors {
		return nil
	}
	var errMsgs []string
	for _, item := range r.Items {
		for _, result := range item {
			if result.Error != nil {
				errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s", result.ID, result.Error.Reason))
			}
		}
	}
	return fmt.Errorf("bulk indexing had errors: %s", strings.Join(errMsgs, "; "))
}
