package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/shubhsaxena/search-layout/internal/config"
	"github.com/shubhsaxena/search-layout/internal/models"
	"github.com/shubhsaxena/search-layout/internal/observability"
	"github.com/shubhsaxena/search-layout/internal/resilience"
)

// maxBufferFactor bounds how far a buffer may grow, in multiples of the bulk
// size, while a sink keeps failing. Oldest entries are dropped beyond it.
const maxBufferFactor = 10

type TrendCounter interface {
	IncrIntent(ctx context.Context, region string, intent models.Intent, at time.Time) error
}

type EventStore interface {
	InsertClassifications(ctx context.Context, events []*models.ClassificationEvent) error
}

type UnmatchedIndexer interface {
	UnmatchedIndex(region string, at time.Time) string
	BulkIndex(ctx context.Context, actions []models.IndexAction) error
}

// StreamProcessor fans classification events out to the analytics sinks:
// trending counters, the event store and the unmatched-query index. Any sink
// may be nil.
type StreamProcessor struct {
	trends  TrendCounter
	store   EventStore
	indexer UnmatchedIndexer
	seen    *lru.Cache[string, struct{}]
	esCfg   config.ElasticsearchConfig
	logger  *zap.Logger

	mu        sync.Mutex
	events    []*models.ClassificationEvent
	unmatched []models.IndexAction
	ticker    *time.Ticker
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewStreamProcessor(
	trends TrendCounter,
	store EventStore,
	indexer UnmatchedIndexer,
	esCfg config.ElasticsearchConfig,
	logger *zap.Logger,
) (*StreamProcessor, error) {
	if esCfg.BulkSize <= 0 {
		return nil, fmt.Errorf("bulk size must be positive, got %d", esCfg.BulkSize)
	}
	seen, err := lru.New[string, struct{}](esCfg.DedupeSize)
	if err != nil {
		return nil, fmt.Errorf("creating dedupe cache: %w", err)
	}

	sp := &StreamProcessor{
		trends:    trends,
		store:     store,
		indexer:   indexer,
		seen:      seen,
		esCfg:     esCfg,
		logger:    logger,
		events:    make([]*models.ClassificationEvent, 0, esCfg.BulkSize),
		unmatched: make([]models.IndexAction, 0, esCfg.BulkSize),
		ticker:    time.NewTicker(esCfg.BulkFlushInterval),
		done:      make(chan struct{}),
	}

	sp.wg.Add(1)
	go sp.flushLoop()

	return sp, nil
}

// HandleEvent records one classification. Only the trending update is
// synchronous; its failure is returned so the consumer retries the event
// before anything is buffered.
func (sp *StreamProcessor) HandleEvent(ctx context.Context, event *models.ClassificationEvent) error {
	if !event.Intent.Valid() {
		observability.PipelineEventsTotal.WithLabelValues("validate", "error").Inc()
		return resilience.Permanent(fmt.Errorf("event %s: unknown intent %q", event.EventID, event.Intent))
	}

	if sp.trends != nil {
		if err := sp.trends.IncrIntent(ctx, event.Region, event.Intent, event.Timestamp); err != nil {
			return fmt.Errorf("incrementing trend counter: %w", err)
		}
	}

	action, isNew := sp.unmatchedAction(event)

	sp.mu.Lock()
	if sp.store != nil {
		sp.events = append(sp.events, event)
	}
	if isNew {
		sp.unmatched = append(sp.unmatched, *action)
	}
	shouldFlush := len(sp.events) >= sp.esCfg.BulkSize || len(sp.unmatched) >= sp.esCfg.BulkSize
	sp.mu.Unlock()

	if shouldFlush {
		if err := sp.flush(ctx); err != nil {
			sp.logger.Error("flush on buffer full failed", zap.Error(err))
		}
	}

	return nil
}

// unmatchedAction builds the curation document for a fallback event. It
// reports false for matched events and for queries indexed recently.
func (sp *StreamProcessor) unmatchedAction(event *models.ClassificationEvent) (*models.IndexAction, bool) {
	if sp.indexer == nil || !event.Fallback || event.Query == "" {
		return nil, false
	}

	if seen, _ := sp.seen.ContainsOrAdd(dedupeKey(event), struct{}{}); seen {
		return nil, false
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &models.IndexAction{
		Action:    "index",
		Index:     sp.indexer.UnmatchedIndex(event.Region, ts),
		ID:        event.QueryHash,
		Timestamp: ts,
		Body: map[string]any{
			"query":     event.Query,
			"tokens":    event.Tokens,
			"region":    event.Region,
			"last_seen": ts.Format(time.RFC3339),
		},
	}, true
}

func (sp *StreamProcessor) flushLoop() {
	defer sp.wg.Done()
	for {
		select {
		case <-sp.ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := sp.flush(ctx); err != nil {
				sp.logger.Error("periodic flush failed", zap.Error(err))
			}
			cancel()
		case <-sp.done:
			return
		}
	}
}

func (sp *StreamProcessor) flush(ctx context.Context) error {
	sp.mu.Lock()
	events := sp.events
	unmatched := sp.unmatched
	sp.events = make([]*models.ClassificationEvent, 0, sp.esCfg.BulkSize)
	sp.unmatched = make([]models.IndexAction, 0, sp.esCfg.BulkSize)
	sp.mu.Unlock()

	var errs []error

	if len(events) > 0 {
		if err := sp.store.InsertClassifications(ctx, events); err != nil {
			sp.requeueEvents(events)
			observability.PipelineEventsTotal.WithLabelValues("store", "error").Inc()
			errs = append(errs, fmt.Errorf("event store flush: %w", err))
		} else {
			observability.PipelineEventsTotal.WithLabelValues("store", "success").Add(float64(len(events)))
		}
	}

	if len(unmatched) > 0 {
		start := time.Now()
		if err := sp.indexer.BulkIndex(ctx, unmatched); err != nil {
			sp.requeueUnmatched(unmatched)
			observability.PipelineEventsTotal.WithLabelValues("bulk", "error").Inc()
			errs = append(errs, fmt.Errorf("bulk index flush: %w", err))
		} else {
			observability.PipelineEventsTotal.WithLabelValues("bulk", "success").Add(float64(len(unmatched)))
			sp.logger.Info("bulk flush completed",
				zap.Int("count", len(unmatched)),
				zap.Duration("duration", time.Since(start)),
			)
		}
	}

	return errors.Join(errs...)
}

func (sp *StreamProcessor) requeueEvents(batch []*models.ClassificationEvent) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.events = capTail(append(batch, sp.events...), sp.esCfg.BulkSize*maxBufferFactor, sp.logger, "events")
}

// requeueUnmatched puts a failed batch back ahead of newer documents. Queries
// dropped for capacity are forgotten by the dedupe cache so their next
// occurrence is indexed.
func (sp *StreamProcessor) requeueUnmatched(batch []models.IndexAction) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	combined := append(batch, sp.unmatched...)
	if over := len(combined) - sp.esCfg.BulkSize*maxBufferFactor; over > 0 {
		for _, a := range combined[:over] {
			sp.seen.Remove(actionDedupeKey(a))
		}
	}
	sp.unmatched = capTail(combined, sp.esCfg.BulkSize*maxBufferFactor, sp.logger, "unmatched")
}

// Pending reports how many events and unmatched documents await a flush.
func (sp *StreamProcessor) Pending() (events, unmatched int) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.events), len(sp.unmatched)
}

func (sp *StreamProcessor) Stop() error {
	sp.ticker.Stop()
	close(sp.done)
	sp.wg.Wait()

	// Final flush
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return sp.flush(ctx)
}

func dedupeKey(event *models.ClassificationEvent) string {
	return event.Region + "|" + event.QueryHash
}

func actionDedupeKey(a models.IndexAction) string {
	region, _ := a.Body["region"].(string)
	return region + "|" + a.ID
}

func capTail[T any](buf []T, limit int, logger *zap.Logger, name string) []T {
	if len(buf) <= limit {
		return buf
	}
	dropped := len(buf) - limit
	logger.Warn("flush buffer over capacity, dropping oldest",
		zap.String("buffer", name),
		zap.Int("dropped", dropped),
	)
	observability.PipelineEventsTotal.WithLabelValues(name, "dropped").Add(float64(dropped))
	return buf[dropped:]
}
