package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubhsaxena/search-layout/internal/config"
	"github.com/shubhsaxena/search-layout/internal/models"
	"github.com/shubhsaxena/search-layout/internal/observability"
)

const globalRegion = "global"

type RedisCache struct {
	client redis.UniversalClient
	ttl    config.CacheTTLConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewRedisCache(cfg config.RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	var client redis.UniversalClient

	if len(cfg.Addresses) > 1 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addresses,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addresses[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis cache connected", zap.Strings("addresses", cfg.Addresses))

	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
		now:    time.Now,
	}, nil
}

// IncrIntent bumps the day's trending counter for intent in region and in
// the global bucket.
func (rc *RedisCache) IncrIntent(ctx context.Context, region string, intent models.Intent, at time.Time) error {
	keys := []string{trendKey(globalRegion, at)}
	if r := normalizeRegion(region); r != globalRegion {
		keys = append(keys, trendKey(r, at))
	}

	pipe := rc.client.Pipeline()
	for _, key := range keys {
		pipe.ZIncrBy(ctx, key, 1, intent.String())
		pipe.Expire(ctx, key, rc.ttl.Trending)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache incr intent: %w", err)
	}
	return nil
}

// TopIntents returns today's most frequent intents for region, highest first.
func (rc *RedisCache) TopIntents(ctx context.Context, region string, limit int) ([]models.IntentCount, error) {
	key := trendKey(normalizeRegion(region), rc.now())
	zs, err := rc.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("cache get trending: %w", err)
	}
	return intentCountsFromScores(zs), nil
}

func (rc *RedisCache) GetBreakdown(ctx context.Context, window string) (*models.IntentBreakdown, error) {
	val, err := rc.client.Get(ctx, breakdownKey(window)).Result()
	if err == redis.Nil {
		observability.CacheMisses.Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get breakdown: %w", err)
	}

	observability.CacheHits.Inc()
	var b models.IntentBreakdown
	if err := json.Unmarshal([]byte(val), &b); err != nil {
		return nil, fmt.Errorf("cache unmarshal breakdown: %w", err)
	}
	return &b, nil
}

func (rc *RedisCache) SetBreakdown(ctx context.Context, window string, b *models.IntentBreakdown) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("cache marshal breakdown: %w", err)
	}
	return rc.client.Set(ctx, breakdownKey(window), data, rc.ttl.Breakdown).Err()
}

func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

func normalizeRegion(region string) string {
	if region == "" {
		return globalRegion
	}
	return region
}

func trendKey(region string, day time.Time) string {
	return fmt.Sprintf("trend:%s:%s", region, day.UTC().Format("20060102"))
}

func breakdownKey(window string) string {
	return fmt.Sprintf("bd:%s", window)
}

// intentCountsFromScores drops members that are not known intents so a
// stale or foreign key cannot leak arbitrary strings to clients.
func intentCountsFromScores(zs []redis.Z) []models.IntentCount {
	out := make([]models.IntentCount, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		intent := models.Intent(member)
		if !intent.Valid() {
			continue
		}
		out = append(out, models.IntentCount{Intent: intent, Count: int64(z.Score)})
	}
	return out
}
