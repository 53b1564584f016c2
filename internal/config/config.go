package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Redis         RedisConfig         `yaml:"redis"`
	ClickHouse    ClickHouseConfig    `yaml:"clickhouse"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Analytics     AnalyticsConfig     `yaml:"analytics"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
}

type ElasticsearchConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Addresses         []string      `yaml:"addresses"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	IndexPrefix       string        `yaml:"index_prefix"`
	BulkSize          int           `yaml:"bulk_size"`
	BulkFlushInterval time.Duration `yaml:"bulk_flush_interval"`
	DedupeSize        int           `yaml:"dedupe_size"`
}

type RedisConfig struct {
	Enabled      bool           `yaml:"enabled"`
	Addresses    []string       `yaml:"addresses"`
	Password     string         `yaml:"password"`
	DB           int            `yaml:"db"`
	PoolSize     int            `yaml:"pool_size"`
	MinIdleConns int            `yaml:"min_idle_conns"`
	DialTimeout  time.Duration  `yaml:"dial_timeout"`
	ReadTimeout  time.Duration  `yaml:"read_timeout"`
	WriteTimeout time.Duration  `yaml:"write_timeout"`
	TTL          CacheTTLConfig `yaml:"ttl"`
}

type CacheTTLConfig struct {
	Trending  time.Duration `yaml:"trending"`
	Breakdown time.Duration `yaml:"breakdown"`
}

type ClickHouseConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addresses    []string      `yaml:"addresses"`
	Database     string        `yaml:"database"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
}

type KafkaConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Brokers        []string      `yaml:"brokers"`
	TopicEvents    string        `yaml:"topic_events"`
	TopicDLQ       string        `yaml:"topic_dlq"`
	ConsumerGroup  string        `yaml:"consumer_group"`
	BatchSize      int           `yaml:"batch_size"`
	BatchTimeout   time.Duration `yaml:"batch_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	ConsumeEnabled bool          `yaml:"consume_enabled"`
}

type AnalyticsConfig struct {
	PublishEvents   bool                 `yaml:"publish_events"`
	DefaultPageSize int                  `yaml:"default_page_size"`
	MaxPageSize     int                  `yaml:"max_page_size"`
	QueryTimeout    time.Duration        `yaml:"query_timeout"`
	DefaultWindow   time.Duration        `yaml:"default_window"`
	MaxWindow       time.Duration        `yaml:"max_window"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry           RetryConfig          `yaml:"retry"`
	SlowQuery       SlowQueryConfig      `yaml:"slow_query"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

type SlowQueryConfig struct {
	WarningThreshold  time.Duration `yaml:"warning_threshold"`
	CriticalThreshold time.Duration `yaml:"critical_threshold"`
}

type ObservabilityConfig struct {
	TracingEnabled bool   `yaml:"tracing_enabled"`
	LogLevel       string `yaml:"log_level"`
	ServiceName    string `yaml:"service_name"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig runs the classifier API with every analytics backend off.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxConcurrent:   1000,
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses:         []string{"http://localhost:9200"},
			MaxRetries:        3,
			RequestTimeout:    500 * time.Millisecond,
			IndexPrefix:       "layout",
			BulkSize:          500,
			BulkFlushInterval: 5 * time.Second,
			DedupeSize:        10000,
		},
		Redis: RedisConfig{
			Addresses:    []string{"localhost:6379"},
			PoolSize:     50,
			MinIdleConns: 5,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  1 * time.Second,
			WriteTimeout: 1 * time.Second,
			TTL: CacheTTLConfig{
				Trending:  48 * time.Hour,
				Breakdown: 5 * time.Minute,
			},
		},
		ClickHouse: ClickHouseConfig{
			Addresses:    []string{"localhost:9000"},
			Database:     "layout_analytics",
			DialTimeout:  5 * time.Second,
			QueryTimeout: 2 * time.Second,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Kafka: KafkaConfig{
			Brokers:        []string{"localhost:9092"},
			TopicEvents:    "query.classified",
			TopicDLQ:       "query.classified.dlq",
			ConsumerGroup:  "layout-analytics",
			BatchSize:      100,
			BatchTimeout:   1 * time.Second,
			MaxRetries:     3,
			ConsumeEnabled: true,
		},
		Analytics: AnalyticsConfig{
			PublishEvents:   true,
			DefaultPageSize: 20,
			MaxPageSize:     100,
			QueryTimeout:    2 * time.Second,
			DefaultWindow:   24 * time.Hour,
			MaxWindow:       30 * 24 * time.Hour,
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests:      10,
				Interval:         30 * time.Second,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
			Retry: RetryConfig{
				MaxAttempts: 2,
				InitialWait: 50 * time.Millisecond,
				MaxWait:     500 * time.Millisecond,
				Multiplier:  2.0,
			},
			SlowQuery: SlowQueryConfig{
				WarningThreshold:  500 * time.Millisecond,
				CriticalThreshold: 1500 * time.Millisecond,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			ServiceName: "search-layout",
		},
	}
}

// Validate reports every problem at once so a bad deploy shows the full list.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port > 0 && c.Server.Port <= 65535, "invalid server port: %d", c.Server.Port)
	check(c.Server.MaxConcurrent > 0, "max concurrent requests must be positive")

	if c.Elasticsearch.Enabled {
		check(len(c.Elasticsearch.Addresses) > 0, "at least one elasticsearch address required")
		check(c.Elasticsearch.IndexPrefix != "", "elasticsearch index prefix required")
	}
	if c.Redis.Enabled {
		check(len(c.Redis.Addresses) > 0, "at least one redis address required")
	}
	if c.ClickHouse.Enabled {
		check(len(c.ClickHouse.Addresses) > 0, "at least one clickhouse address required")
	}
	if c.Kafka.Enabled {
		check(len(c.Kafka.Brokers) > 0, "at least one kafka broker required")
		check(c.Kafka.TopicEvents != "", "kafka events topic required")
		if c.Kafka.ConsumeEnabled {
			check(c.Kafka.ConsumerGroup != "", "kafka consumer group required when consuming")
			check(c.Elasticsearch.BulkSize > 0, "bulk size must be positive")
			check(c.Elasticsearch.BulkFlushInterval > 0, "bulk flush interval must be positive")
			check(c.Elasticsearch.DedupeSize > 0, "dedupe size must be positive")
		}
	}

	a := c.Analytics
	check(a.DefaultPageSize > 0, "default page size must be positive")
	check(a.MaxPageSize > 0 && a.MaxPageSize <= 1000, "max page size must be between 1 and 1000")
	check(a.DefaultWindow > 0 && a.DefaultWindow <= a.MaxWindow, "default window must be positive and not exceed max window")
	check(a.QueryTimeout > 0, "analytics query timeout must be positive")
	check(a.SlowQuery.WarningThreshold <= a.SlowQuery.CriticalThreshold, "slow query warning threshold must not exceed critical")

	return errors.Join(errs...)
}
