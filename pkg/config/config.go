// Package config loads and validates application configuration from YAML files
// with .env and environment-variable overrides. It provides typed structs for
// every subsystem (Server, Catalog, Kafka, Redis, Cache, Rerank, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Cache     CacheConfig     `yaml:"cache"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	// CORSOrigins lists browser origins allowed to call the API; "*"
	// allows all and an empty list disables CORS handling.
	CORSOrigins []string `yaml:"corsOrigins"`
	// RateLimitPerMinute caps requests per client IP; 0 disables it.
	RateLimitPerMinute int `yaml:"rateLimitPerMinute"`
}

// CatalogConfig holds the product catalog database parameters. Driver is
// either "postgres" or "sqlite"; for sqlite, Path names the database file.
type CatalogConfig struct {
	Driver          string        `yaml:"driver"`
	Path            string        `yaml:"path"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	SeedFile        string        `yaml:"seedFile"`
}

// DSN returns the data source name for the configured driver.
func (c CatalogConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	RerankEvents string `yaml:"rerankEvents"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// CacheConfig selects the result cache backend ("redis", "memory" or
// "none") and its limits.
type CacheConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	MaxSize int           `yaml:"maxSize"`
}

// RerankConfig holds the scoring defaults supplied by the host.
type RerankConfig struct {
	DefaultWeights   map[string]float64 `yaml:"defaultWeights"`
	DefaultTopK      int                `yaml:"defaultTopK"`
	MaxTopK          int                `yaml:"maxTopK"`
	MaxCandidates    int                `yaml:"maxCandidates"`
	RetrievalTimeout time.Duration      `yaml:"retrievalTimeout"`
}

// AnalyticsConfig controls the rerank event pipeline.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls request span logging.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a .env file and a YAML config file (both optional) and applies
// environment-variable overrides. It returns a validated Config populated
// with defaults for any missing values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		// A weights map in the file replaces the defaults instead of merging.
		defaultWeights := cfg.Rerank.DefaultWeights
		cfg.Rerank.DefaultWeights = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		if cfg.Rerank.DefaultWeights == nil {
			cfg.Rerank.DefaultWeights = defaultWeights
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c *Config) Validate() error {
	var errs []error
	switch c.Catalog.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("catalog.driver must be postgres or sqlite, got %q", c.Catalog.Driver))
	}
	switch c.Cache.Backend {
	case "redis", "memory", "none":
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be redis, memory or none, got %q", c.Cache.Backend))
	}
	for name, w := range c.Rerank.DefaultWeights {
		if w < 0 {
			errs = append(errs, fmt.Errorf("rerank.defaultWeights.%s must be non-negative, got %v", name, w))
		}
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("server.rateLimitPerMinute must not be negative, got %d", c.Server.RateLimitPerMinute))
	}
	if c.Rerank.MaxTopK < 1 {
		errs = append(errs, fmt.Errorf("rerank.maxTopK must be positive, got %d", c.Rerank.MaxTopK))
	}
	if c.Rerank.DefaultTopK < 0 || c.Rerank.DefaultTopK > c.Rerank.MaxTopK {
		errs = append(errs, fmt.Errorf("rerank.defaultTopK must be within [0, %d], got %d", c.Rerank.MaxTopK, c.Rerank.DefaultTopK))
	}
	return errors.Join(errs...)
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
		},
		Catalog: CatalogConfig{
			Driver:          "sqlite",
			Path:            "reranker.db",
			Host:            "localhost",
			Port:            5432,
			Database:        "reranker",
			User:            "reranker",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			SeedFile:        "data/mock_products.json",
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "reranker-analytics",
			Topics: KafkaTopics{
				RerankEvents: "rerank-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     60 * time.Second,
			MaxSize: 1000,
		},
		Rerank: RerankConfig{
			DefaultWeights: map[string]float64{
				"text_match": 0.6,
				"price":      0.0,
				"rating":     0.2,
				"popularity": 0.2,
			},
			DefaultTopK:      10,
			MaxTopK:          20,
			MaxCandidates:    1000,
			RetrievalTimeout: 5 * time.Second,
		},
		Analytics: AnalyticsConfig{
			Enabled:          false,
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:    false,
			SampleRate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads RR_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RR_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("RR_SERVER_RATE_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimitPerMinute = limit
		}
	}
	if v := os.Getenv("RR_CATALOG_DRIVER"); v != "" {
		cfg.Catalog.Driver = v
	}
	if v := os.Getenv("RR_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("RR_CATALOG_HOST"); v != "" {
		cfg.Catalog.Host = v
	}
	if v := os.Getenv("RR_CATALOG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Catalog.Port = port
		}
	}
	if v := os.Getenv("RR_CATALOG_DATABASE"); v != "" {
		cfg.Catalog.Database = v
	}
	if v := os.Getenv("RR_CATALOG_USER"); v != "" {
		cfg.Catalog.User = v
	}
	if v := os.Getenv("RR_CATALOG_PASSWORD"); v != "" {
		cfg.Catalog.Password = v
	}
	if v := os.Getenv("RR_CATALOG_SSLMODE"); v != "" {
		cfg.Catalog.SSLMode = v
	}
	if v := os.Getenv("RR_CATALOG_SEED_FILE"); v != "" {
		cfg.Catalog.SeedFile = v
	}
	if v := os.Getenv("RR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("RR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RR_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("RR_CACHE_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = ttl
		}
	}
	if v := os.Getenv("RR_RERANK_DEFAULT_WEIGHTS"); v != "" {
		if weights, err := parseWeights(v); err == nil {
			cfg.Rerank.DefaultWeights = weights
		}
	}
	if v := os.Getenv("RR_RERANK_DEFAULT_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Rerank.DefaultTopK = k
		}
	}
	if v := os.Getenv("RR_ANALYTICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Analytics.Enabled = enabled
		}
	}
	if v := os.Getenv("RR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RR_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RR_TRACING_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Tracing.Enabled = enabled
		}
	}
}

// parseWeights parses "name=value,name=value" into a weight map.
func parseWeights(s string) (map[string]float64, error) {
	weights := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("malformed weight %q", pair)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing weight %q: %w", name, err)
		}
		weights[strings.TrimSpace(name)] = w
	}
	return weights, nil
}
