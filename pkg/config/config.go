// Package config loads DocVista configuration from a YAML file layered over
// built-in defaults, followed by DV_* environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Documents DocumentsConfig `yaml:"documents"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Postgres  PostgresConfig  `yaml:"postgres"`
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
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// RateLimit is the number of requests per minute a single client may
	// send to the search endpoint. Zero disables limiting.
	RateLimit   int      `yaml:"rateLimit"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// DocumentsConfig controls where documents are loaded from and how the
// folder is watched.
type DocumentsConfig struct {
	Dir           string        `yaml:"dir"`
	Recursive     bool          `yaml:"recursive"`
	Extensions    []string      `yaml:"extensions"`
	MinTextLength int           `yaml:"minTextLength"`
	MaxFileBytes  int64         `yaml:"maxFileBytes"`
	Workers       int           `yaml:"workers"`
	Watch         bool          `yaml:"watch"`
	Debounce      time.Duration `yaml:"debounce"`
}

// SearchConfig controls query defaults, presentation and execution limits.
type SearchConfig struct {
	DefaultMethod        string `yaml:"defaultMethod"`
	DefaultLimit         int    `yaml:"defaultLimit"`
	MaxResults           int    `yaml:"maxResults"`
	SnippetWindow        int    `yaml:"snippetWindow"`
	KeywordCount         int    `yaml:"keywordCount"`
	MaxConcurrentQueries int    `yaml:"maxConcurrentQueries"`
	ParallelThreshold    int    `yaml:"parallelThreshold"`
	Partitions           int    `yaml:"partitions"`
}

// CacheConfig controls the query-result cache.
type CacheConfig struct {
	Enabled  bool `yaml:"enabled"`
	Size     int  `yaml:"size"`
	UseRedis bool `yaml:"useRedis"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
	CorpusRefresh   string `yaml:"corpusRefresh"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// AnalyticsConfig controls search analytics collection.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	RecentQueries    int           `yaml:"recentQueries"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging for search requests.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Documents: DocumentsConfig{
			Dir:           "docs",
			Extensions:    []string{".txt", ".md", ".pdf", ".docx"},
			MinTextLength: 10,
			MaxFileBytes:  32 << 20,
			Workers:       4,
			Watch:         false,
			Debounce:      2 * time.Second,
		},
		Search: SearchConfig{
			DefaultMethod:        "tfidf",
			DefaultLimit:         10,
			MaxResults:           100,
			SnippetWindow:        200,
			KeywordCount:         12,
			MaxConcurrentQueries: 64,
			ParallelThreshold:    2000,
			Partitions:           4,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Size:     1024,
			UseRedis: false,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docvista",
			Topics: KafkaTopics{
				AnalyticsEvents: "docvista.analytics",
				CorpusRefresh:   "docvista.refresh",
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docvista",
			User:            "docvista",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			Enabled:          true,
			SnapshotInterval: time.Minute,
			RecentQueries:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Search.DefaultLimit <= 0 {
		problems = append(problems, "search.defaultLimit must be positive")
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		problems = append(problems, "search.maxResults must be at least search.defaultLimit")
	}
	if c.Documents.MinTextLength < 0 {
		problems = append(problems, "documents.minTextLength must not be negative")
	}
	if c.Server.RateLimit < 0 {
		problems = append(problems, "server.rateLimit must not be negative")
	}
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		problems = append(problems, "cache.size must be positive when the cache is enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// applyEnvOverrides reads DV_* environment variables and overrides the
// corresponding config fields. Unparseable numbers are ignored.
func applyEnvOverrides(cfg *Config) {
	setInt("DV_SERVER_PORT", &cfg.Server.Port)
	setInt("DV_SERVER_RATE_LIMIT", &cfg.Server.RateLimit)
	if v := os.Getenv("DV_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	setString("DV_DOCUMENTS_DIR", &cfg.Documents.Dir)
	if v := os.Getenv("DV_DOCUMENTS_EXTENSIONS"); v != "" {
		cfg.Documents.Extensions = strings.Split(v, ",")
	}
	setBool("DV_DOCUMENTS_RECURSIVE", &cfg.Documents.Recursive)
	setBool("DV_DOCUMENTS_WATCH", &cfg.Documents.Watch)
	setInt("DV_DOCUMENTS_WORKERS", &cfg.Documents.Workers)
	setString("DV_SEARCH_DEFAULT_METHOD", &cfg.Search.DefaultMethod)
	setInt("DV_SEARCH_DEFAULT_LIMIT", &cfg.Search.DefaultLimit)
	setInt("DV_SEARCH_MAX_CONCURRENT_QUERIES", &cfg.Search.MaxConcurrentQueries)
	setBool("DV_CACHE_ENABLED", &cfg.Cache.Enabled)
	setBool("DV_CACHE_USE_REDIS", &cfg.Cache.UseRedis)
	setString("DV_REDIS_ADDR", &cfg.Redis.Addr)
	setString("DV_REDIS_PASSWORD", &cfg.Redis.Password)
	setBool("DV_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("DV_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setBool("DV_POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	setString("DV_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("DV_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("DV_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("DV_POSTGRES_USER", &cfg.Postgres.User)
	setString("DV_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("DV_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	setBool("DV_ANALYTICS_ENABLED", &cfg.Analytics.Enabled)
	setString("DV_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("DV_LOGGING_FORMAT", &cfg.Logging.Format)
	setBool("DV_TRACING_ENABLED", &cfg.Tracing.Enabled)
	setBool("DV_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setInt("DV_METRICS_PORT", &cfg.Metrics.Port)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
