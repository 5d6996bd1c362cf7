// Package config loads and validates engine configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Storage, Index, Search, Distribution, Redis, Kafka, Postgres).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration.
type Config struct {
	Storage      StorageConfig      `yaml:"storage"`
	Index        IndexConfig        `yaml:"index"`
	Search       SearchConfig       `yaml:"search"`
	Distribution DistributionConfig `yaml:"distribution"`
	Redis        RedisConfig        `yaml:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Postgres     PostgresConfig     `yaml:"postgres"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// StorageConfig locates the on-disk index.
type StorageConfig struct {
	DataDir string `yaml:"dataDir"`
}

// IndexConfig controls the writer's buffering, flush, and merge policy.
type IndexConfig struct {
	// FlushDocs flushes the in-memory buffer once it holds this many
	// documents. Zero means flush only on Commit.
	FlushDocs int `yaml:"flushDocs"`
	// FlushBytes flushes once the buffer's estimated size crosses this
	// threshold.
	FlushBytes int64 `yaml:"flushBytes"`
	// MaxSegments triggers a background merge when the live segment count
	// exceeds it.
	MaxSegments int `yaml:"maxSegments"`
	// MergeFactor is the number of smallest segments merged per pass.
	MergeFactor int `yaml:"mergeFactor"`
	// FlushInterval flushes buffered documents periodically for
	// near-real-time readers.
	FlushInterval time.Duration `yaml:"flushInterval"`
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxLimit     int `yaml:"maxLimit"`
}

// DistributionConfig holds shard and replica addresses for fan-out.
type DistributionConfig struct {
	Shards        []string      `yaml:"shards"`
	Replicas      []string      `yaml:"replicas"`
	ShardTimeout  time.Duration `yaml:"shardTimeout"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
	MaxConcurrent int           `yaml:"maxConcurrent"`
}

// RedisConfig holds connection parameters for the distributed result cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds broker and topic settings for the document ingest stream.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumerGroup"`
	DocumentTopic string   `yaml:"documentTopic"`
}

// PostgresConfig holds connection parameters for the bulk-reindex source.
type PostgresConfig struct {
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

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for missing values.
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
	return cfg, nil
}

// Default returns a Config with defaults suitable for an embedded engine.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir: "data",
		},
		Index: IndexConfig{
			FlushDocs:     10_000,
			FlushBytes:    64 << 20,
			MaxSegments:   10,
			MergeFactor:   4,
			FlushInterval: 0,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxLimit:     1000,
		},
		Distribution: DistributionConfig{
			ShardTimeout:  2 * time.Second,
			DialTimeout:   time.Second,
			MaxConcurrent: 16,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "searchcore",
			DocumentTopic: "documents",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "searchcore",
			User:            "searchcore",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SC_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SC_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SC_INDEX_FLUSH_DOCS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.FlushDocs = n
		}
	}
	if v := os.Getenv("SC_INDEX_MAX_SEGMENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.MaxSegments = n
		}
	}
	if v := os.Getenv("SC_SEARCH_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.DefaultLimit = n
		}
	}
	if v := os.Getenv("SC_SHARDS"); v != "" {
		cfg.Distribution.Shards = strings.Split(v, ",")
	}
	if v := os.Getenv("SC_REPLICAS"); v != "" {
		cfg.Distribution.Replicas = strings.Split(v, ",")
	}
	if v := os.Getenv("SC_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SC_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SC_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SC_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.DocumentTopic = v
	}
	if v := os.Getenv("SC_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SC_POSTGRES_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = n
		}
	}
	if v := os.Getenv("SC_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SC_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SC_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SC_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SC_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
