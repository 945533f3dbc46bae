// Package config loads service configuration from a layered hierarchy:
// built-in defaults, an optional YAML file, then environment variables
// with the highest priority. The merged result is validated before use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Server configures the HTTP listener for health and metrics endpoints.
type Server struct {
	Address         string        `yaml:"address" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// Store configures the neo4j connection and query behavior.
type Store struct {
	URI            string        `yaml:"uri" validate:"required"`
	Username       string        `yaml:"username" validate:"required"`
	Password       string        `yaml:"password"`
	Database       string        `yaml:"database" validate:"required"`
	MaxPoolSize    int           `yaml:"max_pool_size" validate:"gt=0"`
	QueryTimeout   time.Duration `yaml:"query_timeout" validate:"gt=0"`
	MaxRetries     int           `yaml:"max_retries" validate:"gte=0"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" validate:"gt=0"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay" validate:"gt=0"`
}

// Cache selects and configures the cache backend.
type Cache struct {
	// Provider is "memory" or "redis".
	Provider     string        `yaml:"provider" validate:"oneof=memory redis"`
	TTL          time.Duration `yaml:"ttl" validate:"gt=0"`
	MaxItems     int           `yaml:"max_items" validate:"gt=0"`
	MaxMemory    int64         `yaml:"max_memory" validate:"gt=0"`
	MaxValueSize int           `yaml:"max_value_size" validate:"gt=0"`
	Redis        Redis         `yaml:"redis"`
}

// Redis holds go-redis connection settings.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	PoolSize int    `yaml:"pool_size" validate:"gte=0"`
}

// Breaker configures circuit breaker thresholds shared by the store and
// cache breakers.
type Breaker struct {
	FailureThreshold uint32        `yaml:"failure_threshold" validate:"gt=0"`
	Window           time.Duration `yaml:"window" validate:"gt=0"`
	ResetTimeout     time.Duration `yaml:"reset_timeout" validate:"gt=0"`
}

// Generator bounds subgraph generation.
type Generator struct {
	MaxDepth         int `yaml:"max_depth" validate:"gt=0"`
	MaxGraphSize     int `yaml:"max_graph_size" validate:"gt=0"`
	BatchSize        int `yaml:"batch_size" validate:"gt=0"`
	LayoutIterations int `yaml:"layout_iterations" validate:"gt=0"`
}

// Analyzer bounds analysis work.
type Analyzer struct {
	MaxHops int `yaml:"max_hops" validate:"gt=0"`
	// Workers of 0 means one per logical CPU.
	Workers int `yaml:"workers" validate:"gte=0"`
}

// Logging configures the zap logger.
type Logging struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Config is the root configuration for the graph service.
type Config struct {
	Environment string    `yaml:"environment" validate:"oneof=development staging production"`
	Server      Server    `yaml:"server"`
	Store       Store     `yaml:"store"`
	Cache       Cache     `yaml:"cache"`
	Breaker     Breaker   `yaml:"breaker"`
	Generator   Generator `yaml:"generator"`
	Analyzer    Analyzer  `yaml:"analyzer"`
	Logging     Logging   `yaml:"logging"`
}

// Default returns the built-in configuration, matching the documented
// production limits.
func Default() *Config {
	return &Config{
		Environment: "development",
		Server: Server{
			Address:         ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: Store{
			URI:            "bolt://localhost:7687",
			Username:       "neo4j",
			Password:       "",
			Database:       "neo4j",
			MaxPoolSize:    50,
			QueryTimeout:   30 * time.Second,
			MaxRetries:     3,
			RetryBaseDelay: 100 * time.Millisecond,
			RetryMaxDelay:  5 * time.Second,
		},
		Cache: Cache{
			Provider:     "memory",
			TTL:          time.Hour,
			MaxItems:     10000,
			MaxMemory:    256 * 1024 * 1024,
			MaxValueSize: 1024 * 1024,
			Redis: Redis{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Breaker: Breaker{
			FailureThreshold: 5,
			Window:           30 * time.Second,
			ResetTimeout:     30 * time.Second,
		},
		Generator: Generator{
			MaxDepth:         3,
			MaxGraphSize:     1000,
			BatchSize:        50,
			LayoutIterations: 50,
		},
		Analyzer: Analyzer{
			MaxHops: 6,
			Workers: 0,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// it exists; an empty path checks config.yaml) and environment variables,
// then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = "config.yaml"
	}
	if err := loadFile(path, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load config file %s: %w", path, err)
	}

	applyEnvironment(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoad loads the configuration and panics on error. Use only from
// main.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return yaml.NewDecoder(f).Decode(cfg)
}

// applyEnvironment overlays environment variables, the highest priority
// source.
func applyEnvironment(cfg *Config) {
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.Server.Address = getEnv("SERVER_ADDRESS", cfg.Server.Address)

	cfg.Store.URI = getEnv("NEO4J_URI", cfg.Store.URI)
	cfg.Store.Username = getEnv("NEO4J_USERNAME", cfg.Store.Username)
	cfg.Store.Password = getEnv("NEO4J_PASSWORD", cfg.Store.Password)
	cfg.Store.Database = getEnv("NEO4J_DATABASE", cfg.Store.Database)
	cfg.Store.MaxPoolSize = getEnvInt("NEO4J_MAX_POOL_SIZE", cfg.Store.MaxPoolSize)
	cfg.Store.QueryTimeout = getEnvDuration("NEO4J_QUERY_TIMEOUT", cfg.Store.QueryTimeout)
	cfg.Store.MaxRetries = getEnvInt("NEO4J_MAX_RETRIES", cfg.Store.MaxRetries)

	cfg.Cache.Provider = getEnv("CACHE_PROVIDER", cfg.Cache.Provider)
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.Redis.Addr = getEnv("REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = getEnvInt("REDIS_DB", cfg.Cache.Redis.DB)

	cfg.Generator.MaxDepth = getEnvInt("GRAPH_MAX_DEPTH", cfg.Generator.MaxDepth)
	cfg.Generator.MaxGraphSize = getEnvInt("GRAPH_MAX_SIZE", cfg.Generator.MaxGraphSize)
	cfg.Generator.BatchSize = getEnvInt("GRAPH_BATCH_SIZE", cfg.Generator.BatchSize)

	cfg.Analyzer.Workers = getEnvInt("ANALYZER_WORKERS", cfg.Analyzer.Workers)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
