package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all studygen configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	IdleTimeout string `yaml:"idle_timeout"`
}

// LLMConfig selects and tunes the text completion backend.
type LLMConfig struct {
	Provider          string `yaml:"provider"` // openai, claude, gemini
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	BaseURL           string `yaml:"base_url"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	Burst             int    `yaml:"burst"`
	MaxPromptTokens   int    `yaml:"max_prompt_tokens"`
	TokenizerModel    string `yaml:"tokenizer_model"`
}

// RetrievalConfig selects the document store.
type RetrievalConfig struct {
	Driver string `yaml:"driver"` // postgres, sqlite, memory
	DSN    string `yaml:"dsn"`
	Path   string `yaml:"path"`
	Table  string `yaml:"table"`
}

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// MongoConfig configures the MongoDB cache backend.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// CacheConfig selects where finished artifacts are stored.
type CacheConfig struct {
	Driver   string      `yaml:"driver"` // redis, postgres, mongo, memory
	TTL      string      `yaml:"ttl"`
	Redis    RedisConfig `yaml:"redis"`
	Postgres struct {
		DSN   string `yaml:"dsn"`
		Table string `yaml:"table"`
	} `yaml:"postgres"`
	Mongo MongoConfig `yaml:"mongo"`
}

// PipelineConfig tunes a generation run.
type PipelineConfig struct {
	Timeout          string `yaml:"timeout"`
	PlanningDataPath string `yaml:"planning_data_path"`
	CatalogPath      string `yaml:"catalog_path"`
	PromptsDir       string `yaml:"prompts_dir"`
	DefaultUser      string `yaml:"default_user"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	Disable     bool    `yaml:"disable"`
	Endpoint    string  `yaml:"endpoint"`
	Environment string  `yaml:"environment"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a configuration that runs fully in memory.
func DefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{Addr: ":8080", IdleTimeout: "60s"},
		LLM: LLMConfig{
			Provider:          "gemini",
			Model:             "gemini-1.5-pro",
			RequestsPerMinute: 60,
			Burst:             6,
			MaxPromptTokens:   120000,
			TokenizerModel:    "cl100k_base",
		},
		Retrieval: RetrievalConfig{Driver: "memory", Table: "library_documents"},
		Cache: CacheConfig{
			Driver: "memory",
			Redis:  RedisConfig{Addr: "localhost:6379", Prefix: "studygen:content:"},
			Mongo:  MongoConfig{URI: "mongodb://localhost:27017", Database: "studygen", Collection: "generated_content"},
		},
		Pipeline:  PipelineConfig{Timeout: "5m", DefaultUser: "local"},
		Telemetry: TelemetryConfig{Disable: true},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
	cfg.Cache.Postgres.Table = "generated_content"
	return cfg
}

// Load reads a YAML file over the defaults and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Addr = getEnv("STUDYGEN_ADDR", c.Server.Addr)

	c.LLM.Provider = getEnv("STUDYGEN_LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = getEnv("STUDYGEN_LLM_MODEL", c.LLM.Model)
	c.LLM.BaseURL = getEnv("STUDYGEN_LLM_BASE_URL", c.LLM.BaseURL)
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "claude":
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "gemini":
			c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	c.LLM.RequestsPerMinute = getEnvInt("STUDYGEN_LLM_RPM", c.LLM.RequestsPerMinute)

	c.Retrieval.Driver = getEnv("STUDYGEN_RETRIEVAL_DRIVER", c.Retrieval.Driver)
	c.Retrieval.DSN = getEnv("POSTGRES_DSN", c.Retrieval.DSN)
	c.Retrieval.Path = getEnv("STUDYGEN_RETRIEVAL_PATH", c.Retrieval.Path)

	c.Cache.Driver = getEnv("STUDYGEN_CACHE_DRIVER", c.Cache.Driver)
	c.Cache.Redis.Addr = getEnv("REDIS_ADDR", c.Cache.Redis.Addr)
	c.Cache.Redis.Password = getEnv("REDIS_PASSWORD", c.Cache.Redis.Password)
	c.Cache.Redis.DB = getEnvInt("REDIS_DB", c.Cache.Redis.DB)
	c.Cache.Postgres.DSN = getEnv("POSTGRES_DSN", c.Cache.Postgres.DSN)
	c.Cache.Mongo.URI = getEnv("MONGODB_URI", c.Cache.Mongo.URI)

	c.Pipeline.Timeout = getEnv("STUDYGEN_PIPELINE_TIMEOUT", c.Pipeline.Timeout)
	c.Pipeline.PlanningDataPath = getEnv("STUDYGEN_PLANNING_DATA_PATH", c.Pipeline.PlanningDataPath)
	c.Pipeline.CatalogPath = getEnv("STUDYGEN_CATALOG_PATH", c.Pipeline.CatalogPath)
	c.Pipeline.PromptsDir = getEnv("STUDYGEN_PROMPTS_DIR", c.Pipeline.PromptsDir)

	c.Telemetry.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.Endpoint)
	c.Logging.Level = getEnv("STUDYGEN_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("STUDYGEN_LOG_FORMAT", c.Logging.Format)
}

// PipelineTimeout returns the wall-clock bound of one run.
func (c *Config) PipelineTimeout() time.Duration {
	return parseDuration(c.Pipeline.Timeout, 5*time.Minute)
}

// CacheTTL returns the artifact lifetime; zero keeps artifacts forever.
func (c *Config) CacheTTL() time.Duration {
	return parseDuration(c.Cache.TTL, 0)
}

// ServerIdleTimeout returns the HTTP idle timeout.
func (c *Config) ServerIdleTimeout() time.Duration {
	return parseDuration(c.Server.IdleTimeout, 60*time.Second)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	v := NewValidator()
	v.RequireNonEmpty("server.addr", c.Server.Addr)
	v.ValidateDuration("server.idle_timeout", c.Server.IdleTimeout)

	v.ValidateOneOf("llm.provider", c.LLM.Provider, "openai", "claude", "gemini")
	v.RequireNonEmpty("llm.model", c.LLM.Model)
	v.RequirePositive("llm.requests_per_minute", c.LLM.RequestsPerMinute)
	v.RequirePositive("llm.max_prompt_tokens", c.LLM.MaxPromptTokens)

	v.ValidateOneOf("retrieval.driver", c.Retrieval.Driver, "postgres", "sqlite", "memory")
	v.RequireWhen(c.Retrieval.Driver == "postgres", "retrieval.dsn", c.Retrieval.DSN, "retrieval.driver is postgres")
	v.RequireWhen(c.Retrieval.Driver == "sqlite", "retrieval.path", c.Retrieval.Path, "retrieval.driver is sqlite")

	v.ValidateOneOf("cache.driver", c.Cache.Driver, "redis", "postgres", "mongo", "memory")
	v.ValidateDuration("cache.ttl", c.Cache.TTL)
	v.RequireWhen(c.Cache.Driver == "redis", "cache.redis.addr", c.Cache.Redis.Addr, "cache.driver is redis")
	if c.Cache.Driver == "redis" {
		v.ValidateRange("cache.redis.db", c.Cache.Redis.DB, 0, 15)
	}
	v.RequireWhen(c.Cache.Driver == "postgres", "cache.postgres.dsn", c.Cache.Postgres.DSN, "cache.driver is postgres")
	v.RequireWhen(c.Cache.Driver == "mongo", "cache.mongo.uri", c.Cache.Mongo.URI, "cache.driver is mongo")

	v.ValidateDuration("pipeline.timeout", c.Pipeline.Timeout)
	v.RequireNonEmpty("pipeline.default_user", c.Pipeline.DefaultUser)
	v.ValidateFloatRange("telemetry.sample_ratio", c.Telemetry.SampleRatio, 0, 1)
	v.ValidateOneOf("logging.format", c.Logging.Format, "json", "text")
	return v.Error()
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
