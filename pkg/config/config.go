package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/jsonguard/pkg/cache"
	"github.com/platinummonkey/jsonguard/pkg/jsonschema"
	"github.com/platinummonkey/jsonguard/pkg/observability"
	"github.com/platinummonkey/jsonguard/pkg/storage"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "JSONGUARD_"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Engine        EngineConfig        `yaml:"engine"`
	Cache         CacheConfig         `yaml:"cache"`
	Registry      RegistryConfig      `yaml:"registry"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// RateLimit is requests per second per client on /v1, 0 to disable
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// EngineConfig holds compiler settings
type EngineConfig struct {
	// DefaultDialect applies to schemas without $schema, e.g. "2020-12"
	DefaultDialect string `yaml:"default_dialect"`
	// UnknownDialect is "reject" or "fallback"
	UnknownDialect string `yaml:"unknown_dialect"`
	AssertFormat   bool   `yaml:"assert_format"`
	MaxDepth       int    `yaml:"max_depth"`
	// Notices logs a warning for every failed match
	Notices bool `yaml:"notices"`
}

// CacheConfig holds validator cache settings
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// RegistryConfig holds the named schema registry settings
type RegistryConfig struct {
	Enabled bool           `yaml:"enabled"`
	Source  storage.Config `yaml:"source"`
	// Watch refreshes a filesystem source on change
	Watch bool `yaml:"watch"`
	// Schedule is a cron spec for periodic refreshes, empty for none
	Schedule string        `yaml:"schedule"`
	Debounce time.Duration `yaml:"debounce"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    4 << 20,
			RateBurst:       100,
		},
		Engine: EngineConfig{
			DefaultDialect: jsonschema.Draft2020.String(),
			UnknownDialect: jsonschema.RejectUnknownDialect.String(),
			AssertFormat:   true,
			MaxDepth:       jsonschema.DefaultMaxDepth,
			Notices:        true,
		},
		Cache: CacheConfig{
			MaxEntries: cache.DefaultMaxEntries,
			TTL:        cache.DefaultTTL,
		},
		Registry: RegistryConfig{
			Source:   storage.DefaultConfig(),
			Debounce: 250 * time.Millisecond,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "jsonguard",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file at
// path when path is non-empty, then JSONGUARD_* environment variables, and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from the environment. Malformed values are
// reported rather than ignored.
func (c *Config) applyEnv() error {
	e := &envReader{}

	e.setString("HOST", &c.Server.Host)
	e.setString("PORT", &c.Server.Port)
	e.setDuration("READ_TIMEOUT", &c.Server.ReadTimeout)
	e.setDuration("WRITE_TIMEOUT", &c.Server.WriteTimeout)
	e.setDuration("IDLE_TIMEOUT", &c.Server.IdleTimeout)
	e.setDuration("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	e.setInt64("MAX_BODY_BYTES", &c.Server.MaxBodyBytes)
	e.setList("CORS_ORIGINS", &c.Server.CORSOrigins)
	e.setFloat("RATE_LIMIT", &c.Server.RateLimit)
	e.setInt("RATE_BURST", &c.Server.RateBurst)

	e.setString("DEFAULT_DIALECT", &c.Engine.DefaultDialect)
	e.setString("UNKNOWN_DIALECT", &c.Engine.UnknownDialect)
	e.setBool("ASSERT_FORMAT", &c.Engine.AssertFormat)
	e.setInt("MAX_DEPTH", &c.Engine.MaxDepth)
	e.setBool("NOTICES", &c.Engine.Notices)

	e.setInt("CACHE_MAX_ENTRIES", &c.Cache.MaxEntries)
	e.setDuration("CACHE_TTL", &c.Cache.TTL)

	e.setBool("REGISTRY_ENABLED", &c.Registry.Enabled)
	e.setString("REGISTRY_SOURCE", &c.Registry.Source.Type)
	e.setString("REGISTRY_DIR", &c.Registry.Source.Dir)
	e.setString("POSTGRES_URL", &c.Registry.Source.PostgresURL)
	e.setString("POSTGRES_TABLE", &c.Registry.Source.PostgresTable)
	e.setInt("POSTGRES_MAX_CONNS", &c.Registry.Source.PostgresMaxConns)
	e.setDuration("POSTGRES_TIMEOUT", &c.Registry.Source.PostgresTimeout)
	e.setString("REDIS_URL", &c.Registry.Source.RedisURL)
	e.setString("REDIS_KEY", &c.Registry.Source.RedisKey)
	e.setInt("REDIS_POOL_SIZE", &c.Registry.Source.RedisPoolSize)
	e.setString("S3_ENDPOINT", &c.Registry.Source.S3Endpoint)
	e.setString("S3_REGION", &c.Registry.Source.S3Region)
	e.setString("S3_BUCKET", &c.Registry.Source.S3Bucket)
	e.setString("S3_PREFIX", &c.Registry.Source.S3Prefix)
	e.setString("S3_ACCESS_KEY", &c.Registry.Source.S3AccessKey)
	e.setString("S3_SECRET_KEY", &c.Registry.Source.S3SecretKey)
	e.setBool("S3_USE_PATH_STYLE", &c.Registry.Source.S3UsePathStyle)
	e.setBool("REGISTRY_WATCH", &c.Registry.Watch)
	e.setString("REGISTRY_SCHEDULE", &c.Registry.Schedule)
	e.setDuration("REGISTRY_DEBOUNCE", &c.Registry.Debounce)

	e.setString("LOG_LEVEL", &c.Observability.LogLevel)
	e.setBool("METRICS_ENABLED", &c.Observability.MetricsEnabled)
	e.setBool("OTEL_ENABLED", &c.Observability.OTelEnabled)
	e.setString("OTEL_ENDPOINT", &c.Observability.OTelEndpoint)
	e.setString("OTEL_SERVICE_NAME", &c.Observability.OTelServiceName)
	e.setString("OTEL_SERVICE_VERSION", &c.Observability.OTelServiceVersion)
	e.setBool("OTEL_INSECURE", &c.Observability.OTelInsecure)
	e.setFloat("OTEL_SAMPLE_RATIO", &c.Observability.OTelSampleRatio)

	return errors.Join(e.errs...)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
		return fmt.Errorf("rate burst must be positive when rate limiting")
	}

	if _, err := c.CompilerConfig(); err != nil {
		return err
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache TTL must not be negative")
	}

	if c.Registry.Enabled {
		src := c.Registry.Source
		switch src.Type {
		case storage.TypeFilesystem:
			if src.Dir == "" {
				return fmt.Errorf("registry dir is required for filesystem source")
			}
		case storage.TypePostgres:
			if src.PostgresURL == "" {
				return fmt.Errorf("postgres URL is required for postgres source")
			}
		case storage.TypeRedis:
			if src.RedisURL == "" {
				return fmt.Errorf("redis URL is required for redis source")
			}
		case storage.TypeS3:
			if src.S3Bucket == "" {
				return fmt.Errorf("s3 bucket is required for s3 source")
			}
		default:
			return fmt.Errorf("invalid registry source: %s (must be filesystem, postgres, redis, or s3)", src.Type)
		}
		if c.Registry.Watch && src.Type != storage.TypeFilesystem {
			return fmt.Errorf("registry watch is only supported for filesystem source")
		}
		if c.Registry.Schedule != "" {
			if _, err := cron.ParseStandard(c.Registry.Schedule); err != nil {
				return fmt.Errorf("invalid registry schedule %q: %w", c.Registry.Schedule, err)
			}
		}
	}

	if _, err := observability.ParseLogLevel(c.Observability.LogLevel); err != nil {
		return err
	}
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}
	return nil
}

// CompilerConfig translates the engine settings
func (c *Config) CompilerConfig() (*jsonschema.CompilerConfig, error) {
	dialect, ok := jsonschema.ParseDialect(c.Engine.DefaultDialect)
	if !ok {
		return nil, fmt.Errorf("unknown default dialect %q", c.Engine.DefaultDialect)
	}
	policy, ok := jsonschema.ParseUnknownDialectPolicy(c.Engine.UnknownDialect)
	if !ok {
		return nil, fmt.Errorf("invalid unknown dialect policy %q (must be reject or fallback)", c.Engine.UnknownDialect)
	}
	if c.Engine.MaxDepth <= 0 {
		return nil, fmt.Errorf("max depth must be positive")
	}
	return &jsonschema.CompilerConfig{
		DefaultDialect: dialect,
		UnknownDialect: policy,
		AssertFormat:   c.Engine.AssertFormat,
		MaxDepth:       c.Engine.MaxDepth,
	}, nil
}

// CacheConfig translates the cache settings
func (c *Config) CacheConfig() *cache.Config {
	return &cache.Config{MaxEntries: c.Cache.MaxEntries, TTL: c.Cache.TTL}
}

// LogLevel returns the parsed log level, info when unparseable
func (c *Config) LogLevel() observability.LogLevel {
	level, err := observability.ParseLogLevel(c.Observability.LogLevel)
	if err != nil {
		return observability.InfoLevel
	}
	return level
}

// OTelConfig translates the OpenTelemetry settings
func (c *Config) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
		SampleRatio:    c.Observability.OTelSampleRatio,
	}
}

// envReader collects parse errors while applying overrides
type envReader struct {
	errs []error
}

func (e *envReader) lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func (e *envReader) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, key, value, err))
}

func (e *envReader) setString(key string, dst *string) {
	if value, ok := e.lookup(key); ok {
		*dst = value
	}
}

func (e *envReader) setList(key string, dst *[]string) {
	value, ok := e.lookup(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func (e *envReader) setBool(key string, dst *bool) {
	if value, ok := e.lookup(key); ok {
		b, err := strconv.ParseBool(value)
		if err != nil {
			e.fail(key, value, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) setInt(key string, dst *int) {
	if value, ok := e.lookup(key); ok {
		i, err := strconv.Atoi(value)
		if err != nil {
			e.fail(key, value, err)
			return
		}
		*dst = i
	}
}

func (e *envReader) setInt64(key string, dst *int64) {
	if value, ok := e.lookup(key); ok {
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			e.fail(key, value, err)
			return
		}
		*dst = i
	}
}

func (e *envReader) setFloat(key string, dst *float64) {
	if value, ok := e.lookup(key); ok {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			e.fail(key, value, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	if value, ok := e.lookup(key); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			e.fail(key, value, err)
			return
		}
		*dst = d
	}
}
