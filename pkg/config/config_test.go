package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/jsonguard/pkg/jsonschema"
	"github.com/platinummonkey/jsonguard/pkg/observability"
	"github.com/platinummonkey/jsonguard/pkg/storage"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jsonguard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadConfig_Defaults tests loading with nothing set
func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Server.Addr() = %v, want 0.0.0.0:8080", cfg.Server.Addr())
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Registry.Enabled {
		t.Error("Registry.Enabled = true, want false")
	}
	if cfg.Registry.Source.Type != storage.TypeFilesystem {
		t.Errorf("Registry.Source.Type = %v, want filesystem", cfg.Registry.Source.Type)
	}
	if cfg.LogLevel() != observability.InfoLevel {
		t.Errorf("LogLevel() = %v, want info", cfg.LogLevel())
	}

	cc, err := cfg.CompilerConfig()
	if err != nil {
		t.Fatalf("CompilerConfig() error = %v", err)
	}
	if *cc != *jsonschema.DefaultCompilerConfig() {
		t.Errorf("CompilerConfig() = %+v, want defaults", *cc)
	}
}

// TestLoadConfig_File tests YAML loading
func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
  read_timeout: 5s
  cors_origins: ["https://app.example.com"]
engine:
  default_dialect: draft-07
  unknown_dialect: fallback
  assert_format: false
cache:
  max_entries: 64
  ttl: 1m
registry:
  enabled: true
  source:
    type: redis
    redis_url: redis://localhost:6379/0
  schedule: "@every 30s"
observability:
  log_level: debug
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("Server.Port = %v, want 9000", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 15*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want default 15s", cfg.Server.WriteTimeout)
	}
	if len(cfg.Server.CORSOrigins) != 1 {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Cache.TTL != time.Minute || cfg.Cache.MaxEntries != 64 {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Registry.Source.RedisKey != storage.DefaultRedisKey {
		t.Errorf("Registry.Source.RedisKey = %v, want default", cfg.Registry.Source.RedisKey)
	}
	if cfg.LogLevel() != observability.DebugLevel {
		t.Errorf("LogLevel() = %v, want debug", cfg.LogLevel())
	}

	cc, err := cfg.CompilerConfig()
	if err != nil {
		t.Fatalf("CompilerConfig() error = %v", err)
	}
	if cc.DefaultDialect != jsonschema.Draft7 {
		t.Errorf("DefaultDialect = %v, want draft-07", cc.DefaultDialect)
	}
	if cc.UnknownDialect != jsonschema.FallbackToDefault {
		t.Errorf("UnknownDialect = %v, want fallback", cc.UnknownDialect)
	}
	if cc.AssertFormat {
		t.Error("AssertFormat = true, want false")
	}
}

// TestLoadConfig_FileErrors tests unreadable and malformed files
func TestLoadConfig_FileErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{
			name:    "missing file",
			path:    filepath.Join(t.TempDir(), "missing.yaml"),
			wantErr: "reading config file",
		},
		{
			name:    "unknown field",
			path:    writeConfig(t, "server:\n  prot: \"9000\"\n"),
			wantErr: "field prot not found",
		},
		{
			name:    "bad duration",
			path:    writeConfig(t, "cache:\n  ttl: soon\n"),
			wantErr: "parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestLoadConfig_EmptyFile tests that an empty file keeps the defaults
func TestLoadConfig_EmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %v, want 8080", cfg.Server.Port)
	}
}

// TestLoadConfig_Env tests that the environment overrides the file
func TestLoadConfig_Env(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"9000\"\n")
	t.Setenv("JSONGUARD_PORT", "9100")
	t.Setenv("JSONGUARD_CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("JSONGUARD_MAX_DEPTH", "64")
	t.Setenv("JSONGUARD_NOTICES", "false")
	t.Setenv("JSONGUARD_CACHE_TTL", "90s")
	t.Setenv("JSONGUARD_REGISTRY_ENABLED", "true")
	t.Setenv("JSONGUARD_REGISTRY_DIR", "/etc/jsonguard/schemas")
	t.Setenv("JSONGUARD_REGISTRY_WATCH", "1")
	t.Setenv("JSONGUARD_OTEL_SAMPLE_RATIO", "0.25")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9100" {
		t.Errorf("Server.Port = %v, want 9100", cfg.Server.Port)
	}
	if got := cfg.Server.CORSOrigins; len(got) != 2 || got[1] != "https://b.example.com" {
		t.Errorf("Server.CORSOrigins = %v", got)
	}
	if cfg.Engine.MaxDepth != 64 {
		t.Errorf("Engine.MaxDepth = %v, want 64", cfg.Engine.MaxDepth)
	}
	if cfg.Engine.Notices {
		t.Error("Engine.Notices = true, want false")
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("Cache.TTL = %v, want 90s", cfg.Cache.TTL)
	}
	if !cfg.Registry.Enabled || !cfg.Registry.Watch || cfg.Registry.Source.Dir != "/etc/jsonguard/schemas" {
		t.Errorf("Registry = %+v", cfg.Registry)
	}
	if cfg.Observability.OTelSampleRatio != 0.25 {
		t.Errorf("OTelSampleRatio = %v, want 0.25", cfg.Observability.OTelSampleRatio)
	}
	if cfg.CacheConfig().TTL != 90*time.Second {
		t.Errorf("CacheConfig().TTL = %v, want 90s", cfg.CacheConfig().TTL)
	}
}

// TestLoadConfig_EnvErrors tests that malformed values are reported
func TestLoadConfig_EnvErrors(t *testing.T) {
	t.Setenv("JSONGUARD_CACHE_TTL", "forever")
	t.Setenv("JSONGUARD_MAX_DEPTH", "deep")

	_, err := LoadConfig("")
	if err == nil {
		t.Fatal("LoadConfig() error = nil, want error")
	}
	for _, want := range []string{`JSONGUARD_CACHE_TTL="forever"`, `JSONGUARD_MAX_DEPTH="deep"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

// TestValidate tests configuration validation
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			modify: func(*Config) {},
		},
		{
			name:    "missing port",
			modify:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port is required",
		},
		{
			name:    "unknown dialect",
			modify:  func(c *Config) { c.Engine.DefaultDialect = "draft-03" },
			wantErr: `unknown default dialect "draft-03"`,
		},
		{
			name:    "bad policy",
			modify:  func(c *Config) { c.Engine.UnknownDialect = "ignore" },
			wantErr: "invalid unknown dialect policy",
		},
		{
			name:    "zero depth",
			modify:  func(c *Config) { c.Engine.MaxDepth = 0 },
			wantErr: "max depth must be positive",
		},
		{
			name:    "negative rate limit",
			modify:  func(c *Config) { c.Server.RateLimit = -1 },
			wantErr: "rate limit must not be negative",
		},
		{
			name: "rate limit without burst",
			modify: func(c *Config) {
				c.Server.RateLimit = 10
				c.Server.RateBurst = 0
			},
			wantErr: "rate burst must be positive",
		},
		{
			name:    "zero cache",
			modify:  func(c *Config) { c.Cache.MaxEntries = 0 },
			wantErr: "cache max entries must be positive",
		},
		{
			name: "filesystem without dir",
			modify: func(c *Config) {
				c.Registry.Enabled = true
				c.Registry.Source.Dir = ""
			},
			wantErr: "registry dir is required",
		},
		{
			name: "postgres without url",
			modify: func(c *Config) {
				c.Registry.Enabled = true
				c.Registry.Source.Type = storage.TypePostgres
			},
			wantErr: "postgres URL is required",
		},
		{
			name: "watching redis",
			modify: func(c *Config) {
				c.Registry.Enabled = true
				c.Registry.Source.Type = storage.TypeRedis
				c.Registry.Source.RedisURL = "redis://localhost:6379"
				c.Registry.Watch = true
			},
			wantErr: "registry watch is only supported for filesystem source",
		},
		{
			name: "s3 without bucket",
			modify: func(c *Config) {
				c.Registry.Enabled = true
				c.Registry.Source.Type = storage.TypeS3
			},
			wantErr: "s3 bucket is required",
		},
		{
			name: "watching s3",
			modify: func(c *Config) {
				c.Registry.Enabled = true
				c.Registry.Source.Type = storage.TypeS3
				c.Registry.Source.S3Bucket = "schemas"
				c.Registry.Watch = true
			},
			wantErr: "registry watch is only supported for filesystem source",
		},
		{
			name: "unknown source",
			modify: func(c *Config) {
				c.Registry.Enabled = true
				c.Registry.Source.Type = "gcs"
			},
			wantErr: "invalid registry source: gcs",
		},
		{
			name: "bad schedule",
			modify: func(c *Config) {
				c.Registry.Enabled = true
				c.Registry.Schedule = "sometimes"
			},
			wantErr: `invalid registry schedule "sometimes"`,
		},
		{
			name: "disabled registry is not checked",
			modify: func(c *Config) {
				c.Registry.Source.Type = "gcs"
			},
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Observability.LogLevel = "loud" },
			wantErr: `unknown log level "loud"`,
		},
		{
			name: "otel without endpoint",
			modify: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = ""
			},
			wantErr: "OpenTelemetry endpoint is required",
		},
		{
			name: "otel ratio out of range",
			modify: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelSampleRatio = 2
			},
			wantErr: "sample ratio must be between 0 and 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestOTelConfig tests the OpenTelemetry translation
func TestOTelConfig(t *testing.T) {
	cfg := Default()
	cfg.Observability.OTelEnabled = true

	got := cfg.OTelConfig()
	if !got.Enabled || got.Endpoint != "localhost:4317" || got.ServiceName != "jsonguard" || got.SampleRatio != 1 {
		t.Errorf("OTelConfig() = %+v", got)
	}
}
