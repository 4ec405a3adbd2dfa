// Package config loads jsonguard configuration.
//
// # Sources
//
// Values come from, in increasing precedence: built-in defaults, an optional
// YAML file, and JSONGUARD_* environment variables. Unknown YAML fields and
// malformed environment values are errors.
//
//	server:
//	  port: "8080"
//	  cors_origins: ["https://app.example.com"]
//	  rate_limit: 20
//	  rate_burst: 40
//	engine:
//	  default_dialect: "2020-12"
//	  unknown_dialect: reject
//	cache:
//	  max_entries: 1024
//	  ttl: 30m
//	registry:
//	  enabled: true
//	  source:
//	    type: filesystem
//	    dir: ./schemas
//	  watch: true
//	observability:
//	  log_level: info
//
// # Environment
//
//	JSONGUARD_PORT=9000
//	JSONGUARD_DEFAULT_DIALECT=draft-07
//	JSONGUARD_CACHE_TTL=5m
//	JSONGUARD_REGISTRY_ENABLED=true
//	JSONGUARD_REGISTRY_SOURCE=redis
//	JSONGUARD_REDIS_URL=redis://localhost:6379/0
//	JSONGUARD_REGISTRY_SCHEDULE="@every 1m"
//	JSONGUARD_S3_BUCKET=schemas
//	JSONGUARD_RATE_LIMIT=20
//	JSONGUARD_LOG_LEVEL=debug
//	JSONGUARD_OTEL_ENABLED=true
//
// # Usage
//
//	cfg, err := config.LoadConfig(path)
//	if err != nil {
//		log.Fatal(err)
//	}
//	compilerCfg, _ := cfg.CompilerConfig()
package config
