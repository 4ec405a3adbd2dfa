package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/jsonguard/pkg/jsonvalue"
	"github.com/platinummonkey/jsonguard/pkg/observability"
)

// ErrSchemaNotFound is returned when a source holds no document of the
// requested name
var ErrSchemaNotFound = errors.New("schema not found")

// Format is the text encoding of a stored document
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Document is a stored schema document
type Document struct {
	Name   string
	Data   []byte
	Format Format
	// Location describes where the document came from (a path or a key)
	Location string
}

// Decode parses the document according to its format
func Decode(doc Document) (jsonvalue.Value, error) {
	var (
		v   jsonvalue.Value
		err error
	)
	switch doc.Format {
	case FormatYAML:
		v, err = jsonvalue.DecodeYAML(doc.Data)
	case FormatJSON, "":
		v, err = jsonvalue.Decode(doc.Data)
	default:
		return jsonvalue.Value{}, fmt.Errorf("%s: unsupported format %q", doc.Location, doc.Format)
	}
	if err != nil {
		return jsonvalue.Value{}, fmt.Errorf("%s: %w", doc.Location, err)
	}
	return v, nil
}

// Source loads named schema documents
type Source interface {
	// Kind names the backend, e.g. "filesystem"
	Kind() string
	// List returns every document, ordered by name
	List(ctx context.Context) ([]Document, error)
	// Get returns one document or ErrSchemaNotFound
	Get(ctx context.Context, name string) (Document, error)
	Close() error
}

// Source types accepted by Config.Type
const (
	TypeFilesystem = "filesystem"
	TypePostgres   = "postgres"
	TypeRedis      = "redis"
	TypeS3         = "s3"
)

// Config selects and configures a source
type Config struct {
	Type string `yaml:"type"` // "filesystem", "postgres", "redis" or "s3"

	// Filesystem config
	Dir string `yaml:"dir"`

	// PostgreSQL config
	PostgresURL      string        `yaml:"postgres_url"`
	PostgresTable    string        `yaml:"postgres_table"`
	PostgresMaxConns int           `yaml:"postgres_max_conns"`
	PostgresTimeout  time.Duration `yaml:"postgres_timeout"`

	// Redis config
	RedisURL      string `yaml:"redis_url"`
	RedisKey      string `yaml:"redis_key"`
	RedisPoolSize int    `yaml:"redis_pool_size"`

	// S3 config
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3Region       string `yaml:"s3_region"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3Prefix       string `yaml:"s3_prefix"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             TypeFilesystem,
		Dir:              "schemas",
		PostgresTable:    DefaultPostgresTable,
		PostgresMaxConns: 10,
		PostgresTimeout:  10 * time.Second,
		RedisKey:         DefaultRedisKey,
		RedisPoolSize:    10,
		S3Region:         "us-east-1",
	}
}

// Open creates the source described by cfg. When metrics is non-nil every
// call is recorded.
func Open(ctx context.Context, cfg Config, metrics *observability.Metrics) (Source, error) {
	var (
		src Source
		err error
	)
	switch cfg.Type {
	case TypeFilesystem, "":
		src, err = NewFileSystemSource(cfg.Dir)
	case TypePostgres:
		src, err = OpenPostgres(ctx, cfg)
	case TypeRedis:
		src, err = OpenRedis(ctx, cfg)
	case TypeS3:
		src, err = OpenS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown schema source type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if metrics != nil {
		src = Instrument(src, metrics)
	}
	return src, nil
}

type instrumented struct {
	Source
	metrics *observability.Metrics
}

// Instrument records the outcome and latency of List and Get calls
func Instrument(src Source, metrics *observability.Metrics) Source {
	return &instrumented{Source: src, metrics: metrics}
}

func (s *instrumented) List(ctx context.Context) ([]Document, error) {
	start := time.Now()
	docs, err := s.Source.List(ctx)
	s.metrics.RecordStorageOperation(s.Kind(), "list", start, err)
	return docs, err
}

func (s *instrumented) Get(ctx context.Context, name string) (Document, error) {
	start := time.Now()
	doc, err := s.Source.Get(ctx, name)
	// a missing schema is an answer, not a failure
	opErr := err
	if errors.Is(err, ErrSchemaNotFound) {
		opErr = nil
	}
	s.metrics.RecordStorageOperation(s.Kind(), "get", start, opErr)
	return doc, err
}

// Unwrap returns the instrumented source
func (s *instrumented) Unwrap() Source {
	return s.Source
}

// Unwrap strips instrumentation wrappers from src
func Unwrap(src Source) Source {
	for {
		u, ok := src.(interface{ Unwrap() Source })
		if !ok {
			return src
		}
		src = u.Unwrap()
	}
}
