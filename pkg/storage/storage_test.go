package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/platinummonkey/jsonguard/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	v, err := Decode(Document{Data: []byte(`{"a":1}`), Format: FormatJSON})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v.String())

	v, err = Decode(Document{Data: []byte("a: 1\nb: [x]\n"), Format: FormatYAML})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":["x"]}`, v.String())

	_, err = Decode(Document{Data: []byte(`{"a":`), Format: FormatJSON, Location: "order.json"})
	assert.ErrorContains(t, err, "order.json: ")

	_, err = Decode(Document{Data: []byte(`x`), Format: "toml", Location: "x.toml"})
	assert.EqualError(t, err, `x.toml: unsupported format "toml"`)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	src, err := Open(ctx, Config{Type: TypeFilesystem, Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileSystemSource{}, src)

	mr := miniredis.RunT(t)
	src, err = Open(ctx, Config{Type: TypeRedis, RedisURL: "redis://" + mr.Addr()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &RedisSource{}, src)
	require.NoError(t, src.Close())

	src, err = Open(ctx, Config{
		Type:           TypeS3,
		S3Endpoint:     "http://127.0.0.1:9000",
		S3Region:       "us-east-1",
		S3Bucket:       "schemas",
		S3AccessKey:    "minio",
		S3SecretKey:    "minio123",
		S3UsePathStyle: true,
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &S3Source{}, src)

	_, err = Open(ctx, Config{Type: "gcs"}, nil)
	assert.EqualError(t, err, `unknown schema source type "gcs"`)

	_, err = Open(ctx, Config{Type: TypePostgres}, nil)
	assert.Error(t, err)
}

func TestInstrument(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{}`)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	src, err := Open(context.Background(), Config{Type: TypeFilesystem, Dir: dir}, metrics)
	require.NoError(t, err)
	assert.IsType(t, &FileSystemSource{}, Unwrap(src))
	assert.Equal(t, TypeFilesystem, src.Kind())

	_, err = src.List(context.Background())
	require.NoError(t, err)
	_, err = src.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSchemaNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("filesystem", "list", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("filesystem", "get", "success")))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, TypeFilesystem, cfg.Type)
	assert.Equal(t, DefaultPostgresTable, cfg.PostgresTable)
	assert.Equal(t, DefaultRedisKey, cfg.RedisKey)
}
