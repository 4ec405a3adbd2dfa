package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisSource(t *testing.T) (*RedisSource, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	src := NewRedisSource(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	t.Cleanup(func() { _ = src.Close() })
	return src, mr
}

func TestRedisSource_List(t *testing.T) {
	src, mr := newMiniredisSource(t)
	assert.Equal(t, TypeRedis, src.Kind())
	assert.NotNil(t, src.Client())

	docs, err := src.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)

	mr.HSet(DefaultRedisKey, "order", `{"type":"object"}`, "address", `{"required":["street"]}`)

	docs, err = src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "address", docs[0].Name)
	assert.Equal(t, "redis:jsonguard:schemas/address", docs[0].Location)
	assert.Equal(t, "order", docs[1].Name)
	assert.Equal(t, FormatJSON, docs[1].Format)
}

func TestRedisSource_Get(t *testing.T) {
	src, mr := newMiniredisSource(t)
	mr.HSet(DefaultRedisKey, "order", `{"type":"object"}`)

	doc, err := src.Get(context.Background(), "order")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"object"}`, string(doc.Data))

	_, err = src.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSchemaNotFound)
}

func TestRedisSource_Unavailable(t *testing.T) {
	src, mr := newMiniredisSource(t)
	mr.Close()

	_, err := src.List(context.Background())
	assert.ErrorContains(t, err, "failed to list schemas")
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	src, err := OpenRedis(context.Background(), Config{RedisURL: "redis://" + mr.Addr(), RedisKey: "custom"})
	require.NoError(t, err)
	defer src.Close()
	mr.HSet("custom", "a", `true`)

	docs, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	_, err = OpenRedis(context.Background(), Config{RedisURL: "not a url"})
	assert.ErrorContains(t, err, "invalid redis URL")
}
