package repository_test

import (
	"context"
	"testing"
	"time"

	"image_gallery/internal/repository"
	"image_gallery/internal/storage"
	redisapp "image_gallery/internal/storage/redis"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func NewMockClient() (*redisapp.Client, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	return &redisapp.Client{Client: db}, mock
}

func setupRedisCache() (*repository.RedisThumbnailCache, redismock.ClientMock) {
	db, mock := NewMockClient()
	return repository.NewRedisThumbnailCache(db), mock
}

func TestRedisThumbnailCache_SaveThumbnail(t *testing.T) {
	ctx := context.Background()
	c, mock := setupRedisCache()
	ttl := time.Hour

	t.Run("successful save", func(t *testing.T) {
		mock.ExpectSet("thumb:a.jpg:100x100", "http://x/a.jpg", ttl).SetVal("OK")
		err := c.SaveThumbnail(ctx, "a.jpg:100x100", "http://x/a.jpg", ttl)
		assert.NoError(t, err)
	})

	t.Run("redis error", func(t *testing.T) {
		mock.ExpectSet("thumb:a.jpg:100x100", "http://x/a.jpg", ttl).SetErr(redis.ErrClosed)
		err := c.SaveThumbnail(ctx, "a.jpg:100x100", "http://x/a.jpg", ttl)
		assert.ErrorIs(t, err, redis.ErrClosed)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisThumbnailCache_GetThumbnail(t *testing.T) {
	ctx := context.Background()
	c, mock := setupRedisCache()

	t.Run("hit", func(t *testing.T) {
		mock.ExpectGet("thumb:k").SetVal("http://x/t.jpg")
		url, err := c.GetThumbnail(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "http://x/t.jpg", url)
	})

	t.Run("miss", func(t *testing.T) {
		mock.ExpectGet("thumb:k").RedisNil()
		_, err := c.GetThumbnail(ctx, "k")
		assert.ErrorIs(t, err, storage.ErrorNoSuchKey)
	})

	t.Run("redis error", func(t *testing.T) {
		mock.ExpectGet("thumb:k").SetErr(redis.ErrClosed)
		_, err := c.GetThumbnail(ctx, "k")
		assert.ErrorIs(t, err, redis.ErrClosed)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryThumbnailCache(t *testing.T) {
	ctx := context.Background()
	c := repository.NewMemoryThumbnailCache(time.Minute)

	_, err := c.GetThumbnail(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrorNoSuchKey)

	require.NoError(t, c.SaveThumbnail(ctx, "k", "http://x/t.jpg", time.Minute))

	url, err := c.GetThumbnail(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "http://x/t.jpg", url)

	require.NoError(t, c.SaveThumbnail(ctx, "short", "http://x/s.jpg", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err = c.GetThumbnail(ctx, "short")
	assert.ErrorIs(t, err, storage.ErrorNoSuchKey)
}

func TestRedisThumbnailCache_DeleteThumbnails(t *testing.T) {
	ctx := context.Background()
	c, mock := setupRedisCache()

	t.Run("scans every page", func(t *testing.T) {
		mock.ExpectScan(0, "thumb:g/a.png:*", 100).SetVal([]string{"thumb:g/a.png:10x10:true:false"}, 7)
		mock.ExpectDel("thumb:g/a.png:10x10:true:false").SetVal(1)
		mock.ExpectScan(7, "thumb:g/a.png:*", 100).SetVal([]string{}, 0)

		require.NoError(t, c.DeleteThumbnails(ctx, "g/a.png:"))
	})

	t.Run("glob characters are escaped", func(t *testing.T) {
		mock.ExpectScan(0, `thumb:g/\[1\]\*.png:*`, 100).SetVal([]string{}, 0)

		require.NoError(t, c.DeleteThumbnails(ctx, "g/[1]*.png:"))
	})

	t.Run("redis error", func(t *testing.T) {
		mock.ExpectScan(0, "thumb:g/*", 100).SetErr(redis.ErrClosed)

		assert.ErrorIs(t, c.DeleteThumbnails(ctx, "g/"), redis.ErrClosed)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryThumbnailCache_DeleteThumbnails(t *testing.T) {
	ctx := context.Background()
	c := repository.NewMemoryThumbnailCache(time.Minute)

	for _, key := range []string{"g/a.png:10x10", "g/a.png:20x20", "g/ab.png:10x10", "h/a.png:10x10"} {
		require.NoError(t, c.SaveThumbnail(ctx, key, "http://x/"+key, time.Minute))
	}

	require.NoError(t, c.DeleteThumbnails(ctx, "g/a.png:"))

	_, err := c.GetThumbnail(ctx, "g/a.png:10x10")
	assert.ErrorIs(t, err, storage.ErrorNoSuchKey)
	_, err = c.GetThumbnail(ctx, "g/a.png:20x20")
	assert.ErrorIs(t, err, storage.ErrorNoSuchKey)

	_, err = c.GetThumbnail(ctx, "g/ab.png:10x10")
	assert.NoError(t, err)

	require.NoError(t, c.DeleteThumbnails(ctx, "g/"))
	_, err = c.GetThumbnail(ctx, "g/ab.png:10x10")
	assert.ErrorIs(t, err, storage.ErrorNoSuchKey)

	_, err = c.GetThumbnail(ctx, "h/a.png:10x10")
	assert.NoError(t, err)
}
