package repository

import (
	"context"
	"strings"
	"time"

	"image_gallery/internal/storage"
	redisapp "image_gallery/internal/storage/redis"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// MemoryThumbnailCache кэш миниатюр в памяти процесса
type MemoryThumbnailCache struct {
	cache *cache.Cache
}

func NewMemoryThumbnailCache(defaultTTL time.Duration) *MemoryThumbnailCache {
	return &MemoryThumbnailCache{
		cache: cache.New(defaultTTL, 2*defaultTTL),
	}
}

func (c *MemoryThumbnailCache) GetThumbnail(_ context.Context, key string) (string, error) {
	val, ok := c.cache.Get(thumbnailKey(key))
	if !ok {
		return "", storage.ErrorNoSuchKey
	}

	url, ok := val.(string)
	if !ok {
		return "", storage.ErrorNoSuchKey
	}

	return url, nil
}

func (c *MemoryThumbnailCache) SaveThumbnail(_ context.Context, key, url string, ttl time.Duration) error {
	c.cache.Set(thumbnailKey(key), url, ttl)

	return nil
}

func (c *MemoryThumbnailCache) DeleteThumbnails(_ context.Context, prefix string) error {
	prefix = thumbnailKey(prefix)
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}

	return nil
}

// RedisThumbnailCache кэш миниатюр в Redis, общий для нескольких экземпляров
type RedisThumbnailCache struct {
	Client *redisapp.Client
}

func NewRedisThumbnailCache(client *redisapp.Client) *RedisThumbnailCache {
	return &RedisThumbnailCache{Client: client}
}

func (r *RedisThumbnailCache) GetThumbnail(ctx context.Context, key string) (string, error) {
	val, err := r.Client.Get(ctx, thumbnailKey(key)).Result()
	if err == redis.Nil {
		return "", storage.ErrorNoSuchKey
	}

	return val, err
}

func (r *RedisThumbnailCache) SaveThumbnail(ctx context.Context, key, url string, ttl time.Duration) error {
	return r.Client.Set(ctx, thumbnailKey(key), url, ttl).Err()
}

// DeleteThumbnails удаляет ключи по префиксу постранично через SCAN
func (r *RedisThumbnailCache) DeleteThumbnails(ctx context.Context, prefix string) error {
	match := thumbnailKey(escapePattern(prefix)) + "*"

	var cursor uint64
	for {
		keys, next, err := r.Client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return err
		}

		if len(keys) > 0 {
			if err := r.Client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}

		if next == 0 {
			return nil
		}
		cursor = next
	}
}

const scanBatch = 100

// escapePattern экранирует спецсимволы glob-шаблона Redis
func escapePattern(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}

	return b.String()
}

func thumbnailKey(key string) string {
	return "thumb:" + key
}
