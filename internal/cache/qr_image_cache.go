// Package cache keeps rendered QR images close to the API.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const imageKeyPrefix = "qr:image:"

// ImageCache stores rendered PNGs keyed by tokenId.
type ImageCache interface {
	Get(ctx context.Context, tokenID string) ([]byte, bool, error)
	Set(ctx context.Context, tokenID string, png []byte, ttl time.Duration) error
	Delete(ctx context.Context, tokenIDs ...string) error
}

type redisImageCache struct {
	client *redis.Client
}

// NewImageCache returns a Redis-backed cache, or a no-op cache when client is nil.
func NewImageCache(client *redis.Client) ImageCache {
	if client == nil {
		return noopImageCache{}
	}
	return &redisImageCache{client: client}
}

func (c *redisImageCache) Get(ctx context.Context, tokenID string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, imageKeyPrefix+tokenID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set is skipped for non-positive ttl: an expired token's image is never cached.
func (c *redisImageCache) Set(ctx context.Context, tokenID string, png []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, imageKeyPrefix+tokenID, png, ttl).Err()
}

func (c *redisImageCache) Delete(ctx context.Context, tokenIDs ...string) error {
	if len(tokenIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		keys = append(keys, imageKeyPrefix+id)
	}
	return c.client.Del(ctx, keys...).Err()
}

type noopImageCache struct{}

func (noopImageCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (noopImageCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noopImageCache) Delete(context.Context, ...string) error { return nil }
