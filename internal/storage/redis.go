package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pricewatch/pricewatch/internal/logger"
)

// CooldownCache suppresses repeat crawls of the same URL within a TTL
// window, backed by Redis so the window survives restarts and is shared
// across instances.
type CooldownCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCooldownCache connects to Redis and verifies the connection.
func NewCooldownCache(ctx context.Context, addr string, ttl time.Duration) (*CooldownCache, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	logger.Info("connected to redis", "addr", addr, "cooldown_ttl", ttl)
	return &CooldownCache{client: client, ttl: ttl}, nil
}

// Close releases the Redis connection.
func (c *CooldownCache) Close() error {
	return c.client.Close()
}

func cooldownKey(url string) string {
	return "pricewatch:crawled:" + url
}

// RecentlyCrawled reports whether url was crawled within the TTL window.
func (c *CooldownCache) RecentlyCrawled(ctx context.Context, url string) (bool, error) {
	n, err := c.client.Exists(ctx, cooldownKey(url)).Result()
	if err != nil {
		return false, fmt.Errorf("checking cooldown: %w", err)
	}
	return n > 0, nil
}

// MarkCrawled records that url was just crawled.
func (c *CooldownCache) MarkCrawled(ctx context.Context, url string) error {
	if err := c.client.Set(ctx, cooldownKey(url), time.Now().Unix(), c.ttl).Err(); err != nil {
		return fmt.Errorf("marking cooldown: %w", err)
	}
	return nil
}
