// Package cache wraps the Redis client used for short-lived server state:
// auth challenge nonces and the capture-cooldown hot path. Postgres remains
// the source of truth; everything here is reconstructible.
package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/titanbreach/breach-server/internal/config"
)

type Client struct {
	rdb *redis.Client
}

func Connect(ctx context.Context, cfg config.CacheConfig) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid cache url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache ping failed: %w", err)
	}
	log.Println("Connected to Redis")
	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetChallenge stores an auth challenge nonce for a wallet.
func (c *Client) SetChallenge(ctx context.Context, wallet, nonce string, ttl time.Duration) error {
	return c.rdb.Set(ctx, "auth:challenge:"+wallet, nonce, ttl).Err()
}

// TakeChallenge fetches and deletes the nonce (single use). Returns "" when
// absent or expired.
func (c *Client) TakeChallenge(ctx context.Context, wallet string) (string, error) {
	nonce, err := c.rdb.GetDel(ctx, "auth:challenge:"+wallet).Result()
	if err == redis.Nil {
		return "", nil
	}
	return nonce, err
}

// SetCaptureCooldown marks a player's capture cooldown window.
func (c *Client) SetCaptureCooldown(ctx context.Context, playerID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("capture:cooldown:%d", playerID), "1", ttl).Err()
}

// OnCaptureCooldown is the fast-path cooldown check. Errors degrade to
// "unknown" so the DB timestamp check stays authoritative.
func (c *Client) OnCaptureCooldown(ctx context.Context, playerID int64) (bool, error) {
	n, err := c.rdb.Exists(ctx, fmt.Sprintf("capture:cooldown:%d", playerID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
