package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireSyncLock takes a per-store lease so two sync runs for the same
// store cannot interleave watermark advancement. Returns false when another
// run holds the lock.
func (c *Client) AcquireSyncLock(ctx context.Context, storeID int64, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, syncLockKey(storeID), "1", ttl).Result()
}

// ReleaseSyncLock releases a store's sync lease
func (c *Client) ReleaseSyncLock(ctx context.Context, storeID int64) error {
	return c.rdb.Del(ctx, syncLockKey(storeID)).Err()
}

// MarkEventSeen records a consumed event ID with a TTL; returns false when
// the event was already seen. Used to dedupe sync-request messages.
func (c *Client) MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, "event:"+eventID, "1", ttl).Result()
}

func syncLockKey(storeID int64) string {
	return fmt.Sprintf("sync-lock:%d", storeID)
}
