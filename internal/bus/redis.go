package bus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConn is the production bus transport, backed by Redis pub/sub.
type RedisConn struct {
	client *redis.Client
}

// DialRedis parses a redis:// URL and returns a connected RedisConn. The
// connection is verified with a ping so misconfiguration fails at startup
// rather than on the first publish.
func DialRedis(ctx context.Context, url string) (*RedisConn, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse bus url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping bus: %w", err)
	}
	return &RedisConn{client: client}, nil
}

// Publish sends payload on channel.
func (c *RedisConn) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.client.Publish(ctx, channel, payload).Err()
}

// Ping reports connection health.
func (c *RedisConn) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client exposes the underlying client for subscription.
func (c *RedisConn) Client() *redis.Client { return c.client }

// Close releases the connection.
func (c *RedisConn) Close() error { return c.client.Close() }
