package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oneshare/signal-server-go/internal/model"
)

// HealthKey holds the latest health snapshot of the broker.
const HealthKey = "oneshare:health"

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// CheckHealth pings the server.
func (c *Client) CheckHealth(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// PublishHealth stores snapshot under HealthKey. The key expires after ttl so
// a stopped broker stops looking alive.
func (c *Client) PublishHealth(ctx context.Context, snapshot model.HealthSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode health snapshot: %w", err)
	}
	return c.Set(ctx, HealthKey, data, ttl).Err()
}
