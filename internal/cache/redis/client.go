package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/churn-insight/dashboard/pkg/logger"
	"github.com/churn-insight/dashboard/pkg/retry"
)

const markupPrefix = "notebook:markup:"

type Client struct {
	client *redis.Client
	ttl    time.Duration
}

type Options struct {
	Host            string
	Port            int
	Password        string
	DB              int
	TTL             time.Duration
	ConnectAttempts int
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = opts.ConnectAttempts
	cfg.Logger = logger.Named("redis")

	err := retry.Do(ctx, cfg, func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr), zap.Duration("ttl", opts.TTL))

	return &Client{client: client, ttl: opts.TTL}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// GetMarkup returns cached notebook markup for key. A miss is ("", false, nil).
func (c *Client) GetMarkup(ctx context.Context, key string) (string, bool, error) {
	data, err := c.client.Get(ctx, markupPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get notebook markup: %w", err)
	}

	logger.Debug("Notebook markup cache hit", zap.String("key", key))
	return data, true, nil
}

func (c *Client) SetMarkup(ctx context.Context, key, markup string) error {
	err := c.client.Set(ctx, markupPrefix+key, markup, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set notebook markup: %w", err)
	}

	logger.Debug("Notebook markup cached", zap.String("key", key), zap.Int("bytes", len(markup)))
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
