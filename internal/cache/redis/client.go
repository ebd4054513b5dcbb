package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/insights"
	"github.com/liaxp/backend/internal/metrics"
	"github.com/liaxp/backend/pkg/logger"
)

// Client mirrors the newest insight snapshot per scope key. sqlite remains
// the source of truth; a cold or unreachable redis only costs a fallback read.
type Client struct {
	client     *redis.Client
	insightTTL time.Duration
}

func NewClient(host string, port int, password string, db int, insightTTL time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, insightTTL: insightTTL}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func insightKey(companyID, storeID, sellerID string) string {
	return fmt.Sprintf("insights:%s:%s:%s", companyID, storeID, sellerID)
}

func (c *Client) SetInsights(ctx context.Context, companyID, storeID, sellerID string, result *insights.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal insights: %w", err)
	}

	key := insightKey(companyID, storeID, sellerID)
	if err := c.client.Set(ctx, key, data, c.insightTTL).Err(); err != nil {
		return fmt.Errorf("failed to set insight cache: %w", err)
	}

	logger.Debug("Insights cached", zap.String("key", key), zap.Duration("ttl", c.insightTTL))
	return nil
}

func (c *Client) GetInsights(ctx context.Context, companyID, storeID, sellerID string) (*insights.Result, bool, error) {
	key := insightKey(companyID, storeID, sellerID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("insights").Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get insight cache: %w", err)
	}

	var result insights.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal insights: %w", err)
	}

	metrics.CacheHits.WithLabelValues("insights").Inc()
	logger.Debug("Insight cache hit", zap.String("key", key))
	return &result, true, nil
}

// InvalidateCompany drops every cached scope for a tenant. Called after a new
// data import so stale insights never outlive the dataset that produced them.
func (c *Client) InvalidateCompany(ctx context.Context, companyID string) error {
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("insights:%s:*", companyID), 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Insight cache invalidated", zap.String("company_id", companyID))
	return nil
}
