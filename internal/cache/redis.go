package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/models"
)

// RedisClient handles Redis caching operations
type RedisClient struct {
	client *redis.Client
	logger *logrus.Entry
	cfg    *config.RedisConfig
	ttl    time.Duration
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
		MaxRetries:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		logger: logger.WithField("component", "redis"),
		cfg:    cfg,
		ttl:    30 * time.Second,
	}, nil
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// Health checks Redis health
func (rc *RedisClient) Health(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Client exposes the underlying connection for components that keep
// their own key namespace (learning records, rate limits).
func (rc *RedisClient) Client() *redis.Client {
	return rc.client
}

// SetTTL sets the default TTL for cached analysis results
func (rc *RedisClient) SetTTL(ttl time.Duration) {
	rc.ttl = ttl
}

// Price operations

// SetPrice stores the latest live sample for a symbol
func (rc *RedisClient) SetPrice(ctx context.Context, sample *models.PriceSample) error {
	key := fmt.Sprintf("price:%s", sample.Symbol)

	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal price sample: %w", err)
	}

	// Live prices go stale fast; keep them for one minute only.
	if err := rc.client.Set(ctx, key, data, time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to set price: %w", err)
	}
	return nil
}

// GetPrice retrieves the latest live sample for a symbol
func (rc *RedisClient) GetPrice(ctx context.Context, symbol string) (*models.PriceSample, error) {
	key := fmt.Sprintf("price:%s", symbol)

	data, err := rc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price: %w", err)
	}

	var sample models.PriceSample
	if err := json.Unmarshal(data, &sample); err != nil {
		return nil, fmt.Errorf("failed to unmarshal price sample: %w", err)
	}
	return &sample, nil
}

// Consensus operations

// SetConsensus caches a completed analysis result
func (rc *RedisClient) SetConsensus(ctx context.Context, result *models.ConsensusResult) error {
	key := consensusKey(result.Symbol, result.Interval)

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal consensus: %w", err)
	}

	if err := rc.client.Set(ctx, key, data, rc.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache consensus: %w", err)
	}
	return nil
}

// GetConsensus retrieves a cached analysis result, nil on miss
func (rc *RedisClient) GetConsensus(ctx context.Context, symbol, interval string) (*models.ConsensusResult, error) {
	data, err := rc.client.Get(ctx, consensusKey(symbol, interval)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get consensus: %w", err)
	}

	var result models.ConsensusResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal consensus: %w", err)
	}
	return &result, nil
}

// InvalidateConsensus drops the cached result for a symbol/interval
func (rc *RedisClient) InvalidateConsensus(ctx context.Context, symbol, interval string) error {
	return rc.client.Del(ctx, consensusKey(symbol, interval)).Err()
}

func consensusKey(symbol, interval string) string {
	return fmt.Sprintf("consensus:%s:%s", symbol, interval)
}
