package learning

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/pkg/models"
)

// RedisStore persists learning records in Redis under learning:<symbol>.
// Records have no TTL; they live until the user wipes them.
type RedisStore struct {
	client *redis.Client
	logger *logrus.Entry
}

// NewRedisStore creates a Redis-backed store on an existing connection.
func NewRedisStore(client *redis.Client, log *logrus.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: log.WithField("component", "learning-store"),
	}
}

func (s *RedisStore) Get(ctx context.Context, symbol string) (*models.LearningRecord, error) {
	data, err := s.client.Get(ctx, learningKey(symbol)).Bytes()
	if err == redis.Nil {
		return models.NewLearningRecord(symbol), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get learning record: %w", err)
	}

	var rec models.LearningRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt record is treated as a first observation rather
		// than poisoning every future analysis of the symbol.
		s.logger.WithField("symbol", symbol).WithError(err).Warn("Corrupt learning record, resetting")
		return models.NewLearningRecord(symbol), nil
	}
	return &rec, nil
}

func (s *RedisStore) Put(ctx context.Context, record *models.LearningRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal learning record: %w", err)
	}
	if err := s.client.Set(ctx, learningKey(record.Symbol), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to put learning record: %w", err)
	}
	return nil
}

func (s *RedisStore) Wipe(ctx context.Context, symbol string) error {
	if err := s.client.Del(ctx, learningKey(symbol)).Err(); err != nil {
		return fmt.Errorf("failed to wipe learning record: %w", err)
	}
	return nil
}

func learningKey(symbol string) string {
	return fmt.Sprintf("learning:%s", symbol)
}
