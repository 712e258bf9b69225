package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Service caches extraction-row snapshots so pollers hammering the
// progress endpoint don't hammer the database. A nil *Service is a
// disabled cache; every method tolerates it.
type Service struct {
	client *redis.Client
	ttl    time.Duration
}

// NewService creates a new cache service
func NewService(client *redis.Client, ttl time.Duration) *Service {
	if client == nil {
		return nil
	}
	return &Service{
		client: client,
		ttl:    ttl,
	}
}

// ExtractionKey builds the cache key for an extraction snapshot.
func ExtractionKey(extractionID int64) string {
	return fmt.Sprintf("extraction:%d", extractionID)
}

// Get retrieves a value from cache
func (s *Service) Get(ctx context.Context, key string, dest interface{}) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("cache not available")
	}

	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return fmt.Errorf("cache miss")
	}
	if err != nil {
		return fmt.Errorf("cache error: %w", err)
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return nil
}

// Set stores a value in cache
func (s *Service) Set(ctx context.Context, key string, value interface{}) error {
	if s == nil || s.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

// Delete removes a value from cache
func (s *Service) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, key).Err()
}

// IsAvailable checks if cache is available
func (s *Service) IsAvailable() bool {
	return s != nil && s.client != nil
}
