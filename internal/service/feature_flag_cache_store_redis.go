package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisFeatureFlagEvaluationCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisFeatureFlagEvaluationCacheStore(client redis.UniversalClient, prefix string) *RedisFeatureFlagEvaluationCacheStore {
	if prefix == "" {
		prefix = "feature_flag_eval_cache"
	}
	return &RedisFeatureFlagEvaluationCacheStore{client: client, prefix: prefix}
}

func (s *RedisFeatureFlagEvaluationCacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, nil
	}
	val, err := s.client.Get(ctx, s.dataKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisFeatureFlagEvaluationCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.client == nil || ttl <= 0 {
		return nil
	}
	dataKey := s.dataKey(key)
	allIndex := s.allIndexKey()
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, dataKey, value, ttl)
	pipe.SAdd(ctx, allIndex, dataKey)
	pipe.Expire(ctx, allIndex, ttl+time.Minute)
	if flagKey := flagKeyFromCacheKey(key); flagKey != "" {
		flagIndex := s.flagIndexKey(flagKey)
		pipe.SAdd(ctx, flagIndex, dataKey)
		pipe.Expire(ctx, flagIndex, ttl+time.Minute)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisFeatureFlagEvaluationCacheStore) InvalidateFlag(ctx context.Context, flagKey string) error {
	if s.client == nil {
		return nil
	}
	return s.dropIndex(ctx, s.flagIndexKey(flagKey))
}

func (s *RedisFeatureFlagEvaluationCacheStore) InvalidateAll(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.dropIndex(ctx, s.allIndexKey())
}

func (s *RedisFeatureFlagEvaluationCacheStore) dropIndex(ctx context.Context, indexKey string) error {
	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	pipe := s.client.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, indexKey)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisFeatureFlagEvaluationCacheStore) dataKey(cacheKey string) string {
	return fmt.Sprintf("%s:data:%s", s.prefix, cacheKey)
}

func (s *RedisFeatureFlagEvaluationCacheStore) allIndexKey() string {
	return fmt.Sprintf("%s:index:all", s.prefix)
}

func (s *RedisFeatureFlagEvaluationCacheStore) flagIndexKey(flagKey string) string {
	return fmt.Sprintf("%s:index:flag:%s", s.prefix, flagKey)
}
