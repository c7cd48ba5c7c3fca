package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/domain"
)

// FeatureFlagEvaluationCacheStore caches per (flag, user) evaluation results.
type FeatureFlagEvaluationCacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	InvalidateFlag(ctx context.Context, flagKey string) error
	InvalidateAll(ctx context.Context) error
}

// evaluationCacheKey has the shape "f:<FLAG>|u:<user id>"; user 0 is anonymous.
func evaluationCacheKey(flag domain.FlagKey, userID uint) string {
	return flagCacheKeyPrefix(string(flag)) + "u:" + strconv.FormatUint(uint64(userID), 10)
}

func flagCacheKeyPrefix(flagKey string) string {
	return "f:" + flagKey + "|"
}

func flagKeyFromCacheKey(cacheKey string) string {
	if !strings.HasPrefix(cacheKey, "f:") {
		return ""
	}
	rest := cacheKey[len("f:"):]
	sep := strings.Index(rest, "|")
	if sep <= 0 {
		return ""
	}
	return rest[:sep]
}

type NoopFeatureFlagEvaluationCacheStore struct{}

func NewNoopFeatureFlagEvaluationCacheStore() *NoopFeatureFlagEvaluationCacheStore {
	return &NoopFeatureFlagEvaluationCacheStore{}
}

func (s *NoopFeatureFlagEvaluationCacheStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (s *NoopFeatureFlagEvaluationCacheStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (s *NoopFeatureFlagEvaluationCacheStore) InvalidateFlag(context.Context, string) error {
	return nil
}

func (s *NoopFeatureFlagEvaluationCacheStore) InvalidateAll(context.Context) error {
	return nil
}

type featureFlagCacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

type InMemoryFeatureFlagEvaluationCacheStore struct {
	mu      sync.RWMutex
	entries map[string]featureFlagCacheEntry
	now     func() time.Time
}

func NewInMemoryFeatureFlagEvaluationCacheStore() *InMemoryFeatureFlagEvaluationCacheStore {
	return &InMemoryFeatureFlagEvaluationCacheStore{
		entries: map[string]featureFlagCacheEntry{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryFeatureFlagEvaluationCacheStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := s.now()
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if now.After(entry.expiresAt) {
		s.mu.Lock()
		if current, ok := s.entries[key]; ok && !current.expiresAt.After(now) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), entry.payload...), true, nil
}

func (s *InMemoryFeatureFlagEvaluationCacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	s.entries[key] = featureFlagCacheEntry{payload: append([]byte(nil), value...), expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *InMemoryFeatureFlagEvaluationCacheStore) InvalidateFlag(_ context.Context, flagKey string) error {
	prefix := flagCacheKeyPrefix(flagKey)
	s.mu.Lock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *InMemoryFeatureFlagEvaluationCacheStore) InvalidateAll(_ context.Context) error {
	s.mu.Lock()
	s.entries = map[string]featureFlagCacheEntry{}
	s.mu.Unlock()
	return nil
}
