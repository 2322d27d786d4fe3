// Package store persists the small amount of cross-cycle state: the
// last classified regime and the last good cycle result. Redis-backed
// in production so restarts still report regime changes correctly; an
// in-memory fallback covers single-process runs.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/coinpulse/regimescan/internal/domain"
)

const (
	keyLastRegime = "regimescan:last_regime"
	keyLastResult = "regimescan:last_result"
)

// StateStore is what the pipeline needs between cycles.
type StateStore interface {
	// LastRegime returns the persisted regime label, or "" when none
	// has been stored yet.
	LastRegime(ctx context.Context) (string, error)
	SaveRegime(ctx context.Context, regime domain.Regime) error
	SaveResult(ctx context.Context, result *domain.CycleResult) error
	LastResult(ctx context.Context) (*domain.CycleResult, error)
}

// RedisStore implements StateStore on a Redis client.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) LastRegime(ctx context.Context) (string, error) {
	val, err := s.rdb.Get(ctx, keyLastRegime).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load last regime: %w", err)
	}
	return val, nil
}

func (s *RedisStore) SaveRegime(ctx context.Context, regime domain.Regime) error {
	if err := s.rdb.Set(ctx, keyLastRegime, regime.String(), s.ttl).Err(); err != nil {
		return fmt.Errorf("save regime: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveResult(ctx context.Context, result *domain.CycleResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal cycle result: %w", err)
	}
	if err := s.rdb.Set(ctx, keyLastResult, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save cycle result: %w", err)
	}
	return nil
}

func (s *RedisStore) LastResult(ctx context.Context) (*domain.CycleResult, error) {
	data, err := s.rdb.Get(ctx, keyLastResult).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cycle result: %w", err)
	}
	var result domain.CycleResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal cycle result: %w", err)
	}
	return &result, nil
}

// MemoryStore is the in-process StateStore used when Redis is
// disabled and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	regime string
	result *domain.CycleResult
}

func NewMemory() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) LastRegime(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regime, nil
}

func (s *MemoryStore) SaveRegime(_ context.Context, regime domain.Regime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regime = regime.String()
	return nil
}

func (s *MemoryStore) SaveResult(_ context.Context, result *domain.CycleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
	return nil
}

func (s *MemoryStore) LastResult(context.Context) (*domain.CycleResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, nil
}
