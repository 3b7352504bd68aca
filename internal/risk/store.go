package risk

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const (
	knownIPPrefix       = "risk:ips:"
	knownLocationPrefix = "risk:locs:"
	suspiciousIPSetKey  = "risk:suspicious_ips"
)

// SignalStore tracks the per-account IP/location history and the global
// suspicious-IP set the engine scores against. Reads may be slightly stale;
// they only influence challenge/block decisions, never balance correctness.
type SignalStore interface {
	IsKnownIP(ctx context.Context, accountCode, ip string) (bool, error)
	IsKnownLocation(ctx context.Context, accountCode, location string) (bool, error)
	RememberSighting(ctx context.Context, accountCode, ip, location string) error
	IsSuspiciousIP(ctx context.Context, ip string) (bool, error)
	MarkSuspiciousIP(ctx context.Context, ip string) error
}

// RedisSignalStore keeps signal sets in Redis, shared across API instances.
type RedisSignalStore struct {
	client *redis.Client
}

// NewRedisSignalStore builds a Redis-backed signal store.
func NewRedisSignalStore(client *redis.Client) *RedisSignalStore {
	return &RedisSignalStore{client: client}
}

func (s *RedisSignalStore) IsKnownIP(ctx context.Context, accountCode, ip string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, knownIPPrefix+accountCode, ip).Result()
	if err != nil {
		return false, fmt.Errorf("check known ip: %w", err)
	}
	return ok, nil
}

func (s *RedisSignalStore) IsKnownLocation(ctx context.Context, accountCode, location string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, knownLocationPrefix+accountCode, location).Result()
	if err != nil {
		return false, fmt.Errorf("check known location: %w", err)
	}
	return ok, nil
}

func (s *RedisSignalStore) RememberSighting(ctx context.Context, accountCode, ip, location string) error {
	if ip != "" {
		if err := s.client.SAdd(ctx, knownIPPrefix+accountCode, ip).Err(); err != nil {
			return fmt.Errorf("remember ip: %w", err)
		}
	}
	if location != "" {
		if err := s.client.SAdd(ctx, knownLocationPrefix+accountCode, location).Err(); err != nil {
			return fmt.Errorf("remember location: %w", err)
		}
	}
	return nil
}

func (s *RedisSignalStore) IsSuspiciousIP(ctx context.Context, ip string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, suspiciousIPSetKey, ip).Result()
	if err != nil {
		return false, fmt.Errorf("check suspicious ip: %w", err)
	}
	return ok, nil
}

func (s *RedisSignalStore) MarkSuspiciousIP(ctx context.Context, ip string) error {
	if err := s.client.SAdd(ctx, suspiciousIPSetKey, ip).Err(); err != nil {
		return fmt.Errorf("mark suspicious ip: %w", err)
	}
	return nil
}

// MemorySignalStore is an in-memory SignalStore double for tests and dev mode.
type MemorySignalStore struct {
	mu         sync.Mutex
	ips        map[string]map[string]bool
	locations  map[string]map[string]bool
	suspicious map[string]bool
	failWith   error
}

// NewMemorySignalStore builds an empty in-memory signal store.
func NewMemorySignalStore() *MemorySignalStore {
	return &MemorySignalStore{
		ips:        make(map[string]map[string]bool),
		locations:  make(map[string]map[string]bool),
		suspicious: make(map[string]bool),
	}
}

// FailWith makes every subsequent call return err. Test helper for exercising
// the engine's fail-open/fail-closed policy.
func (s *MemorySignalStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *MemorySignalStore) IsKnownIP(_ context.Context, accountCode, ip string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	return s.ips[accountCode][ip], nil
}

func (s *MemorySignalStore) IsKnownLocation(_ context.Context, accountCode, location string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	return s.locations[accountCode][location], nil
}

func (s *MemorySignalStore) RememberSighting(_ context.Context, accountCode, ip, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if ip != "" {
		if s.ips[accountCode] == nil {
			s.ips[accountCode] = make(map[string]bool)
		}
		s.ips[accountCode][ip] = true
	}
	if location != "" {
		if s.locations[accountCode] == nil {
			s.locations[accountCode] = make(map[string]bool)
		}
		s.locations[accountCode][location] = true
	}
	return nil
}

func (s *MemorySignalStore) IsSuspiciousIP(_ context.Context, ip string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	return s.suspicious[ip], nil
}

func (s *MemorySignalStore) MarkSuspiciousIP(_ context.Context, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.suspicious[ip] = true
	return nil
}
