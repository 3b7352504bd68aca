package device

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	recordPrefix = "device:v1:"
	codePrefix   = "device:code:v1:"
)

// Store persists device records and short-lived verification code hashes.
// Code entries carry a TTL; an expired code reads as not found, never as an
// error.
type Store interface {
	Get(ctx context.Context, deviceID string) (Record, bool, error)
	Put(ctx context.Context, record Record) error
	PutCode(ctx context.Context, deviceID string, hash []byte, ttl time.Duration) error
	GetCode(ctx context.Context, deviceID string) ([]byte, bool, error)
	DeleteCode(ctx context.Context, deviceID string) error
}

// RedisStore keeps device state in Redis so every API instance sees the same
// trust decisions.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed device store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, deviceID string) (Record, bool, error) {
	payload, err := s.client.Get(ctx, recordPrefix+deviceID).Bytes()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get device record: %w", err)
	}
	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return Record{}, false, fmt.Errorf("decode device record: %w", err)
	}
	return record, true, nil
}

func (s *RedisStore) Put(ctx context.Context, record Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode device record: %w", err)
	}
	if err := s.client.Set(ctx, recordPrefix+record.DeviceID, payload, 0).Err(); err != nil {
		return fmt.Errorf("put device record: %w", err)
	}
	return nil
}

func (s *RedisStore) PutCode(ctx context.Context, deviceID string, hash []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, codePrefix+deviceID, hash, ttl).Err(); err != nil {
		return fmt.Errorf("put verification code: %w", err)
	}
	return nil
}

func (s *RedisStore) GetCode(ctx context.Context, deviceID string) ([]byte, bool, error) {
	hash, err := s.client.Get(ctx, codePrefix+deviceID).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get verification code: %w", err)
	}
	return hash, true, nil
}

func (s *RedisStore) DeleteCode(ctx context.Context, deviceID string) error {
	return s.client.Del(ctx, codePrefix+deviceID).Err()
}

type memoryCode struct {
	hash    []byte
	expires time.Time
}

// MemoryStore is an in-memory Store double for unit tests and dev mode.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	codes   map[string]memoryCode
	now     func() time.Time
}

// NewMemoryStore builds an empty in-memory device store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		codes:   make(map[string]memoryCode),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock pins the store's clock for TTL checks. Test helper.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Get(_ context.Context, deviceID string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[deviceID]
	return record, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.DeviceID] = record
	return nil
}

func (s *MemoryStore) PutCode(_ context.Context, deviceID string, hash []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[deviceID] = memoryCode{hash: hash, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) GetCode(_ context.Context, deviceID string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[deviceID]
	if !ok || !code.expires.After(s.now()) {
		delete(s.codes, deviceID)
		return nil, false, nil
	}
	return code.hash, true, nil
}

func (s *MemoryStore) DeleteCode(_ context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, deviceID)
	return nil
}
