package syncutil

import (
	"context"
	"hash/fnv"
)

const shardCount = 256

// KeyedMutex serializes work per string key using a fixed pool of channel-based
// locks. Memory stays bounded no matter how many keys are seen; keys hashing to
// the same shard occasionally contend with each other. Waiters can abandon the
// acquire when their context is cancelled.
type KeyedMutex struct {
	shards [shardCount]chan struct{}
}

// NewKeyedMutex builds a keyed mutex with all shards unlocked.
func NewKeyedMutex() *KeyedMutex {
	m := &KeyedMutex{}
	for i := range m.shards {
		m.shards[i] = make(chan struct{}, 1)
	}
	return m
}

// Lock acquires the lock for key, blocking until it is available or ctx is
// done. On success it returns an unlock function the caller must invoke.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	shard := m.shards[m.index(key)]
	select {
	case shard <- struct{}{}:
		return func() { <-shard }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) index(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}
