package ratelimit

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count        int64
	windowEnd    time.Time
	lockoutUntil time.Time
}

// MemoryLimiter implements Limiter with a mutex-guarded map. Useful for tests
// and single-instance development mode; a cleanup goroutine drops stale keys
// so memory stays bounded.
type MemoryLimiter struct {
	cfg     Config
	mu      sync.Mutex
	entries map[string]*entry
	stop    chan struct{}
	now     func() time.Time
}

// NewMemoryLimiter builds an in-memory rate limiter and starts its cleanup loop.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	l := &MemoryLimiter{
		cfg:     cfg,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
		now:     func() time.Time { return time.Now().UTC() },
	}
	go l.cleanup()
	return l
}

// SetClock pins the limiter's clock. Test helper.
func (l *MemoryLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Stop terminates the cleanup goroutine.
func (l *MemoryLimiter) Stop() {
	close(l.stop)
}

func (l *MemoryLimiter) cleanup() {
	interval := l.cfg.Window
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, e := range l.entries {
				if e.windowEnd.Before(now) && e.lockoutUntil.Before(now) {
					delete(l.entries, key)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

func (l *MemoryLimiter) CheckLimit(_ context.Context, key string, maxAttempts int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		return true, nil
	}
	if e.lockoutUntil.After(now) {
		return false, nil
	}
	if e.windowEnd.Before(now) {
		return true, nil
	}
	if e.count >= int64(maxAttempts) {
		e.lockoutUntil = now.Add(l.cfg.LockoutDuration)
		return false, nil
	}
	return true, nil
}

func (l *MemoryLimiter) Increment(_ context.Context, key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || e.windowEnd.Before(now) {
		e = &entry{windowEnd: now.Add(l.cfg.Window)}
		l.entries[key] = e
	}
	e.count++
	return e.count, nil
}

func (l *MemoryLimiter) ResetLimit(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}

func (l *MemoryLimiter) GetLockoutTime(_ context.Context, key string) (*time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || !e.lockoutUntil.After(l.now()) {
		return nil, nil
	}
	until := e.lockoutUntil
	return &until, nil
}
