package utils

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyLocker grants exclusive, time-bounded ownership of a key. The returned
// unlock func releases the key only if it is still held by the caller.
type KeyLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool)
}

// unlockScript deletes the key only when it still carries our token.
const unlockScript = `if redis.call('GET', KEYS[1]) == ARGV[1] then return redis.call('DEL', KEYS[1]) end return 0`

// NewKeyLocker prefers Redis (shared across instances) and falls back to process memory.
func NewKeyLocker(rc *redis.Client) KeyLocker {
	mem := NewMemoryLocker()
	if rc == nil {
		return mem
	}
	return &RedisLocker{rc: rc, fallback: mem}
}

// RedisLocker implements KeyLocker with SET NX PX and a compare-and-delete release.
type RedisLocker struct {
	rc       *redis.Client
	fallback *MemoryLocker
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool) {
	token := uuid.NewString()
	rkey := "lock:" + key
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ok, err := l.rc.SetNX(ctx, rkey, token, ttl).Result()
	if err != nil {
		// Redis unreachable: keep single-flight within this process at least
		Sugar.Warnf("redis lock %s unavailable, using memory lock: %v", key, err)
		return l.fallback.TryLock(ctx, key, ttl)
	}
	if !ok {
		return nil, false
	}
	return func() {
		uctx, ucancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer ucancel()
		if err := l.rc.Eval(uctx, unlockScript, []string{rkey}, token).Err(); err != nil && err != redis.Nil {
			Sugar.Warnf("redis unlock %s failed: %v", key, err)
		}
	}, true
}

type lockEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker is a process-local KeyLocker.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]lockEntry
}

// NewMemoryLocker returns an empty process-local locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: map[string]lockEntry{}}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if e, ok := l.locks[key]; ok && now.Before(e.expiresAt) {
		return nil, false
	}
	token := uuid.NewString()
	l.locks[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, ok := l.locks[key]; ok && e.token == token {
			delete(l.locks, key)
		}
	}, true
}
