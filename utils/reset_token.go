package utils

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// in-memory fallback store
type resetEntry struct {
	userID    uint
	expiresAt time.Time
}

var (
	resetStore   = map[string]resetEntry{}
	resetStoreMu sync.Mutex
)

// GenerateResetToken returns a random 64 hex char token.
func GenerateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func resetKey(token string) string {
	return "reset:password:" + token
}

// SaveResetToken stores token -> user with TTL. Prefer Redis; fallback to memory.
func SaveResetToken(token string, userID uint, ttl time.Duration) {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, resetKey(token), strconv.FormatUint(uint64(userID), 10), ttl).Err(); err == nil {
			return
		}
	}
	resetStoreMu.Lock()
	defer resetStoreMu.Unlock()
	purgeExpiredResetLocked()
	resetStore[token] = resetEntry{userID: userID, expiresAt: time.Now().Add(ttl)}
}

// ConsumeResetToken returns the user bound to token and deletes it. A token is usable once.
func ConsumeResetToken(token string) (uint, bool) {
	if token == "" {
		return 0, false
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		key := resetKey(token)
		// Prefer GETDEL (Redis >= 6.2)
		val, err := rc.GetDel(ctx, key).Result()
		if err == redis.Nil {
			return 0, false
		}
		if err != nil {
			// Fallback to atomic Lua: GET then DEL
			script := `local v=redis.call('GET', KEYS[1]); if v then redis.call('DEL', KEYS[1]); end; return v`
			if res, lerr := rc.Eval(ctx, script, []string{key}).Result(); lerr == nil {
				val, _ = res.(string)
				err = nil
			}
		}
		if err == nil {
			if id, perr := strconv.ParseUint(val, 10, 64); perr == nil && id > 0 {
				return uint(id), true
			}
			return 0, false
		}
		// On Redis error (e.g., network), fall through to memory fallback
	}
	resetStoreMu.Lock()
	defer resetStoreMu.Unlock()
	entry, ok := resetStore[token]
	if !ok {
		return 0, false
	}
	delete(resetStore, token)
	if time.Now().After(entry.expiresAt) {
		return 0, false
	}
	return entry.userID, true
}

func purgeExpiredResetLocked() {
	now := time.Now()
	for k, e := range resetStore {
		if now.After(e.expiresAt) {
			delete(resetStore, k)
		}
	}
}
