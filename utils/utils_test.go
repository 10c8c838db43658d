package utils

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dikshant-04/webapp/config"
)

func init() {
	config.Set(config.AppConfig{JWTSecret: "utils-test-secret"})
}

// withRedis points the shared client at a fresh miniredis for the test.
func withRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetRedis(rc)
	t.Cleanup(func() {
		SetRedis(nil)
		_ = rc.Close()
	})
	return mr
}

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	unlock, ok := l.TryLock(ctx, "job", time.Minute)
	require.True(t, ok)
	_, ok = l.TryLock(ctx, "job", time.Minute)
	assert.False(t, ok, "held key")
	_, ok = l.TryLock(ctx, "other", time.Minute)
	assert.True(t, ok, "keys are independent")

	unlock()
	unlock2, ok := l.TryLock(ctx, "job", time.Minute)
	require.True(t, ok)
	// a stale unlock must not release the new holder
	unlock()
	_, ok = l.TryLock(ctx, "job", time.Minute)
	assert.False(t, ok)
	unlock2()

	_, ok = l.TryLock(ctx, "short", time.Millisecond)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)
	_, ok = l.TryLock(ctx, "short", time.Minute)
	assert.True(t, ok, "expired lock is reclaimed")
}

func TestRedisLocker(t *testing.T) {
	mr := withRedis(t)
	ctx := context.Background()
	l := NewKeyLocker(GetRedis())
	require.IsType(t, &RedisLocker{}, l)

	unlock, ok := l.TryLock(ctx, "analytics:daily:2026-03-09", time.Minute)
	require.True(t, ok)
	assert.True(t, mr.Exists("lock:analytics:daily:2026-03-09"))

	_, ok = NewKeyLocker(GetRedis()).TryLock(ctx, "analytics:daily:2026-03-09", time.Minute)
	assert.False(t, ok, "lock is shared across lockers")

	unlock()
	assert.False(t, mr.Exists("lock:analytics:daily:2026-03-09"))

	_, ok = l.TryLock(ctx, "ttl", time.Minute)
	require.True(t, ok)
	mr.FastForward(2 * time.Minute)
	_, ok = l.TryLock(ctx, "ttl", time.Minute)
	assert.True(t, ok)
}

func TestNewKeyLockerWithoutRedis(t *testing.T) {
	assert.IsType(t, &MemoryLocker{}, NewKeyLocker(nil))
}

func TestResetToken(t *testing.T) {
	check := func(t *testing.T) {
		tok, err := GenerateResetToken()
		require.NoError(t, err)
		assert.Len(t, tok, 64)

		SaveResetToken(tok, 42, time.Minute)
		id, ok := ConsumeResetToken(tok)
		require.True(t, ok)
		assert.Equal(t, uint(42), id)

		_, ok = ConsumeResetToken(tok)
		assert.False(t, ok, "tokens are single use")
		_, ok = ConsumeResetToken("")
		assert.False(t, ok)
	}

	t.Run("memory", func(t *testing.T) {
		SetRedis(nil)
		check(t)

		SaveResetToken("expired", 7, -time.Second)
		_, ok := ConsumeResetToken("expired")
		assert.False(t, ok)
	})

	t.Run("redis", func(t *testing.T) {
		mr := withRedis(t)
		check(t)

		SaveResetToken("abc", 9, time.Minute)
		assert.True(t, mr.Exists("reset:password:abc"))
		mr.FastForward(2 * time.Minute)
		_, ok := ConsumeResetToken("abc")
		assert.False(t, ok)
	})
}

func TestTokenBlacklist(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		SetRedis(nil)
		BlacklistToken("tok-a", time.Now().Add(time.Minute))
		assert.True(t, IsTokenBlacklisted("tok-a"))
		assert.False(t, IsTokenBlacklisted("tok-b"))

		BlacklistToken("tok-expired", time.Now().Add(-time.Minute))
		assert.False(t, IsTokenBlacklisted("tok-expired"))
	})

	t.Run("redis", func(t *testing.T) {
		mr := withRedis(t)
		BlacklistToken("tok-r", time.Now().Add(time.Minute))
		assert.True(t, mr.Exists("jwt:blacklist:tok-r"))
		assert.True(t, IsTokenBlacklisted("tok-r"))
		mr.FastForward(2 * time.Minute)
		assert.False(t, IsTokenBlacklisted("tok-r"))
	})
}

func TestJWT(t *testing.T) {
	tok, err := GenerateToken(5, "writer", "staff", time.Hour)
	require.NoError(t, err)
	claims, err := ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, uint(5), claims.UserID)
	assert.Equal(t, "writer", claims.Username)
	assert.Equal(t, "staff", claims.Role)
	assert.NotEmpty(t, claims.ID)

	again, err := GenerateToken(5, "writer", "staff", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, tok, again)

	expired, err := GenerateToken(5, "writer", "staff", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.Error(t, err)

	_, err = ParseToken(tok[:len(tok)-2] + "xx")
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword("a1"), ErrPasswordTooShort)
	assert.ErrorIs(t, ValidatePassword("abcdefgh"), ErrPasswordTooWeak)
	assert.ErrorIs(t, ValidatePassword("12345678"), ErrPasswordTooWeak)
	assert.NoError(t, ValidatePassword("gopher2026"))

	hash, err := HashPassword("gopher2026")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "gopher2026"))
	assert.False(t, CheckPassword(hash, "gopher2027"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("  Hello, World! "))
	assert.Equal(t, "cafe-creme", Slugify("Café Crème"))

	random := Slugify("!!!")
	assert.Len(t, random, 12)
	assert.NotEqual(t, random, Slugify("!!!"))

	long := Slugify(strings.Repeat("word ", 100))
	assert.LessOrEqual(t, len(long), 200)
	assert.False(t, strings.HasSuffix(long, "-"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, `<p>ok</p>`, Sanitize(`<p onclick="x()">ok</p><script>alert(1)</script>`))
	assert.Equal(t, "bold text", SanitizeText(" <b>bold</b> text "))
}

func TestRegistrationGuard(t *testing.T) {
	t.Run("no redis means no throttling", func(t *testing.T) {
		SetRedis(nil)
		RegistrationFailed("198.51.100.7")
		RegistrationSucceeded("198.51.100.7")
		assert.True(t, RegistrationAllowed("198.51.100.7"))
	})

	prev := config.Get()
	t.Cleanup(func() { config.Set(prev) })
	next := prev
	next.RegisterMaxPerIPPerDay = 2
	next.RegisterMaxFailsPerHour = 3
	next.RegisterTempBanMinutes = 5
	config.Set(next)

	t.Run("daily cap", func(t *testing.T) {
		withRedis(t)
		ip := "198.51.100.8"
		for i := 0; i < 2; i++ {
			require.True(t, RegistrationAllowed(ip))
			RegistrationSucceeded(ip)
		}
		assert.False(t, RegistrationAllowed(ip))
		assert.True(t, RegistrationAllowed("198.51.100.9"))
	})

	t.Run("repeated failures ban temporarily", func(t *testing.T) {
		mr := withRedis(t)
		ip := "198.51.100.10"
		RegistrationFailed(ip)
		RegistrationFailed(ip)
		assert.True(t, RegistrationAllowed(ip))
		RegistrationFailed(ip)
		assert.False(t, RegistrationAllowed(ip))

		mr.FastForward(6 * time.Minute)
		assert.True(t, RegistrationAllowed(ip))
	})
}
