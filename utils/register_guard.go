package utils

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Dikshant-04/webapp/config"
)

// Registration throttling keeps per-IP counters in Redis. Without Redis every
// check passes.

func regKey(parts ...string) string {
	return "reg:" + strings.Join(parts, ":")
}

// RegistrationAllowed reports whether ip may attempt another sign-up: it is
// not temporarily banned and has not reached today's success cap.
func RegistrationAllowed(ip string) bool {
	cli := GetRedis()
	if cli == nil || ip == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if n, err := cli.Exists(ctx, regKey("ban", ip)).Result(); err == nil && n > 0 {
		return false
	}
	limit := config.Get().RegisterMaxPerIPPerDay
	if limit <= 0 {
		return true
	}
	n, err := cli.Get(ctx, regKey("day", ip, time.Now().UTC().Format("20060102"))).Int()
	if err != nil && err != redis.Nil {
		return true // fail open
	}
	return n < limit
}

// RegistrationSucceeded counts a completed sign-up towards today's cap.
func RegistrationSucceeded(ip string) {
	cli := GetRedis()
	if cli == nil || ip == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	now := time.Now().UTC()
	key := regKey("day", ip, now.Format("20060102"))
	if err := cli.Incr(ctx, key).Err(); err == nil {
		_ = cli.ExpireAt(ctx, key, now.Truncate(24*time.Hour).Add(24*time.Hour)).Err()
	}
}

// RegistrationFailed records a rejected sign-up and bans ip for a while once
// it exceeds the hourly failure budget.
func RegistrationFailed(ip string) {
	cfg := config.Get()
	cli := GetRedis()
	if cli == nil || ip == "" || cfg.RegisterMaxFailsPerHour <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	key := regKey("fail", ip, time.Now().UTC().Format("2006010215"))
	n, err := cli.Incr(ctx, key).Result()
	if err != nil {
		return
	}
	_ = cli.Expire(ctx, key, time.Hour).Err()
	if int(n) < cfg.RegisterMaxFailsPerHour {
		return
	}
	minutes := cfg.RegisterTempBanMinutes
	if minutes <= 0 {
		minutes = 60
	}
	if err := cli.Set(ctx, regKey("ban", ip), "1", time.Duration(minutes)*time.Minute).Err(); err == nil {
		Sugar.Infof("registration temporarily banned for %s after %d failures", ip, n)
	}
}
