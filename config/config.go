package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config.json or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	JWTExpireHours     int
	RateLimitPerMinute int
	AllowedOrigins     []string
	SiteName           string
	FrontendURL        string
	// Usernames registered with the admin role
	AdminUsernames []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database: "mysql" (default) or "sqlite"
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string
	// SMTP for notifications and password reset
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool
	// Redis for caching, locks and token state. Empty host disables Redis.
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Analytics pipeline
	AnalyticsTimezone  string
	RetentionDays      int
	ViewQueueSize      int
	ViewWorkers        int
	ViewMaxAttempts    int
	ViewRetryBackoffMs int
	// Scheduled jobs (cron specs in AnalyticsTimezone)
	DisableJobs          bool
	DailyAggregateCron   string
	MonthlyAggregateCron string
	RetentionCron        string
	WeeklyDigestCron     string
	// Password reset
	PasswordResetTTLMinutes int
	// Registration throttling per client IP (needs Redis; zero disables)
	RegisterMaxPerIPPerDay  int
	RegisterMaxFailsPerHour int
	RegisterTempBanMinutes  int
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config/config.json -> defaults -> environment variable overrides
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Printf("invalid config/config.json: %v", err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in config.json or environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Set replaces the cached configuration. Intended for tests and tools that build config in code.
func Set(c AppConfig) {
	applyDefaults(&c)
	cfg = c
	loaded = true
}

// Location resolves AnalyticsTimezone, falling back to UTC.
func (c AppConfig) Location() *time.Location {
	if c.AnalyticsTimezone == "" || strings.EqualFold(c.AnalyticsTimezone, "UTC") {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.AnalyticsTimezone)
	if err != nil {
		log.Printf("unknown AnalyticsTimezone %q, using UTC", c.AnalyticsTimezone)
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads JSON file into cfg if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if s, ok := m[key].(string); ok {
			return s
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		switch t := m[key].(type) {
		case float64:
			return int(t)
		case int:
			return t
		case json.Number:
			i, _ := t.Int64()
			return int(i)
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		b, _ := m[key].(bool)
		return b
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, ok := m[key].([]any)
		if !ok {
			return nil
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.JWTSecret = getString(app, "JWTSecret")
		out.JWTExpireHours = getInt(app, "JWTExpireHours")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
		out.AdminUsernames = getStringSlice(app, "AdminUsernames")
		out.SiteName = getString(app, "SiteName")
		out.FrontendURL = getString(app, "FrontendURL")
		out.PasswordResetTTLMinutes = getInt(app, "PasswordResetTTLMinutes")
		out.RegisterMaxPerIPPerDay = getInt(app, "RegisterMaxPerIPPerDay")
		out.RegisterMaxFailsPerHour = getInt(app, "RegisterMaxFailsPerHour")
		out.RegisterTempBanMinutes = getInt(app, "RegisterTempBanMinutes")
	}

	if g, ok := raw["gin"].(map[string]any); ok {
		out.GinMode = getString(g, "Mode")
		out.GinPath = getString(g, "LogPath")
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DBDriver = getString(dbs, "Driver")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
		out.SQLitePath = getString(dbs, "SQLitePath")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = getInt(rds, "RedisPort")
		out.RedisDB = getInt(rds, "RedisDB")
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if sm, ok := raw["smtp"].(map[string]any); ok {
		out.SMTPHost = getString(sm, "SMTPHost")
		out.SMTPPort = getInt(sm, "SMTPPort")
		out.SMTPUsername = getString(sm, "SMTPUsername")
		out.SMTPPassword = getString(sm, "SMTPPassword")
		out.SMTPFrom = getString(sm, "SMTPFrom")
		out.SMTPFromName = getString(sm, "SMTPFromName")
		out.SMTPTLS = getBool(sm, "SMTPTLS")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}

	if an, ok := raw["analytics"].(map[string]any); ok {
		out.AnalyticsTimezone = getString(an, "Timezone")
		out.RetentionDays = getInt(an, "RetentionDays")
		out.ViewQueueSize = getInt(an, "ViewQueueSize")
		out.ViewWorkers = getInt(an, "ViewWorkers")
		out.ViewMaxAttempts = getInt(an, "ViewMaxAttempts")
		out.ViewRetryBackoffMs = getInt(an, "ViewRetryBackoffMs")
	}

	if jb, ok := raw["jobs"].(map[string]any); ok {
		out.DisableJobs = getBool(jb, "Disabled")
		out.DailyAggregateCron = getString(jb, "DailyAggregate")
		out.MonthlyAggregateCron = getString(jb, "MonthlyAggregate")
		out.RetentionCron = getString(jb, "Retention")
		out.WeeklyDigestCron = getString(jb, "WeeklyDigest")
	}

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.JWTExpireHours == 0 {
		c.JWTExpireHours = 72
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.SiteName == "" {
		c.SiteName = "Webapp"
	}
	if c.FrontendURL == "" {
		c.FrontendURL = "http://localhost:3000"
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "webapp"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "data/webapp.db"
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.AnalyticsTimezone == "" {
		c.AnalyticsTimezone = "UTC"
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = 90
	}
	if c.ViewQueueSize == 0 {
		c.ViewQueueSize = 1024
	}
	if c.ViewWorkers == 0 {
		c.ViewWorkers = 4
	}
	if c.ViewMaxAttempts == 0 {
		c.ViewMaxAttempts = 3
	}
	if c.ViewRetryBackoffMs == 0 {
		c.ViewRetryBackoffMs = 200
	}
	if c.DailyAggregateCron == "" {
		c.DailyAggregateCron = "5 0 * * *"
	}
	if c.MonthlyAggregateCron == "" {
		c.MonthlyAggregateCron = "30 0 1 * *"
	}
	if c.RetentionCron == "" {
		c.RetentionCron = "0 1 * * 0"
	}
	if c.WeeklyDigestCron == "" {
		c.WeeklyDigestCron = "0 9 * * 1"
	}
	if c.PasswordResetTTLMinutes == 0 {
		c.PasswordResetTTLMinutes = 60
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("DB_DRIVER", ""); v != "" {
		c.DBDriver = v
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("SQLITE_PATH", ""); v != "" {
		c.SQLitePath = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v, c.RedisPort)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("SMTP_HOST", ""); v != "" {
		c.SMTPHost = v
	}
	if v := getEnv("SMTP_PORT", ""); v != "" {
		c.SMTPPort = mustParseInt(v, c.SMTPPort)
	}
	if v := getEnv("SMTP_USERNAME", ""); v != "" {
		c.SMTPUsername = v
	}
	if v := getEnv("SMTP_PASSWORD", ""); v != "" {
		c.SMTPPassword = v
	}
	if v := getEnv("SMTP_FROM", ""); v != "" {
		c.SMTPFrom = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("ANALYTICS_TIMEZONE", ""); v != "" {
		c.AnalyticsTimezone = v
	}
	if v := getEnv("RETENTION_DAYS", ""); v != "" {
		c.RetentionDays = mustParseInt(v, c.RetentionDays)
	}
	if v := getEnv("DISABLE_JOBS", ""); v != "" {
		c.DisableJobs = strings.EqualFold(v, "true") || v == "1"
	}
	if list := readListEnv("ALLOWED_ORIGINS"); len(list) > 0 {
		c.AllowedOrigins = list
	}
	if list := readListEnv("ADMIN_USERNAMES"); len(list) > 0 {
		c.AdminUsernames = list
	}
}

func mustParseInt(v string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func readListEnv(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
