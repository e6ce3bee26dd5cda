package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment
// variables.
type Config struct {
	// Provider credentials
	ProviderAPIKey      string
	ProviderAPISecret   string
	ProviderAccessToken string
	ProviderTOTPSecret  string

	// Infrastructure
	SQLitePath  string
	RedisAddr   string
	MetricsAddr string
	APIAddrVal  string
	LogLevel    string

	// Ingest / compute sizing
	IngestBars  int
	ComputeBars int

	// Scheduler
	SchedulerIngestIntervalSec  int
	SchedulerComputeIntervalSec int
	SchedulerTimeframes         string

	// Market hours
	MarketTZ              string
	MarketOpenTime        string
	MarketCloseTime       string
	MarketDays            string
	MarketAllowAfterHours bool

	// Benchmarks & rate limiting
	NiftySymbol      string
	RateLimitPerSec  int
	RateLimitPerMin  int

	// Cache TTLs
	SnapshotCacheTTLSec int
	RelativeCacheTTLSec int

	// Health
	HealthCheckIntervalSec int
}

// Load reads configuration from environment variables with the scanner's
// documented defaults. Provider credentials are read but not required at
// load time: the provider package decides, at first use, which auth
// strategy the configured combination supports (see internal/provider).
func Load() *Config {
	return &Config{
		ProviderAPIKey:      getEnv("PROVIDER_API_KEY", ""),
		ProviderAPISecret:   getEnv("PROVIDER_API_SECRET", ""),
		ProviderAccessToken: getEnv("PROVIDER_ACCESS_TOKEN", ""),
		ProviderTOTPSecret:  getEnv("PROVIDER_TOTP_SECRET", ""),

		SQLitePath:  getEnv("SQLITE_PATH", firstNonEmpty(os.Getenv("DATABASE_URL"), "data/scanner.db")),
		RedisAddr:   getEnv("REDIS_URL", "localhost:6379"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		APIAddrVal:  getEnv("API_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		IngestBars:  getEnvInt("INGEST_BARS", 220),
		ComputeBars: getEnvInt("COMPUTE_BARS", 200),

		SchedulerIngestIntervalSec:  getEnvInt("SCHEDULER_INGEST_INTERVAL_SEC", 45),
		SchedulerComputeIntervalSec: getEnvInt("SCHEDULER_COMPUTE_INTERVAL_SEC", 60),
		SchedulerTimeframes:         getEnv("SCHEDULER_TIMEFRAMES", "5m,15m,1h,1d"),

		MarketTZ:              getEnv("MARKET_TZ", "Asia/Kolkata"),
		MarketOpenTime:        getEnv("MARKET_OPEN_TIME", "09:15"),
		MarketCloseTime:       getEnv("MARKET_CLOSE_TIME", "15:30"),
		MarketDays:            getEnv("MARKET_DAYS", "MON,TUE,WED,THU,FRI"),
		MarketAllowAfterHours: getEnvBool("MARKET_ALLOW_AFTER_HOURS", false),

		NiftySymbol:     getEnv("NIFTY_SYMBOL", "NIFTY"),
		RateLimitPerSec: getEnvInt("RATE_LIMIT_PER_SEC", 10),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 300),

		SnapshotCacheTTLSec: getEnvInt("SNAPSHOT_CACHE_TTL_SEC", 0),
		RelativeCacheTTLSec: getEnvInt("RELATIVE_CACHE_TTL_SEC", 120),

		HealthCheckIntervalSec: getEnvInt("HEALTH_CHECK_INTERVAL_SEC", 30),
	}
}

// Timeframes parses SchedulerTimeframes into its comma-separated parts,
// trimmed and lower-cased, skipping blanks.
func (c *Config) Timeframes() []string {
	parts := strings.Split(c.SchedulerTimeframes, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// MarketDaysList parses MarketDays into its comma-separated 3-letter codes.
func (c *Config) MarketDaysList() []string {
	parts := strings.Split(c.MarketDays, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// IngestInterval and ComputeInterval convert the configured seconds into
// time.Duration for the scheduler.
func (c *Config) IngestInterval() time.Duration {
	return time.Duration(c.SchedulerIngestIntervalSec) * time.Second
}

func (c *Config) ComputeInterval() time.Duration {
	return time.Duration(c.SchedulerComputeIntervalSec) * time.Second
}

func (c *Config) SnapshotCacheTTL() time.Duration {
	return time.Duration(c.SnapshotCacheTTLSec) * time.Second
}

func (c *Config) RelativeCacheTTL() time.Duration {
	return time.Duration(c.RelativeCacheTTLSec) * time.Second
}

// APIAddr returns the listen address for the scanner's read API/WS server.
func (c *Config) APIAddr() string {
	return c.APIAddrVal
}

// HealthCheckInterval is how often StartLivenessChecker pings Redis/SQLite.
func (c *Config) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalSec) * time.Second
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return b
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
