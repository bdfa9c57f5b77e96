package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel        slog.Level
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	DefaultSpeedKmh float64
	MinSpeedKmh     float64
	MaxSpeedKmh     float64
	SpeedSampleSize int

	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration

	ETABaseTimePerRoute      int
	ETAMaxAdditionalTime     int
	ETADefaultStoppedMinutes int

	PollInterval  time.Duration
	BusStaleAfter time.Duration

	RedisEnabled     bool
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	StopsCacheTTL    time.Duration
	CacheWarmOnStart bool

	RateLimitEnabled   bool
	RateLimitPerWindow int
	RateLimitWindow    time.Duration
	RateLimitWhitelist []string

	MetricsAddr string
}

func Load() (*Config, error) {
	// Load .env into the environment; a missing file is fine.
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	return &Config{
		LogLevel:        getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL:    dsn,
		DBMaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 5),

		DefaultSpeedKmh: getFloatEnv("DEFAULT_SPEED_KMH", 20.0),
		MinSpeedKmh:     getFloatEnv("MIN_SPEED_KMH", 5.0),
		MaxSpeedKmh:     getFloatEnv("MAX_SPEED_KMH", 80.0),
		SpeedSampleSize: getIntEnv("SPEED_SAMPLE_SIZE", 10),

		CacheTTL:             time.Duration(getIntEnv("CACHE_TTL_SECONDS", 15)) * time.Second,
		CacheCleanupInterval: time.Duration(getIntEnv("CACHE_CLEANUP_INTERVAL", 300)) * time.Second,

		ETABaseTimePerRoute:      getIntEnv("ETA_BASE_TIME_PER_ROUTE", 90),
		ETAMaxAdditionalTime:     getIntEnv("ETA_MAX_ADDITIONAL_TIME", 180),
		ETADefaultStoppedMinutes: getIntEnv("ETA_DEFAULT_STOPPED_MINUTES", 60),

		PollInterval:  getDurationEnv("POLL_INTERVAL", 10*time.Second),
		BusStaleAfter: getDurationEnv("BUS_STALE_AFTER", 5*time.Minute),

		RedisEnabled:     getBoolEnv("REDIS_ENABLED", false),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getIntEnv("REDIS_DB", 0),
		StopsCacheTTL:    getDurationEnv("STOPS_CACHE_TTL", 24*time.Hour),
		CacheWarmOnStart: getBoolEnv("CACHE_WARM_ON_START", true),

		RateLimitEnabled:   getBoolEnv("RATE_LIMIT_ENABLED", false),
		RateLimitPerWindow: getIntEnv("RATE_LIMIT_PER_WINDOW", 100),
		RateLimitWindow:    getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitWhitelist: getCSVEnv("RATE_LIMIT_WHITELIST"),

		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultVal
	}
}

func getCSVEnv(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			result = append(result, t)
		}
	}
	return result
}
