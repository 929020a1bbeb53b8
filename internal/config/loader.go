package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "SCHEDULER"

// Store and lock backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
	LockLocal   = "local"
	LockRedis   = "redis"
)

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort        int
	ShutdownTimeout time.Duration

	StoreBackend string
	SQLiteDSN    string

	LockBackend string
	LockTimeout time.Duration
	LockTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string

	LogLevel  string
	LogFormat string

	ListingCacheTTL time.Duration
}

// Load reads SCHEDULER_* variables from the process environment, after
// merging an optional .env file from the working directory.
//
// Missing and malformed values are collected and reported together with
// localized messages.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf(".env ファイルの読み込みに失敗しました: %w", err)
	}
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("STORE_BACKEND", StoreSQLite)
	v.SetDefault("SQLITE_DSN", "data/roombooking.db")
	v.SetDefault("LOCK_BACKEND", LockLocal)
	v.SetDefault("LOCK_TIMEOUT", "5s")
	v.SetDefault("LOCK_TTL", "30s")
	v.SetDefault("REDIS_DB", "0")
	v.SetDefault("KAFKA_TOPIC", "room-bookings")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LISTING_CACHE_TTL", "2s")
	return v
}

func fromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	key := func(name string) string { return envPrefix + "_" + name }
	str := func(name string) string { return strings.TrimSpace(v.GetString(name)) }

	positiveInt := func(name string) int {
		n, err := strconv.Atoi(str(name))
		if err != nil || n <= 0 {
			invalid = append(invalid, key(name))
		}
		return n
	}
	duration := func(name string, allowZero bool) time.Duration {
		d, err := time.ParseDuration(str(name))
		if err != nil || d < 0 || (d == 0 && !allowZero) {
			invalid = append(invalid, key(name))
		}
		return d
	}
	oneOf := func(name string, allowed ...string) string {
		value := strings.ToLower(str(name))
		for _, candidate := range allowed {
			if value == candidate {
				return value
			}
		}
		invalid = append(invalid, key(name))
		return value
	}

	cfg.HTTPPort = positiveInt("HTTP_PORT")
	cfg.ShutdownTimeout = duration("SHUTDOWN_TIMEOUT", false)

	cfg.StoreBackend = oneOf("STORE_BACKEND", StoreSQLite, StoreMemory)
	cfg.SQLiteDSN = str("SQLITE_DSN")
	if cfg.StoreBackend == StoreSQLite && cfg.SQLiteDSN == "" {
		missing = append(missing, key("SQLITE_DSN"))
	}

	cfg.LockBackend = oneOf("LOCK_BACKEND", LockLocal, LockRedis)
	cfg.LockTimeout = duration("LOCK_TIMEOUT", false)
	cfg.LockTTL = duration("LOCK_TTL", false)

	cfg.RedisAddr = str("REDIS_ADDR")
	cfg.RedisPassword = v.GetString("REDIS_PASSWORD")
	if cfg.LockBackend == LockRedis && cfg.RedisAddr == "" {
		missing = append(missing, key("REDIS_ADDR"))
	}
	if db, err := strconv.Atoi(str("REDIS_DB")); err != nil || db < 0 {
		invalid = append(invalid, key("REDIS_DB"))
	} else {
		cfg.RedisDB = db
	}

	cfg.KafkaBrokers = splitAndTrim(str("KAFKA_BROKERS"))
	cfg.KafkaTopic = str("KAFKA_TOPIC")
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		missing = append(missing, key("KAFKA_TOPIC"))
	}

	cfg.LogLevel = oneOf("LOG_LEVEL", "debug", "info", "warn", "error")
	cfg.LogFormat = oneOf("LOG_FORMAT", "json", "text")

	cfg.ListingCacheTTL = duration("LISTING_CACHE_TTL", true)

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// EventsEnabled reports whether booking events go to Kafka.
func (c Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
