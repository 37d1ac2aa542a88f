package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
)

// Config 应用运行配置，全部来自环境变量（可由 .env 提供）
type Config struct {
	Port          string
	Env           string // dev | prod
	LogLevel      string
	DBDriver      string // postgres | mysql | sqlite
	DatabaseURL   string
	SessionSecret string
	MediaRoot     string
	MaxImageBytes int64
	CacheBackend  string // lru | none
	CacheSize     int
	CacheTTL      time.Duration // 首页片段缓存的一致性窗口
}

const (
	defaultSQLiteDSN   = "yatube.db?_pragma=foreign_keys(1)"
	defaultPostgresDSN = "host=localhost user=postgres password=postgres dbname=yatube port=5432 sslmode=disable"
)

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, reading env vars from system")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:          getenv("PORT", "8080"),
		Env:           getenv("APP_ENV", "dev"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		DBDriver:      getenv("DB_DRIVER", "postgres"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SessionSecret: getenv("SESSION_SECRET", "secret_key_change_me"),
		MediaRoot:     getenv("MEDIA_ROOT", "./media"),
		CacheBackend:  getenv("CACHE_BACKEND", "lru"),
	}

	var err error
	if cfg.MaxImageBytes, err = getInt64("MAX_IMAGE_BYTES", 5<<20); err != nil {
		return nil, err
	}
	size, err := getInt64("CACHE_SIZE", 500)
	if err != nil {
		return nil, err
	}
	cfg.CacheSize = int(size)
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", 20*time.Second); err != nil {
		return nil, err
	}

	switch cfg.DBDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = defaultPostgresDSN
		}
	case "sqlite":
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = defaultSQLiteDSN
		}
	case "mysql":
		if cfg.DatabaseURL == "" {
			return nil, xerrors.New("DATABASE_URL is required for DB_DRIVER=mysql")
		}
	default:
		return nil, xerrors.Newf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	switch cfg.CacheBackend {
	case "lru", "none":
	default:
		return nil, xerrors.Newf("unsupported CACHE_BACKEND %q", cfg.CacheBackend)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env != "prod"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, xerrors.Newf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, xerrors.Newf("%s must be a duration like 20s, got %q", key, v)
	}
	return d, nil
}
