package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("PORT", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, defaultSQLiteDSN, cfg.DatabaseURL)
	require.Equal(t, 20*time.Second, cfg.CacheTTL)
	require.Equal(t, int64(5<<20), cfg.MaxImageBytes)
	require.True(t, cfg.IsDev())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/yatube")
	t.Setenv("CACHE_TTL", "1m")
	t.Setenv("CACHE_BACKEND", "none")
	t.Setenv("APP_ENV", "prod")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@db/yatube", cfg.DatabaseURL)
	require.Equal(t, time.Minute, cfg.CacheTTL)
	require.Equal(t, "none", cfg.CacheBackend)
	require.False(t, cfg.IsDev())
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"ttl":     {"DB_DRIVER": "sqlite", "CACHE_TTL": "soon"},
		"size":    {"DB_DRIVER": "sqlite", "CACHE_SIZE": "-3"},
		"driver":  {"DB_DRIVER": "oracle"},
		"backend": {"DB_DRIVER": "sqlite", "CACHE_BACKEND": "redis"},
		"mysql":   {"DB_DRIVER": "mysql", "DATABASE_URL": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
		})
	}
}
