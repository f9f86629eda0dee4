package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("API_BASE_URL", "http://api.local/")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("ROLE_DEPARTMENT", "Birim")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "http://api.local", cfg.API.BaseURL)
	require.Equal(t, "localhost:6380", cfg.Redis.Addr())
	require.Equal(t, time.Hour, cfg.Session.TTL)
	require.Equal(t, "sid", cfg.Session.CookieName)
	require.Equal(t, "Admin", cfg.Roles.Admin)
	require.Equal(t, "Birim", cfg.Roles.Department)
	require.Equal(t, 30*time.Second, cfg.Dashboard.PollInterval)
	require.Equal(t, 10*time.Second, cfg.API.Timeout)
}

func TestLoadConfig_RequiresAPIBaseURL(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("API_BASE_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_RejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("API_BASE_URL", "http://api.local")
	t.Setenv("SESSION_TTL_MS", "0")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestRedisAddr_EmptyWhenUnconfigured(t *testing.T) {
	require.Equal(t, "", RedisConfig{Port: "6379"}.Addr())
}

func TestLoadDevAPIConfig_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("DEVAPI_JWT_SECRET", "")

	cfg, err := LoadDevAPIConfig()
	require.NoError(t, err)
	require.Equal(t, "5010", cfg.Port)
	require.Equal(t, 2*time.Hour, cfg.TokenTTL)
	require.NotEmpty(t, cfg.JWTSecret)
	require.Equal(t, "", cfg.MongoDB.URI)
}
