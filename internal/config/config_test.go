package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := decode(v)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Security.MaxAttempts)
	assert.Equal(t, 300*time.Second, cfg.Security.LockoutDuration)
	assert.Equal(t, time.Hour, cfg.Security.SessionTTL)
	assert.Equal(t, 32, cfg.Security.SessionTokenBytes)
	assert.Equal(t, BackendPostgres, cfg.Security.LockoutBackend)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "platform:tasks", cfg.Queue.Stream)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, 10*time.Second, cfg.Postgres.ConnectTimeout)
	assert.Empty(t, cfg.Logging.Level)
	assert.Empty(t, cfg.AllowCORSOrigins)
}

func TestDecodeOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("security.maxattempts", 5)
	v.Set("security.lockoutduration", "10m")
	v.Set("security.lockoutbackend", BackendRedis)
	v.Set("allowcorsorigins", "https://a.example,https://b.example")

	cfg, err := decode(v)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Security.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Security.LockoutDuration)
	assert.Equal(t, BackendRedis, cfg.Security.LockoutBackend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowCORSOrigins)
}

func TestValidate(t *testing.T) {
	base := func() *AppConfig {
		v := viper.New()
		setDefaults(v)
		cfg, err := decode(v)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"zero attempts", func(c *AppConfig) { c.Security.MaxAttempts = 0 }},
		{"zero lockout", func(c *AppConfig) { c.Security.LockoutDuration = 0 }},
		{"zero ttl", func(c *AppConfig) { c.Security.SessionTTL = 0 }},
		{"short token", func(c *AppConfig) { c.Security.SessionTokenBytes = 8 }},
		{"unknown backend", func(c *AppConfig) { c.Security.LockoutBackend = "files" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
