package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_defaults(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("STORAGE", "memory")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("EVENT_TIMEZONE", "")
	t.Setenv("SWEEP_INTERVAL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("MEMORY_SEED_USERS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, time.UTC, cfg.EventLocation)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, "dev-secret", cfg.JWTSecret)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.SeedUsers)
}

func TestLoad_overrides(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("STORAGE", "postgres")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("EVENT_TIMEZONE", "Europe/Berlin")
	t.Setenv("SWEEP_INTERVAL", "15s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")
	t.Setenv("MEMORY_SEED_USERS", "org-1:org@example.com:s3cret:with:colons, att-1::pw")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", cfg.EventLocation.String())
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, []SeedUser{
		{ID: "org-1", Email: "org@example.com", Secret: "s3cret:with:colons"},
		{ID: "att-1", Email: "", Secret: "pw"},
	}, cfg.SeedUsers)
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown storage", map[string]string{"STORAGE": "mongo"}},
		{"bad timezone", map[string]string{"EVENT_TIMEZONE": "Mars/Olympus"}},
		{"bad interval", map[string]string{"SWEEP_INTERVAL": "soon"}},
		{"negative interval", map[string]string{"SWEEP_INTERVAL": "-1m"}},
		{"production without secret", map[string]string{"GO_ENV": "production", "JWT_SECRET": ""}},
		{"seed user without secret", map[string]string{"MEMORY_SEED_USERS": "org-1:org@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GO_ENV", "test")
			t.Setenv("STORAGE", "memory")
			t.Setenv("JWT_SECRET", "s3cret")
			t.Setenv("EVENT_TIMEZONE", "UTC")
			t.Setenv("SWEEP_INTERVAL", "1m")
			t.Setenv("MEMORY_SEED_USERS", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
