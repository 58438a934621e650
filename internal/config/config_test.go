package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "Bearer", cfg.BearerKey)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 5*time.Second, cfg.WSAuthTimeout)
	assert.False(t, cfg.NATSEnabled)
	assert.Less(t, cfg.WSPingPeriod, cfg.WSPongWait)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BEARER_KEY", "Token")
	t.Setenv("WS_AUTH_TIMEOUT", "2s")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("WS_SEND_BUFFER", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg := Load()

	assert.Equal(t, "Token", cfg.BearerKey)
	assert.Equal(t, 2*time.Second, cfg.WSAuthTimeout)
	assert.True(t, cfg.NATSEnabled)
	assert.Equal(t, 64, cfg.WSSendBuffer)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}
