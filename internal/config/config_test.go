package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("DATABASE_DSN", "postgres://localhost/chat_test")
	t.Setenv("HEARTBEAT_TIMEOUT", "250ms")
	t.Setenv("SWEEP_PERIOD", "100ms")

	cfg, err := Load()
	req.NoError(err)

	req.Equal("postgres://localhost/chat_test", cfg.DatabaseDSN)
	req.Equal(":8080", cfg.HTTPAddr)
	req.Equal(250*time.Millisecond, cfg.HeartbeatTimeout)
	req.Equal(100*time.Millisecond, cfg.SweepPeriod)
	req.Equal(5*time.Minute, cfg.CacheTTL)
	req.Equal(int64(512), cfg.MaxMessageSize)
}

func TestPingPeriod_StaysBelowPongWait(t *testing.T) {
	cfg := Config{PongWait: 60 * time.Second}
	require.Less(t, cfg.PingPeriod(), cfg.PongWait)
	require.Equal(t, 54*time.Second, cfg.PingPeriod())
}
