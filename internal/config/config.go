package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the server. Heartbeat and sweep intervals
// live here so tests can run with compressed timings.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR,default=:8080"`
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`

	// RedisAddr is optional. When empty the read cache is disabled and
	// every request goes straight to the database.
	RedisAddr string        `env:"REDIS_ADDR"`
	CacheTTL  time.Duration `env:"CACHE_TTL,default=5m"`

	HeartbeatTimeout time.Duration `env:"HEARTBEAT_TIMEOUT,default=10s"`
	SweepPeriod      time.Duration `env:"SWEEP_PERIOD,default=5s"`

	WriteWait      time.Duration `env:"WRITE_WAIT,default=10s"`
	PongWait       time.Duration `env:"PONG_WAIT,default=60s"`
	MaxMessageSize int64         `env:"MAX_MESSAGE_SIZE,default=512"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// PingPeriod is how often the server pings a client. It must stay below
// PongWait or the connection gets reaped while still healthy.
func (c Config) PingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

// Load reads the optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}
