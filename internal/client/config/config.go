package config

import (
	"log/slog"
	"time"
)

// BroadcastDriver selects the cross-process transport for system events.
type BroadcastDriver string

const (
	BroadcastNone  BroadcastDriver = "none"
	BroadcastRedis BroadcastDriver = "redis"
	BroadcastNATS  BroadcastDriver = "nats"
)

// Config holds runtime settings for the mycocore client.
//
// Reconnect* fields parameterise the realtime supervisor backoff:
// delay(n) = min(ReconnectMaxDelay, ReconnectBaseDelay * 2^n), with at most
// ReconnectMaxAttempts attempts per failure episode.
type Config struct {
	APIBaseURL   string
	RealtimeURL  string
	DatabasePath string

	BroadcastDriver BroadcastDriver
	RedisAddr       string
	NatsURL         string

	RequestTimeout       time.Duration
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	ReconnectMaxAttempts int

	PinLength       int
	RecencyCapacity int
	LogCapacity     int

	LogLevel string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8000/api"
	c.RealtimeURL = "ws://127.0.0.1:8000/api/ws/logs"
	c.DatabasePath = "mycocore.db"

	c.BroadcastDriver = BroadcastNone
	c.RedisAddr = "localhost:6379"
	c.NatsURL = "nats://127.0.0.1:4222"

	c.RequestTimeout = 15 * time.Second
	c.ReconnectBaseDelay = 500 * time.Millisecond
	c.ReconnectMaxDelay = 10 * time.Second
	c.ReconnectMaxAttempts = 5

	c.PinLength = 4
	c.RecencyCapacity = 100
	c.LogCapacity = 100

	c.LogLevel = "warn"
}

// SlogLevel parses LogLevel, falling back to warn for unknown names.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelWarn
	}
	return l
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
