package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/mycocore/internal/flagx"
	"github.com/dmitrijs2005/mycocore/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from zero values so a partial file only
// overrides what it names.
type JsonConfig struct {
	APIBaseURL   *string `json:"api_base_url"`
	RealtimeURL  *string `json:"realtime_url"`
	DatabasePath *string `json:"database_path"`

	BroadcastDriver *string `json:"broadcast_driver"`
	RedisAddr       *string `json:"redis_addr"`
	NatsURL         *string `json:"nats_url"`

	RequestTimeout       *timex.Duration `json:"request_timeout"`
	ReconnectBaseDelay   *timex.Duration `json:"reconnect_base_delay"`
	ReconnectMaxDelay    *timex.Duration `json:"reconnect_max_delay"`
	ReconnectMaxAttempts *int            `json:"reconnect_max_attempts"`

	PinLength       *int `json:"pin_length"`
	RecencyCapacity *int `json:"recency_capacity"`
	LogCapacity     *int `json:"log_capacity"`

	LogLevel *string `json:"log_level"`
}

// parseJson overlays cfg with values from the JSON file named by -c/-config.
// It is a no-op when no file is given and panics on read or decode errors.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setString(&cfg.RealtimeURL, jc.RealtimeURL)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.RedisAddr, jc.RedisAddr)
	setString(&cfg.NatsURL, jc.NatsURL)
	setString(&cfg.LogLevel, jc.LogLevel)
	if jc.BroadcastDriver != nil {
		cfg.BroadcastDriver = BroadcastDriver(*jc.BroadcastDriver)
	}

	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.ReconnectBaseDelay != nil {
		cfg.ReconnectBaseDelay = jc.ReconnectBaseDelay.Duration
	}
	if jc.ReconnectMaxDelay != nil {
		cfg.ReconnectMaxDelay = jc.ReconnectMaxDelay.Duration
	}

	setInt(&cfg.ReconnectMaxAttempts, jc.ReconnectMaxAttempts)
	setInt(&cfg.PinLength, jc.PinLength)
	setInt(&cfg.RecencyCapacity, jc.RecencyCapacity)
	setInt(&cfg.LogCapacity, jc.LogCapacity)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
