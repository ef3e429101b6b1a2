package config

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	defaults := func() *Config {
		c := &Config{}
		c.LoadDefaults()
		return c
	}

	tests := []struct {
		name        string
		args        []string
		expectPanic bool
		expected    func() *Config
	}{
		{
			name: "overrides urls and driver",
			args: []string{"cmd", "-a", "http://api:9000", "-w", "ws://api:9000/ws", "-b", "redis", "-r", "cache:6379"},
			expected: func() *Config {
				c := defaults()
				c.APIBaseURL = "http://api:9000"
				c.RealtimeURL = "ws://api:9000/ws"
				c.BroadcastDriver = BroadcastRedis
				c.RedisAddr = "cache:6379"
				return c
			},
		},
		{
			name:     "no flags keeps defaults",
			args:     []string{"cmd"},
			expected: defaults,
		},
		{
			name:        "unknown broadcast driver",
			args:        []string{"cmd", "-b", "carrier-pigeon"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			cfg := defaults()

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(cfg) })
				return
			}

			require.NotPanics(t, func() { parseFlags(cfg) })
			assert.Empty(t, cmp.Diff(tt.expected(), cfg))
		})
	}
}
