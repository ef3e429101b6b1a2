package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/dmitrijs2005/mycocore/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   REST API base URL
//	-w string   realtime socket URL
//	-d string   local database file
//	-b string   broadcast driver (none|redis|nats)
//	-r string   Redis address
//	-n string   NATS URL
//	-l string   log level (debug|info|warn|error)
//
// Only these flags are looked at (see flagx.FilterArgs), so other components
// may define their own. Invalid values panic.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-w", "-d", "-b", "-r", "-n", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "REST API base URL")
	fs.StringVar(&cfg.RealtimeURL, "w", cfg.RealtimeURL, "realtime socket URL")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database file")
	driver := fs.String("b", string(cfg.BroadcastDriver), "broadcast driver: none, redis or nats")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "Redis address")
	fs.StringVar(&cfg.NatsURL, "n", cfg.NatsURL, "NATS URL")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	switch d := BroadcastDriver(*driver); d {
	case BroadcastNone, BroadcastRedis, BroadcastNATS:
		cfg.BroadcastDriver = d
	default:
		panic(fmt.Sprintf("unknown broadcast driver %q", *driver))
	}
}
