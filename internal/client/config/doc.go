// Package config loads runtime configuration for the mycocore client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   REST API base URL
//	-w string   realtime socket URL
//	-d string   local database file
//	-b string   broadcast driver: none, redis or nats
//	-r string   Redis address (host:port)
//	-n string   NATS URL
//
// # JSON schema
//
// Durations accept strings like "500ms" or integer nanoseconds:
//
//	{
//	  "api_base_url": "http://127.0.0.1:8000/api",
//	  "realtime_url": "ws://127.0.0.1:8000/api/ws/logs",
//	  "database_path": "mycocore.db",
//	  "broadcast_driver": "redis",
//	  "redis_addr": "localhost:6379",
//	  "request_timeout": "15s",
//	  "reconnect_base_delay": "500ms",
//	  "reconnect_max_delay": "10s",
//	  "reconnect_max_attempts": 5
//	}
//
// Fields missing from the JSON file keep their previous value.
package config
