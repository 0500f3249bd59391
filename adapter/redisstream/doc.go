// Package redisstream provides the Redis Streams engine for xstream.
//
// Engine name: "redis-streams"
//
// Config keys (see Config for the koanf tags):
//   - addr: "host:port" (default "127.0.0.1:6379")
//   - username, password, db
//   - tls, tls_server_name
//   - pool_size (default 10), min_idle_conns (default 5), max_retries (default 3)
//   - dial_timeout (default 5s), ping_timeout (default 2s)
//
// LoadConfig reads the same keys from an optional YAML file and from
// XSTREAM_REDIS_* environment variables.
//
// Example builder usage:
//
//	client, _ := xstream.NewClientBuilder().
//	    WithEngine(redisstream.EngineName, map[string]any{
//	        "addr":      "localhost:6379",
//	        "pool_size": 16,
//	        "dial_timeout": "3s",
//	    }).
//	    WithRetention(xstream.Retention{MaxLen: 10_000, Approximate: true}).
//	    Build()
package redisstream
