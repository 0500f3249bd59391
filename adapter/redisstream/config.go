package redisstream

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Config for the Redis Streams engine with production-grade settings.
type Config struct {
	// Connection
	Addr          string `koanf:"addr"`
	Username      string `koanf:"username"`
	Password      string `koanf:"password"`
	DB            int    `koanf:"db"`
	TLS           bool   `koanf:"tls"`
	TLSServerName string `koanf:"tls_server_name"`

	// Pool
	PoolSize     int `koanf:"pool_size"`
	MinIdleConns int `koanf:"min_idle_conns"`
	MaxRetries   int `koanf:"max_retries"`

	DialTimeout time.Duration `koanf:"dial_timeout"`
	// PingTimeout bounds the connectivity check done on construction.
	PingTimeout time.Duration `koanf:"ping_timeout"`
}

// Defaults returns a Config with production-safe defaults.
func Defaults() Config {
	return Config{
		Addr:         "127.0.0.1:6379",
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		PingTimeout:  2 * time.Second,
	}
}

// Validate checks Config for production readiness.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr required")
	}
	if c.DB < 0 {
		return fmt.Errorf("config: db must be >= 0, got %d", c.DB)
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("config: pool_size must be >= 0, got %d", c.PoolSize)
	}
	if c.MinIdleConns < 0 {
		return fmt.Errorf("config: min_idle_conns must be >= 0, got %d", c.MinIdleConns)
	}
	if c.TLSServerName != "" && !c.TLS {
		return fmt.Errorf("config: tls_server_name set without tls")
	}
	return nil
}

// toMap converts Config to the generic map expected by the engine factory.
func (c Config) toMap() map[string]any {
	return map[string]any{
		"addr":            c.Addr,
		"username":        c.Username,
		"password":        c.Password,
		"db":              c.DB,
		"tls":             c.TLS,
		"tls_server_name": c.TLSServerName,
		"pool_size":       c.PoolSize,
		"min_idle_conns":  c.MinIdleConns,
		"max_retries":     c.MaxRetries,
		"dial_timeout":    c.DialTimeout,
		"ping_timeout":    c.PingTimeout,
	}
}

// ConfigFromMap overlays m on Defaults. Keys follow the koanf tags; numbers,
// booleans and durations may also be given as strings ("5s", "true").
func ConfigFromMap(m map[string]any) (Config, error) {
	c := Defaults()
	if len(m) == 0 {
		return c, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "koanf",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           &c,
	})
	if err != nil {
		return c, err
	}
	if err := dec.Decode(m); err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	return c, nil
}
