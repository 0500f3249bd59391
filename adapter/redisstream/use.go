package redisstream

import (
	"fmt"

	"github.com/trickstertwo/xstream"
)

// Adapter: Redis Streams Engine (Strategy + Adapter patterns)

const EngineName = "redis-streams"

func init() {
	if err := xstream.RegisterEngine(EngineName, func(cfg map[string]any) (xstream.Engine, error) {
		c, err := ConfigFromMap(cfg)
		if err != nil {
			return nil, err
		}
		return NewEngine(c)
	}); err != nil {
		panic(fmt.Errorf("xstream: failed to register engine %q: %w", EngineName, err))
	}
}

// New connects to Redis and builds a Client on it.
func New(cfg Config, opts ...Option) (*xstream.Client, error) {
	cb := xstream.NewClientBuilder().
		WithEngine(EngineName, cfg.toMap())

	for _, o := range opts {
		if o != nil {
			o(cb)
		}
	}
	client, err := cb.Build()
	if err != nil {
		return nil, fmt.Errorf("redisstream.New: %w", err)
	}
	return client, nil
}
