package xstream

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// EngineFactory constructs engines from a config blob.
type EngineFactory func(cfg map[string]any) (Engine, error)

// CodecFactory constructs codecs via Factory pattern.
type CodecFactory func() Codec

var (
	engineRegistryMu sync.RWMutex
	engineRegistry   = map[string]EngineFactory{}

	codecRegistryMu sync.RWMutex
	codecRegistry   = map[string]CodecFactory{
		"json": func() Codec { return JSONCodec{} },
	}
)

// RegisterEngine registers a backend adapter.
func RegisterEngine(name string, factory EngineFactory) error {
	if name == "" {
		return errors.New("xstream: engine name must not be empty")
	}
	if factory == nil {
		return errors.New("xstream: engine factory must not be nil")
	}
	engineRegistryMu.Lock()
	engineRegistry[name] = factory
	engineRegistryMu.Unlock()
	return nil
}

// NewEngine constructs an engine by name with config.
func NewEngine(name string, cfg map[string]any) (Engine, error) {
	engineRegistryMu.RLock()
	f, ok := engineRegistry[name]
	engineRegistryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownEngine{name: name}
	}
	return f(cfg)
}

// Engines lists registered engine names in order.
func Engines() []string {
	engineRegistryMu.RLock()
	defer engineRegistryMu.RUnlock()
	names := make([]string, 0, len(engineRegistry))
	for n := range engineRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RegisterCodec registers a codec factory by name.
func RegisterCodec(name string, factory CodecFactory) error {
	if name == "" {
		return errors.New("xstream: codec name must not be empty")
	}
	if factory == nil {
		return errors.New("xstream: codec factory must not be nil")
	}
	codecRegistryMu.Lock()
	codecRegistry[name] = factory
	codecRegistryMu.Unlock()
	return nil
}

// NewCodec constructs a codec by name or returns an error.
func NewCodec(name string) (Codec, error) {
	codecRegistryMu.RLock()
	f, ok := codecRegistry[name]
	codecRegistryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("xstream: codec %q not registered", name)
	}
	return f(), nil
}
