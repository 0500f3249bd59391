package xstream

import (
	"context"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// ClientBuilder constructs Client instances (Builder pattern).
type ClientBuilder struct {
	engineName string
	engineCfg  map[string]any
	engineInst Engine

	observers   []Observer
	logger      *xlog.Logger
	clock       xclock.Clock
	ackTimeout  time.Duration
	groupExists GroupExistsPolicy
	retention   Retention

	poolWorkers int
	poolBuffer  int
	syncObs     bool
}

// NewClientBuilder returns a builder with production defaults: 5s ack
// timeout, idempotent group creation, MaxLen 1024 approximate retention.
func NewClientBuilder() *ClientBuilder {
	return &ClientBuilder{
		ackTimeout:  5 * time.Second,
		groupExists: GroupExistsIgnore,
		retention:   DefaultRetention(),
		poolWorkers: 2,
		poolBuffer:  1024,
	}
}

// WithEngine selects a registered engine by name.
func (cb *ClientBuilder) WithEngine(name string, cfg map[string]any) *ClientBuilder {
	cb.engineName = name
	cb.engineCfg = cfg
	return cb
}

// WithEngineInstance accepts a ready Engine instance.
func (cb *ClientBuilder) WithEngineInstance(e Engine) *ClientBuilder {
	cb.engineInst = e
	return cb
}

func (cb *ClientBuilder) WithObserver(obs ...Observer) *ClientBuilder {
	for _, o := range obs {
		if o != nil {
			cb.observers = append(cb.observers, o)
		}
	}
	return cb
}

func (cb *ClientBuilder) WithLogger(l *xlog.Logger) *ClientBuilder {
	cb.logger = l
	return cb
}

func (cb *ClientBuilder) WithClock(c xclock.Clock) *ClientBuilder {
	cb.clock = c
	return cb
}

func (cb *ClientBuilder) WithAckTimeout(d time.Duration) *ClientBuilder {
	if d > 0 {
		cb.ackTimeout = d
	}
	return cb
}

// WithGroupExistsPolicy sets the client-wide default for CreateGroup.
func (cb *ClientBuilder) WithGroupExistsPolicy(p GroupExistsPolicy) *ClientBuilder {
	cb.groupExists = p
	return cb
}

// WithRetention sets the default retention for producers built on the client.
func (cb *ClientBuilder) WithRetention(r Retention) *ClientBuilder {
	cb.retention = r
	return cb
}

// WithObserverPool sizes the async observer pool.
func (cb *ClientBuilder) WithObserverPool(workers, bufferSize int) *ClientBuilder {
	cb.poolWorkers = workers
	cb.poolBuffer = bufferSize
	cb.syncObs = false
	return cb
}

// WithSyncObservers calls observers inline on the calling goroutine.
func (cb *ClientBuilder) WithSyncObservers() *ClientBuilder {
	cb.syncObs = true
	return cb
}

func (cb *ClientBuilder) Build() (*Client, error) {
	var eng Engine
	var err error

	switch {
	case cb.engineInst != nil:
		eng = cb.engineInst
	case cb.engineName != "":
		eng, err = NewEngine(cb.engineName, cb.engineCfg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoEngineConfigured
	}

	clk := cb.clock
	if clk == nil {
		clk = xclock.Default()
	}
	lg := cb.logger
	if lg == nil {
		lg = xlog.Default()
	}

	c := &Client{
		engine:      eng,
		clock:       clk,
		logger:      lg,
		ackTimeout:  cb.ackTimeout,
		groupExists: cb.groupExists,
		retention:   cb.retention,
		metrics:     &clientMetrics{},
	}
	if !cb.syncObs {
		c.observerPool = NewObserverPool(context.Background(), cb.poolWorkers, cb.poolBuffer, lg)
	}

	hasLoggingObserver := false
	for _, o := range cb.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver {
		c.AddObserver(LoggingObserver{Logger: lg})
	}
	for _, o := range cb.observers {
		c.AddObserver(o)
	}

	return c, nil
}

// New constructs a Client via Builder.
func New(init func(b *ClientBuilder)) (*Client, error) {
	b := NewClientBuilder()
	if init != nil {
		init(b)
	}
	return b.Build()
}
