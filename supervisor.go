package xstream

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/trickstertwo/xlog"
)

// GroupConfig tunes restart behavior of a WorkerGroup.
type GroupConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64
	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64
	// FailureBackoff is the pause once the threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration
	// ShutdownTimeout bounds how long stopping a worker may take.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultGroupConfig returns suture's own defaults.
func DefaultGroupConfig() GroupConfig {
	return GroupConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// WorkerGroup runs workers concurrently under a supervisor. A worker that
// stops with an error or panics is restarted; cancelling one leaves the
// others running.
type WorkerGroup struct {
	sup    *suture.Supervisor
	logger *xlog.Logger
}

func NewWorkerGroup(name string, logger *xlog.Logger, cfg GroupConfig) *WorkerGroup {
	def := DefaultGroupConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if logger == nil {
		logger = xlog.Default()
	}
	if name == "" {
		name = "xstream"
	}

	g := &WorkerGroup{logger: logger}
	g.sup = suture.New(name, suture.Spec{
		EventHook:        g.hook,
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
	return g
}

func (g *WorkerGroup) hook(e suture.Event) {
	ev := g.logger.With(xlog.Str("supervisor_event", eventTypeName(e.Type())))
	switch e.Type() {
	case suture.EventTypeServicePanic, suture.EventTypeServiceTerminate, suture.EventTypeStopTimeout:
		ev.Warn().Msg(e.String())
	default:
		ev.Info().Msg(e.String())
	}
}

func eventTypeName(t suture.EventType) string {
	switch t {
	case suture.EventTypeStopTimeout:
		return "stop_timeout"
	case suture.EventTypeServicePanic:
		return "service_panic"
	case suture.EventTypeServiceTerminate:
		return "service_terminate"
	case suture.EventTypeBackoff:
		return "backoff"
	case suture.EventTypeResume:
		return "resume"
	default:
		return "unknown"
	}
}

// Add starts w (immediately if the group is running).
func (g *WorkerGroup) Add(w *Worker) suture.ServiceToken {
	return g.sup.Add(w)
}

// Remove stops one worker without waiting.
func (g *WorkerGroup) Remove(token suture.ServiceToken) error {
	return g.sup.Remove(token)
}

// RemoveAndWait stops one worker and waits up to timeout for it to return.
func (g *WorkerGroup) RemoveAndWait(token suture.ServiceToken, timeout time.Duration) error {
	return g.sup.RemoveAndWait(token, timeout)
}

// Serve blocks until ctx is canceled.
func (g *WorkerGroup) Serve(ctx context.Context) error {
	return g.sup.Serve(ctx)
}

func (g *WorkerGroup) ServeBackground(ctx context.Context) <-chan error {
	return g.sup.ServeBackground(ctx)
}
