// Package promobserver exports xstream client events as Prometheus metrics.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	client, _ := xstream.NewClientBuilder().
//	    WithEngine(redisstream.EngineName, cfg).
//	    WithObserver(promobserver.New(reg, "payments")).
//	    Build()
package promobserver

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trickstertwo/xstream"
)

// Observer implements xstream.Observer on Prometheus collectors.
type Observer struct {
	events          *prometheus.CounterVec
	errors          *prometheus.CounterVec
	trimmed         *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
}

var _ xstream.Observer = (*Observer)(nil)

// New registers the collectors on reg under namespace. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Observer{
		events: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "xstream",
				Name:      "events_total",
				Help:      "Client lifecycle events by type, stream and group",
			},
			[]string{"type", "stream", "group"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "xstream",
				Name:      "engine_errors_total",
				Help:      "Engine failures by operation and kind",
			},
			[]string{"op", "kind"},
		),
		trimmed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "xstream",
				Name:      "trimmed_entries_total",
				Help:      "Entries removed by explicit trims",
			},
			[]string{"stream"},
		),
		handlerDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "xstream",
				Name:      "handler_failure_duration_seconds",
				Help:      "Duration of failed handler calls in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"stream", "group"},
		),
	}
}

func (o *Observer) OnEvent(e xstream.Event) {
	o.events.WithLabelValues(string(e.Type), e.Stream, e.Group).Inc()
	switch e.Type {
	case xstream.EventError:
		o.errors.WithLabelValues(e.Op, kindOf(e.Err)).Inc()
	case xstream.EventTrimmed:
		o.trimmed.WithLabelValues(e.Stream).Add(float64(e.Count))
	case xstream.EventHandlerFailed:
		o.handlerDuration.WithLabelValues(e.Stream, e.Group).Observe(e.Duration.Seconds())
	}
}

func kindOf(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, xstream.ErrEngineUnavailable):
		return "unavailable"
	case errors.Is(err, xstream.ErrGroupNotFound):
		return "group_not_found"
	case errors.Is(err, xstream.ErrStreamNotFound):
		return "stream_not_found"
	case errors.Is(err, xstream.ErrGroupExists):
		return "group_exists"
	default:
		return "other"
	}
}
