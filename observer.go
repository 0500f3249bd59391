package xstream

import (
	"github.com/trickstertwo/xlog"
)

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// LoggingObserver is an Adapter that emits client events via xlog.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnEvent(e Event) {
	if o.Logger == nil {
		return
	}
	ev := o.Logger.With(
		xlog.Str("type", string(e.Type)),
		xlog.Str("stream", e.Stream),
	)
	if e.Group != "" {
		ev = ev.With(xlog.Str("group", e.Group))
	}
	if e.Consumer != "" {
		ev = ev.With(xlog.Str("consumer", e.Consumer))
	}
	if e.EntryID != "" {
		ev = ev.With(xlog.Str("entry_id", e.EntryID))
	}
	switch e.Type {
	case EventError:
		ev.Warn().Str("op", e.Op).Err(e.Err).Msg("xstream engine error")
	case EventHandlerFailed:
		ev.Warn().Err(e.Err).Msg("xstream handler failed, entry left pending")
	default:
		if e.Duration > 0 {
			ev = ev.With(xlog.Dur("duration", e.Duration))
		}
		ev.Debug().Msg("xstream event")
	}
}
