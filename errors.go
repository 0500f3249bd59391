package xstream

import (
	"errors"
	"fmt"
)

var (
	ErrNoEngineConfigured          = errors.New("xstream: no engine configured")
	ErrClientClosed                = errors.New("xstream: client is closed")
	ErrEngineUnavailable           = errors.New("xstream: engine unavailable")
	ErrGroupNotFound               = errors.New("xstream: consumer group not found")
	ErrStreamNotFound              = errors.New("xstream: stream not found")
	ErrGroupExists                 = errors.New("xstream: consumer group already exists")
	ErrInvalidStream               = errors.New("xstream: stream name must not be empty")
	ErrInvalidGroup                = errors.New("xstream: group name must not be empty")
	ErrInvalidHandler              = errors.New("xstream: handler must not be nil")
	ErrInvalidField                = errors.New("xstream: invalid field")
	ErrFieldNotFound               = errors.New("xstream: field not found")
	ErrInvalidEntryID              = errors.New("xstream: invalid entry id")
	ErrHandlerPanic                = errors.New("xstream: handler panic")
	ErrObserverPoolShutdownTimeout = errors.New("xstream: observer pool shutdown timeout")
)

// ErrUnknownEngine is returned when no engine factory is registered under a name.
type ErrUnknownEngine struct{ name string }

func (e ErrUnknownEngine) Error() string { return fmt.Sprintf("xstream: unknown engine: %s", e.name) }

// EngineError is a classified engine failure. Both the kind sentinel and the
// driver error stay reachable through errors.Is and errors.As.
type EngineError struct {
	Op   string
	Kind error
	Err  error
}

// NewEngineError wraps err as an *EngineError. A nil err yields nil.
func NewEngineError(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}
	return &EngineError{Op: op, Kind: kind, Err: err}
}

func (e *EngineError) Error() string {
	if e.Kind == nil {
		return fmt.Sprintf("xstream: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("xstream: %s: %v (%v)", e.Op, e.Err, e.Kind)
}

func (e *EngineError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

// PanicError carries a recovered handler panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("xstream: handler panic: %v", e.Value) }

func (e *PanicError) Unwrap() error { return ErrHandlerPanic }
