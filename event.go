package xstream

import (
	"time"
)

// EventType enumerates client lifecycle events for observers.
type EventType string

const (
	EventProduced      EventType = "produced"
	EventReceived      EventType = "received"
	EventClaimed       EventType = "claimed"
	EventAcked         EventType = "acked"
	EventHandlerFailed EventType = "handler_failed"
	EventEmpty         EventType = "empty"
	EventTrimmed       EventType = "trimmed"
	EventGroupCreated  EventType = "group_created"
	EventGroupRemoved  EventType = "group_removed"
	EventError         EventType = "error"
)

// Event carries telemetry for observers.
type Event struct {
	Type     EventType
	Op       string
	Stream   string
	Group    string
	Consumer string
	EntryID  string
	Count    int64
	Duration time.Duration
	Err      error

	// attached for async dispatch
	observers []Observer
}
