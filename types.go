package xstream

import (
	"time"
)

// DefaultMaxLen is the retention bound applied on append unless overridden.
const DefaultMaxLen int64 = 1024

// Entry is one record of a stream as returned by the engine.
type Entry struct {
	ID     string
	Fields Fields
}

// Retention bounds a stream on append. MaxLen 0 disables trimming.
type Retention struct {
	MaxLen      int64
	Approximate bool
}

// DefaultRetention returns MaxLen 1024, approximate.
func DefaultRetention() Retention {
	return Retention{MaxLen: DefaultMaxLen, Approximate: true}
}

// ClaimResult is the outcome of one stale-entry claim.
type ClaimResult struct {
	// Next is the cursor for a follow-up scan; "0-0" when the scan wrapped.
	Next    string
	Entries []Entry
	// Deleted lists pending ids whose entries were trimmed away.
	Deleted []string
}

// PendingSummary describes a group's pending entry list.
type PendingSummary struct {
	Count     int64
	Lower     string
	Higher    string
	Consumers map[string]int64
}

// GroupExistsPolicy decides what CreateGroup does when the group is already there.
type GroupExistsPolicy int

const (
	// GroupExistsIgnore treats an existing group as success.
	GroupExistsIgnore GroupExistsPolicy = iota
	// GroupExistsFail surfaces ErrGroupExists.
	GroupExistsFail
)

func (p GroupExistsPolicy) String() string {
	switch p {
	case GroupExistsIgnore:
		return "ignore"
	case GroupExistsFail:
		return "fail"
	default:
		return "unknown"
	}
}

// PoolStats returns telemetry about the observer pool.
type PoolStats struct {
	Dropped      uint64 // Events dropped due to full buffer
	Processed    uint64 // Events successfully processed
	ActiveEvents int    // Current queue depth
	Workers      int    // Number of dispatch goroutines
	BufferSize   int    // Channel capacity
}

// Metrics is a snapshot of client counters.
type Metrics struct {
	Produced         uint64
	Received         uint64
	Claimed          uint64
	Acked            uint64
	HandlerFailures  uint64
	Empty            uint64
	Trimmed          uint64
	Errors           uint64
	EventsDropped    uint64
	AvgHandlerTimeMs float64
}

// HealthStatus indicates client health for probes.
type HealthStatus struct {
	Status    string // "healthy", "degraded", "unhealthy"
	Metrics   Metrics
	Timestamp time.Time
	Message   string
}
