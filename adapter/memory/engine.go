package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"

	"github.com/trickstertwo/xstream"
)

const EngineName = "memory"

// Config controls memory engine behavior.
type Config struct {
	// NodeSize is the trimming granularity of approximate retention: an
	// approximate trim only removes whole multiples of NodeSize entries
	// (default: 100).
	NodeSize int
}

func ConfigFromMap(cfg map[string]any) Config {
	getInt := func(k string, d int) int {
		switch v := cfg[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		default:
			return d
		}
	}
	return Config{NodeSize: max(1, getInt("node_size", 100))}
}

func (c Config) toMap() map[string]any {
	return map[string]any{"node_size": c.NodeSize}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithNow replaces the time source used for ids and idle times.
func WithNow(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine implements xstream.Engine in process memory with the same
// consumer-group semantics as a Redis stream: per-group cursor, pending
// entry list, idle-based claiming and id-ordered trimming. Values are
// stored in their string form.
type Engine struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	streams map[string]*stream
	// signal is closed and replaced whenever a blocked reader may proceed.
	signal chan struct{}

	closed atomic.Bool
}

var _ xstream.Engine = (*Engine)(nil)

// NewEngine creates an empty in-memory engine.
func NewEngine(cfg Config, opts ...EngineOption) *Engine {
	if cfg.NodeSize < 1 {
		cfg.NodeSize = 100
	}
	e := &Engine{
		cfg:     cfg,
		now:     xclock.Default().Now,
		streams: make(map[string]*stream),
		signal:  make(chan struct{}),
	}
	for _, o := range opts {
		if o != nil {
			o(e)
		}
	}
	return e
}

type record struct {
	id     xstream.EntryID
	fields map[string]string
}

type stream struct {
	entries []record
	last    xstream.EntryID
	groups  map[string]*group
}

type pendingEntry struct {
	id        xstream.EntryID
	consumer  string
	delivered time.Time
	count     int64
}

type group struct {
	lastDelivered xstream.EntryID
	pending       map[xstream.EntryID]*pendingEntry
}

func (e *Engine) broadcast() {
	close(e.signal)
	e.signal = make(chan struct{})
}

func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return xstream.NewEngineError("memory", xstream.ErrEngineUnavailable, errors.New("memory engine is closed"))
	}
	return nil
}

func groupError(op, stream, group string) error {
	return xstream.NewEngineError(op, xstream.ErrGroupNotFound,
		fmt.Errorf("NOGROUP No such key '%s' or consumer group '%s'", stream, group))
}

func (e *Engine) lookupGroup(op, streamName, groupName string) (*stream, *group, error) {
	s, ok := e.streams[streamName]
	if !ok {
		return nil, nil, groupError(op, streamName, groupName)
	}
	g, ok := s.groups[groupName]
	if !ok {
		return nil, nil, groupError(op, streamName, groupName)
	}
	return s, g, nil
}

func (e *Engine) Append(ctx context.Context, name string, fields xstream.Fields, r xstream.Retention) (string, error) {
	if err := e.checkOpen(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	values, err := fields.Strings()
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.streams[name]
	if !ok {
		s = &stream{groups: make(map[string]*group)}
		e.streams[name] = s
	}
	ms := uint64(e.now().UnixMilli())
	id := xstream.EntryID{Ms: ms}
	if ms <= s.last.Ms {
		id = s.last.Next()
	}
	s.entries = append(s.entries, record{id: id, fields: values})
	s.last = id

	if r.MaxLen > 0 {
		e.trimCount(s, len(s.entries)-int(r.MaxLen), r.Approximate)
	}
	e.broadcast()
	return id.String(), nil
}

// trimCount drops the oldest n entries, rounded down to whole nodes when approx.
func (e *Engine) trimCount(s *stream, n int, approx bool) int {
	if n <= 0 {
		return 0
	}
	if approx {
		n -= n % e.cfg.NodeSize
		if n == 0 {
			return 0
		}
	}
	s.entries = append([]record(nil), s.entries[n:]...)
	return n
}

func (e *Engine) CreateGroup(ctx context.Context, name, groupName, startID string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.streams[name]
	if !ok {
		s = &stream{groups: make(map[string]*group)}
		e.streams[name] = s
	}
	if _, ok := s.groups[groupName]; ok {
		return xstream.NewEngineError("create_group", xstream.ErrGroupExists,
			errors.New("BUSYGROUP Consumer Group name already exists"))
	}

	var start xstream.EntryID
	switch startID {
	case "$":
		start = s.last
	case "", "0":
	default:
		id, err := xstream.ParseEntryID(startID)
		if err != nil {
			return xstream.NewEngineError("create_group", nil, err)
		}
		start = id
	}
	s.groups[groupName] = &group{
		lastDelivered: start,
		pending:       make(map[xstream.EntryID]*pendingEntry),
	}
	return nil
}

func (e *Engine) DestroyGroup(ctx context.Context, name, groupName string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.streams[name]
	if !ok {
		return xstream.NewEngineError("destroy_group", xstream.ErrStreamNotFound,
			fmt.Errorf("ERR The XGROUP subcommand requires the key '%s' to exist", name))
	}
	delete(s.groups, groupName)
	// wake readers blocked on the removed group
	e.broadcast()
	return nil
}

func (e *Engine) ReadGroup(ctx context.Context, name, groupName, consumer string, block time.Duration, count int64) ([]xstream.Entry, error) {
	if count < 1 {
		count = 1
	}
	var timeout <-chan time.Time
	if block > 0 {
		t := time.NewTimer(block)
		defer t.Stop()
		timeout = t.C
	}

	for {
		if err := e.checkOpen(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e.mu.Lock()
		s, g, err := e.lookupGroup("read_group", name, groupName)
		if err != nil {
			e.mu.Unlock()
			return nil, err
		}
		out := e.deliverNew(s, g, consumer, int(count))
		wait := e.signal
		e.mu.Unlock()

		if len(out) > 0 || block < 0 {
			return out, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, nil
		case <-wait:
		}
	}
}

// deliverNew hands entries past the group cursor to consumer and records
// them as pending.
func (e *Engine) deliverNew(s *stream, g *group, consumer string, count int) []xstream.Entry {
	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].id.Compare(g.lastDelivered) > 0
	})
	now := e.now()
	var out []xstream.Entry
	for ; i < len(s.entries) && len(out) < count; i++ {
		rec := s.entries[i]
		g.lastDelivered = rec.id
		g.pending[rec.id] = &pendingEntry{id: rec.id, consumer: consumer, delivered: now, count: 1}
		out = append(out, toEntry(rec))
	}
	return out
}

func toEntry(rec record) xstream.Entry {
	f := make(xstream.Fields, len(rec.fields))
	for k, v := range rec.fields {
		f[k] = v
	}
	return xstream.Entry{ID: rec.id.String(), Fields: f}
}

func (s *stream) find(id xstream.EntryID) (record, bool) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].id.Compare(id) >= 0
	})
	if i < len(s.entries) && s.entries[i].id == id {
		return s.entries[i], true
	}
	return record{}, false
}

func sortedPending(g *group) []*pendingEntry {
	list := make([]*pendingEntry, 0, len(g.pending))
	for _, p := range g.pending {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id.Compare(list[j].id) < 0 })
	return list
}

func (e *Engine) ClaimStale(ctx context.Context, name, groupName, consumer string, minIdle time.Duration, count int64) (xstream.ClaimResult, error) {
	if err := e.checkOpen(); err != nil {
		return xstream.ClaimResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return xstream.ClaimResult{}, err
	}
	if count < 1 {
		count = 1
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, g, err := e.lookupGroup("claim", name, groupName)
	if err != nil {
		return xstream.ClaimResult{}, err
	}

	now := e.now()
	res := xstream.ClaimResult{Next: xstream.MinEntryID.String()}
	list := sortedPending(g)
	for i, p := range list {
		if now.Sub(p.delivered) < minIdle {
			continue
		}
		rec, ok := s.find(p.id)
		if !ok {
			delete(g.pending, p.id)
			res.Deleted = append(res.Deleted, p.id.String())
			continue
		}
		p.consumer = consumer
		p.delivered = now
		p.count++
		res.Entries = append(res.Entries, toEntry(rec))
		if int64(len(res.Entries)) >= count {
			if i+1 < len(list) {
				res.Next = list[i+1].id.String()
			}
			break
		}
	}
	return res, nil
}

func (e *Engine) Ack(ctx context.Context, name, groupName string, ids ...string) (int64, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	_, g, err := e.lookupGroup("ack", name, groupName)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, raw := range ids {
		id, err := xstream.ParseEntryID(raw)
		if err != nil {
			return n, xstream.NewEngineError("ack", nil, err)
		}
		if _, ok := g.pending[id]; ok {
			delete(g.pending, id)
			n++
		}
	}
	return n, nil
}

func (e *Engine) TrimMaxLen(ctx context.Context, name string, maxLen int64, approx bool) (int64, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.streams[name]
	if !ok {
		return 0, nil
	}
	return int64(e.trimCount(s, len(s.entries)-int(maxLen), approx)), nil
}

func (e *Engine) TrimMinID(ctx context.Context, name, minID string, approx bool) (int64, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	threshold, err := xstream.ParseEntryID(minID)
	if err != nil {
		return 0, xstream.NewEngineError("trim_minid", nil, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.streams[name]
	if !ok {
		return 0, nil
	}
	n := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].id.Compare(threshold) >= 0
	})
	return int64(e.trimCount(s, n, approx)), nil
}

func parseBound(raw string, low bool) (xstream.EntryID, error) {
	switch raw {
	case "-":
		return xstream.MinEntryID, nil
	case "+":
		return xstream.EntryID{Ms: ^uint64(0), Seq: ^uint64(0)}, nil
	}
	id, err := xstream.ParseEntryID(raw)
	if err != nil {
		return id, err
	}
	// "<ms>" as an upper bound covers every seq of that millisecond
	if !low && !strings.Contains(raw, "-") {
		id.Seq = ^uint64(0)
	}
	return id, nil
}

func (e *Engine) Range(ctx context.Context, name, start, end string) ([]xstream.Entry, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lo, err := parseBound(start, true)
	if err != nil {
		return nil, xstream.NewEngineError("range", nil, err)
	}
	hi, err := parseBound(end, false)
	if err != nil {
		return nil, xstream.NewEngineError("range", nil, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.streams[name]
	if !ok {
		return nil, nil
	}
	var out []xstream.Entry
	for _, rec := range s.entries {
		if rec.id.Compare(lo) >= 0 && rec.id.Compare(hi) <= 0 {
			out = append(out, toEntry(rec))
		}
	}
	return out, nil
}

func (e *Engine) Pending(ctx context.Context, name, groupName string) (xstream.PendingSummary, error) {
	if err := e.checkOpen(); err != nil {
		return xstream.PendingSummary{}, err
	}
	if err := ctx.Err(); err != nil {
		return xstream.PendingSummary{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	_, g, err := e.lookupGroup("pending", name, groupName)
	if err != nil {
		return xstream.PendingSummary{}, err
	}
	list := sortedPending(g)
	ps := xstream.PendingSummary{Count: int64(len(list)), Consumers: map[string]int64{}}
	if len(list) > 0 {
		ps.Lower = list[0].id.String()
		ps.Higher = list[len(list)-1].id.String()
	}
	for _, p := range list {
		ps.Consumers[p.consumer]++
	}
	return ps, nil
}

func (e *Engine) FlushAll(ctx context.Context) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.streams = make(map[string]*stream)
	e.broadcast()
	e.mu.Unlock()
	return nil
}

func (e *Engine) Ping(ctx context.Context) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return ctx.Err()
}

// Close wakes blocked readers, which then fail with ErrEngineUnavailable.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.mu.Lock()
	e.broadcast()
	e.mu.Unlock()
	return nil
}
