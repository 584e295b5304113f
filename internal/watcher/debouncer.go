package watcher

import (
	"sort"
	"sync"
	"time"
)

// DefaultInterval is the quiet period before a batch is emitted
const DefaultInterval = 250 * time.Millisecond

// EventOp represents the type of file system operation
type EventOp int

const (
	OpCreate EventOp = iota
	OpWrite
	OpRemove
	OpRename
)

func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event is a coalesced file system event
type Event struct {
	Path string
	Op   EventOp
}

// Debouncer collects events and hands them over in one batch after a quiet
// period. Events for the same path within the window collapse to the latest.
type Debouncer struct {
	interval time.Duration
	onFlush  func([]Event)

	mu      sync.Mutex
	pending map[string]EventOp
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer calling onFlush with each batch, sorted by path
func NewDebouncer(interval time.Duration, onFlush func([]Event)) *Debouncer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Debouncer{
		interval: interval,
		onFlush:  onFlush,
		pending:  make(map[string]EventOp),
	}
}

// Add records an event and restarts the quiet period
func (d *Debouncer) Add(path string, op EventOp) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.pending[path] = op
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	batch := make([]Event, 0, len(d.pending))
	for path, op := range d.pending {
		batch = append(batch, Event{Path: path, Op: op})
	}
	d.pending = make(map[string]EventOp)
	d.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	d.onFlush(batch)
}

// Stop discards pending events; later Adds are ignored
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = make(map[string]EventOp)
}
