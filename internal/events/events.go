// Package events fans out run progress to in-process subscribers and
// optional external sinks.
package events

import (
	"sync"
	"time"

	"github.com/vinayprograms/leadsynapse/internal/logging"
)

// Type identifies a progress event.
type Type string

const (
	RunStarted    Type = "run_started"
	TaskStarted   Type = "task_started"
	ToolCalled    Type = "tool_called"
	TaskCompleted Type = "task_completed"
	RunCompleted  Type = "run_completed"
	RunFailed     Type = "run_failed"
)

// Event is a single progress update for a run.
type Event struct {
	RunID   string    `json:"run_id"`
	Type    Type      `json:"type"`
	Task    string    `json:"task,omitempty"`
	Agent   string    `json:"agent,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// Terminal reports whether no further events follow for the run.
func (e Event) Terminal() bool {
	return e.Type == RunCompleted || e.Type == RunFailed
}

// Publisher accepts events.
type Publisher interface {
	Publish(e Event)
}

// Sink receives every published event, e.g. a message broker.
type Sink interface {
	Publish(e Event) error
	Close() error
}

const (
	defaultBuffer  = 64
	defaultMaxRuns = 100
)

type subscriber struct {
	ch chan Event
}

type runLog struct {
	events []Event
	done   bool
	subs   map[*subscriber]struct{}
}

// Bus is an in-process pub/sub keyed by run ID. Late subscribers get the
// run's history replayed. Slow subscribers lose events instead of blocking
// publishers.
type Bus struct {
	mu      sync.Mutex
	runs    map[string]*runLog
	order   []string
	sinks   []Sink
	buffer  int
	maxRuns int
	dropped uint64
	logger  *logging.Logger
}

// NewBus creates a bus. buffer is the per-subscriber channel size and
// maxRuns bounds how many runs keep history; zero values pick defaults.
func NewBus(buffer, maxRuns int) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if maxRuns <= 0 {
		maxRuns = defaultMaxRuns
	}
	return &Bus{
		runs:    make(map[string]*runLog),
		buffer:  buffer,
		maxRuns: maxRuns,
		logger:  logging.New().WithComponent("events"),
	}
}

// AddSink registers an external sink.
func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

func (b *Bus) run(id string) *runLog {
	r, ok := b.runs[id]
	if !ok {
		r = &runLog{subs: make(map[*subscriber]struct{})}
		b.runs[id] = r
		b.order = append(b.order, id)
		b.evict()
	}
	return r
}

// evict drops the oldest finished runs beyond maxRuns.
func (b *Bus) evict() {
	for len(b.order) > b.maxRuns {
		evicted := false
		for i, id := range b.order {
			if r := b.runs[id]; r.done && len(r.subs) == 0 {
				delete(b.runs, id)
				b.order = append(b.order[:i], b.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}

// Publish records the event and delivers it to subscribers and sinks.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.Lock()
	r := b.run(e.RunID)
	if r.done {
		b.mu.Unlock()
		return
	}
	r.events = append(r.events, e)
	for s := range r.subs {
		select {
		case s.ch <- e:
		default:
			b.dropped++
		}
	}
	if e.Terminal() {
		r.done = true
		for s := range r.subs {
			close(s.ch)
		}
		r.subs = make(map[*subscriber]struct{})
	}
	sinks := append([]Sink(nil), b.sinks...)
	b.mu.Unlock()

	for _, s := range sinks {
		if err := s.Publish(e); err != nil {
			b.logger.Warn("sink publish failed", map[string]interface{}{
				"run_id": e.RunID,
				"type":   string(e.Type),
				"error":  err.Error(),
			})
		}
	}
}

// Subscribe returns a channel carrying the run's history followed by live
// events. The channel is closed after the terminal event or when cancel is
// called.
func (b *Bus) Subscribe(runID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.run(runID)
	size := b.buffer
	if len(r.events) > size {
		size = len(r.events) + b.buffer
	}
	s := &subscriber{ch: make(chan Event, size)}
	for _, e := range r.events {
		s.ch <- e
	}
	if r.done {
		close(s.ch)
		return s.ch, func() {}
	}
	r.subs[s] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := r.subs[s]; ok {
				delete(r.subs, s)
				close(s.ch)
			}
		})
	}
	return s.ch, cancel
}

// History returns a copy of the events recorded for a run.
func (b *Bus) History(runID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.runs[runID]
	if !ok {
		return nil
	}
	return append([]Event(nil), r.events...)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close closes every sink.
func (b *Bus) Close() error {
	b.mu.Lock()
	sinks := b.sinks
	b.sinks = nil
	b.mu.Unlock()

	var firstErr error
	for _, s := range sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
