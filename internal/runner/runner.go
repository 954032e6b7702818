// Package runner executes lead generation runs in the background.
package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/vinayprograms/leadsynapse/internal/crew"
	"github.com/vinayprograms/leadsynapse/internal/leads"
	"github.com/vinayprograms/leadsynapse/internal/logging"
	"github.com/vinayprograms/leadsynapse/internal/session"
)

// State of a run.
type State string

const (
	StateQueued   State = "queued"
	StateRunning  State = "running"
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

// ErrShuttingDown is returned by Start after Shutdown.
var ErrShuttingDown = errors.New("runner is shutting down")

// ErrNotFound is returned by Get for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// Generator runs one lead generation. *leads.Service implements it.
type Generator interface {
	Generate(ctx context.Context, runID string, in leads.Inputs) (*leads.Report, error)
	RunDir(runID string) string
}

// Run is the state of a single run.
type Run struct {
	ID         string        `json:"id"`
	Inputs     leads.Inputs  `json:"inputs"`
	State      State         `json:"state"`
	Report     *leads.Report `json:"report,omitempty"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
}

// Done reports whether the run has finished.
func (r *Run) Done() bool {
	return r.State == StateComplete || r.State == StateFailed
}

// DefaultRetain is how many finished runs stay in memory.
const DefaultRetain = 100

// Runner starts runs asynchronously, with at most N executing at once.
type Runner struct {
	gen      Generator
	sem      *semaphore.Weighted
	sessions *session.Manager
	logger   *logging.Logger
	retain   int

	mu     sync.Mutex
	runs   map[string]*Run
	order  []string // run IDs, oldest first
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithRetain bounds how many finished runs are held in memory. Older ones
// are dropped and served from the session store.
func WithRetain(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.retain = n
		}
	}
}

// New creates a runner. sessions may be nil; it backs Get for runs that are
// no longer in memory.
func New(gen Generator, maxConcurrent int, sessions *session.Manager, opts ...Option) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		gen:      gen,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		sessions: sessions,
		logger:   logging.New().WithComponent("runner"),
		retain:   DefaultRetain,
		runs:     make(map[string]*Run),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start validates the inputs and queues a run, returning its ID at once.
func (r *Runner) Start(in leads.Inputs) (string, error) {
	in, err := in.Validate()
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrShuttingDown
	}
	id := uuid.NewString()
	r.runs[id] = &Run{ID: id, Inputs: in, State: StateQueued, CreatedAt: time.Now()}
	r.order = append(r.order, id)
	r.wg.Add(1)
	go r.execute(id, in)

	r.logger.Info("run queued", map[string]interface{}{"run_id": id, "domain": in.Domain, "area": in.Area})
	return id, nil
}

func (r *Runner) execute(id string, in leads.Inputs) {
	defer r.wg.Done()

	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		r.finish(id, nil, fmt.Errorf("run cancelled before start: %w", err))
		return
	}
	defer r.sem.Release(1)

	r.update(id, func(run *Run) { run.State = StateRunning })
	report, err := r.gen.Generate(r.ctx, id, in)
	r.finish(id, report, err)
}

func (r *Runner) update(id string, fn func(*Run)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; ok {
		fn(run)
	}
}

func (r *Runner) finish(id string, report *leads.Report, err error) {
	r.mu.Lock()
	if run, ok := r.runs[id]; ok {
		run.Report = report
		run.FinishedAt = time.Now()
		run.State = StateComplete
		if err != nil {
			run.State = StateFailed
			run.Error = err.Error()
		}
	}
	r.evict()
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("run failed", map[string]interface{}{"run_id": id, "error": err.Error()})
	}
}

// evict drops the oldest finished runs beyond retain. Queued and running
// runs, which are the only ones with live event subscribers, are kept.
// Callers hold r.mu.
func (r *Runner) evict() {
	finished := 0
	for _, id := range r.order {
		if r.runs[id].Done() {
			finished++
		}
	}
	excess := finished - r.retain
	if excess <= 0 {
		return
	}
	kept := r.order[:0]
	for _, id := range r.order {
		if excess > 0 && r.runs[id].Done() {
			delete(r.runs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}

// Get returns a snapshot of a run. Runs not held in memory are rebuilt from
// the session store and their output directory.
func (r *Runner) Get(id string) (*Run, error) {
	r.mu.Lock()
	if run, ok := r.runs[id]; ok {
		cp := *run
		r.mu.Unlock()
		return &cp, nil
	}
	r.mu.Unlock()

	if r.sessions == nil {
		return nil, ErrNotFound
	}
	sess, err := r.sessions.Get(id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.fromSession(sess), nil
}

func (r *Runner) fromSession(sess *session.Session) *Run {
	run := &Run{
		ID:         sess.ID,
		Inputs:     leads.Inputs{Domain: sess.Inputs["domain"], Area: sess.Inputs["area"]},
		CreatedAt:  sess.CreatedAt,
		FinishedAt: sess.UpdatedAt,
		Error:      sess.Error,
	}
	dir := r.gen.RunDir(sess.ID)
	for _, path := range sess.Outputs {
		dir = filepath.Dir(path)
		break
	}

	switch sess.Status {
	case session.StatusComplete:
		run.State = StateComplete
		run.Report = leads.BuildReport(dir, &crew.Result{Raw: sess.Result}, nil)
	case session.StatusFailed:
		run.State = StateFailed
		run.Report = leads.BuildReport(dir, nil, errors.New(sess.Error))
	default:
		// Left running by a process that exited.
		run.State = StateFailed
		run.Error = "run interrupted"
		run.FinishedAt = time.Time{}
		return run
	}
	run.Report.RunID = sess.ID
	run.Report.Inputs = run.Inputs
	return run
}

// Active returns the runs held in memory, newest first.
func (r *Runner) Active() []*Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Run, 0, len(r.runs))
	for _, run := range r.runs {
		cp := *run
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Shutdown stops accepting runs, cancels in-flight ones and waits for them
// to return or for ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
