// Package session persists run history.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status constants for sessions.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Event types recorded in a session log.
const (
	EventRunStart   = "run_start"
	EventRunEnd     = "run_end"
	EventTaskStart  = "task_start"
	EventTaskEnd    = "task_end"
	EventToolCall   = "tool_call"
	EventToolResult = "tool_result"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Session represents one crew run.
type Session struct {
	ID           string            `json:"id"`
	WorkflowName string            `json:"workflow_name"`
	Inputs       map[string]string `json:"inputs"`
	Outputs      map[string]string `json:"outputs"` // task name -> output file
	Status       string            `json:"status"`
	Result       string            `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
	Events       []Event           `json:"events"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`

	seqCounter uint64
	mu         sync.Mutex
}

// Event represents a single entry in the session log.
type Event struct {
	SeqID      uint64    `json:"seq"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Task       string    `json:"task,omitempty"`
	Agent      string    `json:"agent,omitempty"`
	Tool       string    `json:"tool,omitempty"`
	Content    string    `json:"content,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// AddEvent appends an event with the next sequence number. Safe for
// concurrent use.
func (s *Session) AddEvent(event Event) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seqCounter++
	event.SeqID = s.seqCounter
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.Events = append(s.Events, event)
	s.UpdatedAt = time.Now()
	return event.SeqID
}

// Finish records the final status of the run.
func (s *Session) Finish(status, result, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.Result = result
	s.Error = errMsg
	s.UpdatedAt = time.Now()
}

// SetOutput records a task's output file.
func (s *Session) SetOutput(task, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Outputs == nil {
		s.Outputs = make(map[string]string)
	}
	s.Outputs[task] = path
}

func (s *Session) restoreSeq() {
	if n := len(s.Events); n > 0 {
		s.seqCounter = s.Events[n-1].SeqID
	}
}

// Store is the interface for session persistence.
type Store interface {
	Save(sess *Session) error
	Load(id string) (*Session, error)
	// List returns sessions newest first, without events. limit <= 0 means all.
	List(limit int) ([]*Session, error)
	Close() error
}

// Manager creates and updates sessions in a store.
type Manager struct {
	store Store
}

// NewManager creates a new session manager.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Create creates and persists a running session. An empty id gets a UUID.
func (m *Manager) Create(id, workflowName string, inputs map[string]string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	sess := &Session{
		ID:           id,
		WorkflowName: workflowName,
		Inputs:       inputs,
		Outputs:      make(map[string]string),
		Status:       StatusRunning,
		Events:       []Event{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.store.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Update saves changes to a session.
func (m *Manager) Update(sess *Session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.UpdatedAt = time.Now()
	return m.store.Save(sess)
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	return m.store.Load(id)
}

// List returns recent sessions, newest first.
func (m *Manager) List(limit int) ([]*Session, error) {
	return m.store.List(limit)
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}
