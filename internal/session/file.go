package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// JSONL record types.
const (
	RecordTypeHeader = "header"
	RecordTypeEvent  = "event"
	RecordTypeFooter = "footer"
)

// JSONLRecord is a wrapper for JSONL lines with type discrimination.
type JSONLRecord struct {
	RecordType string `json:"_type"`

	// header
	ID           string            `json:"id,omitempty"`
	WorkflowName string            `json:"workflow_name,omitempty"`
	Inputs       map[string]string `json:"inputs,omitempty"`
	CreatedAt    time.Time         `json:"created_at,omitempty"`

	// event
	Event *Event `json:"event,omitempty"`

	// footer
	Status    string            `json:"status,omitempty"`
	Result    string            `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	Outputs   map[string]string `json:"outputs,omitempty"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
}

// FileStore stores one JSONL file per session: a header line, one line per
// event and a footer with the final state.
type FileStore struct {
	dir string
}

// NewFileStore creates a new file-based store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".jsonl")
}

// Save writes the session atomically.
func (s *FileStore) Save(sess *Session) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	records := make([]JSONLRecord, 0, len(sess.Events)+2)
	records = append(records, JSONLRecord{
		RecordType:   RecordTypeHeader,
		ID:           sess.ID,
		WorkflowName: sess.WorkflowName,
		Inputs:       sess.Inputs,
		CreatedAt:    sess.CreatedAt,
	})
	for i := range sess.Events {
		evt := sess.Events[i]
		records = append(records, JSONLRecord{RecordType: RecordTypeEvent, Event: &evt})
	}
	records = append(records, JSONLRecord{
		RecordType: RecordTypeFooter,
		Status:     sess.Status,
		Result:     sess.Result,
		Error:      sess.Error,
		Outputs:    sess.Outputs,
		UpdatedAt:  sess.UpdatedAt,
	})
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
	}

	tmp := s.path(sess.ID) + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return os.Rename(tmp, s.path(sess.ID))
}

// Load reads a session from disk.
func (s *FileStore) Load(id string) (*Session, error) {
	return s.load(id, true)
}

func (s *FileStore) load(id string, withEvents bool) (*Session, error) {
	f, err := os.Open(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sess := &Session{Events: []Event{}}
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			if perr := parseJSONLLine(line, sess, withEvents); perr != nil {
				return nil, perr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading JSONL: %w", err)
		}
	}
	sess.restoreSeq()
	return sess, nil
}

func parseJSONLLine(line []byte, sess *Session, withEvents bool) error {
	var record JSONLRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return fmt.Errorf("failed to parse JSONL line: %w", err)
	}
	switch record.RecordType {
	case RecordTypeHeader:
		sess.ID = record.ID
		sess.WorkflowName = record.WorkflowName
		sess.Inputs = record.Inputs
		sess.CreatedAt = record.CreatedAt
	case RecordTypeEvent:
		if withEvents && record.Event != nil {
			sess.Events = append(sess.Events, *record.Event)
		}
	case RecordTypeFooter:
		sess.Status = record.Status
		sess.Result = record.Result
		sess.Error = record.Error
		sess.Outputs = record.Outputs
		sess.UpdatedAt = record.UpdatedAt
	}
	return nil
}

// List returns sessions newest first, without events.
func (s *FileStore) List(limit int) ([]*Session, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read session directory: %w", err)
	}
	var out []*Session
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		sess, err := s.load(strings.TrimSuffix(e.Name(), ".jsonl"), false)
		if err != nil {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }
