package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore stores sessions in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		workflow_name TEXT NOT NULL,
		inputs TEXT,
		outputs TEXT,
		status TEXT NOT NULL,
		result TEXT,
		error TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		type TEXT NOT NULL,
		task TEXT,
		agent TEXT,
		tool TEXT,
		content TEXT,
		error TEXT,
		duration_ms INTEGER,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save upserts the session and replaces its events.
func (s *SQLiteStore) Save(sess *Session) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inputsJSON, _ := json.Marshal(sess.Inputs)
	outputsJSON, _ := json.Marshal(sess.Outputs)

	_, err = tx.Exec(`
		INSERT INTO sessions (id, workflow_name, inputs, outputs, status, result, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			outputs = excluded.outputs,
			status = excluded.status,
			result = excluded.result,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, sess.ID, sess.WorkflowName, string(inputsJSON), string(outputsJSON),
		sess.Status, sess.Result, sess.Error, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM events WHERE session_id = ?", sess.ID); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	for _, e := range sess.Events {
		_, err = tx.Exec(`
			INSERT INTO events (session_id, seq, type, task, agent, tool, content, error, duration_ms, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, sess.ID, e.SeqID, e.Type, e.Task, e.Agent, e.Tool, e.Content, e.Error, e.DurationMs, e.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to save event: %w", err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess                    Session
		inputsJSON, outputsJSON sql.NullString
		result, errMsg          sql.NullString
	)
	if err := row.Scan(&sess.ID, &sess.WorkflowName, &inputsJSON, &outputsJSON,
		&sess.Status, &result, &errMsg, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	sess.Result = result.String
	sess.Error = errMsg.String
	if inputsJSON.Valid {
		_ = json.Unmarshal([]byte(inputsJSON.String), &sess.Inputs)
	}
	if outputsJSON.Valid {
		_ = json.Unmarshal([]byte(outputsJSON.String), &sess.Outputs)
	}
	sess.Events = []Event{}
	return &sess, nil
}

const sessionColumns = `id, workflow_name, inputs, outputs, status, result, error, created_at, updated_at`

// Load loads a session and its events.
func (s *SQLiteStore) Load(id string) (*Session, error) {
	sess, err := scanSession(s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT seq, type, task, agent, tool, content, error, duration_ms, timestamp
		FROM events WHERE session_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e                                  Event
			task, agent, tool, content, errMsg sql.NullString
			durationMs                         sql.NullInt64
		)
		if err := rows.Scan(&e.SeqID, &e.Type, &task, &agent, &tool, &content, &errMsg, &durationMs, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Task, e.Agent, e.Tool = task.String, agent.String, tool.String
		e.Content, e.Error, e.DurationMs = content.String, errMsg.String, durationMs.Int64
		sess.Events = append(sess.Events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	sess.restoreSeq()
	return sess, nil
}

// List returns sessions newest first, without events.
func (s *SQLiteStore) List(limit int) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Open returns the store selected by backend ("sqlite" or "file") rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "file":
		return NewFileStore(dir)
	case "sqlite", "":
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(dir, "sessions.db"))
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}
