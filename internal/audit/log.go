package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultAuditPath = "audit/audit.sqlite"
	// EnvDBPath overrides the audit DB path when a Logger has none.
	EnvDBPath = "RESPLAN_AUDIT_DB"

	busyTimeoutMillis = "5000"
)

// Event is one row of the audit log.
type Event struct {
	ID        int64
	Timestamp time.Time
	Actor     string
	Type      string
	Payload   map[string]any
}

// Logger writes audit events to a specific SQLite DB path. It holds one connection,
// opened on first use, and serializes access to it; a Logger is safe for concurrent use.
type Logger struct {
	DBPath string

	mu sync.Mutex
	db *sql.DB
}

// NewLogger returns a Logger bound to the provided DB path.
func NewLogger(dbPath string) *Logger {
	return &Logger{DBPath: dbPath}
}

// LogEvent writes an audit event to the configured SQLite-backed log.
func (l *Logger) LogEvent(actor string, eventType string, payload any) error {
	if l == nil {
		return withDB("", func(db *sql.DB) error {
			return insertEvent(db, actor, eventType, payload)
		})
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	db, err := l.conn()
	if err != nil {
		return err
	}
	return insertEvent(db, actor, eventType, payload)
}

// Events returns the logged events of the given type, oldest first. An empty type
// returns every event.
func (l *Logger) Events(eventType string) ([]Event, error) {
	var events []Event
	read := func(db *sql.DB) error {
		var err error
		events, err = queryEvents(db, eventType)
		return err
	}
	if l == nil {
		if err := withDB("", read); err != nil {
			return nil, err
		}
		return events, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	db, err := l.conn()
	if err != nil {
		return nil, err
	}
	if err := read(db); err != nil {
		return nil, err
	}
	return events, nil
}

// Close releases the connection. The Logger reopens it on next use.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func (l *Logger) conn() (*sql.DB, error) {
	if l.db != nil {
		return l.db, nil
	}
	db, err := openDB(l.DBPath)
	if err != nil {
		return nil, err
	}
	l.db = db
	return db, nil
}

func withDB(dbPath string, fn func(*sql.DB) error) error {
	db, err := openDB(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()
	return fn(db)
}

// openDB opens the log with a busy timeout so that writers in other processes (a CLI
// run next to serve) wait for the lock instead of failing.
func openDB(dbPath string) (*sql.DB, error) {
	resolved, err := resolveDBPath(dbPath)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", resolved+"?_pragma=busy_timeout("+busyTimeoutMillis+")")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL,
			actor TEXT NOT NULL,
			type TEXT NOT NULL,
			payload_json TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

func resolveDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		dbPath = os.Getenv(EnvDBPath)
	}
	if dbPath == "" {
		dbPath = defaultAuditPath
	}
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("resolve audit db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure audit db dir: %w", err)
	}
	return absPath, nil
}

func insertEvent(db *sql.DB, actor string, eventType string, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = db.Exec(
		"INSERT INTO events (ts, actor, type, payload_json) VALUES (?, ?, ?, ?)",
		time.Now().UTC(),
		actor,
		eventType,
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func queryEvents(db *sql.DB, eventType string) ([]Event, error) {
	query := "SELECT id, ts, actor, type, payload_json FROM events"
	var args []any
	if eventType != "" {
		query += " WHERE type = ?"
		args = append(args, eventType)
	}
	query += " ORDER BY id"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var events []Event
	for rows.Next() {
		var ev Event
		var payloadJSON string
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.Actor, &ev.Type, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if err := json.Unmarshal([]byte(payloadJSON), &ev.Payload); err != nil {
			return nil, fmt.Errorf("decode audit payload %d: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
