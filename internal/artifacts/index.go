package artifacts

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one row of the artifact ledger.
type Record struct {
	ID        string
	SessionID string
	Kind      Kind
	Path      string
	Command   string
	CreatedAt time.Time
}

// Recorder is what the session and dispatcher layers need from the index.
// A nil Recorder is valid everywhere and records nothing.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Index is a sqlite ledger of produced artifacts. It is a catalogue only;
// sessions are never restored from it.
type Index struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// OpenIndex creates or opens the ledger at path.
func OpenIndex(path string) (*Index, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and serializes
	// writers on file databases.
	db.SetMaxOpenConns(1)

	idx := &Index{db: db, dbPath: path}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (i *Index) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		path TEXT NOT NULL,
		command TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_kind ON artifacts(kind);
	CREATE INDEX IF NOT EXISTS idx_artifacts_session ON artifacts(session_id);
	CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at);
	`
	_, err := i.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (i *Index) Path() string {
	return i.dbPath
}

// Close closes the database connection.
func (i *Index) Close() error {
	return i.db.Close()
}

// Record inserts a ledger row. Missing ID and CreatedAt are filled in.
func (i *Index) Record(ctx context.Context, rec Record) error {
	if rec.Path == "" {
		return fmt.Errorf("artifact path is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	_, err := i.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, session_id, kind, path, command, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, string(rec.Kind), rec.Path, rec.Command, rec.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record artifact: %w", err)
	}
	return nil
}

// List returns the newest artifacts first. An empty kind lists every kind;
// limit <= 0 means no limit.
func (i *Index) List(ctx context.Context, kind Kind, limit int) ([]Record, error) {
	query := `SELECT id, session_id, kind, path, command, created_at FROM artifacts`
	var args []interface{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var kindStr string
		var created int64
		var command sql.NullString
		if err := rows.Scan(&rec.ID, &rec.SessionID, &kindStr, &rec.Path, &command, &created); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		rec.Kind = Kind(kindStr)
		rec.Command = command.String
		rec.CreatedAt = time.Unix(0, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}
