package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	echoerrors "github.com/echohq/echo/pkg/errors"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id         TEXT PRIMARY KEY,
	agent_id   TEXT NOT NULL,
	type       TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_agent_created
	ON audit_entries(agent_id, created_at DESC);
`

// SQLiteRecorder is the single-instance default Recorder. Multi-instance
// deployments should point Recorder at the shared memory store instead.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder opens (creating if needed) the audit database.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		// Audit content can quote message bodies; keep the directory private.
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, echoerrors.Wrap(err, echoerrors.ErrCodeStorageWrite, "failed to create audit directory")
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, echoerrors.Wrap(err, echoerrors.ErrCodeStorageWrite, "failed to open audit database")
	}

	// SQLite supports one writer at a time; WAL keeps readers unblocked.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, echoerrors.Wrap(err, echoerrors.ErrCodeStorageWrite, "failed to enable WAL")
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, echoerrors.Wrap(err, echoerrors.ErrCodeStorageWrite, "failed to set busy timeout")
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, echoerrors.Wrap(err, echoerrors.ErrCodeStorageWrite, "failed to apply audit schema")
	}

	return &SQLiteRecorder{db: db}, nil
}

func (r *SQLiteRecorder) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.Type == "" {
		entry.Type = EntryType
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return echoerrors.Wrap(err, echoerrors.ErrCodeStorageWrite, "failed to encode audit metadata")
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_entries (id, agent_id, type, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.AgentID, entry.Type, entry.Content, string(metadata), entry.CreatedAt,
	)
	if err != nil {
		return echoerrors.Wrap(err, echoerrors.ErrCodeStorageWrite, "failed to insert audit entry").
			WithContext("entry_id", entry.ID)
	}
	return nil
}

func (r *SQLiteRecorder) List(ctx context.Context, agentID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, agent_id, type, content, metadata, created_at
		FROM audit_entries`
	args := []any{}
	if agentID != "" {
		query += ` WHERE agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, echoerrors.Wrap(err, echoerrors.ErrCodeStorageRead, "failed to query audit entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var metadata sql.NullString
		if err := rows.Scan(&entry.ID, &entry.AgentID, &entry.Type, &entry.Content, &metadata, &entry.CreatedAt); err != nil {
			return nil, echoerrors.Wrap(err, echoerrors.ErrCodeStorageRead, "failed to scan audit entry")
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
				return nil, echoerrors.Wrap(err, echoerrors.ErrCodeStorageRead, "corrupt audit metadata").
					WithContext("entry_id", entry.ID)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, echoerrors.Wrap(err, echoerrors.ErrCodeStorageRead, "failed to iterate audit entries")
	}
	return entries, nil
}

// Close closes the underlying database.
func (r *SQLiteRecorder) Close() error {
	if r.db == nil {
		return nil
	}
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close audit database: %w", err)
	}
	return nil
}
