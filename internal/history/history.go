// Package history records every transfer in a SQLite database
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Ning0612/fsbridge/internal/logger"
	"github.com/Ning0612/fsbridge/internal/transient"
)

// DBFileName is the database file inside the data directory
const DBFileName = "fsbridge.db"

// Direction of a transfer relative to the local filesystem
type Direction string

const (
	Download Direction = "download"
	Upload   Direction = "upload"
)

// Status of a transfer
type Status string

const (
	StatusRunning  Status = "running"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Transfer is one recorded transfer
type Transfer struct {
	ID         string
	Backend    string
	Direction  Direction
	RemotePath string
	LocalPath  string
	Bytes      int64
	Status     Status
	Error      string
	StartTime  time.Time
	EndTime    time.Time // zero while running
}

// Duration returns how long the transfer took, zero while running
func (t Transfer) Duration() time.Duration {
	if t.EndTime.IsZero() {
		return 0
	}
	return t.EndTime.Sub(t.StartTime)
}

// Store handles transfer history persistence
type Store struct {
	db  *sql.DB
	log logger.Logger
}

// Open opens (creating if needed) the history database in dataDir
func Open(dataDir string, log logger.Logger) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFileName)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit connection pool to prevent "database is locked" errors
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable WAL mode for better concurrency and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode and busy timeout: %w", err)
	}

	s := &Store{db: db, log: logger.OrNop(log)}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the database schema
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		backend TEXT NOT NULL,
		direction TEXT NOT NULL,
		remote_path TEXT NOT NULL,
		local_path TEXT NOT NULL,
		bytes INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_start ON transfers(start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_transfers_backend_start ON transfers(backend, start_time DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	return transient.DoWithData(ctx, s.log, op, transient.IsDatabaseLocked, func() (sql.Result, error) {
		return s.db.ExecContext(ctx, query, args...)
	})
}

// Record inserts a running transfer and returns its ID
func (s *Store) Record(ctx context.Context, backend string, dir Direction, remotePath, localPath string) (string, error) {
	if dir != Download && dir != Upload {
		return "", fmt.Errorf("invalid direction: %s", dir)
	}

	id := uuid.NewString()
	_, err := s.exec(ctx, "history.record", `
		INSERT INTO transfers (id, backend, direction, remote_path, local_path, status, start_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, backend, string(dir), remotePath, localPath, string(StatusRunning), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to record transfer: %w", err)
	}
	return id, nil
}

// Finish closes the transfer id with its outcome.
// A nil transferErr is success; canceled is told apart from failed.
func (s *Store) Finish(ctx context.Context, id string, bytes int64, transferErr error) error {
	status := StatusSuccess
	var msg sql.NullString
	if transferErr != nil {
		status = StatusFailed
		if transient.IsCanceled(transferErr) {
			status = StatusCanceled
		}
		msg = sql.NullString{String: transferErr.Error(), Valid: true}
	}

	res, err := s.exec(ctx, "history.finish", `
		UPDATE transfers SET bytes = ?, status = ?, error = ?, end_time = ?
		WHERE id = ?
	`, bytes, string(status), msg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to finish transfer: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("unknown transfer %s", id)
	}
	return nil
}

const selectColumns = `
	SELECT id, backend, direction, remote_path, local_path, bytes, status, error, start_time, end_time
	FROM transfers`

// Recent retrieves the latest transfers across all backends
func (s *Store) Recent(ctx context.Context, limit int) ([]Transfer, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	return s.query(ctx, selectColumns+` ORDER BY start_time DESC LIMIT ?`, limit)
}

// ForBackend retrieves the latest transfers of one backend
func (s *Store) ForBackend(ctx context.Context, backend string, limit int) ([]Transfer, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	return s.query(ctx, selectColumns+` WHERE backend = ? ORDER BY start_time DESC LIMIT ?`, backend, limit)
}

// Get retrieves a single transfer
func (s *Store) Get(ctx context.Context, id string) (*Transfer, error) {
	records, err := s.query(ctx, selectColumns+` WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("transfer %s: %w", id, sql.ErrNoRows)
	}
	return &records[0], nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Transfer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []Transfer
	for rows.Next() {
		var (
			t       Transfer
			dir     string
			status  string
			errText sql.NullString
			end     sql.NullTime
		)
		err := rows.Scan(
			&t.ID,
			&t.Backend,
			&dir,
			&t.RemotePath,
			&t.LocalPath,
			&t.Bytes,
			&status,
			&errText,
			&t.StartTime,
			&end,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		t.Direction = Direction(dir)
		t.Status = Status(status)
		t.Error = errText.String
		if end.Valid {
			t.EndTime = end.Time
		}
		records = append(records, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// IsNotFound reports whether err comes from Get on an unknown ID
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
