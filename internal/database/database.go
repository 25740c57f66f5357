package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"garbage-collector/internal/sweep"
)

// Actions recorded in the events table
const (
	ActionUnlink = "UNLINK"
	ActionRmdir  = "RMDIR"
	ActionKeep   = "KEEP"
	ActionError  = "ERROR"
)

// Run statuses
const (
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusSkipped = "SKIPPED"
)

// HistoryDB manages the SQLite database holding sweep runs and their events
type HistoryDB struct {
	db *sql.DB
}

// RunRecord is one sweep of one target
type RunRecord struct {
	ID              int64
	Invocation      string
	Root            string
	ExpireSeconds   int64
	SubdirsOnly     bool
	Status          string
	Note            string
	StartedAt       time.Time
	FinishedAt      *time.Time
	FilesDeleted    int
	FilesKept       int
	FilesFailed     int
	DirsRemoved     int
	DirsKept        int
	DirsFailed      int
	BytesFreed      int64
	FreeBytesBefore int64
	FreeBytesAfter  int64
}

// EventRecord is a single file or directory decision within a run
type EventRecord struct {
	ID           int64
	RunID        int64
	Timestamp    time.Time
	Action       string
	Outcome      string
	Path         string
	FileName     string
	ObjectType   string
	Size         int64
	ModTime      *time.Time
	ErrorMessage string
}

// NewHistoryDB opens (creating if needed) the database and initializes schema
func NewHistoryDB(dbPath string) (*HistoryDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Exec instead of Ping so the file is created immediately
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	hdb := &HistoryDB{db: db}
	if err = hdb.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return hdb, nil
}

func (h *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invocation TEXT NOT NULL DEFAULT '',
		root TEXT NOT NULL,
		expire_seconds INTEGER NOT NULL,
		subdirs_only BOOLEAN NOT NULL,
		status TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		files_deleted INTEGER NOT NULL DEFAULT 0,
		files_kept INTEGER NOT NULL DEFAULT 0,
		files_failed INTEGER NOT NULL DEFAULT 0,
		dirs_removed INTEGER NOT NULL DEFAULT 0,
		dirs_kept INTEGER NOT NULL DEFAULT 0,
		dirs_failed INTEGER NOT NULL DEFAULT 0,
		bytes_freed INTEGER NOT NULL DEFAULT 0,
		free_bytes_before INTEGER NOT NULL DEFAULT 0,
		free_bytes_after INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		outcome TEXT NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		object_type TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		mod_time DATETIME,
		error_message TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root);
	CREATE INDEX IF NOT EXISTS idx_runs_invocation ON runs(invocation);
	CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_action ON events(action);
	CREATE INDEX IF NOT EXISTS idx_events_path ON events(path);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := h.db.Exec(schema)
	return err
}

// StartRun inserts a RUNNING row and returns its id. Runs started by the same
// process share an invocation id.
func (h *HistoryDB) StartRun(invocation, root string, expire time.Duration, subdirsOnly bool, startedAt time.Time) (int64, error) {
	res, err := h.db.Exec(`
		INSERT INTO runs (invocation, root, expire_seconds, subdirs_only, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, invocation, root, int64(expire/time.Second), subdirsOnly, StatusRunning, startedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun stores the summary and marks the run DONE
func (h *HistoryDB) FinishRun(runID int64, summary sweep.Summary, freeBefore, freeAfter int64, finishedAt time.Time) error {
	_, err := h.db.Exec(`
		UPDATE runs SET
			status = ?, finished_at = ?,
			files_deleted = ?, files_kept = ?, files_failed = ?,
			dirs_removed = ?, dirs_kept = ?, dirs_failed = ?,
			bytes_freed = ?, free_bytes_before = ?, free_bytes_after = ?
		WHERE id = ?
	`, StatusDone, finishedAt,
		summary.FilesDeleted, summary.FilesKept, summary.FilesFailed,
		summary.DirsRemoved, summary.DirsKept, summary.DirsFailed,
		summary.BytesFreed, freeBefore, freeAfter,
		runID)
	return err
}

// SkipRun marks a run that never swept, e.g. a stale mount
func (h *HistoryDB) SkipRun(runID int64, note string, finishedAt time.Time) error {
	_, err := h.db.Exec(`UPDATE runs SET status = ?, note = ?, finished_at = ? WHERE id = ?`,
		StatusSkipped, note, finishedAt, runID)
	return err
}

// RecordEvent inserts one sweep event for a run
func (h *HistoryDB) RecordEvent(runID int64, ev sweep.Event, at time.Time) error {
	var modTime interface{}
	if !ev.ModTime.IsZero() {
		modTime = ev.ModTime
	}
	errMsg := ""
	if ev.Err != nil {
		errMsg = ev.Err.Error()
	}

	_, err := h.db.Exec(`
		INSERT INTO events (
			run_id, timestamp, action, outcome, path, file_name,
			object_type, size, mod_time, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		at,
		ActionFor(ev.Outcome),
		ev.Outcome.String(),
		ev.Path,
		filepath.Base(ev.Path),
		objectType(ev),
		ev.Size,
		modTime,
		errMsg,
	)
	return err
}

// ActionFor maps a sweep outcome onto the coarse action column
func ActionFor(o sweep.Outcome) string {
	switch o {
	case sweep.Deleted:
		return ActionUnlink
	case sweep.DirRemoved:
		return ActionRmdir
	case sweep.DeleteFailed, sweep.DirRemoveFailed:
		return ActionError
	default:
		return ActionKeep
	}
}

func objectType(ev sweep.Event) string {
	if ev.IsDir {
		return "directory"
	}
	return "file"
}

// Close closes the database connection
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Vacuum optimizes the database
func (h *HistoryDB) Vacuum() error {
	_, err := h.db.Exec("VACUUM")
	return err
}

// DatabaseStats describes the history file itself
type DatabaseStats struct {
	TotalRuns   int64
	TotalEvents int64
	SizeBytes   int64
}

// GetDatabaseStats returns row counts and on-disk size
func (h *HistoryDB) GetDatabaseStats() (*DatabaseStats, error) {
	stats := &DatabaseStats{}

	if err := h.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&stats.TotalRuns); err != nil {
		return nil, err
	}
	if err := h.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&stats.TotalEvents); err != nil {
		return nil, err
	}

	var pageCount, pageSize int64
	if err := h.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := h.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats.SizeBytes = pageCount * pageSize

	return stats, nil
}
