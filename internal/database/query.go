package database

import (
	"database/sql"
	"time"
)

const eventColumns = `
	SELECT id, run_id, timestamp, action, outcome, path, file_name,
	       object_type, size, mod_time, error_message
	FROM events`

const runColumns = `
	SELECT id, invocation, root, expire_seconds, subdirs_only, status, note, started_at, finished_at,
	       files_deleted, files_kept, files_failed, dirs_removed, dirs_kept, dirs_failed,
	       bytes_freed, free_bytes_before, free_bytes_after
	FROM runs`

// GetRecentEvents returns the N most recent events
func (h *HistoryDB) GetRecentEvents(limit int) ([]EventRecord, error) {
	return h.queryEvents(eventColumns+`
	ORDER BY timestamp DESC, id DESC
	LIMIT ?`, limit)
}

// GetEventsByAction returns events filtered by action (UNLINK, RMDIR, KEEP, ERROR)
func (h *HistoryDB) GetEventsByAction(action string, limit int) ([]EventRecord, error) {
	return h.queryEvents(eventColumns+`
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT ?`, action, limit)
}

// GetEventsByPath returns events whose path matches a SQL LIKE pattern
func (h *HistoryDB) GetEventsByPath(pathPattern string, limit int) ([]EventRecord, error) {
	return h.queryEvents(eventColumns+`
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC
	LIMIT ?`, pathPattern, limit)
}

// GetEventsForRun returns every event of one run in insertion order
func (h *HistoryDB) GetEventsForRun(runID int64) ([]EventRecord, error) {
	return h.queryEvents(eventColumns+`
	WHERE run_id = ?
	ORDER BY id ASC`, runID)
}

// GetRecentRuns returns the N most recent runs
func (h *HistoryDB) GetRecentRuns(limit int) ([]RunRecord, error) {
	rows, err := h.db.Query(runColumns+`
	ORDER BY started_at DESC, id DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var finished sql.NullTime
		err := rows.Scan(
			&r.ID, &r.Invocation, &r.Root, &r.ExpireSeconds, &r.SubdirsOnly, &r.Status, &r.Note,
			&r.StartedAt, &finished,
			&r.FilesDeleted, &r.FilesKept, &r.FilesFailed,
			&r.DirsRemoved, &r.DirsKept, &r.DirsFailed,
			&r.BytesFreed, &r.FreeBytesBefore, &r.FreeBytesAfter,
		)
		if err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Stats holds aggregated history for a time window
type Stats struct {
	Runs         int
	FilesDeleted int
	DirsRemoved  int
	Kept         int
	Errors       int
	BytesFreed   int64
	ByAction     map[string]int
	StartDate    time.Time
	EndDate      time.Time
}

// GetStats aggregates events of the last N days
func (h *HistoryDB) GetStats(days int, now time.Time) (*Stats, error) {
	since := now.AddDate(0, 0, -days)
	stats := &Stats{
		StartDate: since,
		EndDate:   now,
		ByAction:  make(map[string]int),
	}

	if err := h.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE started_at >= ?`, since).Scan(&stats.Runs); err != nil {
		return nil, err
	}

	err := h.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'UNLINK' THEN 1 END),
			COUNT(CASE WHEN action = 'RMDIR' THEN 1 END),
			COUNT(CASE WHEN action = 'KEEP' THEN 1 END),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END),
			COALESCE(SUM(CASE WHEN action = 'UNLINK' THEN size END), 0)
		FROM events
		WHERE timestamp >= ?
	`, since).Scan(&stats.FilesDeleted, &stats.DirsRemoved, &stats.Kept, &stats.Errors, &stats.BytesFreed)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.Query(`SELECT action, COUNT(*) FROM events WHERE timestamp >= ? GROUP BY action`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		stats.ByAction[action] = count
	}

	return stats, rows.Err()
}

// DeleteOldRecords removes runs and events older than the given number of days
func (h *HistoryDB) DeleteOldRecords(olderThanDays int, now time.Time) (int64, error) {
	cutoff := now.AddDate(0, 0, -olderThanDays)

	tx, err := h.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM events WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (h *HistoryDB) queryEvents(query string, args ...interface{}) ([]EventRecord, error) {
	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []EventRecord
	for rows.Next() {
		var r EventRecord
		var modTime sql.NullTime

		err := rows.Scan(
			&r.ID, &r.RunID, &r.Timestamp, &r.Action, &r.Outcome, &r.Path, &r.FileName,
			&r.ObjectType, &r.Size, &modTime, &r.ErrorMessage,
		)
		if err != nil {
			return nil, err
		}
		if modTime.Valid {
			t := modTime.Time
			r.ModTime = &t
		}
		records = append(records, r)
	}

	return records, rows.Err()
}
