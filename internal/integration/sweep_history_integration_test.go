package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"garbage-collector/internal/config"
	"garbage-collector/internal/database"
	"garbage-collector/internal/logging"
	"garbage-collector/internal/metrics"
	"garbage-collector/internal/runner"
)

func init() {
	metrics.Init()
}

func mustWrite(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Failed to age %s: %v", path, err)
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// TestSweepWithHistoryIntegration runs a full sweep on a real tree and checks
// the filesystem, the trace, the history database and the metrics textfile agree.
func TestSweepWithHistoryIntegration(t *testing.T) {
	tmpRoot := t.TempDir()
	cacheDir := filepath.Join(tmpRoot, "cache")
	stateDir := filepath.Join(tmpRoot, "state")
	outsideDir := filepath.Join(tmpRoot, "outside")

	const old = 120 * 24 * time.Hour

	rootFile := filepath.Join(cacheDir, "index.html")
	mustWrite(t, rootFile, old)
	expiredFile := filepath.Join(cacheDir, "pages", "2024", "a.html")
	mustWrite(t, expiredFile, old)
	freshFile := filepath.Join(cacheDir, "pages", "b.html")
	mustWrite(t, freshFile, time.Hour)

	outsideFile := filepath.Join(outsideDir, "keep.txt")
	mustWrite(t, outsideFile, old)
	linkDir := filepath.Join(cacheDir, "links")
	if err := os.MkdirAll(linkDir, 0o755); err != nil {
		t.Fatalf("Failed to create link dir: %v", err)
	}
	link := filepath.Join(linkDir, "to_outside")
	if err := os.Symlink(outsideFile, link); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	dbPath := filepath.Join(stateDir, "history.db")
	textfile := filepath.Join(stateDir, "gc.prom")

	cfg := &config.Config{
		Targets:      []config.Target{{Path: cacheDir, ExpireDays: 90}},
		DatabasePath: dbPath,
		Metrics:      config.MetricsCfg{TextfilePath: textfile},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	db, err := database.NewHistoryDB(dbPath)
	if err != nil {
		t.Fatalf("NewHistoryDB: %v", err)
	}
	defer db.Close()

	var trace bytes.Buffer
	reports, err := runner.RunOnce(context.Background(), cfg, runner.Options{
		Logger: logging.Nop(),
		DB:     db,
		Trace:  &trace,
	})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}

	t.Run("Filesystem", func(t *testing.T) {
		if !exists(rootFile) {
			t.Error("file directly in the root was deleted")
		}
		if exists(expiredFile) || exists(filepath.Dir(expiredFile)) {
			t.Error("expired file or its emptied directory survived")
		}
		if !exists(freshFile) {
			t.Error("fresh file was deleted")
		}
		if exists(link) || exists(linkDir) {
			t.Error("old symlink or its emptied directory survived")
		}
		if !exists(outsideFile) {
			t.Error("symlink target outside the sweep root was deleted")
		}
	})

	t.Run("Trace", func(t *testing.T) {
		out := trace.String()
		if !strings.Contains(out, "Unlink "+expiredFile+"\n") {
			t.Errorf("trace missing expired file:\n%s", out)
		}
		if strings.Contains(out, rootFile) || strings.Contains(out, freshFile) {
			t.Errorf("trace mentions kept files:\n%s", out)
		}
	})

	t.Run("History", func(t *testing.T) {
		runs, err := db.GetRecentRuns(10)
		if err != nil {
			t.Fatalf("GetRecentRuns: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("expected 1 run, got %d", len(runs))
		}
		r := runs[0]
		if r.Status != database.StatusDone {
			t.Errorf("run status = %s, want %s", r.Status, database.StatusDone)
		}
		if r.FilesDeleted != 2 {
			t.Errorf("files deleted = %d, want 2", r.FilesDeleted)
		}
		if r.FilesDeleted != reports[0].Summary.FilesDeleted || r.DirsRemoved != reports[0].Summary.DirsRemoved {
			t.Errorf("history %+v disagrees with report %+v", r, reports[0].Summary)
		}

		unlinks, err := db.GetEventsByAction(database.ActionUnlink, 10)
		if err != nil {
			t.Fatalf("GetEventsByAction: %v", err)
		}
		if len(unlinks) != 2 {
			t.Errorf("expected 2 UNLINK events, got %d", len(unlinks))
		}
	})

	t.Run("MetricsTextfile", func(t *testing.T) {
		if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			t.Fatalf("WriteTextfile: %v", err)
		}
		data, err := os.ReadFile(textfile)
		if err != nil {
			t.Fatalf("read textfile: %v", err)
		}
		for _, name := range []string{"gc_files_deleted_total", "gc_last_run_timestamp", "gc_sweep_duration_seconds"} {
			if !strings.Contains(string(data), name) {
				t.Errorf("textfile missing %s", name)
			}
		}
	})

	t.Run("SecondRunIsNoop", func(t *testing.T) {
		trace.Reset()
		reports, err := runner.RunOnce(context.Background(), cfg, runner.Options{Logger: logging.Nop(), DB: db, Trace: &trace})
		if err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		if reports[0].Summary.FilesDeleted != 0 || reports[0].Summary.DirsRemoved != 0 {
			t.Errorf("second run changed the tree: %+v", reports[0].Summary)
		}
		if trace.Len() != 0 {
			t.Errorf("second run traced: %s", trace.String())
		}
	})
}
