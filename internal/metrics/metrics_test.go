package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"garbage-collector/internal/disk"
	"garbage-collector/internal/sweep"
)

// TestMetricsInit verifies that Init() is idempotent and registers metrics
func TestMetricsInit(t *testing.T) {
	Init()
	Init()
	Init()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	// Vec metrics only appear once a label set is used
	expectedMetrics := []string{
		"gc_sweep_duration_seconds",
		"gc_sweep_bytes_freed",
		"gc_last_run_timestamp",
		"gc_files_deleted_total",
		"gc_bytes_freed_total",
		"gc_dirs_removed_total",
		"gc_errors_total",
	}

	foundMetrics := make(map[string]bool)
	for _, mf := range mfs {
		foundMetrics[mf.GetName()] = true
	}

	for _, expected := range expectedMetrics {
		if !foundMetrics[expected] {
			t.Errorf("Expected metric %s not found in registry", expected)
		}
	}
}

// TestRecordEvent verifies each outcome lands on the right counter
func TestRecordEvent(t *testing.T) {
	Init()

	deleted := testutil.ToFloat64(FilesDeletedTotal)
	freed := testutil.ToFloat64(BytesFreedTotal)
	removed := testutil.ToFloat64(DirsRemovedTotal)
	young := testutil.ToFloat64(FilesKeptTotal.WithLabelValues("kept_too_young"))
	fileErrs := testutil.ToFloat64(DeleteErrorsTotal.WithLabelValues("file"))
	dirErrs := testutil.ToFloat64(DeleteErrorsTotal.WithLabelValues("dir"))

	RecordEvent(sweep.Event{Path: "/srv/cache/a", Outcome: sweep.Deleted, Size: 2048})
	RecordEvent(sweep.Event{Path: "/srv/cache/b", Outcome: sweep.KeptTooYoung})
	RecordEvent(sweep.Event{Path: "/srv/cache/c", Outcome: sweep.DeleteFailed})
	RecordEvent(sweep.Event{Path: "/srv/cache/d/", IsDir: true, Outcome: sweep.DirRemoved})
	RecordEvent(sweep.Event{Path: "/srv/cache/e/", IsDir: true, Outcome: sweep.DirRemoveFailed})
	RecordEvent(sweep.Event{Path: "/srv/cache/f/", IsDir: true, Outcome: sweep.DirKept})

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"files deleted", testutil.ToFloat64(FilesDeletedTotal), deleted + 1},
		{"bytes freed", testutil.ToFloat64(BytesFreedTotal), freed + 2048},
		{"dirs removed", testutil.ToFloat64(DirsRemovedTotal), removed + 1},
		{"kept too young", testutil.ToFloat64(FilesKeptTotal.WithLabelValues("kept_too_young")), young + 1},
		{"file errors", testutil.ToFloat64(DeleteErrorsTotal.WithLabelValues("file")), fileErrs + 1},
		{"dir errors", testutil.ToFloat64(DeleteErrorsTotal.WithLabelValues("dir")), dirErrs + 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, expected %v", c.name, c.got, c.want)
		}
	}
}

// TestRecordSweep verifies the run timestamp gauge
func TestRecordSweep(t *testing.T) {
	Init()

	finished := time.Unix(1760000000, 0)
	RecordSweep(sweep.Summary{FilesDeleted: 3, BytesFreed: 4096}, 1500*time.Millisecond, finished)

	if got := testutil.ToFloat64(LastRunTimestamp); got != 1760000000 {
		t.Errorf("LastRunTimestamp = %v, expected 1760000000", got)
	}
}

// TestUpdateDiskUsage verifies the per-path gauges
func TestUpdateDiskUsage(t *testing.T) {
	Init()

	UpdateDiskUsage("/srv/cache", disk.Usage{FreeBytes: 25, TotalBytes: 100})

	if got := testutil.ToFloat64(FreeSpacePercent.WithLabelValues("/srv/cache")); got != 25 {
		t.Errorf("FreeSpacePercent = %v, expected 25", got)
	}
	if got := testutil.ToFloat64(PathTotalBytes.WithLabelValues("/srv/cache")); got != 100 {
		t.Errorf("PathTotalBytes = %v, expected 100", got)
	}
}

// TestWriteTextfile verifies the node_exporter textfile output
func TestWriteTextfile(t *testing.T) {
	Init()
	FilesDeletedTotal.Inc()

	path := filepath.Join(t.TempDir(), "textfile", "gc.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read textfile: %v", err)
	}
	if !strings.Contains(string(data), "gc_files_deleted_total") {
		t.Errorf("textfile missing gc_files_deleted_total:\n%s", data)
	}
}

// TestStandardBuckets verifies that standard bucket definitions are sorted
func TestStandardBuckets(t *testing.T) {
	for name, buckets := range map[string][]float64{"duration": DurationBuckets, "bytes": BytesBuckets} {
		for i := 1; i < len(buckets); i++ {
			if buckets[i] <= buckets[i-1] {
				t.Errorf("%s buckets not increasing at %d: %v", name, i, buckets)
			}
		}
	}
}
