package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"garbage-collector/internal/sweep"
)

// Sweep metrics
var (
	SweepDuration    prometheus.Histogram
	SweepBytesFreed  prometheus.Histogram
	LastRunTimestamp prometheus.Gauge

	FilesDeletedTotal prometheus.Counter
	BytesFreedTotal   prometheus.Counter
	DirsRemovedTotal  prometheus.Counter

	// FilesKeptTotal is labelled by reason: kept_too_young, kept_filtered, declined
	FilesKeptTotal *prometheus.CounterVec

	// DeleteErrorsTotal is labelled by kind: file, dir
	DeleteErrorsTotal *prometheus.CounterVec

	// ErrorsTotal counts run-level failures (history DB, textfile, stale mounts)
	ErrorsTotal prometheus.Counter
)

func initSweepMetrics() {
	SweepDuration = NewDurationHistogram(
		"gc_sweep_duration_seconds",
		"Duration of a single target sweep in seconds.",
	)
	SweepBytesFreed = NewBytesHistogram(
		"gc_sweep_bytes_freed",
		"Bytes freed by a single target sweep.",
	)
	LastRunTimestamp = NewGauge(
		"gc_last_run_timestamp",
		"Timestamp of the last sweep (Unix epoch seconds).",
	)
	FilesDeletedTotal = NewCounter(
		"gc_files_deleted_total",
		"Total number of files deleted.",
	)
	BytesFreedTotal = NewCounter(
		"gc_bytes_freed_total",
		"Total bytes freed by deleted files.",
	)
	DirsRemovedTotal = NewCounter(
		"gc_dirs_removed_total",
		"Total number of directories removed.",
	)
	FilesKeptTotal = NewCounterVec(
		"gc_files_kept_total",
		"Files left in place, by reason.",
		[]string{"reason"},
	)
	DeleteErrorsTotal = NewCounterVec(
		"gc_delete_errors_total",
		"Failed unlink or rmdir attempts.",
		[]string{"kind"},
	)
	ErrorsTotal = NewCounter(
		"gc_errors_total",
		"Run-level errors that did not stop the sweep.",
	)
}

func registerSweepMetrics() {
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(SweepBytesFreed)
	prometheus.MustRegister(LastRunTimestamp)
	prometheus.MustRegister(FilesDeletedTotal)
	prometheus.MustRegister(BytesFreedTotal)
	prometheus.MustRegister(DirsRemovedTotal)
	prometheus.MustRegister(FilesKeptTotal)
	prometheus.MustRegister(DeleteErrorsTotal)
	prometheus.MustRegister(ErrorsTotal)
}

// RecordEvent updates the per-entry counters.
// Rmdir failures on non-empty directories are expected and still counted.
func RecordEvent(ev sweep.Event) {
	switch ev.Outcome {
	case sweep.Deleted:
		FilesDeletedTotal.Inc()
		BytesFreedTotal.Add(float64(ev.Size))
	case sweep.KeptTooYoung, sweep.KeptFiltered, sweep.Declined:
		FilesKeptTotal.WithLabelValues(ev.Outcome.String()).Inc()
	case sweep.DeleteFailed:
		DeleteErrorsTotal.WithLabelValues("file").Inc()
	case sweep.DirRemoved:
		DirsRemovedTotal.Inc()
	case sweep.DirRemoveFailed:
		DeleteErrorsTotal.WithLabelValues("dir").Inc()
	}
}

// RecordSweep observes the totals of one finished target sweep
func RecordSweep(summary sweep.Summary, elapsed time.Duration, finishedAt time.Time) {
	SweepDuration.Observe(elapsed.Seconds())
	SweepBytesFreed.Observe(float64(summary.BytesFreed))
	LastRunTimestamp.Set(float64(finishedAt.Unix()))
}
