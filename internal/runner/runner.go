// Package runner sweeps every configured target once, wiring the sweeper to
// the safety pre-flight, history database, metrics and CPU limiter.
package runner

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"garbage-collector/internal/config"
	"garbage-collector/internal/database"
	"garbage-collector/internal/disk"
	"garbage-collector/internal/fsops"
	"garbage-collector/internal/limiter"
	"garbage-collector/internal/metrics"
	"garbage-collector/internal/safety"
	"garbage-collector/internal/sweep"
)

// Options carries the collaborators of a run. Zero values are usable:
// no history, no trace, real filesystem, wall clock, fatal safety aborts.
type Options struct {
	Logger       zerolog.Logger
	InvocationID string // generated when empty
	DB           *database.HistoryDB
	Trace        io.Writer
	Confirm      func(path string) bool
	Now          func() time.Time
	FS           fsops.FS
	Validator    *safety.Validator
	Abort        func(err error)
}

// Report describes what happened to one target
type Report struct {
	Invocation string
	Root       string
	Summary    sweep.Summary
	Skipped    bool
	SkipReason string
	Elapsed    time.Duration
	FreeBefore int64
	FreeAfter  int64
}

// RunOnce sweeps each target of cfg in order and returns one report per target
func RunOnce(ctx context.Context, cfg *config.Config, opts Options) ([]Report, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FS == nil {
		opts.FS = fsops.OSFS{}
	}
	if opts.Validator == nil {
		opts.Validator = safety.NewValidator(cfg.ProtectedPaths, statePaths(cfg))
	}
	if opts.Abort == nil {
		opts.Abort = safety.Fatal
	}
	if opts.InvocationID == "" {
		opts.InvocationID = uuid.NewString()
	}
	opts.Logger = opts.Logger.With().Str("invocation", opts.InvocationID).Logger()

	metrics.Init()
	cpuLimiter := limiter.NewCPULimiter(cfg.ResourceLimits.MaxCPUPercent)

	reports := make([]Report, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		select {
		case <-ctx.Done():
			return reports, ctx.Err()
		default:
		}

		if err := opts.Validator.ValidateRoot(target.Path); err != nil {
			opts.Logger.Error().Err(err).Str("path", target.Path).Msg("refusing target")
			opts.Abort(err)
			return reports, err
		}

		reports = append(reports, runTarget(cfg, target, opts, cpuLimiter))
	}
	return reports, nil
}

func runTarget(cfg *config.Config, target config.Target, opts Options, cpuLimiter *limiter.CPULimiter) Report {
	log := opts.Logger.With().Str("target", target.Path).Logger()
	root := safety.NormalizeTarget(target.Path)
	expire := target.Expire()
	start := opts.Now()
	report := Report{Invocation: opts.InvocationID, Root: root}

	var runID int64
	recording := opts.DB != nil
	if recording {
		id, err := opts.DB.StartRun(opts.InvocationID, root, expire, true, start)
		if err != nil {
			log.Error().Err(err).Msg("history unavailable for this run")
			metrics.ErrorsTotal.Inc()
			recording = false
		}
		runID = id
	}

	if cfg.NFSTimeout > 0 && disk.IsNFSStale(root, cfg.NFSTimeoutDuration()) {
		log.Warn().Msg("skipping target on stale mount")
		metrics.ErrorsTotal.Inc()
		if recording {
			if err := opts.DB.SkipRun(runID, "nfs_stale", opts.Now()); err != nil {
				log.Error().Err(err).Msg("failed to record skipped run")
			}
		}
		report.Skipped = true
		report.SkipReason = "nfs_stale"
		return report
	}

	if u, err := disk.GetUsage(root); err == nil {
		report.FreeBefore = u.FreeBytes
	}

	dbErrors := 0
	sweeper := sweep.New(sweep.Options{
		FS:         opts.FS,
		Trace:      opts.Trace,
		Now:        opts.Now,
		Extensions: target.Extensions,
		Confirm:    opts.Confirm,
		Abort:      opts.Abort,
		OnDirectory: func(string) {
			cpuLimiter.Throttle()
		},
		OnEvent: func(ev sweep.Event) {
			metrics.RecordEvent(ev)
			if ev.Err != nil {
				log.Debug().Err(ev.Err).Str("path", ev.Path).Str("outcome", ev.Outcome.String()).Msg("ignored")
			}
			if recording {
				if err := opts.DB.RecordEvent(runID, ev, opts.Now()); err != nil {
					dbErrors++
				}
			}
		},
	})

	log.Info().Dur("expire", expire).Strs("extensions", target.Extensions).Msg("sweep starting")
	report.Root = sweeper.Sweep(target.Path, expire, true)
	report.Summary = sweeper.Summary()
	finished := opts.Now()
	report.Elapsed = finished.Sub(start)

	if u, err := disk.GetUsage(root); err == nil {
		report.FreeAfter = u.FreeBytes
		metrics.UpdateDiskUsage(target.Path, u)
	}
	metrics.RecordSweep(report.Summary, report.Elapsed, finished)

	if recording {
		if dbErrors > 0 {
			log.Error().Int("failed_events", dbErrors).Msg("failed to record some events to history")
			metrics.ErrorsTotal.Inc()
		}
		if err := opts.DB.FinishRun(runID, report.Summary, report.FreeBefore, report.FreeAfter, finished); err != nil {
			log.Error().Err(err).Msg("failed to record run to history")
			metrics.ErrorsTotal.Inc()
		}
	}

	s := report.Summary
	log.Info().
		Int("files_deleted", s.FilesDeleted).
		Int("files_kept", s.FilesKept).
		Int("files_failed", s.FilesFailed).
		Int("dirs_removed", s.DirsRemoved).
		Int("dirs_kept", s.DirsKept).
		Int("dirs_failed", s.DirsFailed).
		Int64("bytes_freed", s.BytesFreed).
		Dur("elapsed", report.Elapsed).
		Msg("sweep complete")

	return report
}

// statePaths lists the tool's own files, so a target can never contain the
// history database or the log file
func statePaths(cfg *config.Config) []string {
	var paths []string
	if cfg.HistoryEnabled() && cfg.DatabasePath != "" {
		paths = append(paths, cfg.DatabasePath)
	}
	if cfg.Logging.File != "" {
		paths = append(paths, cfg.Logging.File)
	}
	return paths
}
