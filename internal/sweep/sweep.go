// Package sweep deletes expired files below a root directory and removes the
// directories left empty, depth first.
//
// Every filesystem error during a sweep is swallowed: one locked file must not
// stop the cleanup of the rest of the tree. The only failure that surfaces is
// the safety floor on short paths, which aborts through Options.Abort.
package sweep

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"garbage-collector/internal/fsops"
	"garbage-collector/internal/safety"
)

// Options configures a Sweeper. The zero value sweeps the real filesystem quietly.
type Options struct {
	FS fsops.FS

	// Trace receives "Unlink <path>" before every attempted file deletion
	Trace io.Writer

	// Now is sampled once per Sweep call
	Now func() time.Time

	// Extensions restricts deletion candidates, e.g. []string{"jpg", "png"}
	Extensions []string

	// Confirm is asked before every file deletion; nil confirms everything
	Confirm func(path string) bool

	OnEvent     func(Event)
	OnDirectory func(path string)

	// Abort is called when a path falls below the safety floor; defaults to safety.Fatal
	Abort func(err error)
}

// Sweeper walks a directory tree and deletes what has expired
type Sweeper struct {
	opts       Options
	extensions map[string]struct{}
	summary    Summary
}

// run holds the values fixed for the duration of one top-level Sweep
type run struct {
	cutoff time.Time
	aged   bool
}

// New creates a Sweeper, filling in defaults for unset options
func New(opts Options) *Sweeper {
	if opts.FS == nil {
		opts.FS = fsops.OSFS{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Abort == nil {
		opts.Abort = safety.Fatal
	}

	s := &Sweeper{opts: opts}
	if len(opts.Extensions) > 0 {
		s.extensions = make(map[string]struct{}, len(opts.Extensions))
		for _, ext := range opts.Extensions {
			ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
			if ext != "" {
				s.extensions[ext] = struct{}{}
			}
		}
		if len(s.extensions) == 0 {
			s.extensions = nil
		}
	}
	return s
}

// Sweep is the one-call form: sweep path with default options, tracing to stdout if asked.
func Sweep(path string, expire time.Duration, subdirsOnly, trace bool) string {
	opts := Options{}
	if trace {
		opts.Trace = os.Stdout
	}
	return New(opts).Sweep(path, expire, subdirsOnly)
}

// Sweep processes path and returns its normalized form (with one trailing separator).
// Files older than expire are deleted; expire <= 0 deletes every file. With
// subdirsOnly the files directly inside path are left alone and path itself is
// never removed. The summary of a previous call is reset.
func (s *Sweeper) Sweep(path string, expire time.Duration, subdirsOnly bool) string {
	s.summary = Summary{}
	r := run{aged: expire > 0}
	if r.aged {
		r.cutoff = s.opts.Now().Add(-expire)
	}
	return s.sweepDir(path, r, subdirsOnly)
}

// Summary returns the aggregated outcomes of the last Sweep
func (s *Sweeper) Summary() Summary {
	return s.summary
}

func (s *Sweeper) sweepDir(path string, r run, subdirsOnly bool) string {
	dir := safety.NormalizeTarget(path)
	if err := safety.CheckLength(dir); err != nil {
		s.opts.Abort(err)
		return dir
	}

	if !fsops.Exists(s.opts.FS, dir) {
		return dir
	}

	if s.opts.OnDirectory != nil {
		s.opts.OnDirectory(dir)
	}

	// an unreadable directory is treated as empty
	entries, _ := s.opts.FS.ReadDir(dir)

	skip := false
	for _, entry := range entries {
		name := entry.Name()
		if name == "." || name == ".." {
			continue
		}
		child := dir + name

		if entry.IsDir() {
			s.sweepDir(child, r, false)
			continue
		}
		if subdirsOnly {
			continue
		}
		if s.sweepFile(child, entry, r) == KeptTooYoung {
			skip = true
		}
	}

	if subdirsOnly {
		return dir
	}
	if skip {
		s.emit(Event{Path: dir, IsDir: true, Outcome: DirKept})
		return dir
	}
	if err := s.opts.FS.Remove(dir); err != nil {
		s.emit(Event{Path: dir, IsDir: true, Outcome: DirRemoveFailed, Err: err})
	} else {
		s.emit(Event{Path: dir, IsDir: true, Outcome: DirRemoved})
	}
	return dir
}

func (s *Sweeper) sweepFile(path string, entry os.DirEntry, r run) Outcome {
	ev := Event{Path: path}

	// a file that cannot be stat'ed is still a deletion candidate
	if info, err := entry.Info(); err == nil {
		ev.Size = info.Size()
		ev.ModTime = info.ModTime()
		if r.aged && !ev.ModTime.Before(r.cutoff) {
			ev.Outcome = KeptTooYoung
			s.emit(ev)
			return ev.Outcome
		}
	}

	if !s.selected(path) {
		ev.Outcome = KeptFiltered
		s.emit(ev)
		return ev.Outcome
	}

	if s.opts.Confirm != nil && !s.opts.Confirm(path) {
		ev.Outcome = Declined
		s.emit(ev)
		return ev.Outcome
	}

	if s.opts.Trace != nil {
		fmt.Fprintf(s.opts.Trace, "Unlink %s\n", path)
	}
	if err := s.opts.FS.Remove(path); err != nil {
		ev.Outcome = DeleteFailed
		ev.Err = err
	} else {
		ev.Outcome = Deleted
	}
	s.emit(ev)
	return ev.Outcome
}

func (s *Sweeper) selected(path string) bool {
	if s.extensions == nil {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	_, ok := s.extensions[ext]
	return ok
}

func (s *Sweeper) emit(ev Event) {
	s.summary.add(ev)
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(ev)
	}
}
