package sweep

import "time"

// Outcome classifies what happened to a single entry during a sweep
type Outcome int

const (
	Deleted         Outcome = iota // file unlinked
	KeptTooYoung                   // file newer than the cutoff, sets the skip flag
	KeptFiltered                   // file extension not selected
	Declined                       // confirmation refused
	DeleteFailed                   // unlink returned an error
	DirRemoved                     // directory removed after processing
	DirRemoveFailed                // rmdir returned an error (non-empty, permission)
	DirKept                        // directory not attempted because of the skip flag
)

func (o Outcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case KeptTooYoung:
		return "kept_too_young"
	case KeptFiltered:
		return "kept_filtered"
	case Declined:
		return "declined"
	case DeleteFailed:
		return "delete_failed"
	case DirRemoved:
		return "dir_removed"
	case DirRemoveFailed:
		return "dir_remove_failed"
	case DirKept:
		return "dir_kept"
	default:
		return "unknown"
	}
}

// Event is emitted once per file decision and once per directory removal decision
type Event struct {
	Path    string
	IsDir   bool
	Outcome Outcome
	Size    int64
	ModTime time.Time
	Err     error
}

// Summary aggregates the events of one sweep
type Summary struct {
	FilesDeleted int
	FilesKept    int
	FilesFailed  int
	DirsRemoved  int
	DirsKept     int
	DirsFailed   int
	BytesFreed   int64
}

func (s *Summary) add(ev Event) {
	switch ev.Outcome {
	case Deleted:
		s.FilesDeleted++
		s.BytesFreed += ev.Size
	case KeptTooYoung, KeptFiltered, Declined:
		s.FilesKept++
	case DeleteFailed:
		s.FilesFailed++
	case DirRemoved:
		s.DirsRemoved++
	case DirKept:
		s.DirsKept++
	case DirRemoveFailed:
		s.DirsFailed++
	}
}
