package exitcodes

// Exit codes for garbage-collector
// Deletion failures never change the exit code; only these conditions do
const (
	Success         = 0 // Sweep finished (individual deletions may still have failed)
	InvalidConfig   = 2 // Bad flags, bad config file or missing target
	SafetyViolation = 3 // Target refused by the safety floor
	RuntimeError    = 4 // Infrastructure failure (database, log file)
)
