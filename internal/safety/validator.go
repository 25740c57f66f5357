package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/fatih/color"

	"garbage-collector/internal/exitcodes"
)

// MinSafeLength is the shortest normalized path a sweep will touch.
// "/", "C:\" and "/tmp/" all fall below it.
const MinSafeLength = 6

var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrTooShort      = errors.New("path too short to sweep")
	ErrTopLevel      = errors.New("refusing to sweep root or top-level directory")
	ErrProtectedPath = errors.New("protected path")
)

// exit is swapped in tests
var exit = os.Exit

// Validator enforces the safety contract for sweep roots.
// A root may not be a protected path or lie under one. It also may not be,
// lie under, or contain one of the tool's own state paths.
type Validator struct {
	ProtectedPaths []string
	StatePaths     []string
}

// NewValidator creates a validator with the default protected and state sets plus extras
func NewValidator(extraProtected, extraState []string) *Validator {
	return &Validator{
		ProtectedPaths: defaultProtected(extraProtected),
		StatePaths:     defaultState(extraState),
	}
}

// ValidateRoot is the pre-flight check run before a sweep starts.
// Returns a wrapped sentinel error on violation.
func (v *Validator) ValidateRoot(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrInvalidPath
	}

	if err := CheckLength(NormalizeTarget(path)); err != nil {
		return err
	}

	if IsTopLevel(path) {
		return fmt.Errorf("%w: %s", ErrTopLevel, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	if IsProtectedPath(abs, v.ProtectedPaths) || ContainsStatePath(abs, v.StatePaths) {
		return fmt.Errorf("%w: %s", ErrProtectedPath, path)
	}
	return nil
}

// NormalizeTarget strips trailing separators and whitespace and appends
// exactly one separator, so child names can be concatenated directly.
func NormalizeTarget(path string) string {
	trimmed := strings.TrimRightFunc(path, func(r rune) bool {
		return r == '/' || r == '\\' || unicode.IsSpace(r)
	})
	return trimmed + string(os.PathSeparator)
}

// CheckLength enforces MinSafeLength on an already normalized path
func CheckLength(normalized string) error {
	if len(normalized) < MinSafeLength {
		return fmt.Errorf("%w: %q (minimum %d characters)", ErrTooShort, normalized, MinSafeLength)
	}
	return nil
}

// IsTopLevel reports whether path is a filesystem root or a direct child of one
func IsTopLevel(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return true
	}
	rest := strings.TrimPrefix(filepath.Clean(abs), filepath.VolumeName(abs))
	rest = strings.Trim(rest, string(os.PathSeparator))
	return !strings.ContainsRune(rest, os.PathSeparator)
}

// IsProtectedPath reports whether path is, or lies under, a protected path
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)

	// Hard block: "/" exact
	if p == string(os.PathSeparator) {
		return true
	}

	for _, prot := range protected {
		if strings.TrimSpace(prot) == "" {
			continue
		}
		prot = filepath.Clean(prot)
		if p == prot || hasPathPrefix(p, prot) {
			return true
		}
	}
	return false
}

// ContainsStatePath reports whether sweeping path could reach a state path:
// path is the state path, lies under it, or is one of its ancestors
func ContainsStatePath(path string, state []string) bool {
	p := filepath.Clean(path)
	for _, sp := range state {
		if strings.TrimSpace(sp) == "" {
			continue
		}
		sp = filepath.Clean(sp)
		if hasPathPrefix(p, sp) || hasPathPrefix(sp, p) {
			return true
		}
	}
	return false
}

// Fatal reports a safety violation and terminates the process
func Fatal(err error) {
	errorColor := color.New(color.FgRed, color.Bold)
	errorColor.Fprint(os.Stderr, "ERROR: ")
	fmt.Fprintln(os.Stderr, err)
	exit(exitcodes.SafetyViolation)
}

// hasPathPrefix checks if path has the given prefix
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	// "/" only matches itself, otherwise every path would be under it
	if prefix == string(os.PathSeparator) {
		return path == prefix
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

// defaultProtected returns the base set of protected paths plus any extras
func defaultProtected(extra []string) []string {
	base := []string{
		"/",
		"/etc",
		"/bin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
		"/sbin",
	}
	return append(base, extra...)
}

// defaultState returns the tool's own directories plus extras such as the
// history database and the log file
func defaultState(extra []string) []string {
	base := []string{
		"/var/lib/garbage-collector",
		"/etc/garbage-collector",
	}
	return append(base, extra...)
}
