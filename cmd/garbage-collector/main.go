package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"garbage-collector/internal/config"
	"garbage-collector/internal/database"
	"garbage-collector/internal/exitcodes"
	"garbage-collector/internal/logging"
	"garbage-collector/internal/metrics"
	"garbage-collector/internal/runner"
)

var (
	errMissingDir    = errors.New("-dir argument is required")
	errInvalidExpire = errors.New("invalid integer value in argument -expire")
)

// cliOptions is the parsed command line
type cliOptions struct {
	configPath string
	dir        string
	expireDays int
	ext        string
	confirm    string
	quiet      bool
	dbPath     string
	textfile   string
	logLevel   string
}

// parseArgs reads flags, or the legacy DIR [DAYS] form, which is auto-confirmed
// and reads DAYS leniently: a value without a leading integer means the default.
func parseArgs(fs *flag.FlagSet, args []string, env config.Env) (*cliOptions, error) {
	o := &cliOptions{}
	var expire string

	fs.StringVar(&o.configPath, "config", env.ConfigPath, "Path to YAML or TOML configuration file")
	fs.StringVar(&o.dir, "dir", "", "Directory to sweep. Its own files are kept, only subdirectories are cleaned.")
	fs.StringVar(&expire, "expire", strconv.Itoa(config.DefaultExpireDays), "Expire after N days. 0 or negative falls back to the default.")
	fs.StringVar(&o.ext, "ext", "", "File extension(s) to delete. Comma-separated if multiple.")
	fs.StringVar(&o.confirm, "confirm", "", "'y' or 'yes' auto-confirms file deletions. Otherwise each deletion is confirmed on the terminal.")
	fs.BoolVar(&o.quiet, "quiet", false, "Do not print an Unlink line per deleted file")
	fs.StringVar(&o.dbPath, "db", "", "Path to history database ('-' disables history)")
	fs.StringVar(&o.textfile, "metrics-textfile", "", "Write Prometheus metrics to this file after the sweep")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if o.dir == "" && fs.NArg() > 0 {
		o.dir = fs.Arg(0)
		o.confirm = "yes"
		o.expireDays = config.DefaultExpireDays
		if fs.NArg() > 1 {
			o.expireDays = config.ExpireDays(leadingInt(fs.Arg(1)))
		}
	} else {
		days, err := strconv.Atoi(strings.TrimSpace(expire))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errInvalidExpire, expire)
		}
		o.expireDays = config.ExpireDays(days)
	}

	if o.dir == "" && o.configPath == "" {
		return nil, errMissingDir
	}
	return o, nil
}

// leadingInt parses the integer prefix of s ("30", "30days", " -5") and
// returns 0 when there is none
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func main() {
	env := config.FromEnv(".env")

	fs := flag.CommandLine
	fs.Usage = usage
	cli, err := parseArgs(fs, os.Args[1:], env)
	switch {
	case errors.Is(err, errMissingDir):
		showError()
		fmt.Fprintln(os.Stderr, "-dir argument is required.")
		fmt.Fprintln(os.Stderr)
		fs.Usage()
		os.Exit(exitcodes.InvalidConfig)
	case errors.Is(err, errInvalidExpire):
		die(exitcodes.InvalidConfig, fmt.Sprintf("%v. Please use an integer number of days, or skip it to use the default %d days.", err, config.DefaultExpireDays))
	case err != nil:
		os.Exit(exitcodes.InvalidConfig)
	}

	cfg := &config.Config{}
	if cli.configPath != "" {
		cfg, err = config.Load(cli.configPath)
		if err != nil {
			die(exitcodes.InvalidConfig, fmt.Sprintf("Failed to load config: %v", err))
		}
	} else if cli.dbPath == "" {
		// ad-hoc runs keep no history unless asked to
		cfg.DatabasePath = "-"
	}
	if cli.dir != "" {
		cfg.Targets = append(cfg.Targets, config.Target{
			Path:       cli.dir,
			ExpireDays: cli.expireDays,
			Extensions: config.NormalizeExtensions([]string{cli.ext}),
		})
	}

	env.Apply(cfg)
	if cli.dbPath != "" {
		cfg.DatabasePath = cli.dbPath
	}
	if cli.logLevel != "" {
		cfg.Logging.Level = cli.logLevel
	}
	if cli.textfile != "" {
		cfg.Metrics.TextfilePath = cli.textfile
	}
	if err := cfg.Validate(); err != nil {
		die(exitcodes.InvalidConfig, fmt.Sprintf("Invalid configuration: %v", err))
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		die(exitcodes.RuntimeError, fmt.Sprintf("Failed to initialize logging: %v", err))
	}
	defer logCloser.Close()

	opts := runner.Options{Logger: logger}

	if cfg.TraceEnabled() && !cli.quiet {
		opts.Trace = os.Stdout
	}

	if !autoConfirmed(cli.confirm) {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			die(exitcodes.InvalidConfig, "Deletions must be confirmed interactively; use -confirm=yes for unattended runs.")
		}
		opts.Confirm = newPrompter(os.Stdin, os.Stderr).Confirm
	}

	metrics.Init()

	closeHistory := func() {}
	if cfg.HistoryEnabled() {
		db, err := database.NewHistoryDB(cfg.DatabasePath)
		if err != nil {
			// history is auxiliary; the sweep still runs
			logger.Error().Err(err).Str("path", cfg.DatabasePath).Msg("history database unavailable")
			metrics.ErrorsTotal.Inc()
		} else {
			opts.DB = db
			closeHistory = func() {
				if err := db.Close(); err != nil {
					logger.Error().Err(err).Msg("failed to close history database")
				}
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warn().Str("signal", sig.String()).Msg("stopping after the current target")
		cancel()
	}()

	_, runErr := runner.RunOnce(ctx, cfg, opts)

	if cfg.Metrics.TextfilePath != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			logger.Error().Err(err).Msg("failed to write metrics textfile")
		}
	}

	if code := finish(logger, runErr, closeHistory); code != exitcodes.Success {
		logCloser.Close()
		os.Exit(code)
	}
}

// finish closes the history database and maps the run error to an exit code.
// It runs before os.Exit so the WAL is checkpointed on every path.
func finish(logger zerolog.Logger, runErr error, closeHistory func()) int {
	closeHistory()

	if runErr == nil {
		return exitcodes.Success
	}
	if errors.Is(runErr, context.Canceled) {
		logger.Warn().Msg("interrupted")
	} else {
		logger.Error().Err(runErr).Msg("run failed")
	}
	return exitcodes.RuntimeError
}

func autoConfirmed(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "y", "yes":
		return true
	}
	return false
}

// prompter asks once per file; answering "a" confirms the rest of the run
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	all bool
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) Confirm(path string) bool {
	if p.all {
		return true
	}
	fmt.Fprintf(p.out, "Delete %s? [y/N/a] ", path)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "a", "all":
		p.all = true
		return true
	}
	return false
}

func usage() {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "Usage of %s:\n", name)
	fmt.Fprintf(os.Stderr, "  %s [flags]\n  %s DIR [DAYS]\n\n", name, name)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExample: %s -dir=/var/www/project-name/data/cache -ext=jpg,jpeg,png,gif,webp -expire=60 -confirm=yes\n", name)
}

func showError() {
	errorColor := color.New(color.FgRed, color.Bold)
	errorColor.Fprint(os.Stderr, "ERROR: ")
}

func die(code int, msg string) {
	showError()
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(code)
}
