package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"garbage-collector/internal/config"
	"garbage-collector/internal/database"
	"garbage-collector/internal/exitcodes"
)

func main() {
	env := config.FromEnv(".env")
	defaultDB := config.DefaultDatabasePath
	if env.DatabasePath != "" {
		defaultDB = env.DatabasePath
	}

	dbPath := flag.String("db", defaultDB, "Path to history database")
	recent := flag.Int("recent", 0, "Show N most recent events")
	runs := flag.Int("runs", 0, "Show N most recent runs")
	run := flag.Int64("run", 0, "Show all events of one run")
	action := flag.String("action", "", "Filter by action (UNLINK, RMDIR, KEEP, ERROR)")
	pathPattern := flag.String("path", "", "Filter by path pattern (SQL LIKE syntax)")
	limit := flag.Int("limit", 100, "Maximum rows for -action and -path")
	stats := flag.Bool("stats", false, "Show sweep statistics")
	days := flag.Int("days", 30, "Number of days for statistics (default: 30)")
	prune := flag.Int("prune", 0, "Delete history older than N days, then vacuum")
	jsonOutput := flag.Bool("json", false, "Output in JSON format")
	flag.Parse()

	if _, err := os.Stat(*dbPath); err != nil {
		log.Fatalf("ERROR: History database %s not found: %v", *dbPath, err)
	}

	db, err := database.NewHistoryDB(*dbPath)
	if err != nil {
		log.Fatalf("ERROR: Failed to open database %s: %v", *dbPath, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("ERROR: Failed to close database: %v", err)
		}
	}()

	out := os.Stdout

	switch {
	case *prune > 0:
		err = pruneHistory(out, db, *prune, time.Now())
	case *stats:
		err = showStats(out, db, *days, time.Now(), *jsonOutput)
	case *runs > 0:
		err = showRuns(out, db, *runs, *jsonOutput)
	case *run > 0:
		err = showEvents(out, *jsonOutput, fmt.Sprintf("Events of run %d", *run), func() ([]database.EventRecord, error) {
			return db.GetEventsForRun(*run)
		})
	case *recent > 0:
		err = showEvents(out, *jsonOutput, "", func() ([]database.EventRecord, error) {
			return db.GetRecentEvents(*recent)
		})
	case *action != "":
		act := strings.ToUpper(*action)
		err = showEvents(out, *jsonOutput, "Events with action: "+act, func() ([]database.EventRecord, error) {
			return db.GetEventsByAction(act, *limit)
		})
	case *pathPattern != "":
		err = showEvents(out, *jsonOutput, "Events matching path pattern: "+*pathPattern, func() ([]database.EventRecord, error) {
			return db.GetEventsByPath(*pathPattern, *limit)
		})
	default:
		flag.Usage()
		fmt.Println("\nExamples:")
		fmt.Println("  garbage-collector-query -recent 10             # Show 10 most recent events")
		fmt.Println("  garbage-collector-query -runs 5                # Show the last 5 sweeps")
		fmt.Println("  garbage-collector-query -run 42                # Show every decision of run 42")
		fmt.Println("  garbage-collector-query -stats -days 7         # Show statistics for a week")
		fmt.Println("  garbage-collector-query -action UNLINK         # Show only deleted files")
		fmt.Println("  garbage-collector-query -path '/srv/cache/%'   # Show events under /srv/cache")
		fmt.Println("  garbage-collector-query -prune 180             # Forget history older than 180 days")
		os.Exit(exitcodes.InvalidConfig)
	}

	if err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(exitcodes.RuntimeError)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func showStats(w io.Writer, db *database.HistoryDB, days int, now time.Time, jsonOutput bool) error {
	stats, err := db.GetStats(days, now)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	if jsonOutput {
		return writeJSON(w, stats)
	}

	fmt.Fprintf(w, "Sweep Statistics (Last %d days)\n", days)
	fmt.Fprintf(w, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(w, "Runs:             %d\n", stats.Runs)
	fmt.Fprintf(w, "Files Deleted:    %d\n", stats.FilesDeleted)
	fmt.Fprintf(w, "Dirs Removed:     %d\n", stats.DirsRemoved)
	fmt.Fprintf(w, "Kept:             %d\n", stats.Kept)
	fmt.Fprintf(w, "Errors:           %d\n", stats.Errors)
	fmt.Fprintf(w, "Space Freed:      %s\n", formatBytes(stats.BytesFreed))

	if len(stats.ByAction) > 0 {
		fmt.Fprintln(w, "\nBy Action:")
		for action, count := range stats.ByAction {
			fmt.Fprintf(w, "  %-15s %d\n", action, count)
		}
	}
	return nil
}

func showRuns(w io.Writer, db *database.HistoryDB, limit int, jsonOutput bool) error {
	runs, err := db.GetRecentRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to get recent runs: %w", err)
	}

	if jsonOutput {
		return writeJSON(w, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tInvocation\tStarted\tStatus\tDeleted\tKept\tFailed\tDirs\tFreed\tRoot")
	_, _ = fmt.Fprintln(tw, "--\t----------\t-------\t------\t-------\t----\t------\t----\t-----\t----")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.ID, shortID(r.Invocation), r.StartedAt.Format("2006-01-02 15:04:05"), r.Status,
			r.FilesDeleted, r.FilesKept, r.FilesFailed+r.DirsFailed, r.DirsRemoved,
			formatBytes(r.BytesFreed), r.Root)
	}
	return tw.Flush()
}

func showEvents(w io.Writer, jsonOutput bool, title string, fetch func() ([]database.EventRecord, error)) error {
	records, err := fetch()
	if err != nil {
		return fmt.Errorf("failed to query events: %w", err)
	}

	if jsonOutput {
		return writeJSON(w, records)
	}

	if title != "" {
		fmt.Fprintf(w, "%s\n\n", title)
	}
	printEvents(w, records)
	return nil
}

func printEvents(w io.Writer, records []database.EventRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tRun\tTimestamp\tAction\tOutcome\tSize\tPath")
	_, _ = fmt.Fprintln(tw, "--\t---\t---------\t------\t-------\t----\t----")

	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.RunID, r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Action, r.Outcome, formatBytes(r.Size), r.Path)
	}
	_ = tw.Flush()
}

func pruneHistory(w io.Writer, db *database.HistoryDB, days int, now time.Time) error {
	removed, err := db.DeleteOldRecords(days, now)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	if err := db.Vacuum(); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	st, err := db.GetDatabaseStats()
	if err != nil {
		return fmt.Errorf("failed to read database stats: %w", err)
	}
	fmt.Fprintf(w, "Removed %d events from runs older than %d days\n", removed, days)
	fmt.Fprintf(w, "Remaining: %d runs, %d events, %s on disk\n", st.TotalRuns, st.TotalEvents, formatBytes(st.SizeBytes))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
