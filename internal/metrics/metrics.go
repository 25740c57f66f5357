package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var initOnce sync.Once

// Init initializes all metrics and registers them with the default registry.
// Safe to call multiple times.
func Init() {
	initOnce.Do(func() {
		initSweepMetrics()
		initDiskMetrics()

		registerSweepMetrics()
		registerDiskMetrics()

		LastRunTimestamp.Set(0)
	})
}

// WriteTextfile dumps the default registry in node_exporter textfile format.
// The file is written atomically by the client library.
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create textfile directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
