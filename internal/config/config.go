package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultExpireDays replaces a missing or non-positive expire_days
const DefaultExpireDays = 90

const (
	DefaultConfigPath   = "/etc/garbage-collector/config.yaml"
	DefaultDatabasePath = "/var/lib/garbage-collector/history.db"
)

type Target struct {
	Path       string   `yaml:"path" toml:"path" json:"path"`
	ExpireDays int      `yaml:"expire_days" toml:"expire_days" json:"expire_days"`
	Extensions []string `yaml:"extensions" toml:"extensions" json:"extensions"` // Empty = every file is a candidate
}

type LoggingCfg struct {
	Level        string `yaml:"level" toml:"level" json:"level"`
	File         string `yaml:"file" toml:"file" json:"file"`                            // Empty = stderr only
	RotationDays int    `yaml:"rotation_days" toml:"rotation_days" json:"rotation_days"` // Days to keep rotated logs
	MaxSizeMB    int    `yaml:"max_size_mb" toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups   int    `yaml:"max_backups" toml:"max_backups" json:"max_backups"`
	Pretty       bool   `yaml:"pretty" toml:"pretty" json:"pretty"`
}

type MetricsCfg struct {
	TextfilePath string `yaml:"textfile_path" toml:"textfile_path" json:"textfile_path"` // node_exporter textfile collector output
}

type ResourceLimits struct {
	MaxCPUPercent float64 `yaml:"max_cpu_percent" toml:"max_cpu_percent" json:"max_cpu_percent"` // 0 = unthrottled
}

type Config struct {
	Targets        []Target       `yaml:"targets" toml:"targets" json:"targets"`
	Trace          *bool          `yaml:"trace" toml:"trace" json:"trace"`
	DatabasePath   string         `yaml:"database_path" toml:"database_path" json:"database_path"` // "-" disables history
	NFSTimeout     int            `yaml:"nfs_timeout_seconds" toml:"nfs_timeout_seconds" json:"nfs_timeout_seconds"`
	ProtectedPaths []string       `yaml:"protected_paths" toml:"protected_paths" json:"protected_paths"`
	Logging        LoggingCfg     `yaml:"logging" toml:"logging" json:"logging"`
	Metrics        MetricsCfg     `yaml:"metrics" toml:"metrics" json:"metrics"`
	ResourceLimits ResourceLimits `yaml:"resource_limits" toml:"resource_limits" json:"resource_limits"`
}

var (
	errNoTargets    = errors.New("configuration must specify at least one target")
	errInvalidPath  = errors.New("target path must not be empty")
	errInvalidLimit = errors.New("max_cpu_percent must be between 0 and 100")
)

// Load reads a YAML config, or TOML when the file ends in .toml
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		cfg, err = decodeTOML(f)
	} else {
		cfg, err = decode(f)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func decodeTOML(r io.Reader) (*Config, error) {
	cfg := &Config{}
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("decode toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode toml: unknown field %q", undecoded[0].String())
	}
	return cfg, nil
}

// Validate checks the configuration and fills in defaults
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return errNoTargets
	}

	for i := range c.Targets {
		t := &c.Targets[i]
		if strings.TrimSpace(t.Path) == "" {
			return fmt.Errorf("target %d: %w", i, errInvalidPath)
		}
		if t.ExpireDays <= 0 {
			t.ExpireDays = DefaultExpireDays
		}
		t.Extensions = NormalizeExtensions(t.Extensions)
	}

	if c.Trace == nil {
		trace := true
		c.Trace = &trace
	}

	if c.DatabasePath == "" {
		c.DatabasePath = DefaultDatabasePath
	}

	if c.NFSTimeout <= 0 {
		c.NFSTimeout = 5
	}

	if c.ResourceLimits.MaxCPUPercent < 0 || c.ResourceLimits.MaxCPUPercent > 100 {
		return errInvalidLimit
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 50
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 5
	}

	return nil
}

// NormalizeExtensions lower-cases, strips leading dots and drops empties.
// Accepts comma-separated entries, so the -ext flag value can be passed as one element.
func NormalizeExtensions(exts []string) []string {
	var out []string
	for _, e := range exts {
		for _, part := range strings.Split(e, ",") {
			part = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(part), "."))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ExpireDays applies the default to a non-positive day count
func ExpireDays(days int) int {
	if days <= 0 {
		return DefaultExpireDays
	}
	return days
}

func (t Target) Expire() time.Duration {
	return time.Duration(ExpireDays(t.ExpireDays)) * 24 * time.Hour
}

func (c *Config) TraceEnabled() bool {
	return c.Trace == nil || *c.Trace
}

func (c *Config) HistoryEnabled() bool {
	return c.DatabasePath != "-"
}

func (c *Config) NFSTimeoutDuration() time.Duration {
	return time.Duration(c.NFSTimeout) * time.Second
}

// Env holds the environment overrides
type Env struct {
	ConfigPath   string
	LogLevel     string
	DatabasePath string
}

// FromEnv loads .env files (missing files are fine) and reads GC_* variables
func FromEnv(files ...string) Env {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
	return Env{
		ConfigPath:   os.Getenv("GC_CONFIG"),
		LogLevel:     os.Getenv("GC_LOG_LEVEL"),
		DatabasePath: os.Getenv("GC_DATABASE_PATH"),
	}
}

// Apply overrides non-empty environment values onto cfg
func (e Env) Apply(cfg *Config) {
	if e.LogLevel != "" {
		cfg.Logging.Level = e.LogLevel
	}
	if e.DatabasePath != "" {
		cfg.DatabasePath = e.DatabasePath
	}
}
