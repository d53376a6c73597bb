package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/taskgraph/internal/scheduler"
)

// Config represents the complete taskgraph configuration
type Config struct {
	Scheduler   SchedulerConfig   `mapstructure:"scheduler" yaml:"scheduler"`
	Teardown    TeardownConfig    `mapstructure:"teardown" yaml:"teardown"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// SchedulerConfig sizes the worker pool and its queues
type SchedulerConfig struct {
	// Workers is the number of worker threads (0 = one per logical processor)
	Workers int `mapstructure:"workers" yaml:"workers"`
	// QueueCapacity bounds the pending and ready queues (rounded up to a power of two)
	QueueCapacity int `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	// TableBuckets is the bucket count of the active-task table (power of two)
	TableBuckets int `mapstructure:"table_buckets" yaml:"table_buckets"`
	// StallSweeps reports a task still unresolved after this many sweeps (0 = disabled)
	StallSweeps int `mapstructure:"stall_sweeps" yaml:"stall_sweeps"`
	// PressureLogInterval is the minimum time between two capacity warnings
	PressureLogInterval time.Duration `mapstructure:"pressure_log_interval" yaml:"pressure_log_interval"`
	// WorkerPriority is the nice value of worker threads, -20 to 19 (0 = inherit)
	WorkerPriority int `mapstructure:"worker_priority" yaml:"worker_priority"`
}

// TeardownConfig controls how long shutdown waits for workers
type TeardownConfig struct {
	// GracePeriod is how long each join attempt waits
	GracePeriod time.Duration `mapstructure:"grace_period" yaml:"grace_period"`
	// MaxAttempts is the number of join attempts before workers are leaked
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// DiagnosticsConfig controls runtime lock checking
type DiagnosticsConfig struct {
	// LockChecks enables lock-order and lock-timeout detection on scheduler locks
	LockChecks bool `mapstructure:"lock_checks" yaml:"lock_checks"`
	// LockTimeout is how long a lock may be waited on before it is reported
	LockTimeout time.Duration `mapstructure:"lock_timeout" yaml:"lock_timeout"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn or error (default: info)
	Level string `mapstructure:"level" yaml:"level"`
	// Format is the record format: json or text (default: json)
	Format string `mapstructure:"format" yaml:"format"`
	// File is the log file path (empty = stderr)
	File string `mapstructure:"file" yaml:"file"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Workers:             0,
			QueueCapacity:       2048,
			TableBuckets:        1024,
			StallSweeps:         4096,
			PressureLogInterval: time.Second,
			WorkerPriority:      0,
		},
		Teardown: TeardownConfig{
			GracePeriod: 50 * time.Millisecond,
			MaxAttempts: 5,
		},
		Diagnostics: DiagnosticsConfig{
			LockChecks:  false, // Lock checking slows every lock operation
			LockTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Scheduler defaults
	viper.SetDefault("scheduler.workers", defaults.Scheduler.Workers)
	viper.SetDefault("scheduler.queue_capacity", defaults.Scheduler.QueueCapacity)
	viper.SetDefault("scheduler.table_buckets", defaults.Scheduler.TableBuckets)
	viper.SetDefault("scheduler.stall_sweeps", defaults.Scheduler.StallSweeps)
	viper.SetDefault("scheduler.pressure_log_interval", defaults.Scheduler.PressureLogInterval)
	viper.SetDefault("scheduler.worker_priority", defaults.Scheduler.WorkerPriority)

	// Teardown defaults
	viper.SetDefault("teardown.grace_period", defaults.Teardown.GracePeriod)
	viper.SetDefault("teardown.max_attempts", defaults.Teardown.MaxAttempts)

	// Diagnostics defaults
	viper.SetDefault("diagnostics.lock_checks", defaults.Diagnostics.LockChecks)
	viper.SetDefault("diagnostics.lock_timeout", defaults.Diagnostics.LockTimeout)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)
	viper.SetDefault("logging.file", defaults.Logging.File)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// SchedulerOptions converts the configuration into scheduler sizing.
func (c *Config) SchedulerOptions() scheduler.Config {
	return scheduler.Config{
		Workers:          c.Scheduler.Workers,
		QueueCapacity:    c.Scheduler.QueueCapacity,
		TableBuckets:     c.Scheduler.TableBuckets,
		StallSweeps:      c.Scheduler.StallSweeps,
		PressureInterval: c.Scheduler.PressureLogInterval,
		TeardownGrace:    c.Teardown.GracePeriod,
		TeardownAttempts: c.Teardown.MaxAttempts,
		WorkerPriority:   c.Scheduler.WorkerPriority,
	}
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "taskgraph")
	}
	// Fall back to ~/.config/taskgraph
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskgraph"
	}
	return filepath.Join(home, ".config", "taskgraph")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Keys returns every configuration key in dot notation, sorted
func Keys() []string {
	keys := make([]string, 0, len(keyTypes))
	for k := range keyTypes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// KeyType returns the value type of a configuration key ("int", "bool",
// "string" or "duration") and whether the key exists
func KeyType(key string) (string, bool) {
	t, ok := keyTypes[key]
	return t, ok
}

var keyTypes = map[string]string{
	"scheduler.workers":               "int",
	"scheduler.queue_capacity":        "int",
	"scheduler.table_buckets":         "int",
	"scheduler.stall_sweeps":          "int",
	"scheduler.pressure_log_interval": "duration",
	"scheduler.worker_priority":       "int",
	"teardown.grace_period":           "duration",
	"teardown.max_attempts":           "int",
	"diagnostics.lock_checks":         "bool",
	"diagnostics.lock_timeout":        "duration",
	"logging.level":                   "string",
	"logging.format":                  "string",
	"logging.file":                    "string",
}
