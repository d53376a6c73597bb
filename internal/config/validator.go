package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Iron-Ham/taskgraph/internal/logging"
	"github.com/Iron-Ham/taskgraph/internal/osthread"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "scheduler.queue_capacity")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Upper bounds that keep a misconfigured scheduler from exhausting memory.
const (
	maxWorkers       = 1024
	maxQueueCapacity = 1 << 24
	maxTableBuckets  = 1 << 20
)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return logging.ValidLevels()
}

// ValidLogFormats returns the list of valid log formats
func ValidLogFormats() []string {
	return logging.ValidFormats()
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Scheduler config
	errors = append(errors, c.validateScheduler()...)

	// Validate Teardown config
	errors = append(errors, c.validateTeardown()...)

	// Validate Diagnostics config
	errors = append(errors, c.validateDiagnostics()...)

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateScheduler validates the SchedulerConfig
func (c *Config) validateScheduler() []ValidationError {
	var errors []ValidationError
	s := c.Scheduler

	if s.Workers < 0 || s.Workers > maxWorkers {
		errors = append(errors, ValidationError{
			Field:   "scheduler.workers",
			Value:   s.Workers,
			Message: fmt.Sprintf("must be between 0 and %d", maxWorkers),
		})
	}

	if s.QueueCapacity < 1 || s.QueueCapacity > maxQueueCapacity {
		errors = append(errors, ValidationError{
			Field:   "scheduler.queue_capacity",
			Value:   s.QueueCapacity,
			Message: fmt.Sprintf("must be between 1 and %d", maxQueueCapacity),
		})
	}

	switch {
	case s.TableBuckets < 1 || s.TableBuckets > maxTableBuckets:
		errors = append(errors, ValidationError{
			Field:   "scheduler.table_buckets",
			Value:   s.TableBuckets,
			Message: fmt.Sprintf("must be between 1 and %d", maxTableBuckets),
		})
	case s.TableBuckets&(s.TableBuckets-1) != 0:
		errors = append(errors, ValidationError{
			Field:   "scheduler.table_buckets",
			Value:   s.TableBuckets,
			Message: "must be a power of two",
		})
	}

	if s.StallSweeps < 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.stall_sweeps",
			Value:   s.StallSweeps,
			Message: "must be non-negative (0 disables the diagnostic)",
		})
	}

	if s.PressureLogInterval < 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.pressure_log_interval",
			Value:   s.PressureLogInterval,
			Message: "must be non-negative",
		})
	}

	if s.WorkerPriority < osthread.MinPriority || s.WorkerPriority > osthread.MaxPriority {
		errors = append(errors, ValidationError{
			Field:   "scheduler.worker_priority",
			Value:   s.WorkerPriority,
			Message: fmt.Sprintf("must be between %d and %d", osthread.MinPriority, osthread.MaxPriority),
		})
	}

	return errors
}

// validateTeardown validates the TeardownConfig
func (c *Config) validateTeardown() []ValidationError {
	var errors []ValidationError

	if c.Teardown.GracePeriod <= 0 {
		errors = append(errors, ValidationError{
			Field:   "teardown.grace_period",
			Value:   c.Teardown.GracePeriod,
			Message: "must be positive",
		})
	}

	const maxAttempts = 100
	if c.Teardown.MaxAttempts < 1 || c.Teardown.MaxAttempts > maxAttempts {
		errors = append(errors, ValidationError{
			Field:   "teardown.max_attempts",
			Value:   c.Teardown.MaxAttempts,
			Message: fmt.Sprintf("must be between 1 and %d", maxAttempts),
		})
	}

	return errors
}

// validateDiagnostics validates the DiagnosticsConfig
func (c *Config) validateDiagnostics() []ValidationError {
	var errors []ValidationError

	if c.Diagnostics.LockChecks && c.Diagnostics.LockTimeout < time.Millisecond {
		errors = append(errors, ValidationError{
			Field:   "diagnostics.lock_timeout",
			Value:   c.Diagnostics.LockTimeout,
			Message: "must be at least 1ms when lock checks are enabled",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToUpper(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.Format != "" && !slices.Contains(ValidLogFormats(), strings.ToLower(c.Logging.Format)) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}

	if strings.ContainsRune(c.Logging.File, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "logging.file",
			Value:   c.Logging.File,
			Message: "path contains invalid null character",
		})
	}

	return errors
}
