// Package errors provides centralized error definitions and error handling utilities
// for taskgraph. It defines scheduler-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - QueueError: a bounded handoff queue rejected an operation (overflow, misuse)
//   - SchedulerError: the scheduler rejected a task or failed an operation
//   - WorkerError: a worker thread misbehaved (panic, failed to stop)
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
//	err := errors.NewQueueError("enqueue rejected", errors.ErrQueueFull).
//		WithQueue("ready").WithCapacity(2048)
//
//	if errors.Is(err, errors.ErrQueueFull) { ... }
//
//	var qErr *errors.QueueError
//	if errors.As(err, &qErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Queue-related sentinel errors
var (
	// ErrQueueFull indicates that the slot about to be written still holds an
	// unread item. The queue was undersized for the workload.
	ErrQueueFull = New("queue is full")
	// ErrQueueNotInitialized indicates that a queue was used before Init.
	ErrQueueNotInitialized = New("queue is not initialized")
	// ErrQueueReinitialized indicates a second call to Init.
	ErrQueueReinitialized = New("queue is already initialized")
)

// Scheduler-related sentinel errors
var (
	// ErrFinalizing indicates that the scheduler no longer accepts work.
	ErrFinalizing = New("scheduler is finalizing")
	// ErrDependencyCycle indicates a circular dependency between tasks.
	ErrDependencyCycle = New("dependency cycle detected")
	// ErrTaskPanicked indicates that a task panicked while executing.
	ErrTaskPanicked = New("task panicked")
	// ErrTeardownTimeout indicates that one or more workers did not stop.
	ErrTeardownTimeout = New("workers did not stop before teardown deadline")
	// ErrVerificationFailed indicates that a run produced an unexpected result.
	ErrVerificationFailed = New("verification failed")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// TaskgraphError is the base interface for all taskgraph errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type TaskgraphError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// formatPrefixed renders "<kind> [k=v, ...]: message: cause".
func formatPrefixed(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// QueueError represents a rejected bounded handoff queue operation.
// Overflow is retryable: the caller may drain the queue and try again.
//
// Example:
//
//	err := errors.NewQueueError("enqueue rejected", errors.ErrQueueFull).WithQueue("pending").WithCapacity(2048)
//	fmt.Println(err) // "queue error [queue=pending, capacity=2048]: enqueue rejected: queue is full"
type QueueError struct {
	baseError
	Queue    string
	Capacity int
}

// NewQueueError creates a new QueueError.
func NewQueueError(message string, cause error) *QueueError {
	return &QueueError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  errors.Is(cause, ErrQueueFull),
			userFacing: false,
		},
	}
}

// WithQueue adds the queue name to the error context.
func (e *QueueError) WithQueue(name string) *QueueError {
	e.Queue = name
	return e
}

// WithCapacity adds the queue capacity to the error context.
func (e *QueueError) WithCapacity(capacity int) *QueueError {
	e.Capacity = capacity
	return e
}

// WithSeverity sets the error severity.
func (e *QueueError) WithSeverity(s Severity) *QueueError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *QueueError) Error() string {
	var parts []string
	if e.Queue != "" {
		parts = append(parts, fmt.Sprintf("queue=%s", e.Queue))
	}
	if e.Capacity > 0 {
		parts = append(parts, fmt.Sprintf("capacity=%d", e.Capacity))
	}
	return formatPrefixed("queue error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *QueueError) Is(target error) bool {
	if _, ok := target.(*QueueError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SchedulerError represents a scheduler operation that was rejected or failed.
//
// Example:
//
//	err := errors.NewSchedulerError("add task", errors.ErrFinalizing).WithScheduler("7f3c").WithTaskID(42)
type SchedulerError struct {
	baseError
	Scheduler string
	TaskID    uint64
	Op        string
}

// NewSchedulerError creates a new SchedulerError.
func NewSchedulerError(message string, cause error) *SchedulerError {
	return &SchedulerError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  errors.Is(cause, ErrQueueFull),
			userFacing: true,
		},
	}
}

// WithScheduler adds the scheduler instance id to the error context.
func (e *SchedulerError) WithScheduler(id string) *SchedulerError {
	e.Scheduler = id
	return e
}

// WithTaskID adds a task id to the error context.
func (e *SchedulerError) WithTaskID(id uint64) *SchedulerError {
	e.TaskID = id
	return e
}

// WithOp adds the failing operation to the error context.
func (e *SchedulerError) WithOp(op string) *SchedulerError {
	e.Op = op
	return e
}

// WithSeverity sets the error severity.
func (e *SchedulerError) WithSeverity(s Severity) *SchedulerError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *SchedulerError) Error() string {
	var parts []string
	if e.Scheduler != "" {
		parts = append(parts, fmt.Sprintf("scheduler=%s", e.Scheduler))
	}
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.TaskID != 0 {
		parts = append(parts, fmt.Sprintf("task=%d", e.TaskID))
	}
	return formatPrefixed("scheduler error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *SchedulerError) Is(target error) bool {
	if _, ok := target.(*SchedulerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WorkerError represents a misbehaving worker thread.
//
// Example:
//
//	err := errors.NewWorkerError("worker did not stop", errors.ErrTeardownTimeout).WithWorkers("tg-worker-3").WithAttempts(5)
type WorkerError struct {
	baseError
	Workers  []string
	Attempts int
}

// NewWorkerError creates a new WorkerError.
func NewWorkerError(message string, cause error) *WorkerError {
	return &WorkerError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithWorkers adds the affected worker names to the error context.
func (e *WorkerError) WithWorkers(names ...string) *WorkerError {
	e.Workers = append(e.Workers, names...)
	return e
}

// WithAttempts records how many join attempts were made.
func (e *WorkerError) WithAttempts(n int) *WorkerError {
	e.Attempts = n
	return e
}

// Error returns the formatted error message.
func (e *WorkerError) Error() string {
	var parts []string
	if len(e.Workers) > 0 {
		parts = append(parts, fmt.Sprintf("workers=%s", strings.Join(e.Workers, "|")))
	}
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempts=%d", e.Attempts))
	}
	return formatPrefixed("worker error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *WorkerError) Is(target error) bool {
	if _, ok := target.(*WorkerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("node", "build")
//	fmt.Println(err) // "node 'build' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
//
// Example:
//
//	err := errors.NewAlreadyExistsError("node", "build")
//	fmt.Println(err) // "node 'build' already exists"
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("workers must not be negative")
//	err = err.WithField("scheduler.workers").WithValue(-1)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatPrefixed("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for join counter", 5*time.Second)
//	fmt.Println(err) // "timeout error: waiting for join counter (timeout: 5s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing TaskgraphError with IsRetryable() returning true
//   - Errors wrapping ErrTimeout or ErrQueueFull
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var tgErr TaskgraphError
	if As(err, &tgErr) {
		return tgErr.IsRetryable()
	}

	return Is(err, ErrTimeout) || Is(err, ErrQueueFull)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var tgErr TaskgraphError
	if As(err, &tgErr) {
		return tgErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement TaskgraphError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var tgErr TaskgraphError
	if As(err, &tgErr) {
		return tgErr.Severity()
	}
	return SeverityError
}

// IsDomainError returns true if the error is a domain-specific error
// (QueueError, SchedulerError, or WorkerError).
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}

	var queueErr *QueueError
	var schedErr *SchedulerError
	var workerErr *WorkerError

	return As(err, &queueErr) || As(err, &schedErr) || As(err, &workerErr)
}

// IsSemanticError returns true if the error is a semantic error
// (NotFoundError, AlreadyExistsError, ValidationError, or TimeoutError).
func IsSemanticError(err error) bool {
	if err == nil {
		return false
	}

	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError
	var timeout *TimeoutError

	return As(err, &notFound) || As(err, &alreadyExists) ||
		As(err, &validation) || As(err, &timeout)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
