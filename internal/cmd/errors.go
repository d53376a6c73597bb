package cmd

import (
	"io"

	"github.com/Iron-Ham/taskgraph/internal/errors"
	"github.com/Iron-Ham/taskgraph/internal/report"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitInvalidInput = 2
	ExitScheduler    = 3
)

// ExitCode maps the error returned by Execute to a process exit code. Bad
// input (validation, missing plans) and scheduler failures get their own
// codes so scripts can tell them apart from failed verification.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.IsSemanticError(err):
		return ExitInvalidInput
	case errors.IsDomainError(err):
		return ExitScheduler
	default:
		return ExitFailure
	}
}

// PrintError writes err to w. Queue and scheduler errors that are not
// meant for users, and critical errors, are marked as internal.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	if (errors.IsDomainError(err) && !errors.IsUserFacing(err)) || errors.GetSeverity(err) >= errors.SeverityCritical {
		msg = "internal error: " + msg
	}
	report.New(w).Error(msg)
}
