package cmd

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/Iron-Ham/taskgraph/internal/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain error", fmt.Errorf("quicksort results differ"), ExitFailure},
		{"validation", errors.NewValidationError("invalid configuration"), ExitInvalidInput},
		{"missing plan", fmt.Errorf("load: %w", errors.NewNotFoundError("plan", "a.yaml")), ExitInvalidInput},
		{"scheduler", errors.NewSchedulerError("add rejected", errors.ErrFinalizing), ExitScheduler},
		{"leaked workers", errors.NewWorkerError("workers did not stop", errors.ErrTeardownTimeout), ExitScheduler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPrintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"user facing", errors.NewValidationError("bad value"), "error: validation error: bad value\n"},
		{"internal queue error", errors.NewQueueError("enqueue rejected", errors.ErrQueueFull), "error: internal error: queue error: enqueue rejected: queue is full\n"},
		{"critical", errors.NewQueueError("enqueue rejected", errors.ErrQueueNotInitialized).WithSeverity(errors.SeverityCritical), "error: internal error: "},
		{"plain", fmt.Errorf("noise images differ"), "error: noise images differ\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			PrintError(&buf, tt.err)
			if tt.want == "" {
				if buf.Len() != 0 {
					t.Errorf("PrintError(nil) wrote %q", buf.String())
				}
				return
			}
			if !strings.HasPrefix(buf.String(), tt.want) {
				t.Errorf("PrintError() = %q, want prefix %q", buf.String(), tt.want)
			}
		})
	}
}
