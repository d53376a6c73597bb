package scheduler

import (
	"bytes"
	"sync"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/Iron-Ham/taskgraph/internal/logging"
)

var diagnosticsMu sync.Mutex

// ConfigureLockDiagnostics switches the runtime lock-order and lock-timeout
// checks on the scheduler's internal locks on or off. Reports go to logger
// instead of terminating the process.
//
// The settings are process-wide. Call this before creating any scheduler.
func ConfigureLockDiagnostics(enabled bool, timeout time.Duration, logger *logging.Logger) {
	diagnosticsMu.Lock()
	defer diagnosticsMu.Unlock()

	if logger == nil {
		logger = logging.NopLogger()
	}
	log := logger.WithComponent("lockcheck")

	deadlock.Opts.Disable = !enabled
	deadlock.Opts.DisableLockOrderDetection = !enabled
	if timeout > 0 {
		deadlock.Opts.DeadlockTimeout = timeout
	}
	deadlock.Opts.LogBuf = &reportWriter{logger: log}
	deadlock.Opts.OnPotentialDeadlock = func() {
		log.Error("potential deadlock detected")
	}
}

// reportWriter buffers a lock report and logs it line by line.
type reportWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	logger *logging.Logger
}

func (w *reportWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write.
			w.buf.Reset()
			w.buf.WriteString(line)
			return len(p), nil
		}
		if line = line[:len(line)-1]; line != "" {
			w.logger.Warn("lock report", "line", line)
		}
	}
}
