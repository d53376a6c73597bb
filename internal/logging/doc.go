// Package logging provides structured logging for taskgraph.
//
// It wraps Go's log/slog and adds persistent attributes for the scheduler
// instance and worker thread that produced a record, so a single log file can
// be filtered per scheduler or per worker after a run.
//
// # Thread Safety
//
// [Logger] is safe for concurrent use. Child loggers created via the With*
// methods share the underlying handler and level, so [Logger.SetLevel] on
// any of them changes verbosity for the whole tree.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/tmp/taskgraph.log", logging.LevelInfo)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	wlog := logger.WithScheduler(id).WithWorker("tg-worker-0")
//	wlog.Warn("task panicked", "task_id", 17)
//
// Tests that do not care about output use [NopLogger].
package logging
