package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/taskgraph/internal/config"
	"github.com/Iron-Ham/taskgraph/internal/errors"
	"github.com/Iron-Ham/taskgraph/internal/event"
	"github.com/Iron-Ham/taskgraph/internal/logging"
	"github.com/Iron-Ham/taskgraph/internal/report"
	"github.com/Iron-Ham/taskgraph/internal/scheduler"
)

// app bundles what a workload command needs: validated configuration, a
// logger, the event bus and a running scheduler.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	bus    *event.Bus
	sched  *scheduler.Scheduler

	mu     sync.Mutex
	events map[string]int
}

var (
	watchOnce sync.Once
	current   struct {
		sync.Mutex
		app *app
	}
)

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.NewValidationError("invalid configuration").WithCause(err)
	}

	logger, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level, logging.WithFormat(cfg.Logging.Format))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	scheduler.ConfigureLockDiagnostics(cfg.Diagnostics.LockChecks, cfg.Diagnostics.LockTimeout, logger)

	a := &app{
		cfg:    cfg,
		logger: logger,
		bus:    event.NewBus(logger),
		events: make(map[string]int),
	}
	a.bus.SubscribeAll(a.countEvent)

	a.sched, err = scheduler.New(cfg.SchedulerOptions(),
		scheduler.WithLogger(logger),
		scheduler.WithEventBus(a.bus),
	)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	current.Lock()
	current.app = a
	current.Unlock()

	return a, nil
}

func (a *app) countEvent(e event.Event) {
	a.mu.Lock()
	a.events[e.EventType()]++
	a.mu.Unlock()
}

// eventCounts returns how many events of each type were published.
func (a *app) eventCounts() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return maps.Clone(a.events)
}

// close shuts the scheduler down and releases the log file. Leaked workers
// are reported as a warning rather than a command failure.
func (a *app) close(out io.Writer) error {
	current.Lock()
	if current.app == a {
		current.app = nil
	}
	current.Unlock()

	t := a.cfg.Teardown
	ctx, cancel := context.WithTimeout(context.Background(), t.GracePeriod*time.Duration(t.MaxAttempts)+time.Second)
	defer cancel()

	if err := a.sched.Shutdown(ctx); err != nil {
		report.New(out).Warn(err.Error())
	}
	return a.logger.Close()
}

// printSchedulerStats writes the scheduler counters and published events.
func (a *app) printSchedulerStats(p *report.Printer) {
	st := a.sched.Stats()
	p.Title("scheduler")
	p.Field("id", a.sched.ID())
	p.Field("workers", st.Workers)
	p.Field("executed", st.Executed)
	p.Field("panicked", st.Panicked)
	p.Field("sweeps", st.Sweeps)

	counts := a.eventCounts()
	if len(counts) == 0 {
		return
	}
	rows := make([][]string, 0, len(counts))
	for _, typ := range slices.Sorted(maps.Keys(counts)) {
		rows = append(rows, []string{typ, fmt.Sprint(counts[typ])})
	}
	fmt.Fprintln(p.Writer())
	p.Table([]string{"EVENT", "COUNT"}, rows)
}

// watchConfig applies log level changes from the config file to the
// running command. The watcher is started once per process and only by
// long-running commands.
func watchConfig() {
	if viper.ConfigFileUsed() == "" {
		return
	}
	watchOnce.Do(func() {
		viper.OnConfigChange(func(e fsnotify.Event) {
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				return
			}
			current.Lock()
			a := current.app
			current.Unlock()
			if a != nil {
				a.reload(e.Name)
			}
		})
		viper.WatchConfig()
	})
}

// reload re-reads the configuration after the file at path changed. Only
// the log level is applied to a running scheduler.
func (a *app) reload(path string) {
	cfg, err := config.Load()
	if err != nil {
		a.logger.Warn("ignoring invalid config change", "path", path, "error", err)
		return
	}
	a.logger.SetLevel(cfg.Logging.Level)
	if p := cfg.Scheduler.WorkerPriority; p != a.cfg.Scheduler.WorkerPriority {
		if err := a.sched.SetWorkerPriority(p); err != nil {
			a.logger.Warn("failed to apply worker priority", "priority", p, "error", err)
		} else {
			a.cfg.Scheduler.WorkerPriority = p
		}
	}
	a.logger.Info("config reloaded", "path", path, "level", a.logger.Level())
	a.bus.Publish(event.NewConfigReloadedEvent(path, a.logger.Level()))
}
