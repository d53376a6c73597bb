package cmd

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/taskgraph/internal/graph"
	"github.com/Iron-Ham/taskgraph/internal/report"
)

var runDagCmd = &cobra.Command{
	Use:   "dag",
	Short: "Execute a task graph and verify its order",
	Long: `Execute task graphs and verify that every node started only after all of
its dependencies finished.

Graphs are read from YAML plan files (see 'taskgraph graph generate') or
generated from --depth, --fanout and --seed when no file is given.

With --watch, the plan files are executed again each time they change on
disk until the command is interrupted.`,
	RunE: runDag,
}

var (
	dagFiles  []string
	dagWatch  bool
	dagRandom graph.RandomOptions
)

func init() {
	runDagCmd.Flags().StringSliceVarP(&dagFiles, "file", "f", nil, "plan file to execute (repeatable)")
	runDagCmd.Flags().BoolVar(&dagWatch, "watch", false, "execute plan files again when they change")
	addRandomFlags(runDagCmd, &dagRandom)

	runCmd.AddCommand(runDagCmd)
}

// addRandomFlags registers the flags shaping a generated graph.
func addRandomFlags(cmd *cobra.Command, opts *graph.RandomOptions) {
	cmd.Flags().IntVar(&opts.Depth, "depth", 8, fmt.Sprintf("number of graph levels (1-%d)", graph.MaxDepth))
	cmd.Flags().IntVar(&opts.Fanout, "fanout", 16, fmt.Sprintf("maximum nodes per level (1-%d)", graph.MaxFanout))
	cmd.Flags().IntVar(&opts.MaxDeps, "max-deps", 3, "maximum dependencies per node")
	cmd.Flags().IntVar(&opts.Work, "work", 1000, "maximum busy-work rounds per node")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "random graph seed")
}

func runDag(cmd *cobra.Command, args []string) error {
	if dagWatch && len(dagFiles) == 0 {
		return fmt.Errorf("--watch requires at least one --file")
	}

	ctx := cmd.Context()
	var plans []*graph.Plan
	if len(dagFiles) > 0 {
		var err error
		plans, err = graph.LoadAll(ctx, dagFiles, 4)
		if err != nil {
			return err
		}
	} else {
		p, err := graph.Random(dagRandom)
		if err != nil {
			return err
		}
		plans = []*graph.Plan{p}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.close(cmd.ErrOrStderr()) }()

	p := report.New(cmd.OutOrStdout())
	var failed int
	for _, plan := range plans {
		if err := executePlan(ctx, a, p, plan); err != nil {
			failed++
		}
	}

	if dagWatch {
		watchConfig()
		p.Warn("watching plan files, interrupt to stop")
		err := graph.Watch(ctx, dagFiles, graph.DefaultDebounce, func(path string, plan *graph.Plan, err error) {
			if err != nil {
				a.logger.Warn("plan reload failed", "path", path, "error", err)
				p.Warn(err.Error())
				return
			}
			_ = executePlan(ctx, a, p, plan)
		})
		if err != nil {
			return err
		}
	}

	a.printSchedulerStats(p)
	if failed > 0 {
		return fmt.Errorf("%d of %d plans failed", failed, len(plans))
	}
	return nil
}

// executePlan runs one plan and prints its result.
func executePlan(ctx context.Context, a *app, p *report.Printer, plan *graph.Plan) error {
	res, err := graph.Run(ctx, a.sched, plan)

	p.Title("dag " + plan.Name)
	if res != nil {
		p.Field("nodes", res.Nodes)
		p.Field("edges", res.Edges)
		p.Field("levels", res.Levels)
		p.Field("elapsed", res.Duration.Round(time.Microsecond))
	}
	if err != nil {
		a.logger.Error("plan failed", "plan", plan.Name, "error", err)
		p.Status(false, err.Error())
		return err
	}
	p.Status(true, "every node started after its dependencies finished")

	rows := make([][]string, 0, len(res.Workers))
	for _, w := range slices.Sorted(maps.Keys(res.Workers)) {
		rows = append(rows, []string{w, fmt.Sprint(res.Workers[w])})
	}
	fmt.Fprintln(p.Writer())
	p.Table([]string{"WORKER", "NODES"}, rows)
	return nil
}
