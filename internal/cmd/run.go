package cmd

import (
	"bytes"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/taskgraph/internal/jobs"
	"github.com/Iron-Ham/taskgraph/internal/report"
	"github.com/Iron-Ham/taskgraph/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a sample workload on the scheduler",
	Long: `Run a sample workload on a freshly started scheduler and verify its result.

Each workload is checked against a reference: quicksort and noise compare
the multi-threaded output byte for byte with a single-threaded run, dag
verifies that every node started after all of its dependencies finished.`,
}

var runQuicksortCmd = &cobra.Command{
	Use:   "quicksort",
	Short: "Sort random integers with fork-join tasks",
	RunE:  runQuicksort,
}

var runNoiseCmd = &cobra.Command{
	Use:   "noise",
	Short: "Render a Perlin noise image in tiles",
	RunE:  runNoise,
}

var runStressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Add chained tasks from many concurrent producers",
	Long: `Add tasks from several producers at once. Each producer builds a chain in
which every task depends on the one added before it, so the scheduler must
both run independent chains in parallel and keep each chain in order.`,
	RunE: runStress,
}

var (
	quicksortSize   int
	quicksortSeed   uint32
	quicksortCutoff int

	noiseWidth int
	noiseTile  int

	stressProducers int
	stressTasks     int
)

func init() {
	runQuicksortCmd.Flags().IntVar(&quicksortSize, "size", 1<<20, "number of integers to sort")
	runQuicksortCmd.Flags().Uint32Var(&quicksortSeed, "seed", 1, "random data seed")
	runQuicksortCmd.Flags().IntVar(&quicksortCutoff, "cutoff", jobs.DefaultSortCutoff, "partitions at or below this size are not forked")

	runNoiseCmd.Flags().IntVar(&noiseWidth, "width", 2048, "image width and height in pixels")
	runNoiseCmd.Flags().IntVar(&noiseTile, "tile", 32, "tile width and height in pixels")

	runStressCmd.Flags().IntVar(&stressProducers, "producers", 8, "number of concurrent producers")
	runStressCmd.Flags().IntVar(&stressTasks, "tasks", 10000, "tasks added by each producer")

	runCmd.AddCommand(runQuicksortCmd, runNoiseCmd, runStressCmd)
	rootCmd.AddCommand(runCmd)
}

func runQuicksort(cmd *cobra.Command, args []string) error {
	if quicksortSize <= 0 {
		return fmt.Errorf("invalid --size %d: must be positive", quicksortSize)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.close(cmd.ErrOrStderr()) }()

	st := jobs.RandomInts(quicksortSize, quicksortSeed)
	mt := slices.Clone(st)

	start := time.Now()
	jobs.SortST(st, quicksortCutoff)
	stTime := time.Since(start)

	start = time.Now()
	if err := jobs.SortMT(cmd.Context(), a.sched, mt, quicksortCutoff); err != nil {
		return fmt.Errorf("parallel sort failed: %w", err)
	}
	mtTime := time.Since(start)

	p := report.New(cmd.OutOrStdout())
	p.Title("quicksort")
	p.Field("items", quicksortSize)
	p.Field("seed", quicksortSeed)
	printTimings(p, stTime, mtTime)

	match := slices.Equal(st, mt) && slices.IsSorted(mt)
	p.Status(match, "single-threaded and multi-threaded results match")
	a.printSchedulerStats(p)
	if !match {
		return fmt.Errorf("quicksort results differ")
	}
	return nil
}

func runNoise(cmd *cobra.Command, args []string) error {
	grid, err := jobs.NewNoiseGrid(noiseWidth, noiseTile)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.close(cmd.ErrOrStderr()) }()

	start := time.Now()
	st := jobs.RenderNoiseST(noiseWidth)
	stTime := time.Since(start)

	start = time.Now()
	if err := grid.Render(cmd.Context(), a.sched); err != nil {
		return fmt.Errorf("parallel render failed: %w", err)
	}
	mtTime := time.Since(start)

	p := report.New(cmd.OutOrStdout())
	p.Title("noise")
	p.Field("image", fmt.Sprintf("%dx%d", noiseWidth, noiseWidth))
	p.Field("tiles", len(grid.Tasks))
	printTimings(p, stTime, mtTime)

	match := bytes.Equal(st, grid.Image)
	p.Status(match, "single-threaded and multi-threaded images match")
	a.printSchedulerStats(p)
	if !match {
		return fmt.Errorf("noise images differ")
	}
	return nil
}

func runStress(cmd *cobra.Command, args []string) error {
	if stressProducers <= 0 || stressTasks <= 0 {
		return fmt.Errorf("--producers and --tasks must be positive")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.close(cmd.ErrOrStderr()) }()

	ctx := cmd.Context()
	c := scheduler.NewCounter()
	var ran, outOfOrder atomic.Int64

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for range stressProducers {
		g.Go(func() error {
			var prev *jobs.FuncTask
			var last atomic.Int64
			last.Store(-1)
			for i := range stressTasks {
				seq := int64(i)
				var deps []scheduler.Task
				if prev != nil {
					deps = append(deps, prev)
				}
				t := jobs.Func(func(*scheduler.Scheduler) {
					if last.Swap(seq) != seq-1 {
						outOfOrder.Add(1)
					}
					ran.Add(1)
				}, deps...)
				t.JoinCounter(c)
				if err := a.sched.Submit(gctx, t); err != nil {
					return err
				}
				prev = t
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("producer failed: %w", err)
	}
	if err := c.Wait(ctx); err != nil {
		return err
	}
	elapsed := time.Since(start)

	total := int64(stressProducers) * int64(stressTasks)
	p := report.New(cmd.OutOrStdout())
	p.Title("stress")
	p.Field("producers", stressProducers)
	p.Field("tasks", total)
	p.Field("elapsed", elapsed.Round(time.Microsecond))
	p.Field("throughput", fmt.Sprintf("%.0f tasks/s", float64(total)/elapsed.Seconds()))

	ok := ran.Load() == total && outOfOrder.Load() == 0
	p.Status(ok, fmt.Sprintf("%d tasks ran, %d out of order", ran.Load(), outOfOrder.Load()))
	a.printSchedulerStats(p)
	if !ok {
		return fmt.Errorf("stress run failed")
	}
	return nil
}

func printTimings(p *report.Printer, st, mt time.Duration) {
	p.Field("single", st.Round(time.Microsecond))
	p.Field("multi", mt.Round(time.Microsecond))
	if mt > 0 {
		p.Field("speedup", fmt.Sprintf("%.2fx", float64(st)/float64(mt)))
	}
}
