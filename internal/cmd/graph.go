package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/taskgraph/internal/graph"
	"github.com/Iron-Ham/taskgraph/internal/report"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Create and inspect task graph plans",
}

var graphGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random acyclic plan",
	Long: `Generate a random acyclic plan. The same options always produce the same
plan. Without --output the plan is written to stdout as YAML.`,
	RunE: runGraphGenerate,
}

var graphInspectCmd = &cobra.Command{
	Use:   "inspect <plan.yaml>",
	Short: "Validate a plan and show its levels",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraphInspect,
}

var (
	generateOpts   graph.RandomOptions
	generateOutput string
)

func init() {
	addRandomFlags(graphGenerateCmd, &generateOpts)
	graphGenerateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "write the plan to this file")

	graphCmd.AddCommand(graphGenerateCmd, graphInspectCmd)
	rootCmd.AddCommand(graphCmd)
}

func runGraphGenerate(cmd *cobra.Command, args []string) error {
	plan, err := graph.Random(generateOpts)
	if err != nil {
		return err
	}

	if generateOutput == "" {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(plan); err != nil {
			return fmt.Errorf("encode plan: %w", err)
		}
		return enc.Close()
	}

	if err := plan.Save(generateOutput); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d nodes, %d edges) to %s\n",
		plan.Name, len(plan.Nodes), plan.Edges(), generateOutput)
	return nil
}

func runGraphInspect(cmd *cobra.Command, args []string) error {
	plan, err := graph.Load(args[0])
	if err != nil {
		return err
	}

	p := report.New(cmd.OutOrStdout())
	p.Title("plan " + plan.Name)
	p.Field("nodes", len(plan.Nodes))
	p.Field("edges", plan.Edges())

	levels := plan.Levels()
	p.Field("levels", len(levels))
	rows := make([][]string, 0, len(levels))
	for i, level := range levels {
		rows = append(rows, []string{fmt.Sprint(i), fmt.Sprint(len(level)), fmt.Sprint(level)})
	}
	fmt.Fprintln(p.Writer())
	p.Table([]string{"LEVEL", "NODES", "IDS"}, rows)
	return nil
}
