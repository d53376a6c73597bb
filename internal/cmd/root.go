package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/taskgraph/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "taskgraph",
	Short: "Dependency-aware task scheduler on dedicated OS threads",
	Long: `Taskgraph runs graphs of interdependent tasks on a fixed pool of worker
threads. A task runs only after every task it depends on has completed.

Use the run subcommands to exercise the scheduler with sample workloads
and verify their results.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints any error it returns. Workload
// commands stop when ctx is done.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	PrintError(rootCmd.ErrOrStderr(), err)
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/taskgraph/config.yaml)")
	flags.IntP("workers", "w", 0, "number of worker threads (0 = one per logical processor)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: json or text")
	flags.String("log-file", "", "write logs to this file instead of stderr")
	flags.Bool("lock-checks", false, "enable lock-order and lock-timeout detection")

	bindFlags()
}

// bindFlags binds the global flags to their configuration keys.
func bindFlags() {
	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("scheduler.workers", flags.Lookup("workers"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = viper.BindPFlag("logging.file", flags.Lookup("log-file"))
	_ = viper.BindPFlag("diagnostics.lock_checks", flags.Lookup("lock-checks"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/taskgraph")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TASKGRAPH")
	// Replace dots with underscores for nested keys in env vars
	// e.g., TASKGRAPH_SCHEDULER_QUEUE_CAPACITY for scheduler.queue_capacity
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
