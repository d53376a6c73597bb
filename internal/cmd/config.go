package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/taskgraph/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify taskgraph configuration",
	Long: `View or modify taskgraph configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  taskgraph config set scheduler.workers 8
  taskgraph config set teardown.grace_period 200ms
  taskgraph config set logging.level debug

Valid keys:
  scheduler.workers               - Worker threads (0 = one per logical processor)
  scheduler.queue_capacity        - Capacity of the pending and ready queues
  scheduler.table_buckets         - Active-task table buckets (power of two)
  scheduler.stall_sweeps          - Report tasks unresolved after this many sweeps (0 = off)
  scheduler.pressure_log_interval - Minimum time between capacity warnings
  teardown.grace_period           - How long each worker join attempt waits
  teardown.max_attempts           - Join attempts before workers are leaked
  diagnostics.lock_checks         - Lock-order and lock-timeout detection (true/false)
  diagnostics.lock_timeout        - Lock wait reported as a potential deadlock
  logging.level                   - debug, info, warn or error
  logging.format                  - json or text
  logging.file                    - Log file path (empty = stderr)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/taskgraph/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "# Config file: (none - using defaults)\n")
	}
	if _, err := config.Load(); err != nil {
		fmt.Fprintf(out, "# Invalid configuration, commands will refuse to start:\n")
		for _, line := range strings.Split(strings.TrimSpace(err.Error()), "\n") {
			fmt.Fprintf(out, "#   %s\n", strings.TrimSpace(line))
		}
	}

	data, err := yaml.Marshal(settings())
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// settings returns the effective value of every key, grouped by section.
// Durations are rendered in their string form.
func settings() map[string]map[string]any {
	out := make(map[string]map[string]any)
	for _, key := range config.Keys() {
		section, name, _ := strings.Cut(key, ".")
		if out[section] == nil {
			out[section] = make(map[string]any)
		}
		typ, _ := config.KeyType(key)
		switch typ {
		case "duration":
			out[section][name] = viper.GetDuration(key).String()
		case "int":
			out[section][name] = viper.GetInt(key)
		case "bool":
			out[section][name] = viper.GetBool(key)
		default:
			out[section][name] = viper.GetString(key)
		}
	}
	return out
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	// Validate the key exists
	keyType, ok := config.KeyType(key)
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'taskgraph config set --help' to see valid keys", key)
	}

	// Validate the value based on type
	var typedValue any
	switch keyType {
	case "string":
		typedValue = value
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = value == "true"
	case "int":
		// Ranges are checked by config validation below.
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		typedValue = intVal
	case "duration":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected a duration such as 50ms or 2s", key)
		}
		typedValue = d.String()
	}

	// Reject values the rest of the configuration cannot accept
	previous := viper.Get(key)
	viper.Set(key, typedValue)
	if _, err := config.Load(); err != nil {
		viper.Set(key, previous)
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write to config file
	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'taskgraph config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigFile), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	fmt.Fprintln(cmd.OutOrStdout(), "Edit this file to tune the scheduler. Log level changes apply to running commands.")

	return nil
}

const defaultConfigFile = `# taskgraph configuration

scheduler:
  # Worker threads (0 = one per logical processor)
  workers: 0
  # Capacity of the pending and ready queues
  queue_capacity: 2048
  # Buckets of the active-task table (power of two)
  table_buckets: 1024
  # Report a task still waiting on dependencies after this many sweeps (0 = off)
  stall_sweeps: 4096
  # Minimum time between two capacity warnings
  pressure_log_interval: 1s
  # Nice value of worker threads, -20 to 19 (0 = inherit; negative values need privileges)
  worker_priority: 0

teardown:
  # How long each worker join attempt waits
  grace_period: 50ms
  # Join attempts before remaining workers are reported as leaked
  max_attempts: 5

diagnostics:
  # Detect lock-order inversions and long lock waits (slows every lock)
  lock_checks: false
  lock_timeout: 30s

logging:
  # debug, info, warn or error
  level: info
  # json or text
  format: json
  # Log file path (empty = stderr)
  file: ""
`

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. $HOME/.config/taskgraph/config.yaml\n")
	fmt.Fprintf(out, "  3. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: TASKGRAPH_* (e.g., TASKGRAPH_SCHEDULER_WORKERS)")

	return nil
}
