package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/schedsim/schedsim/sim"
	"github.com/schedsim/schedsim/sim/export"
	"github.com/schedsim/schedsim/sim/lease"
	"github.com/schedsim/schedsim/sim/trace"
)

var (
	logLevel     string        // Log verbosity level
	envFile      string        // Optional .env with Redis settings
	scenarioPath string        // Scenario YAML
	enginePath   string        // Engine YAML, optional
	commandsPath string        // Command stream YAML
	xlsxPath     string        // Workbook written after a run
	useLease     bool          // Take the scenario lease when Redis is configured
	leaseTTL     time.Duration // Lease lifetime between refreshes
	traceLevel   string        // Overrides the engine trace_level
	showMetrics  bool          // Print schedule metrics after the run
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "schedsim",
	Short: "Deterministic discrete-event simulator for manufacturing schedules",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("loading %s: %w", envFile, err)
			}
		}
		return nil
	},
	SilenceUsage: true,
}

// runCmd schedules a scenario and applies a command stream to it
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Schedule a scenario and apply a command stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		conn, err := connectRedis(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		cfg, err := loadEngineConfig()
		if err != nil {
			return err
		}
		if traceLevel != "" {
			if !trace.IsValidTraceLevel(traceLevel) {
				return fmt.Errorf("invalid trace level: %s", traceLevel)
			}
			cfg.TraceLevel = traceLevel
		}
		e, err := newEngine(cfg, conn.publisher(cfg))
		if err != nil {
			return err
		}

		if useLease && conn.locker != nil {
			l, err := lease.Acquire(ctx, conn.locker, e.ScenarioID(), leaseTTL)
			if err != nil {
				return err
			}
			defer holdLease(ctx, l, e.ScenarioID(), stop)()
		}

		cmds, err := loadCommands(commandsPath)
		if err != nil {
			return err
		}
		logrus.Infof("Starting scenario %s with %d commands", e.ScenarioID(), len(cmds))
		outcomes, err := processAll(ctx, e, cmds)
		if err != nil {
			return err
		}
		printOutcomes(cmd.OutOrStdout(), outcomes)
		printSummary(cmd.OutOrStdout(), e.Snapshot(), e.Checksum().Sum)
		if showMetrics {
			sim.NewMetrics(e.Snapshot()).Print(cmd.OutOrStdout())
		}
		if trace.Enabled(cfg.TraceLevel) {
			printTraceSummary(cmd.OutOrStdout(), e.TraceSummary())
		}

		if xlsxPath != "" {
			if err := export.WriteFile(e.Snapshot(), xlsxPath); err != nil {
				return err
			}
			logrus.Infof("Wrote schedule to %s", xlsxPath)
		}
		logrus.Info("Simulation complete.")
		return nil
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Environment file with REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB")
	rootCmd.PersistentFlags().StringVar(&scenarioPath, "scenario", "", "Scenario YAML file")
	rootCmd.PersistentFlags().StringVar(&enginePath, "engine", "", "Engine YAML file (max_reapply, max_events, checksum_ignore, notify_prefix, trace_level)")

	runCmd.Flags().StringVar(&commandsPath, "commands", "", "Command stream YAML file; empty runs a single optimize")
	runCmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write the final schedule to this workbook")
	runCmd.Flags().BoolVar(&useLease, "lease", true, "Hold the scenario lease while running (needs REDIS_ADDRESS)")
	runCmd.Flags().DurationVar(&leaseTTL, "lease-ttl", lease.DefaultTTL, "Scenario lease TTL")
	runCmd.Flags().StringVar(&traceLevel, "trace", "", "Decision trace level (none, decisions); overrides the engine file")
	runCmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print schedule metrics after the run")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(checksumCmd)
}
