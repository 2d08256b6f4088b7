package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hyperengineering/tasksync"
	cronlib "github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// cronParser parses standard 5-field cron expressions.
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run sync cycles on a schedule",
	Long: `Run sync cycles on a cron schedule until interrupted.

Each cycle takes the same lock as 'tasksync sync', so a manual sync and
a scheduled one never overlap; a cycle that finds the lock taken is
skipped.

Example:
  tasksync daemon
  tasksync daemon --schedule "*/5 8-18 * * 1-5" --run-now`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

var (
	daemonSchedule string
	daemonRunNow   bool
)

func init() {
	daemonCmd.Flags().StringVar(&daemonSchedule, "schedule", "", "Cron expression (default: config schedule, */15 * * * *)")
	daemonCmd.Flags().BoolVar(&daemonRunNow, "run-now", false, "Run one cycle immediately on start")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForSync(); err != nil {
		return err
	}

	spec := daemonSchedule
	if spec == "" {
		spec = cfg.Schedule
	}
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cmd.ErrOrStderr(), cfg)
	tick := func() { scheduledSync(ctx, cmd, cfg, logger) }

	c := cronlib.New(
		cronlib.WithParser(cronParser),
		cronlib.WithChain(cronlib.SkipIfStillRunning(cronlib.DiscardLogger)),
	)
	c.Schedule(schedule, cronlib.FuncJob(tick))

	printInfo(cmd.OutOrStdout(), "tasksync daemon started (schedule %q, profile %s)", spec, cfg.Profile)
	if daemonRunNow {
		tick()
	}

	c.Start()
	<-ctx.Done()

	<-c.Stop().Done()
	printInfo(cmd.OutOrStdout(), "tasksync daemon stopped")
	return nil
}

// scheduledSync runs one cycle with a fresh client so identity changes made
// by other processes between ticks are picked up.
func scheduledSync(ctx context.Context, cmd *cobra.Command, cfg tasksync.Config, logger *slog.Logger) {
	if ctx.Err() != nil {
		return
	}

	if err := checkLock(cfg); err != nil {
		if errors.Is(err, tasksync.ErrLocked) {
			logger.Info("daemon: sync skipped, lock held by another process")
			return
		}
		logger.Error("daemon: lock", "error", err)
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	session, err := openSyncSession(runCtx, cfg, cmd.ErrOrStderr())
	if err != nil {
		logger.Error("daemon: open session", "error", scrubSensitiveData(err.Error()))
		return
	}
	defer session.Close()

	result, err := session.client.Sync(runCtx)
	if errors.Is(err, tasksync.ErrLocked) {
		logger.Info("daemon: sync skipped, lock held by another process")
		return
	}
	if err != nil {
		logger.Error("daemon: sync failed", "error", scrubSensitiveData(err.Error()))
		return
	}

	out := cmd.OutOrStdout()
	if n := result.ErrorCount(); n > 0 {
		printWarning(out, "%s sync: %d changes, %d errors",
			result.Timestamp.Local().Format("15:04:05"), result.Changes(), n)
		return
	}
	printSuccess(out, "%s sync: %d changes", result.Timestamp.Local().Format("15:04:05"), result.Changes())
}
