package cmd

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"dbshuttle/internal/logger"
)

var (
	daemonSchedule string
	daemonRunNow   bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run all profiles on a cron schedule",
	Long: `Stay in the foreground and run every profile on a cron schedule.
A tick is skipped while the previous run is still in progress. Profiles
are re-discovered on every tick, so added or edited profile files are
picked up without a restart.

SIGINT/SIGTERM stops scheduling; a run in progress finishes its current
profile first.

Examples:
  # Every night at 02:30
  dbshuttle daemon --schedule "30 2 * * *"

  # Hourly, starting with an immediate run
  dbshuttle daemon --schedule "@hourly" --run-now`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w := cmd.OutOrStdout()
		cronLog := cronLogger{log: log.WithField("component", "scheduler")}

		c := cron.New(cron.WithChain(
			cron.Recover(cronLog),
			cron.SkipIfStillRunning(cronLog),
		))
		job := func() {
			if ctx.Err() != nil {
				return
			}
			if _, err := runOnce(ctx, w); err != nil {
				log.Error("Scheduled run failed", "error", err)
			}
		}

		id, err := c.AddFunc(daemonSchedule, job)
		if err != nil {
			return fmt.Errorf("invalid schedule %q: %w", daemonSchedule, err)
		}

		c.Start()
		log.Info("Scheduler started", "schedule", daemonSchedule, "next", c.Entry(id).Next)
		if daemonRunNow {
			c.Entry(id).WrappedJob.Run()
		}

		<-ctx.Done()
		log.Info("Shutting down scheduler, waiting for the current run")
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().StringVar(&daemonSchedule, "schedule", "@daily", "Cron expression (5 fields or @every/@daily descriptors)")
	daemonCmd.Flags().BoolVar(&daemonRunNow, "run-now", false, "Run once immediately after starting")
}

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
