package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"dbshuttle/internal/config"
	"dbshuttle/internal/engine"
	"dbshuttle/internal/exitcode"
	"dbshuttle/internal/fs"
	"dbshuttle/internal/hooks"
	"dbshuttle/internal/logger"
	"dbshuttle/internal/metrics"
	"dbshuttle/internal/orchestrator"
	"dbshuttle/internal/probe"
	"dbshuttle/internal/progress"
	"dbshuttle/internal/tools"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Back up (and optionally restore) every configured profile",
	Long: `Process every profile once, in lexical order of the profile files.

For each profile: check source connectivity, dump the source database,
and when RESTORE_ENABLED=true check the target and load the dump into it.
The profile's POST_ACTION runs exactly once with SUCCESS or ERROR.

This is also what dbshuttle does when called without a subcommand.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProfiles(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// profileSources returns the profiles to process and how to load them
func profileSources() ([]config.ProfileSource, config.LoadOptions, error) {
	opts := config.LoadOptions{LogsDir: cfg.LogsDir, Single: cfg.SingleProfileMode()}
	if opts.Single {
		return []config.ProfileSource{config.SingleProfile(cfg.ProfileEnv)}, opts, nil
	}

	sources, err := config.DiscoverProfiles(fs.OS(), cfg.ProfilesDir)
	if err != nil {
		return nil, opts, err
	}
	return sources, opts, nil
}

func newPinger(flavor string) probe.Pinger {
	return probe.NewPinger(cfg.ProbeMethod, cfg.MySQLAdminPath, flavor)
}

// configuredTools resolves the client binaries and, for CLIENT_FLAVOR=auto,
// their TLS flag dialect from the mysqldump version banner
func configuredTools() engine.Tools {
	return engine.Tools{
		MySQLDump:  cfg.MySQLDumpPath,
		MySQL:      cfg.MySQLPath,
		MySQLAdmin: cfg.MySQLAdminPath,
		Flavor:     tools.NewValidator(log).ResolveFlavor(cfg.ClientFlavor, cfg.MySQLDumpPath),
	}
}

// checkTools warns early about missing client binaries. Each profile still
// fails on its own with ToolMissing, so this never stops the run.
func checkTools() {
	reqs := tools.RunRequirements(configuredTools(), false, cfg.ProbeMethod)
	if _, err := tools.NewValidator(log).ValidateTools(reqs); err != nil {
		log.Warn("Client tools missing, affected profiles will fail", "error", err)
	}
}

func newRunner() *orchestrator.Runner {
	clients := configuredTools()
	executor := engine.NewExecutor(clients, log)
	if progress.Enabled(cfg.Progress, os.Stdout) {
		executor.ProgressOut = os.Stdout
	}

	return &orchestrator.Runner{
		Pinger:         newPinger(clients.Flavor),
		Prober:         &probe.Prober{Interval: probe.DefaultInterval},
		Executor:       executor,
		Hooks:          hooks.NewDispatcher(cfg.HookTimeout, log),
		Fs:             fs.OS(),
		Log:            log,
		MinFreeSpaceMB: cfg.MinFreeSpaceMB,
	}
}

func newOrchestrator(opts config.LoadOptions) *orchestrator.Orchestrator {
	o := &orchestrator.Orchestrator{
		Runner: newRunner(),
		Fs:     fs.OS(),
		Load:   opts,
		Log:    log,
	}
	if cfg.MetricsTextfile != "" {
		o.Metrics = metrics.NewTextfile(cfg.MetricsTextfile, cfg.Version, cfg.GitCommit, log)
	}
	return o
}

// runOnce processes every profile and prints the summary
func runOnce(ctx context.Context, w io.Writer) (*orchestrator.Summary, error) {
	sources, opts, err := profileSources()
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		log.Warn("No profiles found", "dir", cfg.ProfilesDir)
	}
	checkTools()

	summary := newOrchestrator(opts).Run(ctx, sources)
	printSummary(w, summary)
	return summary, nil
}

func runProfiles(ctx context.Context, w io.Writer) error {
	summary, err := runOnce(ctx, w)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if code := exitcode.ForSummary(summary, cfg.ExitPolicy); code != exitcode.Success {
		return &ExitError{Code: code}
	}
	return nil
}

func printSummary(w io.Writer, s *orchestrator.Summary) {
	fmt.Fprintln(w)
	logger.Header(w, "Run summary")
	for _, r := range s.Results {
		if r.State == orchestrator.StateSucceeded {
			logger.Success(w, "%s: %s -> %s", r.Name, r.Database, r.DumpPath)
			continue
		}
		logger.Failure(w, "%s: failed in %s: %v", r.Name, r.FailedIn, r.Err)
		logger.StatusLine(w, "Run log", r.LogPath)
	}
	for _, sk := range s.Skipped {
		logger.Warning(w, "%s: skipped: %v", sk.Name, sk.Err)
	}
	if s.Interrupted {
		logger.Warning(w, "interrupted, remaining profiles were not started")
	}
	fmt.Fprintf(w, "\n%d succeeded, %d failed, %d skipped in %s\n",
		s.Succeeded(), len(s.Results)-s.Succeeded(), len(s.Skipped), s.Duration.Round(time.Second))
}
