package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"dbshuttle/internal/config"
	"dbshuttle/internal/logger"
)

var (
	cfg *config.Config
	log logger.Logger
)

// ExitError carries a process exit code decided by a command, such as
// the fail-on-error policy of a run with failed profiles
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// rootCmd runs every profile when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "dbshuttle",
	Short: "Unattended MySQL backup and restore across multiple profiles",
	Long: `dbshuttle backs up one MySQL/MariaDB database per profile with mysqldump
and, when enabled, restores the dump into a target server.

Profiles are .env files in PROFILES_DIR, processed one after another in
lexical file order. A failing profile never affects the others: its error
goes to the per-run log and to the profile's POST_ACTION program.

Examples:
  # Run every profile in ./profiles
  dbshuttle

  # Run a single profile file, log next to the dump
  dbshuttle run --env-file /etc/dbshuttle/shop.env

  # Exit non-zero when any profile failed
  dbshuttle --exit-policy fail-on-error`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg.NoColor {
			logger.DisableColors()
		}
		if cmd.Flags().Changed("log-level") || cmd.Flags().Changed("log-format") {
			log = logger.New(cfg.LogLevel, cfg.LogFormat)
		}
		return cfg.Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProfiles(cmd.Context(), cmd.OutOrStdout())
	},
}

// Execute adds all child commands to the root command and runs it
func Execute(ctx context.Context, c *config.Config, l logger.Logger) error {
	cfg = c
	log = l

	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", cfg.Version, cfg.BuildTime, cfg.GitCommit)
	bindPersistentFlags(rootCmd.PersistentFlags())

	return rootCmd.ExecuteContext(ctx)
}

// bindPersistentFlags exposes every environment setting as a flag; the
// environment value is the flag default so an explicit flag wins
func bindPersistentFlags(f *pflag.FlagSet) {
	f.StringVar(&cfg.ProfilesDir, "profiles-dir", cfg.ProfilesDir, "Directory of *.env profile files (PROFILES_DIR)")
	f.StringVar(&cfg.ProfileEnv, "env-file", cfg.ProfileEnv, "Run a single profile file instead of a directory (PROFILE_ENV)")
	f.StringVar(&cfg.LogsDir, "logs-dir", cfg.LogsDir, "Root of per-profile log directories (LOGS_DIR)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Console log level: debug, info, warn, error (LOG_LEVEL)")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Console log format: text, json (LOG_FORMAT)")
	f.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "Disable colored output (NO_COLOR)")
	f.StringVar(&cfg.Progress, "progress", cfg.Progress, "Progress line: auto, always, never (PROGRESS)")
	f.StringVar(&cfg.ProbeMethod, "probe-method", cfg.ProbeMethod, "Connectivity check: driver, mysqladmin (PROBE_METHOD)")
	f.DurationVar(&cfg.HookTimeout, "hook-timeout", cfg.HookTimeout, "Maximum run time of a post-action (HOOK_TIMEOUT)")
	f.StringVar(&cfg.ExitPolicy, "exit-policy", cfg.ExitPolicy, "Exit status: always-zero, fail-on-error (EXIT_POLICY)")
	f.IntVar(&cfg.MinFreeSpaceMB, "min-free-space", cfg.MinFreeSpaceMB, "Warn below this many free MB on the output filesystem, 0 disables (MIN_FREE_SPACE_MB)")
	f.StringVar(&cfg.MetricsTextfile, "metrics-textfile", cfg.MetricsTextfile, "Write Prometheus metrics to this file after each run (METRICS_TEXTFILE)")
	f.StringVar(&cfg.MySQLDumpPath, "mysqldump", cfg.MySQLDumpPath, "mysqldump binary (MYSQLDUMP_PATH)")
	f.StringVar(&cfg.MySQLPath, "mysql", cfg.MySQLPath, "mysql client binary (MYSQL_PATH)")
	f.StringVar(&cfg.MySQLAdminPath, "mysqladmin", cfg.MySQLAdminPath, "mysqladmin binary (MYSQLADMIN_PATH)")
	f.StringVar(&cfg.ClientFlavor, "client-flavor", cfg.ClientFlavor, "Client TLS flag dialect: auto, mysql, mariadb (CLIENT_FLAVOR)")
}
