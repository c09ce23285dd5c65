package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dbshuttle/internal/fs"
	"dbshuttle/internal/notify"
)

var notifyEmailCmd = &cobra.Command{
	Use:   "notify-email STATUS DUMP_FILE LOG_FILE PROFILE",
	Short: "Email the result of a profile run (post-action program)",
	Long: `Send the outcome of a profile run by email. The arguments follow the
post-action contract, so a wrapper script can be used as POST_ACTION:

  #!/bin/sh
  exec /usr/local/bin/dbshuttle notify-email "$@"

The body contains the dump file, its size and the tail of the run log.

SMTP settings come from the environment:
  NOTIFY_SMTP_HOST, NOTIFY_SMTP_PORT, NOTIFY_SMTP_USER, NOTIFY_SMTP_PASSWORD,
  NOTIFY_SMTP_FROM, NOTIFY_SMTP_TO (comma-separated), NOTIFY_SMTP_TLS,
  NOTIFY_SMTP_STARTTLS, NOTIFY_SMTP_INSECURE, NOTIFY_ON_SUCCESS,
  NOTIFY_ON_FAILURE, NOTIFY_RETRIES, NOTIFY_RETRY_DELAY, NOTIFY_LOG_LINES`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ncfg := notify.ConfigFromEnv()
		if !ncfg.Enabled() {
			return fmt.Errorf("email notification not configured: set NOTIFY_SMTP_HOST, NOTIFY_SMTP_FROM and NOTIFY_SMTP_TO")
		}

		event, err := notify.NewEvent(fs.OS(), args[0], args[1], args[2], args[3], ncfg.LogTailLines)
		if err != nil {
			return err
		}
		if !ncfg.ShouldSend(event) {
			log.Debug("Notification suppressed", "status", event.Status, "profile", event.Profile)
			return nil
		}

		return notify.NewSMTPNotifier(ncfg, log).Send(cmd.Context(), event)
	},
}

func init() {
	rootCmd.AddCommand(notifyEmailCmd)
}
