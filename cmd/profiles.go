package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dbshuttle/internal/config"
	"dbshuttle/internal/exitcode"
	"dbshuttle/internal/fs"
	"dbshuttle/internal/logger"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect configured profiles without touching any database",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles in the order they run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, _, err := profileSources()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(sources) == 0 {
			logger.Warning(w, "no profiles found in %s", cfg.ProfilesDir)
			return nil
		}
		for i, src := range sources {
			fmt.Fprintf(w, "%3d  %-24s %s\n", i+1, src.Name, src.Path)
		}
		return nil
	},
}

var profilesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load every profile and report configuration problems",
	Long: `Load and validate every profile file. All problems of a profile are
reported together. Exits with status 78 when any profile is invalid.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, opts, err := profileSources()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		invalid := 0
		for _, src := range sources {
			p, err := config.LoadProfile(fs.OS(), src, opts)
			if err != nil {
				invalid++
				logger.Failure(w, "%s: %v", src.Name, err)
				continue
			}
			logger.Success(w, "%s", p.Name)
			logger.StatusLine(w, "Source", fmt.Sprintf("%s/%s", p.Source.Address(), p.Source.Database))
			if p.RestoreEnabled() {
				logger.StatusLine(w, "Target", fmt.Sprintf("%s/%s", p.Target.Address(), p.Target.Database))
			}
			logger.StatusLine(w, "Output", p.OutputDir)
			logger.StatusLine(w, "Logs", p.LogDir)
			if p.PostAction != "" {
				logger.StatusLine(w, "Post action", p.PostAction)
			}
		}

		if invalid > 0 {
			fmt.Fprintf(w, "\n%d of %d profiles invalid\n", invalid, len(sources))
			return &ExitError{Code: exitcode.Config}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesValidateCmd)
}
