package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dbshuttle/internal/config"
	"dbshuttle/internal/exitcode"
	"dbshuttle/internal/fs"
	"dbshuttle/internal/logger"
	"dbshuttle/internal/probe"
)

var probeTimeout time.Duration

var probeCmd = &cobra.Command{
	Use:   "probe <profile>",
	Short: "Check source and target connectivity of one profile",
	Long: `Run only the connectivity checks of a profile, with the same polling
and timeouts a real run uses. No dump is taken and no post-action runs.

Examples:
  dbshuttle probe shop
  dbshuttle probe shop --timeout 5s`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, opts, err := profileSources()
		if err != nil {
			return err
		}

		name := config.DefaultSingleProfile
		if len(args) == 1 {
			name = args[0]
		}
		var src *config.ProfileSource
		for i := range sources {
			if sources[i].Name == name {
				src = &sources[i]
				break
			}
		}
		if src == nil {
			return fmt.Errorf("profile %q not found", name)
		}

		p, err := config.LoadProfile(fs.OS(), *src, opts)
		if err != nil {
			return err
		}

		endpoints := []struct {
			role string
			ep   config.Endpoint
		}{{"source", p.Source}}
		if p.RestoreEnabled() {
			endpoints = append(endpoints, struct {
				role string
				ep   config.Endpoint
			}{"target", *p.Target})
		}

		w := cmd.OutOrStdout()
		pinger := newPinger(configuredTools().Flavor)
		unreachable := 0
		for _, e := range endpoints {
			timeout := e.ep.ConnectTimeout
			if probeTimeout > 0 {
				timeout = probeTimeout
			}
			res := probe.Probe(cmd.Context(), pinger, e.ep, timeout)
			if res.Reachable {
				logger.Success(w, "%s %s reachable (%d attempt(s), %s)", e.role, e.ep.Address(), res.Attempts, res.Elapsed.Round(time.Millisecond))
				continue
			}
			unreachable++
			logger.Failure(w, "%s %s unreachable after %s: %v", e.role, e.ep.Address(), res.Elapsed.Round(time.Millisecond), res.LastErr)
		}

		if unreachable > 0 {
			return &ExitError{Code: exitcode.Unavailable}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 0, "Override the profile's connect timeouts")
}
