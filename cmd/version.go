package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"dbshuttle/internal/logger"
	"dbshuttle/internal/tools"
)

var versionOutputFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and client tool information",
	Long: `Display version information including the build, the Go runtime and
the versions of the mysqldump, mysql and mysqladmin binaries in use.

Examples:
  dbshuttle version
  dbshuttle version --format json
  dbshuttle version --format short`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := collectVersionInfo()
		w := cmd.OutOrStdout()

		switch versionOutputFormat {
		case "json":
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		case "short":
			fmt.Fprintf(w, "dbshuttle %s\n", info.Version)
		default:
			logger.Header(w, "dbshuttle %s", info.Version)
			logger.StatusLine(w, "Build time", info.BuildTime)
			logger.StatusLine(w, "Git commit", info.GitCommit)
			logger.StatusLine(w, "Go", info.GoVersion)
			logger.StatusLine(w, "Platform", info.OS+"/"+info.Arch)
			for _, tool := range []string{"mysqldump", "mysql", "mysqladmin"} {
				logger.StatusLine(w, tool, info.Tools[tool])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().StringVar(&versionOutputFormat, "format", "table", "Output format (table, json, short)")
}

type versionInfo struct {
	Version   string            `json:"version"`
	BuildTime string            `json:"build_time"`
	GitCommit string            `json:"git_commit"`
	GoVersion string            `json:"go_version"`
	OS        string            `json:"os"`
	Arch      string            `json:"arch"`
	Tools     map[string]string `json:"tools"`
}

func collectVersionInfo() versionInfo {
	info := versionInfo{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		GitCommit: cfg.GitCommit,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Tools:     make(map[string]string),
	}

	v := tools.NewValidator(log)
	statuses, _ := v.ValidateTools(tools.RunRequirements(configuredTools(), true, cfg.ProbeMethod))
	for _, st := range statuses {
		switch {
		case !st.Available:
			info.Tools[st.Name] = "not found"
		case st.Version != "":
			info.Tools[st.Name] = st.Version
		default:
			info.Tools[st.Name] = st.Path
		}
	}
	return info
}
