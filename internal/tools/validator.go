// Package tools checks that the external MySQL client binaries are installed.
package tools

import (
	"fmt"
	"os/exec"
	"strings"

	"dbshuttle/internal/config"
	"dbshuttle/internal/engine"
	"dbshuttle/internal/logger"
)

// ToolRequirement describes a binary an operation may need
type ToolRequirement struct {
	Name     string // e.g. "mysqldump"
	Path     string // configured path or bare name looked up in PATH
	Purpose  string
	Required bool // false = informational only
}

// ToolStatus reports the availability of a single tool
type ToolStatus struct {
	Name      string
	Path      string
	Version   string
	Available bool
}

// Validator checks whether external CLI tools are present on the system.
type Validator struct {
	log logger.Logger

	// LookPathFunc and VersionFunc can be overridden in tests
	LookPathFunc func(file string) (string, error)
	VersionFunc  func(path string) string
}

// NewValidator creates a Validator that logs through log
func NewValidator(log logger.Logger) *Validator {
	if log == nil {
		log = logger.NewSilent()
	}
	return &Validator{
		log:          log,
		LookPathFunc: exec.LookPath,
		VersionFunc:  toolVersion,
	}
}

// ValidateTools checks every requirement and returns per-tool status.
// An error is returned only when at least one required tool is missing.
func (v *Validator) ValidateTools(reqs []ToolRequirement) ([]ToolStatus, error) {
	results := make([]ToolStatus, 0, len(reqs))
	var missing []string

	for _, req := range reqs {
		ts := ToolStatus{Name: req.Name}
		lookup := req.Path
		if lookup == "" {
			lookup = req.Name
		}

		path, err := v.LookPathFunc(lookup)
		if err != nil {
			if req.Required {
				missing = append(missing, lookup)
			}
			v.log.Debug("tool not found", "tool", lookup, "purpose", req.Purpose)
		} else {
			ts.Available = true
			ts.Path = path
			if v.VersionFunc != nil {
				ts.Version = v.VersionFunc(path)
			}
			v.log.Debug("tool found", "tool", req.Name, "path", path, "version", ts.Version)
		}

		results = append(results, ts)
	}

	if len(missing) > 0 {
		return results, fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
	}
	return results, nil
}

// RunRequirements returns the binaries a run needs. mysql is required only
// when some profile restores, mysqladmin only for the mysqladmin probe.
func RunRequirements(t engine.Tools, restore bool, probeMethod string) []ToolRequirement {
	return []ToolRequirement{
		{Name: "mysqldump", Path: t.MySQLDump, Purpose: "logical backup of the source", Required: true},
		{Name: "mysql", Path: t.MySQL, Purpose: "restore into the target", Required: restore},
		{Name: "mysqladmin", Path: t.MySQLAdmin, Purpose: "connectivity probe", Required: probeMethod == config.ProbeMySQLAdmin},
	}
}

// DetectFlavor maps a client `--version` line to a client flavor
func DetectFlavor(version string) string {
	if strings.Contains(strings.ToLower(version), "mariadb") {
		return config.FlavorMariaDB
	}
	return config.FlavorMySQL
}

// ResolveFlavor returns configured unless it is auto, in which case the
// flavor is read from the version banner of the binary at path. A binary
// that cannot be found counts as MySQL.
func (v *Validator) ResolveFlavor(configured, path string) string {
	if configured != "" && configured != config.FlavorAuto {
		return configured
	}
	found, err := v.LookPathFunc(path)
	if err != nil || v.VersionFunc == nil {
		return config.FlavorMySQL
	}
	flavor := DetectFlavor(v.VersionFunc(found))
	v.log.Debug("Client flavor detected", "tool", found, "flavor", flavor)
	return flavor
}

// toolVersion returns the first line of `<path> --version`
func toolVersion(path string) string {
	output, err := exec.Command(path, "--version").Output()
	if err != nil {
		return ""
	}
	line := strings.SplitN(string(output), "\n", 2)[0]
	return strings.TrimSpace(line)
}
