// Package hooks runs a profile's post-action program after the pipeline
// reaches a terminal state. Hooks are best-effort: a failing hook is
// recorded in the run log and never changes the profile's outcome.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"dbshuttle/internal/config"
	dberrors "dbshuttle/internal/errors"
	"dbshuttle/internal/logger"
	"dbshuttle/internal/run"
)

// Status is the first positional argument passed to the hook
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// DefaultTimeout bounds a hook that never exits
const DefaultTimeout = 5 * time.Minute

// Invocation is the fixed argument contract of a post-action program
type Invocation struct {
	Status   Status
	DumpPath string
	LogPath  string
	Profile  string
}

// Args returns the positional arguments in contract order
func (i Invocation) Args() []string {
	return []string{string(i.Status), i.DumpPath, i.LogPath, i.Profile}
}

// Result contains the result of hook execution
type Result struct {
	Invocation Invocation
	Skipped    bool // no post-action configured
	Success    bool
	Output     string
	ExitCode   int
	Duration   time.Duration
	Err        error // HookFailure when Success is false
}

// Dispatcher handles hook execution
type Dispatcher struct {
	Timeout time.Duration
	log     logger.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(timeout time.Duration, log logger.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewSilent()
	}
	return &Dispatcher{Timeout: timeout, log: log}
}

// Dispatch runs p.PostAction with (status, dump, log, profile), appending its
// combined output to the run log. It is a no-op when no post-action is set.
// The returned Result is informational only.
func (d *Dispatcher) Dispatch(ctx context.Context, status Status, r *run.Run, p *config.Profile) *Result {
	inv := Invocation{Status: status, DumpPath: r.DumpPath, LogPath: r.LogPath, Profile: p.Name}
	result := &Result{Invocation: inv, ExitCode: -1}

	if p.PostAction == "" {
		result.Skipped = true
		return result
	}

	r.Log.Printf("POST ACTION %s: %s", status, p.PostAction)

	if err := checkExecutable(p.PostAction); err != nil {
		return d.fail(result, r, p.PostAction, err)
	}

	hookCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	startTime := time.Now()
	cmd := exec.CommandContext(hookCtx, p.PostAction, inv.Args()...)
	cmd.Env = buildEnvironment(inv, p)
	cmd.WaitDelay = 5 * time.Second

	// One writer for both streams keeps their lines in order
	var captured bytes.Buffer
	lines := r.Log.Writer("post-action: ")
	combined := io.MultiWriter(lines, &captured)
	cmd.Stdout = combined
	cmd.Stderr = combined

	err := cmd.Run()
	lines.Flush()
	result.Duration = time.Since(startTime)
	result.Output = strings.TrimSpace(captured.String())
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if errors.Is(hookCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", d.Timeout, err)
		}
		return d.fail(result, r, p.PostAction, err)
	}

	result.Success = true
	r.Log.Printf("POST ACTION %s completed", status)
	d.log.Debug("Post-action completed", "profile", p.Name, "status", string(status), "duration", result.Duration)
	return result
}

func (d *Dispatcher) fail(result *Result, r *run.Run, path string, cause error) *Result {
	result.Err = dberrors.HookFailure(path, cause)
	r.Log.Printf("POST ACTION FAILED: %v", cause)
	d.log.Warn("Post-action failed", "profile", result.Invocation.Profile, "status", string(result.Invocation.Status), "error", cause)
	return result
}

// checkExecutable rejects missing files, directories and files without an execute bit
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

// buildEnvironment creates the environment for hook execution
func buildEnvironment(inv Invocation, p *config.Profile) []string {
	env := os.Environ()

	contextEnv := map[string]string{
		"DBSHUTTLE_STATUS":    string(inv.Status),
		"DBSHUTTLE_DUMP_FILE": inv.DumpPath,
		"DBSHUTTLE_LOG_FILE":  inv.LogPath,
		"DBSHUTTLE_PROFILE":   inv.Profile,
		"DBSHUTTLE_DATABASE":  p.Source.Database,
		"DBSHUTTLE_HOST":      p.Source.Host,
		"DBSHUTTLE_RESTORE":   fmt.Sprintf("%t", p.RestoreEnabled()),
	}

	for k, v := range contextEnv {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	return env
}
