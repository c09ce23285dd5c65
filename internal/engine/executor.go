package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"dbshuttle/internal/config"
	dberrors "dbshuttle/internal/errors"
	"dbshuttle/internal/fs"
	"dbshuttle/internal/logger"
	"dbshuttle/internal/progress"
	"dbshuttle/internal/run"
)

// Executor launches one transfer at a time and observes it while it runs
type Executor struct {
	Tools            Tools
	Fs               afero.Fs
	Log              logger.Logger
	ProgressOut      io.Writer // nil disables drawing; the observer still runs
	ProgressInterval time.Duration
}

// NewExecutor creates an executor on the OS filesystem
func NewExecutor(tools Tools, log logger.Logger) *Executor {
	if log == nil {
		log = logger.NewSilent()
	}
	return &Executor{
		Tools: tools,
		Fs:    fs.OS(),
		Log:   log,
	}
}

// Execute runs a backup (source to DumpPath) or restore (DumpPath to target)
// and blocks until the tool exits. The tool is never killed: ctx only stops
// the progress observer early. A failed transfer is reported in the Outcome,
// not as an error.
func (e *Executor) Execute(ctx context.Context, kind Kind, p *config.Profile, r *run.Run) *Outcome {
	start := time.Now()
	out := &Outcome{Kind: kind, ExitCode: -1}

	var (
		ep  config.Endpoint
		bin string
		cmd *exec.Cmd
	)

	switch kind {
	case KindBackup:
		ep, bin = p.Source, e.Tools.MySQLDump
		cmd = exec.Command(bin, BackupArgs(ep, e.Tools.Flavor)...)
	case KindRestore:
		if p.Target == nil {
			return e.fail(out, start, fmt.Errorf("profile %s has no restore target", p.Name))
		}
		ep, bin = *p.Target, e.Tools.MySQL
		cmd = exec.Command(bin, RestoreArgs(ep, e.Tools.Flavor)...)
	default:
		return e.fail(out, start, fmt.Errorf("unknown transfer kind %q", kind))
	}

	cmd.Env = PasswordEnv(ep.Password)
	stderr := r.Log.Writer(filepath.Base(bin) + ": ")
	cmd.Stderr = stderr

	if kind == KindBackup {
		dump, err := fs.SecureCreate(e.Fs, r.DumpPath)
		if err != nil {
			return e.fail(out, start, fmt.Errorf("failed to create dump file: %w", err))
		}
		defer dump.Close()
		cmd.Stdout = dump
	} else {
		dump, err := e.Fs.Open(r.DumpPath)
		if err != nil {
			return e.fail(out, start, fmt.Errorf("failed to open dump file: %w", err))
		}
		defer dump.Close()
		cmd.Stdin = dump
	}

	e.Log.Debug("Launching transfer", "kind", kind.String(), "tool", bin, "args", strings.Join(cmd.Args[1:], " "))

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			err = dberrors.ToolMissing(bin, strings.ToLower(kind.String())).WithCause(err)
		}
		return e.fail(out, start, err)
	}

	observer := &progress.Observer{
		Label:    kind.String(),
		Profile:  p.Name,
		Database: ep.Database,
		Artifact: r.DumpPath,
		ShowSize: kind == KindBackup,
		Start:    start,
		Interval: e.ProgressInterval,
		Out:      e.ProgressOut,
		Fs:       e.Fs,
	}

	obsCtx, stopObserver := context.WithCancel(ctx)
	defer stopObserver()

	var waitErr error
	var g errgroup.Group
	g.Go(func() error {
		defer stopObserver()
		waitErr = cmd.Wait()
		return nil
	})
	g.Go(func() error {
		return observer.Run(obsCtx)
	})
	_ = g.Wait()
	stderr.Flush()

	out.Duration = time.Since(start)
	out.ExitCode = cmd.ProcessState.ExitCode()

	if kind == KindBackup {
		if size, err := fs.FileSize(e.Fs, r.DumpPath); err == nil {
			out.Size = size
		}
	}

	if waitErr != nil {
		out.Err = dberrors.TransferFailure(strings.ToLower(kind.String()), out.ExitCode, waitErr)
		e.Log.Debug("Transfer failed", "kind", kind.String(), "exit_code", out.ExitCode, "error", waitErr)
		return out
	}

	out.Success = true
	e.Log.Debug("Transfer finished", "kind", kind.String(), "size", humanize.IBytes(uint64(out.Size)), "duration", out.Duration)
	return out
}

func (e *Executor) fail(out *Outcome, start time.Time, cause error) *Outcome {
	out.Duration = time.Since(start)
	out.Err = dberrors.TransferFailure(strings.ToLower(out.Kind.String()), out.ExitCode, cause)
	return out
}
