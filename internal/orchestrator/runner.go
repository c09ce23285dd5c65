// Package orchestrator sequences the per-profile pipeline and runs every
// configured profile in order, containing each profile's failures.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/afero"

	"dbshuttle/internal/config"
	"dbshuttle/internal/engine"
	dberrors "dbshuttle/internal/errors"
	"dbshuttle/internal/fs"
	"dbshuttle/internal/hooks"
	"dbshuttle/internal/logger"
	"dbshuttle/internal/probe"
	"dbshuttle/internal/progress"
	"dbshuttle/internal/run"
)

// State of one profile's pipeline
type State string

const (
	StateInit          State = "Init"
	StateProbingSource State = "ProbingSource"
	StateBackingUp     State = "BackingUp"
	StateProbingTarget State = "ProbingTarget"
	StateRestoring     State = "Restoring"
	StateSucceeded     State = "Succeeded"
	StateFailed        State = "Failed"
)

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Transferrer runs one backup or restore
type Transferrer interface {
	Execute(ctx context.Context, kind engine.Kind, p *config.Profile, r *run.Run) *engine.Outcome
}

// HookDispatcher runs the post-action program
type HookDispatcher interface {
	Dispatch(ctx context.Context, status hooks.Status, r *run.Run, p *config.Profile) *hooks.Result
}

// ProfileResult is everything the orchestrator learns about one profile
type ProfileResult struct {
	Name     string
	Database string
	State    State
	FailedIn State // state in which the failure happened, empty on success
	Err      error
	DumpPath string
	LogPath  string
	Backup   *engine.Outcome
	Restore  *engine.Outcome
	Hook     *hooks.Result
	Started  time.Time
	Duration time.Duration
}

// Runner drives one profile through
// Init, ProbingSource, BackingUp, [ProbingTarget, Restoring], Succeeded.
// Any failure moves to Failed, dispatches ERROR once and stops.
type Runner struct {
	Pinger         probe.Pinger
	Prober         *probe.Prober
	Executor       Transferrer
	Hooks          HookDispatcher
	Fs             afero.Fs
	Log            logger.Logger
	MinFreeSpaceMB int

	// FreeSpace reports free bytes on the filesystem holding path
	FreeSpace func(path string) (uint64, error)
	Now       func() time.Time
}

// pipeline is the mutable state of one RunProfile call
type pipeline struct {
	runner *Runner
	p      *config.Profile
	r      *run.Run
	res    *ProfileResult
	log    logger.Logger
}

// RunProfile processes one profile. It never panics and never returns an error:
// the outcome is in the result.
func (rn *Runner) RunProfile(ctx context.Context, p *config.Profile) (res *ProfileResult) {
	now := time.Now
	if rn.Now != nil {
		now = rn.Now
	}
	afs := rn.Fs
	if afs == nil {
		afs = fs.OS()
	}
	log := rn.Log
	if log == nil {
		log = logger.NewSilent()
	}

	started := now()
	r := run.New(p, started)
	res = &ProfileResult{
		Name:     p.Name,
		Database: p.Source.Database,
		State:    StateInit,
		DumpPath: r.DumpPath,
		LogPath:  r.LogPath,
		Started:  started,
	}
	pl := &pipeline{runner: rn, p: p, r: r, res: res, log: log.WithField("profile", p.Name)}

	defer func() {
		if rec := recover(); rec != nil {
			pl.fail(ctx, dberrors.Panic(p.Name, rec))
		}
		res.Duration = time.Since(started)
		_ = r.Close()
	}()

	if err := r.Open(afs); err != nil {
		pl.fail(ctx, dberrors.OutputNotUsable(p.OutputDir, err))
		return res
	}

	pl.execute(ctx)
	return res
}

func (pl *pipeline) execute(ctx context.Context) {
	p, r := pl.p, pl.r

	op := pl.log.StartOperation("profile " + p.Name)
	r.Log.Printf("PROFILE STARTED | Profile: %s | DB: %s | Host: %s", p.Name, p.Source.Database, p.Source.Address())
	pl.preflight()

	// Init -> ProbingSource
	pl.res.State = StateProbingSource
	if !pl.probe(ctx, "source", p.Source) {
		op.Fail("source unreachable")
		return
	}

	// ProbingSource -> BackingUp
	pl.res.State = StateBackingUp
	r.Log.Printf("BACKUP STARTED | DB: %s | File: %s", p.Source.Database, r.DumpPath)
	pl.log.Info("Backup started", "database", p.Source.Database, "path", r.DumpPath)
	backup := pl.runner.Executor.Execute(ctx, engine.KindBackup, p, r)
	pl.res.Backup = backup
	if !backup.Success {
		pl.fail(ctx, backup.Err)
		op.Fail("backup failed")
		return
	}
	r.Log.Printf("BACKUP COMPLETED | Size: %s MB | Time: %s", progress.WholeMB(backup.Size), progress.FormatClock(backup.Duration))
	pl.log.Info("Backup completed", "size", humanize.IBytes(uint64(backup.Size)), "duration", backup.Duration)

	if p.RestoreEnabled() {
		// BackingUp -> ProbingTarget
		pl.res.State = StateProbingTarget
		if !pl.probe(ctx, "target", *p.Target) {
			op.Fail("target unreachable")
			return
		}

		// ProbingTarget -> Restoring
		pl.res.State = StateRestoring
		r.Log.Printf("RESTORE STARTED | DB: %s | Host: %s", p.Target.Database, p.Target.Address())
		pl.log.Info("Restore started", "database", p.Target.Database, "host", p.Target.Address())
		restore := pl.runner.Executor.Execute(ctx, engine.KindRestore, p, r)
		pl.res.Restore = restore
		if !restore.Success {
			pl.fail(ctx, restore.Err)
			op.Fail("restore failed")
			return
		}
		r.Log.Printf("RESTORE COMPLETED | Time: %s", progress.FormatClock(restore.Duration))
		pl.log.Info("Restore completed", "database", p.Target.Database, "duration", restore.Duration)
	}

	pl.succeed(ctx)
	op.Complete("all steps succeeded")
}

// probe polls one endpoint and fails the pipeline when it never answers
func (pl *pipeline) probe(ctx context.Context, role string, ep config.Endpoint) bool {
	timeout := ep.ConnectTimeout
	if timeout < probe.MinTimeout {
		timeout = probe.MinTimeout
	}
	pl.r.Log.Printf("Checking %s connectivity %s (timeout %s)", role, ep.Address(), timeout)

	prober := pl.runner.Prober
	if prober == nil {
		prober = &probe.Prober{}
	}
	result := prober.Probe(ctx, pl.runner.Pinger, ep, timeout)
	if result.Reachable {
		pl.r.Log.Printf("%s %s reachable after %d attempt(s)", role, ep.Address(), result.Attempts)
		pl.log.Debug("Endpoint reachable", "host", ep.Address(), "attempts", result.Attempts)
		return true
	}

	pl.fail(ctx, dberrors.ConnectivityTimeout(role, ep.Host, ep.Port, timeout, result.LastErr))
	return false
}

// preflight warns about a nearly full output filesystem. It never fails the profile.
func (pl *pipeline) preflight() {
	minMB := pl.runner.MinFreeSpaceMB
	if minMB <= 0 {
		return
	}
	freeSpace := pl.runner.FreeSpace
	if freeSpace == nil {
		freeSpace = diskFree
	}

	free, err := freeSpace(pl.p.OutputDir)
	if err != nil {
		pl.log.Debug("Free space check skipped", "path", pl.p.OutputDir, "error", err)
		return
	}
	if free < uint64(minMB)*1024*1024 {
		pl.r.Log.Printf("WARNING: only %s free in %s (minimum %d MB)", humanize.IBytes(free), pl.p.OutputDir, minMB)
		pl.log.Warn("Low free space on output filesystem", "path", pl.p.OutputDir, "size", humanize.IBytes(free))
	}
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// fail records the first failure, dispatches ERROR once and ends the pipeline
func (pl *pipeline) fail(ctx context.Context, err error) {
	if pl.res.State.Terminal() {
		return
	}
	if err == nil {
		err = fmt.Errorf("%s failed", pl.res.State)
	}
	pl.res.FailedIn = pl.res.State
	pl.res.State = StateFailed
	pl.res.Err = err

	pl.r.Log.Printf("ERROR: %v", err)
	pl.r.Log.Printf("PROFILE FAILED | Profile: %s | Step: %s", pl.p.Name, pl.res.FailedIn)
	pl.log.Error("Profile failed", "state", string(pl.res.FailedIn), "error", err)

	pl.dispatch(ctx, hooks.StatusError)
}

func (pl *pipeline) succeed(ctx context.Context) {
	pl.res.State = StateSucceeded
	pl.r.Log.Printf("PROFILE COMPLETED | Profile: %s", pl.p.Name)
	pl.dispatch(ctx, hooks.StatusSuccess)
}

// dispatch survives an interrupted run so the final notification still goes out
func (pl *pipeline) dispatch(ctx context.Context, status hooks.Status) {
	if pl.runner.Hooks == nil {
		return
	}
	pl.res.Hook = pl.runner.Hooks.Dispatch(context.WithoutCancel(ctx), status, pl.r, pl.p)
}
