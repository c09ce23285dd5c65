package orchestrator

import (
	"context"
	"time"

	"github.com/spf13/afero"

	"dbshuttle/internal/config"
	dberrors "dbshuttle/internal/errors"
	"dbshuttle/internal/fs"
	"dbshuttle/internal/logger"
	"dbshuttle/internal/metrics"
)

// ProfileRunner processes one loaded profile
type ProfileRunner interface {
	RunProfile(ctx context.Context, p *config.Profile) *ProfileResult
}

// SkippedProfile is a profile that never ran because it failed to load
type SkippedProfile struct {
	Name string
	Path string
	Err  error
}

// Summary of one orchestrator run
type Summary struct {
	Results     []*ProfileResult
	Skipped     []SkippedProfile
	Started     time.Time
	Duration    time.Duration
	Interrupted bool // cancellation stopped scheduling before every profile ran
}

// Failures counts failed and skipped profiles
func (s *Summary) Failures() int {
	n := len(s.Skipped)
	for _, r := range s.Results {
		if r.State != StateSucceeded {
			n++
		}
	}
	return n
}

// Succeeded counts profiles that reached Succeeded
func (s *Summary) Succeeded() int {
	return len(s.Results) - (s.Failures() - len(s.Skipped))
}

// Orchestrator runs every profile in discovery order. A failing, invalid or
// panicking profile never stops the loop.
type Orchestrator struct {
	Runner  ProfileRunner
	Fs      afero.Fs
	Load    config.LoadOptions
	Log     logger.Logger
	Metrics *metrics.Textfile // nil disables the textfile
}

// Run processes sources sequentially. Once ctx is cancelled no new profile is
// started; the one in flight finishes on its own.
func (o *Orchestrator) Run(ctx context.Context, sources []config.ProfileSource) *Summary {
	afs := o.Fs
	if afs == nil {
		afs = fs.OS()
	}
	log := o.Log
	if log == nil {
		log = logger.NewSilent()
	}

	summary := &Summary{Started: time.Now()}
	log.Info("Starting run", "profiles", len(sources))

	for i, src := range sources {
		if ctx.Err() != nil {
			summary.Interrupted = true
			log.Warn("Run interrupted, remaining profiles not started", "remaining", len(sources)-i)
			break
		}

		p, err := config.LoadProfile(afs, src, o.Load)
		if err != nil {
			log.Error("Skipping invalid profile", "profile", src.Name, "path", src.Path, "error", err)
			summary.Skipped = append(summary.Skipped, SkippedProfile{Name: src.Name, Path: src.Path, Err: err})
			o.observe(metrics.Sample{Profile: src.Name, Skipped: true})
			continue
		}

		res := o.runOne(ctx, p, log)
		summary.Results = append(summary.Results, res)
		o.observe(sampleFor(res))
	}

	summary.Duration = time.Since(summary.Started)
	o.writeMetrics(log)

	log.Info("Run finished",
		"succeeded", summary.Succeeded(),
		"failed", len(summary.Results)-summary.Succeeded(),
		"skipped", len(summary.Skipped),
		"duration", summary.Duration)
	return summary
}

// runOne contains a panic from a ProfileRunner that does not recover on its own
func (o *Orchestrator) runOne(ctx context.Context, p *config.Profile, log logger.Logger) (res *ProfileResult) {
	defer func() {
		if rec := recover(); rec != nil {
			err := dberrors.Panic(p.Name, rec)
			log.Error("Profile panicked", "profile", p.Name, "error", err)
			res = &ProfileResult{Name: p.Name, Database: p.Source.Database, State: StateFailed, Err: err, Started: time.Now()}
		}
	}()

	res = o.Runner.RunProfile(ctx, p)
	if res == nil {
		res = &ProfileResult{Name: p.Name, Database: p.Source.Database, State: StateFailed}
	}
	return res
}

func (o *Orchestrator) observe(s metrics.Sample) {
	if o.Metrics != nil {
		o.Metrics.Observe(s)
	}
}

func (o *Orchestrator) writeMetrics(log logger.Logger) {
	if o.Metrics == nil {
		return
	}
	if err := o.Metrics.Write(); err != nil {
		log.Warn("Failed to write metrics", "error", err)
	}
}

func sampleFor(res *ProfileResult) metrics.Sample {
	s := metrics.Sample{
		Profile:    res.Name,
		Database:   res.Database,
		Success:    res.State == StateSucceeded,
		FailedStep: string(res.FailedIn),
		Finished:   res.Started.Add(res.Duration),
		Duration:   res.Duration,
	}
	if res.Backup != nil && res.Backup.Success {
		s.BackupSize = res.Backup.Size
		s.BackupDuration = res.Backup.Duration
	}
	if res.Restore != nil && res.Restore.Success {
		s.Restored = true
		s.RestoreDuration = res.Restore.Duration
	}
	return s
}
