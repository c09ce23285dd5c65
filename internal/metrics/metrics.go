// Package metrics writes per-profile run results in Prometheus text format
// for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dbshuttle/internal/logger"
)

const namespace = "dbshuttle"

// Sample is the outcome of one profile run
type Sample struct {
	Profile         string
	Database        string
	Success         bool
	Skipped         bool
	FailedStep      string
	Finished        time.Time
	Duration        time.Duration
	BackupSize      int64
	BackupDuration  time.Duration
	RestoreDuration time.Duration
	Restored        bool
}

// Textfile collects samples for one orchestrator run and writes them out
type Textfile struct {
	path     string
	log      logger.Logger
	registry *prometheus.Registry

	lastRun         *prometheus.GaugeVec
	success         *prometheus.GaugeVec
	duration        *prometheus.GaugeVec
	backupSize      *prometheus.GaugeVec
	backupDuration  *prometheus.GaugeVec
	restoreDuration *prometheus.GaugeVec
	profiles        *prometheus.GaugeVec
}

// NewTextfile creates a writer for path. version and commit label the build_info metric.
func NewTextfile(path, version, commit string, log logger.Logger) *Textfile {
	if log == nil {
		log = logger.NewSilent()
	}
	t := &Textfile{
		path:     path,
		log:      log,
		registry: prometheus.NewRegistry(),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "profile_last_run_timestamp_seconds",
			Help:      "Unix time the profile last finished",
		}, []string{"profile", "database"}),
		success: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "profile_success",
			Help:      "1 if the last run of the profile succeeded, 0 otherwise",
		}, []string{"profile", "database", "failed_step"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "profile_duration_seconds",
			Help:      "Wall time of the last profile run",
		}, []string{"profile", "database"}),
		backupSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backup_size_bytes",
			Help:      "Size of the last dump file",
		}, []string{"profile", "database"}),
		backupDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backup_duration_seconds",
			Help:      "Duration of the last mysqldump run",
		}, []string{"profile", "database"}),
		restoreDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "restore_duration_seconds",
			Help:      "Duration of the last restore run",
		}, []string{"profile", "database"}),
		profiles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "profiles",
			Help:      "Profiles of the last run by outcome",
		}, []string{"outcome"}),
	}

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information",
	}, []string{"version", "commit"})
	buildInfo.WithLabelValues(version, commit).Set(1)

	t.registry.MustRegister(t.lastRun, t.success, t.duration, t.backupSize,
		t.backupDuration, t.restoreDuration, t.profiles, buildInfo)
	for _, outcome := range []string{"succeeded", "failed", "skipped"} {
		t.profiles.WithLabelValues(outcome).Set(0)
	}
	return t
}

// Observe records one profile outcome
func (t *Textfile) Observe(s Sample) {
	switch {
	case s.Skipped:
		t.profiles.WithLabelValues("skipped").Inc()
		t.success.WithLabelValues(s.Profile, s.Database, "validation").Set(0)
		return
	case s.Success:
		t.profiles.WithLabelValues("succeeded").Inc()
		t.success.WithLabelValues(s.Profile, s.Database, "").Set(1)
	default:
		t.profiles.WithLabelValues("failed").Inc()
		t.success.WithLabelValues(s.Profile, s.Database, s.FailedStep).Set(0)
	}

	t.lastRun.WithLabelValues(s.Profile, s.Database).Set(float64(s.Finished.Unix()))
	t.duration.WithLabelValues(s.Profile, s.Database).Set(s.Duration.Seconds())
	if s.BackupSize > 0 || s.BackupDuration > 0 {
		t.backupSize.WithLabelValues(s.Profile, s.Database).Set(float64(s.BackupSize))
		t.backupDuration.WithLabelValues(s.Profile, s.Database).Set(s.BackupDuration.Seconds())
	}
	if s.Restored {
		t.restoreDuration.WithLabelValues(s.Profile, s.Database).Set(s.RestoreDuration.Seconds())
	}
}

// Write atomically replaces the textfile with the collected samples
func (t *Textfile) Write() error {
	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := prometheus.WriteToTextfile(t.path, t.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	t.log.Debug("Wrote metrics to textfile", "path", t.path)
	return nil
}
