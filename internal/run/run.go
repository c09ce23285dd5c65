// Package run holds the execution record of one profile: its timestamp,
// the derived dump and log paths, and the append-only run log.
package run

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"dbshuttle/internal/config"
	"dbshuttle/internal/fs"
)

// Timestamp layouts
const (
	FileTimestampLayout = "2006-01-02_15.04.05"
	LineTimestampLayout = "2006-01-02 15:04:05"
)

// Run is owned by the profile runner for one profile's processing.
// DumpPath and LogPath are fixed at creation.
type Run struct {
	Profile   string
	Database  string
	Timestamp time.Time
	DumpPath  string
	LogPath   string
	Log       *Log
}

// New derives the artifact paths for a profile started at now.
// Nothing is created on disk until Open.
func New(p *config.Profile, now time.Time) *Run {
	ts := now.Format(FileTimestampLayout)
	db := p.Source.Database
	return &Run{
		Profile:   p.Name,
		Database:  db,
		Timestamp: now,
		DumpPath:  filepath.Join(p.OutputDir, fmt.Sprintf("%s_%s.sql", db, ts)),
		LogPath:   filepath.Join(p.LogDir, fmt.Sprintf("%s_%s.log", db, ts)),
		Log:       Discard(),
	}
}

// Open creates the output and log directories and opens the run log for
// appending. An output directory that cannot be written is an error; the run
// log stays open so the failure can still be recorded.
func (r *Run) Open(afs afero.Fs) error {
	for _, dir := range []string{filepath.Dir(r.DumpPath), filepath.Dir(r.LogPath)} {
		if err := fs.SecureMkdirAll(afs, dir); err != nil {
			return err
		}
	}

	f, err := fs.AppendFile(afs, r.LogPath)
	if err != nil {
		return fmt.Errorf("failed to open run log %s: %w", r.LogPath, err)
	}
	r.Log = NewLog(f)

	if err := fs.CheckWriteAccess(afs, filepath.Dir(r.DumpPath)); err != nil {
		return err
	}
	return nil
}

// Close flushes and closes the run log
func (r *Run) Close() error {
	return r.Log.Close()
}
