// Package progress renders the live, continuously overwritten status line
// shown while a transfer is in flight.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"

	"dbshuttle/internal/config"
	"dbshuttle/internal/fs"
)

// DefaultInterval is the sampling period of an Observer
const DefaultInterval = time.Second

// Observer samples elapsed time and, for backups, the artifact size, and
// redraws one status line per tick until its context is cancelled.
// It only reads the artifact and never touches the run log.
type Observer struct {
	Label    string // BACKUP or RESTORE
	Profile  string
	Database string
	Artifact string
	ShowSize bool
	Start    time.Time
	Interval time.Duration
	Out      io.Writer
	Fs       afero.Fs

	now func() time.Time
}

// Run redraws the status line until ctx is cancelled and returns within one interval
func (o *Observer) Run(ctx context.Context) error {
	interval := o.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if o.Out == nil {
		o.Out = io.Discard
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.draw()
	for {
		select {
		case <-ctx.Done():
			// Leave the last drawn line in place
			fmt.Fprint(o.Out, "\n")
			return nil
		case <-ticker.C:
			o.draw()
		}
	}
}

func (o *Observer) draw() {
	fmt.Fprint(o.Out, "\r"+o.Line())
}

// Line renders the current status without the carriage return
func (o *Observer) Line() string {
	now := time.Now
	if o.now != nil {
		now = o.now
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s RUNNING | Profile: %s | DB: %s", o.Label, o.Profile, o.Database)
	if o.ShowSize {
		fmt.Fprintf(&b, " | Size: %s MB", FormatMB(o.size()))
	}
	fmt.Fprintf(&b, " | Time: %s", FormatClock(now().Sub(o.Start)))
	return b.String()
}

func (o *Observer) size() int64 {
	if o.Fs == nil || o.Artifact == "" {
		return 0
	}
	size, err := fs.FileSize(o.Fs, o.Artifact)
	if err != nil {
		return 0
	}
	return size
}

// FormatClock renders d as HH:MM:SS. Hours are not wrapped at 24.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// FormatMB renders a byte count as mebibytes with two decimals
func FormatMB(bytes int64) string {
	return fmt.Sprintf("%.2f", float64(bytes)/(1024*1024))
}

// WholeMB renders a byte count as whole mebibytes, rounded down
func WholeMB(bytes int64) string {
	return fmt.Sprintf("%d", bytes/(1024*1024))
}

// Enabled decides whether the status line is drawn on out for the given mode
func Enabled(mode string, out *os.File) bool {
	switch mode {
	case config.ProgressAlways:
		return true
	case config.ProgressNever:
		return false
	}
	if out == nil {
		return false
	}
	fd := out.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
