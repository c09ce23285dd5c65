// Package notify sends the result of a profile run by email. It backs the
// notify-email command, which follows the post-action argument contract
// and can be used directly as a profile's POST_ACTION.
package notify

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"

	"dbshuttle/internal/fs"
)

// Run outcomes as passed by the hook dispatcher
const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

// Event describes one finished profile run
type Event struct {
	Status    string
	Profile   string
	DumpPath  string
	LogPath   string
	DumpSize  int64
	LogTail   []string
	LogErr    string // set when the run log could not be read
	Hostname  string
	Timestamp time.Time
}

// Failed reports whether the run ended in ERROR
func (e *Event) Failed() bool {
	return e.Status == StatusError
}

// NewEvent builds an event from the post-action arguments, reading the dump
// size and the last tailLines lines of the run log.
func NewEvent(afs afero.Fs, status, dumpPath, logPath, profile string, tailLines int) (*Event, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != StatusSuccess && status != StatusError {
		return nil, fmt.Errorf("invalid status %q: must be %s or %s", status, StatusSuccess, StatusError)
	}

	hostname, _ := os.Hostname()
	e := &Event{
		Status:    status,
		Profile:   profile,
		DumpPath:  dumpPath,
		LogPath:   logPath,
		Hostname:  hostname,
		Timestamp: time.Now(),
	}

	if size, err := fs.FileSize(afs, dumpPath); err == nil {
		e.DumpSize = size
	}

	tail, err := tailFile(afs, logPath, tailLines)
	if err != nil {
		e.LogErr = err.Error()
	}
	e.LogTail = tail
	return e, nil
}

// tailFile returns the last n lines of path
func tailFile(afs afero.Fs, path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := afs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	return ring, scanner.Err()
}
