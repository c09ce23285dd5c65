// Package fs provides filesystem helpers over spf13/afero for testability.
// Callers pass the afero.Fs explicitly; production code uses OS(), tests use
// an in-memory filesystem.
package fs

import (
	"errors"
	"os"

	"github.com/spf13/afero"
)

// OS returns the real operating system filesystem
func OS() afero.Fs {
	return afero.NewOsFs()
}

// FileSize returns the current size of a file.
// A file that does not exist yet has size 0.
func FileSize(afs afero.Fs, path string) (int64, error) {
	info, err := afs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// AppendFile opens a file for appending, creating it if needed
func AppendFile(afs afero.Fs, path string) (afero.File, error) {
	return afs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}
