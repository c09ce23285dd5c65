package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// SecureMkdirAll creates directories with owner-only permissions, tolerating
// a concurrent creator
func SecureMkdirAll(afs afero.Fs, path string) error {
	err := afs.MkdirAll(path, 0700)
	if err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// SecureCreate creates a file with owner-only permissions (0600).
// Dump files contain database data.
func SecureCreate(afs afero.Fs, path string) (afero.File, error) {
	return afs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
}

// CheckWriteAccess tests if directory is writable by creating and removing a test file
func CheckWriteAccess(afs afero.Fs, dir string) error {
	testFile := filepath.Join(dir, ".dbshuttle-write-test")

	f, err := afs.Create(testFile)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("directory is not writable (permission denied): %s", dir)
		}
		return fmt.Errorf("cannot write to directory: %w", err)
	}
	_ = f.Close()

	if err := afs.Remove(testFile); err != nil {
		return fmt.Errorf("cannot remove test file (directory may be read-only): %w", err)
	}

	return nil
}
