package run

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"dbshuttle/internal/config"
)

func testProfile() *config.Profile {
	return &config.Profile{
		Name:      "prod",
		Source:    config.Endpoint{Host: "db1", Port: 3306, User: "u", Password: "p", Database: "shop"},
		OutputDir: "/backups",
		LogDir:    "/logs/prod",
	}
}

func TestNewDerivesPaths(t *testing.T) {
	now := time.Date(2024, 3, 9, 7, 5, 2, 0, time.Local)
	r := New(testProfile(), now)

	if want := filepath.Join("/backups", "shop_2024-03-09_07.05.02.sql"); r.DumpPath != want {
		t.Errorf("DumpPath = %q, want %q", r.DumpPath, want)
	}
	if want := filepath.Join("/logs/prod", "shop_2024-03-09_07.05.02.log"); r.LogPath != want {
		t.Errorf("LogPath = %q, want %q", r.LogPath, want)
	}
	if r.Profile != "prod" || r.Database != "shop" {
		t.Errorf("unexpected identity %q/%q", r.Profile, r.Database)
	}
}

func TestOpenCreatesDirectoriesAndLog(t *testing.T) {
	afs := afero.NewMemMapFs()
	r := New(testProfile(), time.Now())

	if err := r.Open(afs); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	r.Log.Printf("BACKUP STARTED")
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if ok, _ := afero.DirExists(afs, "/backups"); !ok {
		t.Error("output dir should exist")
	}
	content, err := afero.ReadFile(afs, r.LogPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(content), "BACKUP STARTED") {
		t.Errorf("log missing line: %q", content)
	}
}

func TestOpenFailsOnReadOnlyFs(t *testing.T) {
	r := New(testProfile(), time.Now())
	if err := r.Open(afero.NewReadOnlyFs(afero.NewMemMapFs())); err == nil {
		t.Error("expected error on read-only filesystem")
	}
}

// lockedDirFs refuses to create files directly inside dir
type lockedDirFs struct {
	afero.Fs
	dir string
}

func (l lockedDirFs) Create(name string) (afero.File, error) {
	return l.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o666)
}

func (l lockedDirFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if filepath.Dir(name) == l.dir && flag&os.O_CREATE != 0 {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return l.Fs.OpenFile(name, flag, perm)
}

func TestOpenFailsOnUnwritableOutputDir(t *testing.T) {
	base := afero.NewMemMapFs()
	r := New(testProfile(), time.Now())

	err := r.Open(lockedDirFs{Fs: base, dir: "/backups"})
	if err == nil || !strings.Contains(err.Error(), "not writable") {
		t.Fatalf("expected unwritable output dir error, got %v", err)
	}

	r.Log.Printf("ERROR: %v", err)
	_ = r.Close()
	content, readErr := afero.ReadFile(base, r.LogPath)
	if readErr != nil {
		t.Fatalf("run log should stay usable: %v", readErr)
	}
	if !strings.Contains(string(content), "ERROR: directory is not writable") {
		t.Errorf("failure not recorded in run log: %q", content)
	}
}

func TestLogLineFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf)
	l.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local) }

	l.Printf("size %d", 10)
	l.Line("first\nsecond\n")

	want := "[2024-01-02 03:04:05] size 10\n" +
		"[2024-01-02 03:04:05] first\n" +
		"[2024-01-02 03:04:05] second\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestLineWriterSplitsChunks(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf)
	w := l.Writer("mysqldump: ")

	_, _ = w.Write([]byte("Got error: 1045 "))
	_, _ = w.Write([]byte("Access denied\nsecond"))
	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("partial line should stay buffered, got %q", buf.String())
	}
	w.Flush()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	pattern := regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] mysqldump: Got error: 1045 Access denied$`)
	if !pattern.MatchString(lines[0]) {
		t.Errorf("unexpected first line %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "mysqldump: second") {
		t.Errorf("unexpected flushed line %q", lines[1])
	}
}

func TestNilLogIsSafe(t *testing.T) {
	var l *Log
	l.Printf("ignored")
	if err := l.Close(); err != nil {
		t.Errorf("Close on nil log: %v", err)
	}
}
