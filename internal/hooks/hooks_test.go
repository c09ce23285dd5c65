package hooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"dbshuttle/internal/config"
	dberrors "dbshuttle/internal/errors"
	"dbshuttle/internal/logger"
	"dbshuttle/internal/run"
)

// mockLogger implements logger.Logger for testing
type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(msg string, args ...interface{}) { m.record(&m.debugMsgs, msg) }
func (m *mockLogger) Info(msg string, args ...interface{})  { m.record(&m.infoMsgs, msg) }
func (m *mockLogger) Warn(msg string, args ...interface{})  { m.record(&m.warnMsgs, msg) }
func (m *mockLogger) Error(msg string, args ...interface{}) { m.record(&m.errorMsgs, msg) }
func (m *mockLogger) WithFields(fields map[string]interface{}) logger.Logger { return m }
func (m *mockLogger) WithField(key string, value interface{}) logger.Logger  { return m }
func (m *mockLogger) StartOperation(name string) logger.OperationLogger {
	return &mockOperationLogger{}
}

func (m *mockLogger) record(dst *[]string, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*dst = append(*dst, msg)
}

type mockOperationLogger struct{}

func (m *mockOperationLogger) Update(msg string, args ...any)   {}
func (m *mockOperationLogger) Complete(msg string, args ...any) {}
func (m *mockOperationLogger) Fail(msg string, args ...any)     {}

func writeHook(t *testing.T, dir, body string, mode os.FileMode) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script hooks need a POSIX shell")
	}
	path := filepath.Join(dir, "hook.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), mode); err != nil {
		t.Fatal(err)
	}
	return path
}

func setup(t *testing.T, postAction string) (*config.Profile, *run.Run) {
	t.Helper()
	dir := t.TempDir()
	p := &config.Profile{
		Name:       "prod",
		Source:     config.Endpoint{Host: "db1", Port: 3306, Database: "shop"},
		OutputDir:  filepath.Join(dir, "out"),
		LogDir:     filepath.Join(dir, "logs"),
		PostAction: postAction,
	}
	r := run.New(p, time.Now())
	if err := r.Open(afero.NewOsFs()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return p, r
}

func readLog(t *testing.T, r *run.Run) string {
	t.Helper()
	_ = r.Close()
	content, err := os.ReadFile(r.LogPath)
	if err != nil {
		t.Fatal(err)
	}
	return string(content)
}

func TestNewDispatcherDefaults(t *testing.T) {
	d := NewDispatcher(0, nil)
	if d.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout of 5 minutes, got %v", d.Timeout)
	}
}

func TestDispatchNoPostAction(t *testing.T) {
	p, r := setup(t, "")
	result := NewDispatcher(time.Second, &mockLogger{}).Dispatch(context.Background(), StatusSuccess, r, p)
	if !result.Skipped {
		t.Error("expected dispatch without post-action to be skipped")
	}
	if strings.Contains(readLog(t, r), "POST ACTION") {
		t.Error("no-op dispatch should not write to the run log")
	}
}

func TestDispatchPassesContract(t *testing.T) {
	dir := t.TempDir()
	hook := writeHook(t, dir, `
echo "args: $1|$2|$3|$4"
echo "env: $DBSHUTTLE_STATUS $DBSHUTTLE_PROFILE $DBSHUTTLE_DATABASE"
echo "to stderr" >&2
`, 0o755)
	p, r := setup(t, hook)

	result := NewDispatcher(5*time.Second, &mockLogger{}).Dispatch(context.Background(), StatusError, r, p)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	wantArgs := "args: ERROR|" + r.DumpPath + "|" + r.LogPath + "|prod"
	if !strings.Contains(result.Output, wantArgs) {
		t.Errorf("output %q missing %q", result.Output, wantArgs)
	}

	log := readLog(t, r)
	for _, want := range []string{wantArgs, "env: ERROR prod shop", "post-action: to stderr", "POST ACTION ERROR completed"} {
		if !strings.Contains(log, want) {
			t.Errorf("run log missing %q:\n%s", want, log)
		}
	}
}

func TestDispatchFailuresAreRecordedNotPropagated(t *testing.T) {
	tests := []struct {
		name   string
		hook   func(t *testing.T, dir string) string
		expect string
	}{
		{
			name: "non-zero exit",
			hook: func(t *testing.T, dir string) string {
				return writeHook(t, dir, "echo 'smtp down'\nexit 3\n", 0o755)
			},
			expect: "exit status 3",
		},
		{
			name: "missing executable",
			hook: func(t *testing.T, dir string) string {
				return filepath.Join(dir, "nope.sh")
			},
			expect: "no such file",
		},
		{
			name: "not executable",
			hook: func(t *testing.T, dir string) string {
				return writeHook(t, dir, "exit 0\n", 0o644)
			},
			expect: "not executable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook := tt.hook(t, t.TempDir())
			p, r := setup(t, hook)
			log := &mockLogger{}

			result := NewDispatcher(5*time.Second, log).Dispatch(context.Background(), StatusSuccess, r, p)

			if result.Success {
				t.Fatal("expected failure")
			}
			if !errors.Is(result.Err, dberrors.ErrHookFailure) {
				t.Errorf("expected HookFailure, got %v", result.Err)
			}
			if len(log.warnMsgs) != 1 {
				t.Errorf("expected one warning, got %v", log.warnMsgs)
			}
			content := readLog(t, r)
			if !strings.Contains(content, "POST ACTION FAILED") || !strings.Contains(content, tt.expect) {
				t.Errorf("run log should record failure containing %q:\n%s", tt.expect, content)
			}
		})
	}
}

func TestDispatchTimeout(t *testing.T) {
	dir := t.TempDir()
	hook := writeHook(t, dir, "sleep 10\n", 0o755)
	p, r := setup(t, hook)

	start := time.Now()
	result := NewDispatcher(200*time.Millisecond, &mockLogger{}).Dispatch(context.Background(), StatusSuccess, r, p)

	if result.Success {
		t.Fatal("expected timeout failure")
	}
	if time.Since(start) > 7*time.Second {
		t.Errorf("hook was not bounded by its timeout: %v", time.Since(start))
	}
	if !strings.Contains(result.Err.Error(), "timed out") {
		t.Errorf("expected timeout in error, got %v", result.Err)
	}
}

func TestInvocationArgs(t *testing.T) {
	inv := Invocation{Status: StatusSuccess, DumpPath: "/d.sql", LogPath: "/d.log", Profile: "p"}
	got := strings.Join(inv.Args(), " ")
	if got != "SUCCESS /d.sql /d.log p" {
		t.Errorf("Args() = %q", got)
	}
}
