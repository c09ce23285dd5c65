package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"dbshuttle/internal/config"
	dberrors "dbshuttle/internal/errors"
	"dbshuttle/internal/exitcode"
	"dbshuttle/internal/hooks"
	"dbshuttle/internal/metrics"
)

func writeProfiles(t *testing.T, afs afero.Fs, files map[string]string) []config.ProfileSource {
	t.Helper()
	for name, content := range files {
		if err := afero.WriteFile(afs, filepath.Join("/profiles", name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	sources, err := config.DiscoverProfiles(afs, "/profiles")
	if err != nil {
		t.Fatal(err)
	}
	return sources
}

func profileEnv(host, db string) string {
	return "SOURCE_HOST=" + host + "\nSOURCE_USER=backup\nSOURCE_PASSWORD=pw\nSOURCE_DATABASE=" + db +
		"\nSOURCE_CONNECT_TIMEOUT=1\nOUTPUT_DIR=/out\n"
}

// stubRunner returns canned results, optionally panicking or cancelling
type stubRunner struct {
	ran     []string
	panicOn string
	onRun   func(name string)
}

func (s *stubRunner) RunProfile(ctx context.Context, p *config.Profile) *ProfileResult {
	s.ran = append(s.ran, p.Name)
	if s.onRun != nil {
		s.onRun(p.Name)
	}
	if p.Name == s.panicOn {
		panic("boom")
	}
	return &ProfileResult{Name: p.Name, Database: p.Source.Database, State: StateSucceeded}
}

func TestOrchestratorIsolatesProfiles(t *testing.T) {
	h := newHarness("src")
	sources := writeProfiles(t, h.fs, map[string]string{
		"a.env": profileEnv("down", "crm"),
		"b.env": profileEnv("src", "shop"),
		"c.env": "SOURCE_HOST=src\n",
	})

	o := &Orchestrator{Runner: h.runner, Fs: h.fs, Load: config.LoadOptions{LogsDir: "/logs"}, Log: h.log}
	summary := o.Run(context.Background(), sources)

	if len(summary.Results) != 2 {
		t.Fatalf("expected 2 profiles run, got %d", len(summary.Results))
	}
	if a := summary.Results[0]; a.Name != "a" || a.State != StateFailed {
		t.Errorf("profile a: %s %s", a.Name, a.State)
	}
	if b := summary.Results[1]; b.Name != "b" || b.State != StateSucceeded {
		t.Errorf("profile b must be unaffected by a, got %s: %v", b.State, b.Err)
	}

	if len(summary.Skipped) != 1 || summary.Skipped[0].Name != "c" {
		t.Fatalf("expected c skipped, got %+v", summary.Skipped)
	}
	if !errors.Is(summary.Skipped[0].Err, dberrors.ErrValidation) {
		t.Errorf("expected ValidationError, got %v", summary.Skipped[0].Err)
	}

	if summary.Failures() != 2 || summary.Succeeded() != 1 {
		t.Errorf("Failures=%d Succeeded=%d", summary.Failures(), summary.Succeeded())
	}

	var statuses []string
	for _, call := range h.hooks.calls {
		statuses = append(statuses, call.Profile+":"+string(call.Status))
	}
	if strings.Join(statuses, ",") != "a:ERROR,b:SUCCESS" {
		t.Errorf("hook dispatches = %v", statuses)
	}
	if h.hooks.calls[0].LogPath == h.hooks.calls[1].LogPath {
		t.Error("profiles must write separate run logs")
	}
	if len(h.log.errorMsgs) == 0 {
		t.Error("skipped profile should be reported on the console")
	}
}

func TestOrchestratorRunsInLexicalOrder(t *testing.T) {
	afs := afero.NewMemMapFs()
	sources := writeProfiles(t, afs, map[string]string{
		"20-crm.env":  profileEnv("h", "crm"),
		"03-shop.env": profileEnv("h", "shop"),
		"10-blog.env": profileEnv("h", "blog"),
		"notes.txt":   "ignored",
	})

	runner := &stubRunner{}
	(&Orchestrator{Runner: runner, Fs: afs}).Run(context.Background(), sources)

	if got := strings.Join(runner.ran, ","); got != "03-shop,10-blog,20-crm" {
		t.Errorf("run order = %s", got)
	}
}

func TestOrchestratorContainsRunnerPanic(t *testing.T) {
	afs := afero.NewMemMapFs()
	sources := writeProfiles(t, afs, map[string]string{
		"a.env": profileEnv("h", "one"),
		"b.env": profileEnv("h", "two"),
	})

	runner := &stubRunner{panicOn: "a"}
	summary := (&Orchestrator{Runner: runner, Fs: afs}).Run(context.Background(), sources)

	if len(runner.ran) != 2 {
		t.Fatalf("panic must not stop the loop, ran %v", runner.ran)
	}
	if !errors.Is(summary.Results[0].Err, dberrors.ErrPanic) || summary.Results[0].State != StateFailed {
		t.Errorf("profile a: %s %v", summary.Results[0].State, summary.Results[0].Err)
	}
	if summary.Results[1].State != StateSucceeded {
		t.Error("profile b should succeed")
	}
}

func TestOrchestratorStopsSchedulingOnCancel(t *testing.T) {
	afs := afero.NewMemMapFs()
	sources := writeProfiles(t, afs, map[string]string{
		"a.env": profileEnv("h", "one"),
		"b.env": profileEnv("h", "two"),
		"c.env": profileEnv("h", "three"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &stubRunner{onRun: func(name string) {
		if name == "a" {
			cancel()
		}
	}}
	summary := (&Orchestrator{Runner: runner, Fs: afs}).Run(ctx, sources)

	if strings.Join(runner.ran, ",") != "a" {
		t.Errorf("only the in-flight profile may finish, ran %v", runner.ran)
	}
	if !summary.Interrupted {
		t.Error("summary should be marked interrupted")
	}
	if summary.Results[0].State != StateSucceeded {
		t.Error("in-flight profile should complete normally")
	}
}

func TestExitPolicy(t *testing.T) {
	failed := &Summary{Results: []*ProfileResult{{State: StateSucceeded}, {State: StateFailed}}}
	skipped := &Summary{Skipped: []SkippedProfile{{Name: "x"}}}
	clean := &Summary{Results: []*ProfileResult{{State: StateSucceeded}}}

	tests := []struct {
		name    string
		summary *Summary
		policy  string
		want    int
	}{
		{"always zero with failure", failed, config.ExitPolicyAlwaysZero, exitcode.Success},
		{"default policy with failure", failed, "", exitcode.Success},
		{"fail on error with failure", failed, config.ExitPolicyFailOnError, exitcode.General},
		{"fail on error with skipped", skipped, config.ExitPolicyFailOnError, exitcode.General},
		{"fail on error all good", clean, config.ExitPolicyFailOnError, exitcode.Success},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitcode.ForSummary(tt.summary, tt.policy); got != tt.want {
				t.Errorf("ForSummary() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOrchestratorWritesMetrics(t *testing.T) {
	h := newHarness("src")
	sources := writeProfiles(t, h.fs, map[string]string{
		"a.env": profileEnv("down", "crm"),
		"b.env": profileEnv("src", "shop"),
	})
	path := filepath.Join(t.TempDir(), "dbshuttle.prom")

	o := &Orchestrator{
		Runner:  h.runner,
		Fs:      h.fs,
		Load:    config.LoadOptions{LogsDir: "/logs"},
		Metrics: metrics.NewTextfile(path, "dev", "none", nil),
	}
	o.Run(context.Background(), sources)

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metrics textfile not written: %v", err)
	}
	for _, want := range []string{
		`dbshuttle_profile_success{database="crm",failed_step="ProbingSource",profile="a"} 0`,
		`dbshuttle_profile_success{database="shop",failed_step="",profile="b"} 1`,
		`dbshuttle_profiles{outcome="failed"} 1`,
	} {
		if !strings.Contains(string(content), want) {
			t.Errorf("metrics missing %q:\n%s", want, content)
		}
	}
}

var _ HookDispatcher = (*hooks.Dispatcher)(nil)
