package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	dberrors "dbshuttle/internal/errors"
)

const validProfile = `
SOURCE_HOST=db1.internal
SOURCE_USER=backup
SOURCE_PASSWORD="s3cr#t"
SOURCE_DATABASE=shop
OUTPUT_DIR=/var/backups/shop
`

func TestParseProfileDefaults(t *testing.T) {
	p, err := ParseProfile("shop", strings.NewReader(validProfile), LoadOptions{LogsDir: "/var/log/dbshuttle"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Source.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", p.Source.Port, DefaultPort)
	}
	if p.Source.ConnectTimeout != DefaultSourceTimeout {
		t.Errorf("ConnectTimeout = %v, want %v", p.Source.ConnectTimeout, DefaultSourceTimeout)
	}
	if p.Source.Password != "s3cr#t" {
		t.Errorf("quoted password not preserved: %q", p.Source.Password)
	}
	if p.RestoreEnabled() {
		t.Error("restore should be disabled by default")
	}
	if want := filepath.Join("/var/log/dbshuttle", "shop"); p.LogDir != want {
		t.Errorf("LogDir = %q, want %q", p.LogDir, want)
	}
	if p.Source.Address() != "db1.internal:3306" {
		t.Errorf("Address = %q", p.Source.Address())
	}
}

func TestParseProfileSingleModeLogsAlongsideDump(t *testing.T) {
	p, err := ParseProfile(DefaultSingleProfile, strings.NewReader(validProfile), LoadOptions{LogsDir: "/ignored", Single: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.LogDir != p.OutputDir {
		t.Errorf("LogDir = %q, want output dir %q", p.LogDir, p.OutputDir)
	}
}

func TestParseProfileWithRestore(t *testing.T) {
	content := validProfile + `
RESTORE_ENABLED=true
TARGET_HOST=replica
TARGET_PORT=3307
TARGET_USER=restore
TARGET_PASSWORD=pw
TARGET_DATABASE=shop_copy
TARGET_SSL_ENABLED=yes
TARGET_SSL_CA=/etc/ssl/ca.pem
TARGET_CONNECT_TIMEOUT=5
`
	p, err := ParseProfile("shop", strings.NewReader(content), LoadOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.RestoreEnabled() {
		t.Fatal("expected restore enabled")
	}
	if p.Target.Port != 3307 || p.Target.Database != "shop_copy" {
		t.Errorf("unexpected target %+v", p.Target)
	}
	if !p.Target.TLS.Enabled || p.Target.TLS.CA != "/etc/ssl/ca.pem" {
		t.Errorf("unexpected TLS %+v", p.Target.TLS)
	}
	if p.Target.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %v, want 5s", p.Target.ConnectTimeout)
	}
}

func TestParseProfileValidation(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantKeys []string
		wantErr  *dberrors.BackupError
	}{
		{
			name:     "missing source fields",
			content:  "OUTPUT_DIR=/tmp\nSOURCE_HOST=db\n",
			wantKeys: []string{"SOURCE_USER", "SOURCE_PASSWORD", "SOURCE_DATABASE"},
		},
		{
			name:     "missing output dir",
			content:  "SOURCE_HOST=db\nSOURCE_USER=u\nSOURCE_PASSWORD=p\nSOURCE_DATABASE=d\n",
			wantKeys: []string{"OUTPUT_DIR"},
			wantErr:  dberrors.ErrMissingConfig,
		},
		{
			name:     "bad port",
			content:  validProfile + "SOURCE_PORT=abc\n",
			wantKeys: []string{"SOURCE_PORT"},
		},
		{
			name:     "tls without ca",
			content:  validProfile + "SOURCE_SSL_ENABLED=true\n",
			wantKeys: []string{"SOURCE_SSL_CA"},
			wantErr:  dberrors.ErrInvalidTLS,
		},
		{
			name:     "cert without key",
			content:  validProfile + "SOURCE_SSL_ENABLED=true\nSOURCE_SSL_CA=/ca\nSOURCE_SSL_CERT=/cert\n",
			wantKeys: []string{"SOURCE_SSL_KEY"},
			wantErr:  dberrors.ErrInvalidTLS,
		},
		{
			name:     "restore without target",
			content:  validProfile + "RESTORE_ENABLED=1\n",
			wantKeys: []string{"TARGET_HOST", "TARGET_USER", "TARGET_PASSWORD", "TARGET_DATABASE"},
			wantErr:  dberrors.ErrMissingConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfile("bad", strings.NewReader(tt.content), LoadOptions{})
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, dberrors.ErrValidation) {
				t.Errorf("expected ValidationError, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %s among the problems, got %v", tt.wantErr.Code, err)
			}
			for _, key := range tt.wantKeys {
				if !strings.Contains(err.Error(), key) {
					t.Errorf("error %q should mention %s", err.Error(), key)
				}
			}
		})
	}
}

func TestTLSDisabledIgnoresPartialMaterial(t *testing.T) {
	content := validProfile + "SOURCE_SSL_CERT=/cert\n"
	if _, err := ParseProfile("p", strings.NewReader(content), LoadOptions{}); err != nil {
		t.Errorf("TLS material without SSL_ENABLED should be ignored, got %v", err)
	}
}

func TestDiscoverProfilesLexicalOrder(t *testing.T) {
	afs := afero.NewMemMapFs()
	for _, name := range []string{"zeta.env", "alpha.env", "mid.env", "notes.txt"} {
		if err := afero.WriteFile(afs, filepath.Join("/profiles", name), []byte(validProfile), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := afs.MkdirAll("/profiles/dir.env", 0o755); err != nil {
		t.Fatal(err)
	}

	sources, err := DiscoverProfiles(afs, "/profiles")
	if err != nil {
		t.Fatalf("DiscoverProfiles: %v", err)
	}

	want := []string{"alpha", "mid", "zeta"}
	if len(sources) != len(want) {
		t.Fatalf("got %d sources, want %d: %+v", len(sources), len(want), sources)
	}
	for i, name := range want {
		if sources[i].Name != name {
			t.Errorf("sources[%d] = %q, want %q", i, sources[i].Name, name)
		}
	}
}

func TestDiscoverProfilesMissingDir(t *testing.T) {
	if _, err := DiscoverProfiles(afero.NewMemMapFs(), "/nope"); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	_, err := LoadProfile(afero.NewMemMapFs(), ProfileSource{Name: "gone", Path: "/gone.env"}, LoadOptions{})
	if !errors.Is(err, dberrors.ErrValidation) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}
