package config

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	dberrors "dbshuttle/internal/errors"
)

// Defaults applied when a profile file leaves a key unset
const (
	DefaultPort          = 3306
	DefaultSourceTimeout = 30 * time.Second
	DefaultTargetTimeout = 60 * time.Second
	DefaultSingleProfile = "default"
	ProfileFileExtension = ".env"
)

// TLSConfig is the typed TLS material for one endpoint
type TLSConfig struct {
	Enabled bool
	CA      string
	Cert    string
	Key     string
}

// Endpoint describes one MySQL server a profile talks to
type Endpoint struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	TLS            TLSConfig
	ConnectTimeout time.Duration
}

// Address returns host:port
func (e Endpoint) Address() string {
	return e.Host + ":" + strconv.Itoa(e.Port)
}

// Profile is one independently configured source (and optional target) pair.
// It is read-only once loaded.
type Profile struct {
	Name       string
	Source     Endpoint
	Target     *Endpoint // nil unless RESTORE_ENABLED
	OutputDir  string
	LogDir     string
	PostAction string
}

// RestoreEnabled reports whether the profile restores the dump into a target
func (p *Profile) RestoreEnabled() bool {
	return p.Target != nil
}

// ProfileSource identifies a profile before it is loaded
type ProfileSource struct {
	Name string
	Path string
}

// LoadOptions carries the process-wide settings a profile inherits
type LoadOptions struct {
	LogsDir string
	Single  bool
}

// DiscoverProfiles lists *.env files in dir in lexical order.
// The order is the order profiles run in.
func DiscoverProfiles(afs afero.Fs, dir string) ([]ProfileSource, error) {
	entries, err := afero.ReadDir(afs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles directory %s: %w", dir, err)
	}

	var sources []ProfileSource
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ProfileFileExtension) {
			continue
		}
		sources = append(sources, ProfileSource{
			Name: strings.TrimSuffix(entry.Name(), ProfileFileExtension),
			Path: filepath.Join(dir, entry.Name()),
		})
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return sources, nil
}

// SingleProfile returns the source for single-profile mode
func SingleProfile(path string) ProfileSource {
	return ProfileSource{Name: DefaultSingleProfile, Path: path}
}

// LoadProfile reads and validates one profile file.
// Any problem is returned as a single ValidationError naming every bad key.
func LoadProfile(afs afero.Fs, src ProfileSource, opts LoadOptions) (*Profile, error) {
	f, err := afs.Open(src.Path)
	if err != nil {
		return nil, dberrors.ValidationError(src.Name, err)
	}
	defer f.Close()

	return ParseProfile(src.Name, f, opts)
}

// ParseProfile builds a Profile from .env content
func ParseProfile(name string, r io.Reader, opts LoadOptions) (*Profile, error) {
	values, err := godotenv.Parse(r)
	if err != nil {
		return nil, dberrors.ValidationError(name, fmt.Errorf("parse: %w", err))
	}
	return profileFromValues(name, values, opts)
}

func profileFromValues(name string, values map[string]string, opts LoadOptions) (*Profile, error) {
	var result *multierror.Error
	env := envMap{values: values, errs: &result}

	p := &Profile{
		Name:       name,
		Source:     env.endpoint("SOURCE", DefaultSourceTimeout),
		OutputDir:  env.str("OUTPUT_DIR"),
		LogDir:     env.str("LOG_DIR"),
		PostAction: env.str("POST_ACTION"),
	}

	if p.OutputDir == "" {
		env.missing("OUTPUT_DIR")
	}

	if env.boolean("RESTORE_ENABLED") {
		target := env.endpoint("TARGET", DefaultTargetTimeout)
		p.Target = &target
	}

	if p.LogDir == "" {
		if opts.Single {
			p.LogDir = p.OutputDir
		} else {
			p.LogDir = filepath.Join(opts.LogsDir, name)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, dberrors.ValidationError(name, err)
	}
	return p, nil
}

// envMap reads typed values out of a parsed profile, collecting every problem
type envMap struct {
	values map[string]string
	errs   **multierror.Error
}

func (e envMap) str(key string) string {
	return strings.TrimSpace(e.values[key])
}

func (e envMap) missing(key string) {
	*e.errs = multierror.Append(*e.errs, dberrors.MissingConfig(key))
}

func (e envMap) badTLS(key, format string, args ...interface{}) {
	*e.errs = multierror.Append(*e.errs, dberrors.InvalidTLS(key, fmt.Sprintf(format, args...)))
}

func (e envMap) fail(key, format string, args ...interface{}) {
	*e.errs = multierror.Append(*e.errs, fmt.Errorf("%s: %s", key, fmt.Sprintf(format, args...)))
}

func (e envMap) required(key string) string {
	v := e.str(key)
	if v == "" {
		e.missing(key)
	}
	return v
}

func (e envMap) boolean(key string) bool {
	v := e.str(key)
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, "%q is not a boolean", v)
		return false
	}
	return b
}

func (e envMap) positiveInt(key string, def int) int {
	v := e.str(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		e.fail(key, "%q is not a positive integer", v)
		return def
	}
	return i
}

func (e envMap) endpoint(prefix string, defTimeout time.Duration) Endpoint {
	ep := Endpoint{
		Host:     e.required(prefix + "_HOST"),
		Port:     e.positiveInt(prefix+"_PORT", DefaultPort),
		User:     e.required(prefix + "_USER"),
		Password: e.required(prefix + "_PASSWORD"),
		Database: e.required(prefix + "_DATABASE"),
		TLS: TLSConfig{
			Enabled: e.boolean(prefix + "_SSL_ENABLED"),
			CA:      e.str(prefix + "_SSL_CA"),
			Cert:    e.str(prefix + "_SSL_CERT"),
			Key:     e.str(prefix + "_SSL_KEY"),
		},
		ConnectTimeout: time.Duration(e.positiveInt(prefix+"_CONNECT_TIMEOUT", int(defTimeout/time.Second))) * time.Second,
	}

	if ep.TLS.Enabled {
		if ep.TLS.CA == "" {
			e.badTLS(prefix+"_SSL_CA", "required when %s_SSL_ENABLED is set", prefix)
		}
		if ep.TLS.Cert != "" && ep.TLS.Key == "" {
			e.badTLS(prefix+"_SSL_KEY", "required when %s_SSL_CERT is set", prefix)
		}
		if ep.TLS.Key != "" && ep.TLS.Cert == "" {
			e.badTLS(prefix+"_SSL_CERT", "required when %s_SSL_KEY is set", prefix)
		}
	}

	return ep
}
