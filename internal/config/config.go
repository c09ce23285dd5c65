package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Probe methods
const (
	ProbeDriver     = "driver"
	ProbeMySQLAdmin = "mysqladmin"
)

// Progress display modes
const (
	ProgressAuto   = "auto"
	ProgressAlways = "always"
	ProgressNever  = "never"
)

// Client flavors select the TLS flag dialect of the client tools
const (
	FlavorAuto    = "auto"
	FlavorMySQL   = "mysql"
	FlavorMariaDB = "mariadb"
)

// Exit policies
const (
	ExitPolicyAlwaysZero  = "always-zero"
	ExitPolicyFailOnError = "fail-on-error"
)

// Config holds the process-wide options for one dbshuttle invocation.
// Per-profile settings live in Profile.
type Config struct {
	// Version information
	Version   string
	BuildTime string
	GitCommit string

	// Profile discovery
	ProfilesDir string // Directory scanned for *.env profile files
	ProfileEnv  string // Single-profile mode: one profile file
	LogsDir     string // Root of per-profile log directories

	// Output options
	LogLevel  string
	LogFormat string
	NoColor   bool
	Progress  string // auto, always, never

	// Behaviour
	ProbeMethod    string
	HookTimeout    time.Duration
	ExitPolicy     string
	MinFreeSpaceMB int

	// Metrics
	MetricsTextfile string

	// External tools
	MySQLDumpPath  string
	MySQLPath      string
	MySQLAdminPath string
	ClientFlavor   string // auto, mysql, mariadb
}

// New creates a new configuration with default values taken from the environment
func New() *Config {
	return &Config{
		ProfilesDir: getEnvString("PROFILES_DIR", "./profiles"),
		ProfileEnv:  getEnvString("PROFILE_ENV", ""),
		LogsDir:     getEnvString("LOGS_DIR", "./logs"),

		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		LogFormat: getEnvString("LOG_FORMAT", "text"),
		NoColor:   getEnvBool("NO_COLOR", false),
		Progress:  getEnvString("PROGRESS", ProgressAuto),

		ProbeMethod:    getEnvString("PROBE_METHOD", ProbeDriver),
		HookTimeout:    getEnvDuration("HOOK_TIMEOUT", 5*time.Minute),
		ExitPolicy:     getEnvString("EXIT_POLICY", ExitPolicyAlwaysZero),
		MinFreeSpaceMB: getEnvInt("MIN_FREE_SPACE_MB", 1024),

		MetricsTextfile: getEnvString("METRICS_TEXTFILE", ""),

		MySQLDumpPath:  getEnvString("MYSQLDUMP_PATH", "mysqldump"),
		MySQLPath:      getEnvString("MYSQL_PATH", "mysql"),
		MySQLAdminPath: getEnvString("MYSQLADMIN_PATH", "mysqladmin"),
		ClientFlavor:   getEnvString("CLIENT_FLAVOR", FlavorAuto),
	}
}

// Validate validates the process-wide configuration
func (c *Config) Validate() error {
	switch c.ProbeMethod {
	case ProbeDriver, ProbeMySQLAdmin:
	default:
		return &ConfigError{Field: "probe-method", Value: c.ProbeMethod, Message: "must be 'driver' or 'mysqladmin'"}
	}

	switch c.Progress {
	case ProgressAuto, ProgressAlways, ProgressNever:
	default:
		return &ConfigError{Field: "progress", Value: c.Progress, Message: "must be 'auto', 'always' or 'never'"}
	}

	switch c.ExitPolicy {
	case ExitPolicyAlwaysZero, ExitPolicyFailOnError:
	default:
		return &ConfigError{Field: "exit-policy", Value: c.ExitPolicy, Message: "must be 'always-zero' or 'fail-on-error'"}
	}

	switch c.ClientFlavor {
	case FlavorAuto, FlavorMySQL, FlavorMariaDB:
	default:
		return &ConfigError{Field: "client-flavor", Value: c.ClientFlavor, Message: "must be 'auto', 'mysql' or 'mariadb'"}
	}

	if c.HookTimeout <= 0 {
		return &ConfigError{Field: "hook-timeout", Value: c.HookTimeout.String(), Message: "must be positive"}
	}

	if c.ProfileEnv == "" && c.ProfilesDir == "" {
		return &ConfigError{Field: "profiles-dir", Value: "", Message: "either a profiles directory or a single profile file is required"}
	}

	return nil
}

// SingleProfileMode reports whether one explicit profile file replaces directory discovery
func (c *Config) SingleProfileMode() bool {
	return c.ProfileEnv != ""
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "' with value '" + e.Value + "': " + e.Message
}

// Helper functions
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if s, err := strconv.Atoi(value); err == nil {
		return time.Duration(s) * time.Second
	}
	return defaultValue
}
