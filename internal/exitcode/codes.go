package exitcode

import (
	"context"
	"errors"
	"strings"

	"dbshuttle/internal/config"
	dberrors "dbshuttle/internal/errors"
)

// Standard exit codes following BSD sysexits.h conventions
// See: https://man.freebsd.org/cgi/man.cgi?query=sysexits
const (
	// Success - operation completed successfully
	Success = 0

	// General - general error (fallback)
	General = 1

	// UsageError - command line usage error
	UsageError = 2

	// NoInput - input file did not exist or was not readable
	NoInput = 66

	// Unavailable - service unavailable (database unreachable)
	Unavailable = 69

	// Software - internal software error
	Software = 70

	// IOError - error during I/O operation
	IOError = 74

	// NoPerm - permission denied
	NoPerm = 77

	// Config - configuration error
	Config = 78

	// Cancelled - operation cancelled by user (Ctrl+C)
	Cancelled = 130
)

// Summary is the aggregate view of one orchestrator pass
type Summary interface {
	// Failures counts profiles that failed or were skipped by validation
	Failures() int
}

// ForSummary maps a finished run to the process exit code under the given policy.
// always-zero reproduces the unattended behavior where failures surface only
// through logs and hooks.
func ForSummary(s Summary, policy string) int {
	if policy != config.ExitPolicyFailOnError || s == nil {
		return Success
	}
	if s.Failures() > 0 {
		return General
	}
	return Success
}

// ExitWithCode returns appropriate exit code based on error type
func ExitWithCode(err error) int {
	if err == nil {
		return Success
	}

	if errors.Is(err, context.Canceled) {
		return Cancelled
	}

	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return Config
	}

	switch dberrors.GetCategory(err) {
	case dberrors.CategoryConfig:
		return Config
	case dberrors.CategoryNetwork:
		return Unavailable
	case dberrors.CategoryInternal:
		return Software
	}

	errMsg := strings.ToLower(err.Error())

	// Authentication/Permission errors
	if contains(errMsg, "permission denied", "access denied", "authentication failed") {
		return NoPerm
	}

	// Connection errors
	if contains(errMsg, "connection refused", "could not connect", "no such host", "unknown host") {
		return Unavailable
	}

	// File not found
	if contains(errMsg, "no such file", "file not found", "does not exist") {
		return NoInput
	}

	// Disk full / I/O errors
	if contains(errMsg, "no space left", "disk full", "i/o error", "read-only file system") {
		return IOError
	}

	// Usage errors from cobra
	if contains(errMsg, "unknown command", "unknown flag", "accepts ", "requires at least") {
		return UsageError
	}

	// Default to general error
	return General
}

// contains checks if str contains any of the given substrings
func contains(str string, substrs ...string) bool {
	for _, substr := range substrs {
		if strings.Contains(str, substr) {
			return true
		}
	}
	return false
}
