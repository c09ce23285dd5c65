// Package errors provides structured error types for dbshuttle
// with error codes, categories, and remediation guidance
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error codes for dbshuttle
// Format: DBSHUTTLE-<CATEGORY><NUMBER>
// Categories: C=Config, E=Environment, N=Network, B=Bug
const (
	// Configuration errors (user fix)
	ErrCodeInvalidConfig ErrorCode = "DBSHUTTLE-C001"
	ErrCodeMissingConfig ErrorCode = "DBSHUTTLE-C002"
	ErrCodeInvalidTLS    ErrorCode = "DBSHUTTLE-C003"

	// Environment errors (infrastructure fix)
	ErrCodeToolMissing     ErrorCode = "DBSHUTTLE-E004"
	ErrCodeTransferFailed  ErrorCode = "DBSHUTTLE-E009"
	ErrCodeHookFailed      ErrorCode = "DBSHUTTLE-E010"
	ErrCodeOutputNotUsable ErrorCode = "DBSHUTTLE-E011"

	// Network errors
	ErrCodeConnTimeout ErrorCode = "DBSHUTTLE-N003"

	// Internal errors (report to maintainers)
	ErrCodePanic ErrorCode = "DBSHUTTLE-B001"
)

// Category represents error categories
type Category string

const (
	CategoryConfig      Category = "configuration"
	CategoryEnvironment Category = "environment"
	CategoryNetwork     Category = "network"
	CategoryInternal    Category = "internal"
)

// BackupError is a structured error with code, category, and remediation
type BackupError struct {
	Code        ErrorCode
	Category    Category
	Message     string
	Details     string
	Remediation string
	Cause       error
}

// Error implements error interface
func (e *BackupError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *BackupError) Unwrap() error {
	return e.Cause
}

// Is matches any BackupError carrying the same code
func (e *BackupError) Is(target error) bool {
	if t, ok := target.(*BackupError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetails adds details to an error
func (e *BackupError) WithDetails(details string) *BackupError {
	e.Details = details
	return e
}

// WithCause adds an underlying cause
func (e *BackupError) WithCause(cause error) *BackupError {
	e.Cause = cause
	return e
}

// Sentinels for errors.Is checks against the taxonomy.
var (
	ErrValidation          = &BackupError{Code: ErrCodeInvalidConfig}
	ErrMissingConfig       = &BackupError{Code: ErrCodeMissingConfig}
	ErrInvalidTLS          = &BackupError{Code: ErrCodeInvalidTLS}
	ErrConnectivityTimeout = &BackupError{Code: ErrCodeConnTimeout}
	ErrTransferFailure     = &BackupError{Code: ErrCodeTransferFailed}
	ErrHookFailure         = &BackupError{Code: ErrCodeHookFailed}
	ErrOutputNotUsable     = &BackupError{Code: ErrCodeOutputNotUsable}
	ErrPanic               = &BackupError{Code: ErrCodePanic}
)

// ValidationError reports a profile that cannot be run as configured.
// The profile is skipped; other profiles are unaffected.
func ValidationError(profile string, cause error) *BackupError {
	return &BackupError{
		Code:        ErrCodeInvalidConfig,
		Category:    CategoryConfig,
		Message:     fmt.Sprintf("profile %q is invalid", profile),
		Cause:       cause,
		Details:     fmt.Sprint(cause),
		Remediation: "Fix the listed keys in the profile file, then check with: dbshuttle profiles validate",
	}
}

// MissingConfig reports a required profile key that is absent or empty
func MissingConfig(key string) *BackupError {
	return &BackupError{
		Code:     ErrCodeMissingConfig,
		Category: CategoryConfig,
		Message:  fmt.Sprintf("%s is required", key),
	}
}

// InvalidTLS reports an incomplete TLS setup on one endpoint
func InvalidTLS(key, details string) *BackupError {
	return (&BackupError{
		Code:        ErrCodeInvalidTLS,
		Category:    CategoryConfig,
		Message:     fmt.Sprintf("%s is invalid", key),
		Remediation: "Set the CA, and either both or neither of the client certificate and key",
	}).WithDetails(details)
}

// ConnectivityTimeout reports an endpoint that never answered within its bound
func ConnectivityTimeout(role, host string, port int, timeout time.Duration, cause error) *BackupError {
	return &BackupError{
		Code:     ErrCodeConnTimeout,
		Category: CategoryNetwork,
		Message:  fmt.Sprintf("%s %s:%d unreachable after %s", role, host, port, timeout),
		Cause:    cause,
		Details:  fmt.Sprint(cause),
		Remediation: fmt.Sprintf("Check the server is running and reachable, or raise the %s connect timeout. Test manually with: mysqladmin -h %s -P %d ping",
			role, host, port),
	}
}

// TransferFailure reports a dump or restore tool that exited unsuccessfully
func TransferFailure(kind string, exitCode int, cause error) *BackupError {
	return &BackupError{
		Code:        ErrCodeTransferFailed,
		Category:    CategoryEnvironment,
		Message:     fmt.Sprintf("%s failed with exit code %d", kind, exitCode),
		Cause:       cause,
		Remediation: "See the tool output captured in the run log",
	}
}

// HookFailure reports a post-action program failure. It is recorded, never escalated.
func HookFailure(path string, cause error) *BackupError {
	return &BackupError{
		Code:     ErrCodeHookFailed,
		Category: CategoryEnvironment,
		Message:  fmt.Sprintf("post-action %s failed", path),
		Cause:    cause,
		Details:  fmt.Sprint(cause),
	}
}

// ToolMissing creates a missing tool error
func ToolMissing(tool string, purpose string) *BackupError {
	return &BackupError{
		Code:     ErrCodeToolMissing,
		Category: CategoryEnvironment,
		Message:  fmt.Sprintf("Required tool not found: %s", tool),
		Details:  fmt.Sprintf("purpose: %s", purpose),
		Remediation: fmt.Sprintf(`Install %s (Debian/Ubuntu: apt install default-mysql-client,
RHEL: yum install mysql) or point the matching *_PATH variable at the binary.`, tool),
	}
}

// OutputNotUsable reports an output or log directory that cannot be created or written
func OutputNotUsable(path string, cause error) *BackupError {
	return &BackupError{
		Code:        ErrCodeOutputNotUsable,
		Category:    CategoryEnvironment,
		Message:     fmt.Sprintf("cannot write to %s", path),
		Cause:       cause,
		Details:     fmt.Sprint(cause),
		Remediation: "Check OUTPUT_DIR and LOG_DIR exist or can be created, and that the disk is not full or read-only",
	}
}

// Panic wraps a recovered panic so one profile cannot take down the run
func Panic(profile string, recovered interface{}) *BackupError {
	return &BackupError{
		Code:        ErrCodePanic,
		Category:    CategoryInternal,
		Message:     fmt.Sprintf("profile %q panicked", profile),
		Details:     fmt.Sprint(recovered),
		Remediation: "This appears to be a bug. Please report it with the run log attached.",
	}
}

// GetCategory returns the error category if available
func GetCategory(err error) Category {
	var backupErr *BackupError
	if errors.As(err, &backupErr) {
		return backupErr.Category
	}
	return ""
}

// GetCode returns the error code if available
func GetCode(err error) ErrorCode {
	var backupErr *BackupError
	if errors.As(err, &backupErr) {
		return backupErr.Code
	}
	return ""
}
