package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorCodes(t *testing.T) {
	codes := []struct {
		code     ErrorCode
		category string
	}{
		{ErrCodeInvalidConfig, "C"},
		{ErrCodeMissingConfig, "C"},
		{ErrCodeInvalidTLS, "C"},
		{ErrCodeToolMissing, "E"},
		{ErrCodeTransferFailed, "E"},
		{ErrCodeHookFailed, "E"},
		{ErrCodeOutputNotUsable, "E"},
		{ErrCodeConnTimeout, "N"},
		{ErrCodePanic, "B"},
	}

	for _, tc := range codes {
		t.Run(string(tc.code), func(t *testing.T) {
			if !strings.HasPrefix(string(tc.code), "DBSHUTTLE-"+tc.category) {
				t.Errorf("ErrorCode %s should start with DBSHUTTLE-%s", tc.code, tc.category)
			}
		})
	}
}

func TestTaxonomyMatchesSentinels(t *testing.T) {
	cause := fmt.Errorf("boom")

	tests := []struct {
		name     string
		err      error
		sentinel error
		category Category
	}{
		{"validation", ValidationError("a", cause), ErrValidation, CategoryConfig},
		{"connectivity", ConnectivityTimeout("source", "db1", 3306, 2*time.Second, cause), ErrConnectivityTimeout, CategoryNetwork},
		{"transfer", TransferFailure("backup", 2, cause), ErrTransferFailure, CategoryEnvironment},
		{"hook", HookFailure("/bin/hook", cause), ErrHookFailure, CategoryEnvironment},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("profile x: %w", tc.err)
			if !errors.Is(wrapped, tc.sentinel) {
				t.Errorf("expected errors.Is to match sentinel for %v", tc.err)
			}
			if !errors.Is(wrapped, cause) {
				t.Error("expected cause to be reachable through Unwrap")
			}
			if got := GetCategory(wrapped); got != tc.category {
				t.Errorf("GetCategory = %s, want %s", got, tc.category)
			}
		})
	}
}

func TestProfileProblemErrors(t *testing.T) {
	missing := MissingConfig("SOURCE_HOST")
	if !errors.Is(missing, ErrMissingConfig) || errors.Is(missing, ErrValidation) {
		t.Errorf("MissingConfig matched the wrong sentinel: %v", missing)
	}
	if got := missing.Error(); got != "[DBSHUTTLE-C002] SOURCE_HOST is required" {
		t.Errorf("MissingConfig message = %q", got)
	}

	tlsErr := InvalidTLS("TARGET_SSL_KEY", "required when TARGET_SSL_CERT is set")
	if !errors.Is(tlsErr, ErrInvalidTLS) || GetCategory(tlsErr) != CategoryConfig {
		t.Errorf("InvalidTLS taxonomy wrong: %v", tlsErr)
	}
	if got := tlsErr.Error(); got != "[DBSHUTTLE-C003] TARGET_SSL_KEY is invalid: required when TARGET_SSL_CERT is set" {
		t.Errorf("InvalidTLS message = %q", got)
	}
}

func TestSentinelsDoNotCrossMatch(t *testing.T) {
	err := TransferFailure("restore", 1, nil)
	if errors.Is(err, ErrConnectivityTimeout) {
		t.Error("transfer failure must not match connectivity sentinel")
	}
}

func TestErrorString(t *testing.T) {
	err := ConnectivityTimeout("target", "replica", 3307, time.Minute, fmt.Errorf("connection refused"))
	msg := err.Error()
	if !strings.Contains(msg, "DBSHUTTLE-N003") || !strings.Contains(msg, "replica:3307") {
		t.Errorf("unexpected message %q", msg)
	}
	if !strings.Contains(msg, "connection refused") {
		t.Errorf("details missing from %q", msg)
	}
}

func TestGetCodeOnPlainError(t *testing.T) {
	if code := GetCode(fmt.Errorf("plain")); code != "" {
		t.Errorf("expected empty code, got %s", code)
	}
	if code := GetCode(Panic("p", "nil map")); code != ErrCodePanic {
		t.Errorf("expected panic code, got %s", code)
	}
}
