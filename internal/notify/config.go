package notify

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the SMTP settings
type Config struct {
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPassword    string
	SMTPFrom        string
	SMTPTo          []string
	SMTPTLS         bool // implicit TLS, usually port 465
	SMTPStartTLS    bool
	SMTPInsecureTLS bool

	OnSuccess    bool
	OnFailure    bool
	Retries      int
	RetryDelay   time.Duration
	DialTimeout  time.Duration
	LogTailLines int
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		SMTPPort:     587,
		SMTPStartTLS: true,
		OnSuccess:    true,
		OnFailure:    true,
		Retries:      3,
		RetryDelay:   5 * time.Second,
		DialTimeout:  30 * time.Second,
		LogTailLines: 50,
	}
}

// Enabled reports whether enough is configured to send mail
func (c Config) Enabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != "" && len(c.SMTPTo) > 0
}

// ShouldSend applies NOTIFY_ON_SUCCESS / NOTIFY_ON_FAILURE
func (c Config) ShouldSend(e *Event) bool {
	if e.Failed() {
		return c.OnFailure
	}
	return c.OnSuccess
}

// ConfigFromEnv loads the SMTP configuration from environment variables.
//
//	NOTIFY_SMTP_HOST       - SMTP server hostname
//	NOTIFY_SMTP_PORT       - SMTP server port (default: 587)
//	NOTIFY_SMTP_USER       - SMTP username
//	NOTIFY_SMTP_PASSWORD   - SMTP password
//	NOTIFY_SMTP_FROM       - Sender email address
//	NOTIFY_SMTP_TO         - Comma-separated recipient list
//	NOTIFY_SMTP_TLS        - Use implicit TLS (default: false)
//	NOTIFY_SMTP_STARTTLS   - Use STARTTLS when offered (default: true)
//	NOTIFY_SMTP_INSECURE   - Skip TLS certificate verification (default: false)
//	NOTIFY_ON_SUCCESS      - Send on success (default: true)
//	NOTIFY_ON_FAILURE      - Send on failure (default: true)
//	NOTIFY_RETRIES         - Extra send attempts (default: 3)
//	NOTIFY_RETRY_DELAY     - Delay between attempts (default: 5s)
//	NOTIFY_LOG_LINES       - Run log lines included in the body (default: 50)
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.SMTPHost = os.Getenv("NOTIFY_SMTP_HOST")
	if port := os.Getenv("NOTIFY_SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.SMTPPort = p
		}
	}
	cfg.SMTPUser = os.Getenv("NOTIFY_SMTP_USER")
	cfg.SMTPPassword = os.Getenv("NOTIFY_SMTP_PASSWORD")
	cfg.SMTPFrom = os.Getenv("NOTIFY_SMTP_FROM")
	if to := os.Getenv("NOTIFY_SMTP_TO"); to != "" {
		for _, addr := range strings.Split(to, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				cfg.SMTPTo = append(cfg.SMTPTo, addr)
			}
		}
	}
	if tls := os.Getenv("NOTIFY_SMTP_TLS"); tls != "" {
		cfg.SMTPTLS = parseBool(tls, false)
	}
	if starttls := os.Getenv("NOTIFY_SMTP_STARTTLS"); starttls != "" {
		cfg.SMTPStartTLS = parseBool(starttls, true)
	}
	if insecure := os.Getenv("NOTIFY_SMTP_INSECURE"); insecure != "" {
		cfg.SMTPInsecureTLS = parseBool(insecure, false)
	}

	if onSuccess := os.Getenv("NOTIFY_ON_SUCCESS"); onSuccess != "" {
		cfg.OnSuccess = parseBool(onSuccess, true)
	}
	if onFailure := os.Getenv("NOTIFY_ON_FAILURE"); onFailure != "" {
		cfg.OnFailure = parseBool(onFailure, true)
	}
	if retries := os.Getenv("NOTIFY_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil && r >= 0 {
			cfg.Retries = r
		}
	}
	if delay := os.Getenv("NOTIFY_RETRY_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			cfg.RetryDelay = d
		}
	}
	if lines := os.Getenv("NOTIFY_LOG_LINES"); lines != "" {
		if n, err := strconv.Atoi(lines); err == nil && n >= 0 {
			cfg.LogTailLines = n
		}
	}

	return cfg
}

// parseBool parses a boolean from string with a default value
func parseBool(s string, defaultVal bool) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultVal
	}
}
