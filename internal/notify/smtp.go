package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"dbshuttle/internal/logger"
)

// SMTPNotifier sends notifications via email
type SMTPNotifier struct {
	config Config
	log    logger.Logger
}

// NewSMTPNotifier creates a new SMTP notifier
func NewSMTPNotifier(config Config, log logger.Logger) *SMTPNotifier {
	if log == nil {
		log = logger.NewSilent()
	}
	return &SMTPNotifier{config: config, log: log}
}

// Send mails e to every recipient, retrying failed attempts
func (s *SMTPNotifier) Send(ctx context.Context, e *Event) error {
	if !s.config.Enabled() {
		return fmt.Errorf("smtp: NOTIFY_SMTP_HOST, NOTIFY_SMTP_FROM and NOTIFY_SMTP_TO must be set")
	}

	message, err := s.buildMessage(e)
	if err != nil {
		return err
	}

	var policy backoff.BackOff = backoff.NewConstantBackOff(s.config.RetryDelay)
	policy = backoff.WithMaxRetries(policy, uint64(s.config.Retries))

	attempts := 0
	err = backoff.Retry(func() error {
		attempts++
		err := s.sendMail(ctx, message)
		if err != nil {
			s.log.Debug("Mail attempt failed", "attempt", attempts, "error", err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return fmt.Errorf("smtp: failed after %d attempts: %w", attempts, err)
	}

	s.log.Info("Notification sent", "profile", e.Profile, "status", e.Status, "to", strings.Join(s.config.SMTPTo, ","))
	return nil
}

// buildMessage renders headers and body with CRLF line endings
func (s *SMTPNotifier) buildMessage(e *Event) (string, error) {
	subject, err := FormatSubject(e)
	if err != nil {
		return "", err
	}
	body, err := FormatBody(e)
	if err != nil {
		return "", err
	}

	priority := "3"
	if e.Failed() {
		priority = "2"
	}

	headers := [][2]string{
		{"From", s.config.SMTPFrom},
		{"To", strings.Join(s.config.SMTPTo, ", ")},
		{"Subject", strings.TrimSpace(subject)},
		{"Date", time.Now().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
		{"X-Priority", priority},
	}

	var msg strings.Builder
	for _, h := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return msg.String(), nil
}

// sendMail delivers one message over a fresh connection
func (s *SMTPNotifier) sendMail(ctx context.Context, message string) error {
	addr := net.JoinHostPort(s.config.SMTPHost, fmt.Sprint(s.config.SMTPPort))
	dialer := &net.Dialer{Timeout: s.config.DialTimeout}
	tlsConfig := &tls.Config{
		ServerName:         s.config.SMTPHost,
		InsecureSkipVerify: s.config.SMTPInsecureTLS,
	}

	var conn net.Conn
	var err error
	if s.config.SMTPTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("smtp client creation failed: %w", err)
	}
	defer client.Close()

	if s.config.SMTPStartTLS && !s.config.SMTPTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err = client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls failed: %w", err)
			}
		}
	}

	if s.config.SMTPUser != "" && s.config.SMTPPassword != "" {
		auth := smtp.PlainAuth("", s.config.SMTPUser, s.config.SMTPPassword, s.config.SMTPHost)
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("auth failed: %w", err)
		}
	}

	if err = client.Mail(s.config.SMTPFrom); err != nil {
		return fmt.Errorf("mail from failed: %w", err)
	}
	for _, to := range s.config.SMTPTo {
		if err = client.Rcpt(to); err != nil {
			return fmt.Errorf("rcpt to failed: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data command failed: %w", err)
	}
	if _, err = w.Write([]byte(message)); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("data close failed: %w", err)
	}

	return client.Quit()
}
