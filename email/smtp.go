package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// SMTPProvider sends mail through an SMTP relay using STARTTLS and an
// app password. The password is held in memory only and never logged.
type SMTPProvider struct {
	logger   *slog.Logger
	host     string
	fromAddr string
	fromName string
	password string
	port     int
}

// NewSMTPProvider creates a new SMTP email provider.
func NewSMTPProvider(host string, port int, fromAddr, fromName, password string, logger *slog.Logger) *SMTPProvider {
	return &SMTPProvider{
		logger:   logger,
		host:     host,
		port:     port,
		fromAddr: fromAddr,
		fromName: fromName,
		password: password,
	}
}

// Send sends an HTML email to all recipients in a single SMTP session.
func (p *SMTPProvider) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	msg := p.buildMessage(to, subject, htmlBody)

	return retry.Do(
		func() error {
			p.logger.Info("SMTP send starting",
				"host", p.host,
				"port", p.port,
				"recipients", len(to))

			startTime := time.Now()
			err := p.sendOnce(to, msg)
			duration := time.Since(startTime)

			if err != nil {
				p.logger.Warn("SMTP send failed, will retry",
					"host", p.host,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}

			p.logger.Info("SMTP send completed",
				"host", p.host,
				"duration_ms", duration.Milliseconds(),
				"status", "success")
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Info("Retrying SMTP send after error", "attempt", n, "error", err)
		}),
	)
}

// buildMessage assembles the RFC 5322 message. Subject and from-name go
// through Q-encoding since digests carry Hebrew and emoji.
func (p *SMTPProvider) buildMessage(to []string, subject, htmlBody string) []byte {
	subject = sanitizeHeader(subject)
	fromName := sanitizeHeader(p.fromName)
	if fromName == "" {
		fromName = "Rental Bot"
	}

	var msg strings.Builder
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", fromName), p.fromAddr))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject)))
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	msg.WriteString(htmlBody)
	return []byte(msg.String())
}

func (p *SMTPProvider) sendOnce(to []string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", p.host, p.port)

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.StartTLS(&tls.Config{ServerName: p.host, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}

	auth := smtp.PlainAuth("", p.fromAddr, p.password, p.host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	if err := client.Mail(p.fromAddr); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(sanitizeHeader(rcpt)); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	return client.Quit()
}
