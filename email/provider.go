// Package email delivers the digest through a pluggable provider.
package email

import (
	"context"
	"log/slog"
	"strings"
)

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send sends one HTML email to all recipients.
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}

// Sender sends digest emails using a pluggable provider.
type Sender struct {
	provider Provider
	logger   *slog.Logger
	to       []string
}

// New creates a new sender delivering to the given recipients.
func New(provider Provider, to []string, logger *slog.Logger) *Sender {
	return &Sender{
		provider: provider,
		logger:   logger,
		to:       to,
	}
}

// SendDigest delivers a non-empty digest. A returned error means the
// digest was not delivered and the caller must not commit the seen-set.
func (s *Sender) SendDigest(ctx context.Context, subject, htmlBody string) error {
	s.logger.Info("Sending digest email",
		"recipients", len(s.to),
		"subject", subject,
		"body_bytes", len(htmlBody))

	return s.provider.Send(ctx, s.to, subject, htmlBody)
}

// sanitizeHeader removes control characters to prevent header injection.
// RFC 5322 headers are newline-delimited, so any newline in a header
// value would let page content inject arbitrary headers.
func sanitizeHeader(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	return result.String()
}
