// Package notify delivers verification codes to account holders.
package notify

import (
	"context"
	"log/slog"

	"github.com/phrazzld/enroll-api/internal/redact"
)

// NotificationSender delivers a verification code to an email address.
// Implementations must be safe for concurrent use.
type NotificationSender interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// LogSender "delivers" codes by writing them to the log. It stands in for a
// mail gateway in development.
type LogSender struct {
	logger *slog.Logger
	// revealCodes writes the code under dev_code so that it can be read
	// back from the log; otherwise only the fact of dispatch is logged.
	revealCodes bool
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger, revealCodes bool) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{
		logger:      logger.With("component", "notification_sender"),
		revealCodes: revealCodes,
	}
}

var _ NotificationSender = (*LogSender)(nil)

// SendVerificationCode implements NotificationSender.
func (s *LogSender) SendVerificationCode(ctx context.Context, email, code string) error {
	attrs := []any{"recipient", redact.Email(email)}
	if s.revealCodes {
		attrs = append(attrs, "dev_code", code)
	}
	s.logger.InfoContext(ctx, "verification code dispatched", attrs...)
	return nil
}
