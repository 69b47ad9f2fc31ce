package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/enroll-api/internal/notify"
)

// SentCode records one SendVerificationCode call.
type SentCode struct {
	Email string
	Code  string
}

// MockNotificationSender implements notify.NotificationSender for testing.
// By default it succeeds and remembers every code it was asked to send.
type MockNotificationSender struct {
	// SendFn allows test cases to mock the SendVerificationCode behavior
	SendFn func(ctx context.Context, email, code string) error

	mu   sync.Mutex
	sent []SentCode
}

var _ notify.NotificationSender = (*MockNotificationSender)(nil)

// SendVerificationCode implements the notify.NotificationSender interface
func (m *MockNotificationSender) SendVerificationCode(ctx context.Context, email, code string) error {
	m.mu.Lock()
	m.sent = append(m.sent, SentCode{Email: email, Code: code})
	m.mu.Unlock()

	if m.SendFn != nil {
		return m.SendFn(ctx, email, code)
	}
	return nil
}

// Sent returns a copy of every recorded call.
func (m *MockNotificationSender) Sent() []SentCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentCode(nil), m.sent...)
}

// LastCode returns the most recent code sent to email, or "" if none was.
func (m *MockNotificationSender) LastCode(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Email == email {
			return m.sent[i].Code
		}
	}
	return ""
}
