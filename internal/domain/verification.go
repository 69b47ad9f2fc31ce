package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Verification code bounds. Codes are always six digits.
const (
	minVerificationCode = 100000
	maxVerificationCode = 999999
)

// VerificationCode is a one-time numeric token proving control of an email address.
type VerificationCode struct {
	Email    string    `json:"email"`
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issued_at"`
}

// NewVerificationCode mints a uniformly random code in [100000, 999999] for email.
func NewVerificationCode(email string) (*VerificationCode, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxVerificationCode-minVerificationCode+1))
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	return &VerificationCode{
		Email:    email,
		Code:     fmt.Sprintf("%06d", n.Int64()+minVerificationCode),
		IssuedAt: time.Now().UTC(),
	}, nil
}

// Expired reports whether the code is older than ttl at now.
// A zero ttl means codes never expire.
func (c *VerificationCode) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(c.IssuedAt) > ttl
}
