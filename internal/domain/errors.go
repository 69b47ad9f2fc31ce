package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds reported by the account lifecycle pipeline and the credit ledger.
// Callers check for them with errors.Is; the API layer maps each kind to an
// HTTP status code and a safe message.
var (
	// ErrValidation is returned when one or more input fields are malformed or missing.
	// The concrete error is a *ValidationError carrying the per-field messages.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateEmail is returned when an account with the same email already exists.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrCodeNotFound is returned when no verification code is on file for an email.
	ErrCodeNotFound = errors.New("verification code not found")

	// ErrCodeMismatch is returned when the submitted verification code differs from the stored one.
	ErrCodeMismatch = errors.New("verification code mismatch")

	// ErrAccountNotFound is returned when no account matches the given email or ID.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAlreadyVerified is returned when a code is requested for an account that
	// has already proven control of its email.
	ErrAlreadyVerified = errors.New("email already verified")

	// ErrUnverifiedEmail is returned when a subscription is requested for an
	// account whose email has not been verified yet.
	ErrUnverifiedEmail = errors.New("email must be verified before subscribing")

	// ErrInsufficientCredits is returned when a consumption exceeds the usable balance.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidTransition is returned when a lifecycle change would move an account backwards.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrUnknownPlan is returned when a subscription names a plan outside the catalog.
	ErrUnknownPlan = errors.New("unknown plan")

	// ErrInvalidPaymentMethod is returned for payment methods other than credit_card, pix or boleto.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrSubscriptionNotFound is returned when no subscription matches the given ID.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrAlreadyActive is returned when a payment completion arrives for a
	// subscription whose payment is already completed.
	ErrAlreadyActive = errors.New("subscription already active")

	// ErrInvalidAmount is returned for non-positive credit amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// ValidationError aggregates field-level validation failures so a caller can
// report every problem with a submission at once.
type ValidationError struct {
	// Fields maps a field name to its human-readable failure message.
	Fields map[string]string
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	ve := &ValidationError{Fields: make(map[string]string, 1)}
	ve.Add(field, message)
	return ve
}

// Add records a failure for field. The first message recorded for a field wins.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// Empty reports whether no field failures were recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// Error implements the error interface with a deterministic field ordering.
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %s", name, e.Fields[name]))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

// Unwrap lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// OrNil returns e as an error, or nil when no failures were recorded.
// It avoids the typed-nil-interface trap when returning an aggregate.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}
