package service

import (
	"errors"

	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/store"
)

// translateStoreError maps store-level errors to the domain kinds that the API
// layer understands. Errors that are already domain kinds, and unexpected
// errors, are returned unchanged.
func translateStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrAccountNotFound):
		return domain.ErrAccountNotFound
	case errors.Is(err, store.ErrSubscriptionNotFound):
		return domain.ErrSubscriptionNotFound
	case errors.Is(err, store.ErrCodeNotFound):
		return domain.ErrCodeNotFound
	case errors.Is(err, store.ErrMismatch):
		return domain.ErrCodeMismatch
	case errors.Is(err, store.ErrEmailExists):
		return domain.ErrDuplicateEmail
	default:
		return err
	}
}

// isDomainError reports whether err is one of the expected failure kinds, as
// opposed to an infrastructure failure that deserves an error-level log.
func isDomainError(err error) bool {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return true
	}
	for _, kind := range []error{
		domain.ErrDuplicateEmail,
		domain.ErrCodeNotFound,
		domain.ErrCodeMismatch,
		domain.ErrAccountNotFound,
		domain.ErrAlreadyVerified,
		domain.ErrUnverifiedEmail,
		domain.ErrInsufficientCredits,
		domain.ErrInvalidTransition,
		domain.ErrUnknownPlan,
		domain.ErrInvalidPaymentMethod,
		domain.ErrSubscriptionNotFound,
		domain.ErrAlreadyActive,
		domain.ErrInvalidAmount,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
