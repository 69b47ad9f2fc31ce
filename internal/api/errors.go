package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/enroll-api/internal/api/shared"
	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/service/auth"
)

// MapErrorToStatusCode maps domain error kinds to HTTP status codes. Anything
// unrecognized is a 500 so internal failures are never reported as client errors.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrCodeMismatch),
		errors.Is(err, domain.ErrUnknownPlan),
		errors.Is(err, domain.ErrInvalidPaymentMethod),
		errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired

	case errors.Is(err, domain.ErrUnverifiedEmail):
		return http.StatusForbidden

	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrCodeNotFound),
		errors.Is(err, domain.ErrSubscriptionNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrDuplicateEmail),
		errors.Is(err, domain.ErrAlreadyVerified),
		errors.Is(err, domain.ErrAlreadyActive),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns the client-facing message for err. Internal
// details never reach the response body.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, domain.ErrValidation):
		return "validation failed"
	case errors.Is(err, domain.ErrDuplicateEmail):
		return "email already registered"
	case errors.Is(err, domain.ErrCodeNotFound):
		return "code not found/expired"
	case errors.Is(err, domain.ErrCodeMismatch):
		return "invalid code"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "user not found"
	case errors.Is(err, domain.ErrUnverifiedEmail):
		return "email must be verified before subscribing"
	case errors.Is(err, domain.ErrAlreadyVerified):
		return "email already verified"
	case errors.Is(err, domain.ErrInsufficientCredits):
		return "insufficient credits"
	case errors.Is(err, domain.ErrUnknownPlan):
		return "unknown plan"
	case errors.Is(err, domain.ErrInvalidPaymentMethod):
		return "invalid payment method"
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		return "subscription not found"
	case errors.Is(err, domain.ErrAlreadyActive):
		return "subscription already active"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "amount must be positive"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid account state"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"
	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the response for err: status and safe message from the
// maps above, plus the per-field map for validation failures.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	body := shared.ErrorResponse{Message: GetSafeErrorMessage(err)}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Errors = ve.Fields
	}

	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), body, err)
}

// fromValidatorErrors converts struct tag failures on a request DTO into a
// domain.ValidationError keyed by JSON field name.
func fromValidatorErrors(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	ve := &domain.ValidationError{}
	for _, fe := range fieldErrs {
		ve.Add(fe.Field(), validationTagMessage(fe.Tag(), fe.Param()))
	}
	return ve.OrNil()
}

func validationTagMessage(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "is not a valid email address"
	case "gt":
		return "must be greater than " + param
	case "oneof":
		return "must be one of: " + param
	case "uuid":
		return "must be a valid UUID"
	default:
		return "is invalid"
	}
}
