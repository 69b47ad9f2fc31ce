package api

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/api/middleware"
	"github.com/phrazzld/enroll-api/internal/api/shared"
	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/service/auth"
)

// newValidator returns a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeRequest reads the JSON body into req and runs its struct tag
// validation. On failure it writes the error response and returns false.
func decodeRequest(w http.ResponseWriter, r *http.Request, v *validator.Validate, req any) bool {
	if err := shared.DecodeJSON(w, r, req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest,
			shared.ErrorResponse{Message: "Invalid request format"}, err)
		return false
	}
	if err := v.Struct(req); err != nil {
		HandleAPIError(w, r, fromValidatorErrors(err))
		return false
	}
	return true
}

// pathUUID parses the named chi path parameter as a UUID.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return uuid.Nil, domain.NewValidationError(name, "is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(name, "must be a valid UUID")
	}
	return id, nil
}

// requireAccountID returns the authenticated account ID, writing a 401 when
// the auth middleware did not run.
func requireAccountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.GetAccountID(r)
	if !ok {
		HandleAPIError(w, r, auth.ErrMissingToken)
		return uuid.Nil, false
	}
	return id, true
}
