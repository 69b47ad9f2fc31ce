package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/enroll-api/internal/api/shared"
	"github.com/phrazzld/enroll-api/internal/platform/logger"
	"github.com/phrazzld/enroll-api/internal/service"
)

// AccountHandler serves registration and email verification.
type AccountHandler struct {
	accounts     service.AccountService
	verification service.VerificationService
	validator    *validator.Validate
	logger       *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(
	accounts service.AccountService,
	verification service.VerificationService,
	log *slog.Logger,
) *AccountHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AccountHandler{
		accounts:     accounts,
		verification: verification,
		validator:    newValidator(),
		logger:       log.With(slog.String("component", "account_handler")),
	}
}

// Register handles POST /api/accounts/register.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req RegisterRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest,
			shared.ErrorResponse{Message: "Invalid request format"}, err)
		return
	}

	account, err := h.accounts.Register(r.Context(), req.toRegistration())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log.Info("account registered", slog.String("account_id", account.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, RegisterResponse{
		Success: true,
		UserID:  account.ID,
		Message: "account created, check your email for the verification code",
	})
}

// VerifyEmail handles POST /api/accounts/verify-email.
func (h *AccountHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	verified, err := h.accounts.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, VerifyEmailResponse{
		Success:  true,
		Verified: true,
		Message:  "email verified",
		Token:    verified.Token,
	})
}

// ResendCode handles POST /api/accounts/resend-code.
func (h *AccountHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req ResendCodeRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	if _, err := h.verification.Resend(r.Context(), req.Email); err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{
		Success: true,
		Message: "verification code sent",
	})
}
