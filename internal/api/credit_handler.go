package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/enroll-api/internal/api/shared"
	"github.com/phrazzld/enroll-api/internal/platform/logger"
	"github.com/phrazzld/enroll-api/internal/service"
)

// CreditHandler exposes the authenticated account's credit balance.
type CreditHandler struct {
	ledger    service.CreditLedger
	validator *validator.Validate
	logger    *slog.Logger
}

// NewCreditHandler creates a CreditHandler.
func NewCreditHandler(ledger service.CreditLedger, log *slog.Logger) *CreditHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CreditHandler{
		ledger:    ledger,
		validator: newValidator(),
		logger:    log.With(slog.String("component", "credit_handler")),
	}
}

// Balance handles GET /api/credits.
func (h *CreditHandler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccountID(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.Balance(r.Context(), accountID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, balanceToResponse(balance))
}

// Consume handles POST /api/credits/consume.
func (h *CreditHandler) Consume(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	accountID, ok := requireAccountID(w, r)
	if !ok {
		return
	}

	var req ConsumeRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	balance, err := h.ledger.Consume(r.Context(), accountID, req.Amount)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log.Debug("credits consumed",
		slog.String("account_id", accountID.String()),
		slog.Int("amount", req.Amount),
		slog.Int("remaining", balance.Total()))
	shared.RespondWithJSON(w, r, http.StatusOK, balanceToResponse(balance))
}
