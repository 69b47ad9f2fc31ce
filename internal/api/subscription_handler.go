package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/api/shared"
	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/platform/logger"
	"github.com/phrazzld/enroll-api/internal/service"
)

// SubscriptionHandler serves plan subscription and the payment completion signal.
type SubscriptionHandler struct {
	subscriptions service.SubscriptionService
	validator     *validator.Validate
	logger        *slog.Logger
}

// NewSubscriptionHandler creates a SubscriptionHandler.
func NewSubscriptionHandler(subscriptions service.SubscriptionService, log *slog.Logger) *SubscriptionHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		validator:     newValidator(),
		logger:        log.With(slog.String("component", "subscription_handler")),
	}
}

// Subscribe handles POST /api/subscriptions.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req SubscribeRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}
	// Already checked by the uuid tag.
	accountID := uuid.MustParse(req.UserID)

	activation, err := h.subscriptions.Activate(r.Context(), accountID, req.PlanID, domain.PaymentMethod(req.PaymentMethod))
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log.Info("subscription created",
		slog.String("subscription_id", activation.Subscription.ID.String()),
		slog.Bool("active", activation.SubscriptionActive))
	shared.RespondWithJSON(w, r, http.StatusCreated, activationToResponse(activation))
}

// CompletePayment handles POST /api/subscriptions/{id}/complete.
func (h *SubscriptionHandler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	activation, err := h.subscriptions.CompletePayment(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, activationToResponse(activation))
}
