package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/service"
)

// pendingPaymentLabel replaces activated_at for subscriptions awaiting payment.
const pendingPaymentLabel = "Pending payment"

// RegisterRequest is the registration form. Field formats are checked by the
// identity validator so every problem is reported in one response.
type RegisterRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	NationalID      string `json:"national_id"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	AcceptedTerms   bool   `json:"accepted_terms"`
	AcceptedPrivacy bool   `json:"accepted_privacy"`
	MarketingOptIn  bool   `json:"marketing_opt_in"`
}

func (req RegisterRequest) toRegistration() domain.Registration {
	return domain.Registration{
		FullName:        req.FullName,
		Email:           req.Email,
		NationalID:      req.NationalID,
		Phone:           req.Phone,
		Password:        req.Password,
		AcceptedTerms:   req.AcceptedTerms,
		AcceptedPrivacy: req.AcceptedPrivacy,
		MarketingOptIn:  req.MarketingOptIn,
	}
}

// RegisterResponse is returned on successful registration.
type RegisterResponse struct {
	Success bool      `json:"success"`
	UserID  uuid.UUID `json:"user_id"`
	Message string    `json:"message"`
}

// VerifyEmailRequest submits a verification code.
type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code"  validate:"required"`
}

// VerifyEmailResponse is returned on successful verification. Token
// authenticates the credit endpoints.
type VerifyEmailResponse struct {
	Success  bool   `json:"success"`
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
	Token    string `json:"token"`
}

// ResendCodeRequest asks for a fresh verification code.
type ResendCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// MessageResponse is a bare success acknowledgement.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SubscribeRequest starts a subscription. PaymentData is accepted for
// gateway-specific details and not interpreted.
type SubscribeRequest struct {
	UserID        string         `json:"user_id"        validate:"required,uuid"`
	PlanID        string         `json:"plan_id"        validate:"required"`
	PaymentMethod string         `json:"payment_method" validate:"required,oneof=credit_card pix boleto"`
	PaymentData   map[string]any `json:"payment_data,omitempty"`
}

// SubscriptionResponse describes a subscription after Activate or CompletePayment.
// ActivatedAt is an RFC 3339 timestamp or "Pending payment".
type SubscriptionResponse struct {
	Success             bool                 `json:"success"`
	SubscriptionID      uuid.UUID            `json:"subscription_id"`
	PlanID              string               `json:"plan_id"`
	ActivatedAt         string               `json:"activated_at"`
	SubscriptionCreated bool                 `json:"subscription_created"`
	SubscriptionActive  bool                 `json:"subscription_active"`
	PaymentStatus       domain.PaymentStatus `json:"payment_status"`
	AccountState        domain.AccountState  `json:"account_state"`
	Message             string               `json:"message"`
}

func activationToResponse(a *service.Activation) SubscriptionResponse {
	resp := SubscriptionResponse{
		Success:             true,
		SubscriptionID:      a.Subscription.ID,
		PlanID:              a.Subscription.PlanID,
		ActivatedAt:         pendingPaymentLabel,
		SubscriptionCreated: a.SubscriptionCreated,
		SubscriptionActive:  a.SubscriptionActive,
		PaymentStatus:       a.Subscription.PaymentStatus,
		AccountState:        a.AccountState,
		Message:             "subscription created, awaiting payment",
	}
	if a.Subscription.ActivatedAt != nil {
		resp.ActivatedAt = a.Subscription.ActivatedAt.UTC().Format(time.RFC3339)
	}
	if a.SubscriptionActive {
		resp.Message = "subscription active"
	}
	return resp
}

// ConsumeRequest spends credits from the authenticated account.
type ConsumeRequest struct {
	Amount int `json:"amount" validate:"gt=0"`
}

// BalanceResponse is the credit balance of an account.
type BalanceResponse struct {
	Current int `json:"current"`
	Monthly int `json:"monthly"`
	Bonus   int `json:"bonus"`
	Total   int `json:"total"`
}

func balanceToResponse(b *domain.CreditBalance) BalanceResponse {
	return BalanceResponse{
		Current: b.Current,
		Monthly: b.Monthly,
		Bonus:   b.Bonus,
		Total:   b.Total(),
	}
}
