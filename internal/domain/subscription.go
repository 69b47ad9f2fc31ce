package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod is how the subscriber chose to pay.
type PaymentMethod string

// Supported payment methods.
const (
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodPix        PaymentMethod = "pix"
	PaymentMethodBoleto     PaymentMethod = "boleto"
)

// PaymentStatus is the payment state reported for a subscription.
type PaymentStatus string

// Payment statuses. Only completed payments activate a subscription.
const (
	PaymentStatusCompleted     PaymentStatus = "completed"
	PaymentStatusPendingPix    PaymentStatus = "pending_pix"
	PaymentStatusPendingBoleto PaymentStatus = "pending_boleto"
)

// InitialStatus maps a payment method to the status a new subscription starts in.
// Card payments settle immediately; pix and boleto wait for an external signal.
func (m PaymentMethod) InitialStatus() (PaymentStatus, error) {
	switch m {
	case PaymentMethodCreditCard:
		return PaymentStatusCompleted, nil
	case PaymentMethodPix:
		return PaymentStatusPendingPix, nil
	case PaymentMethodBoleto:
		return PaymentStatusPendingBoleto, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}

// Subscription records an account's purchase of a plan.
type Subscription struct {
	ID            uuid.UUID     `json:"id"`
	AccountID     uuid.UUID     `json:"account_id"`
	PlanID        string        `json:"plan_id"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time     `json:"created_at"`
	ActivatedAt   *time.Time    `json:"activated_at,omitempty"`
}

// NewSubscription creates a subscription whose payment status follows method.
// ActivatedAt is set only when the payment is already completed.
func NewSubscription(accountID uuid.UUID, planID string, method PaymentMethod) (*Subscription, error) {
	status, err := method.InitialStatus()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &Subscription{
		ID:            uuid.New(),
		AccountID:     accountID,
		PlanID:        planID,
		PaymentMethod: method,
		PaymentStatus: status,
		CreatedAt:     now,
	}
	if status == PaymentStatusCompleted {
		sub.ActivatedAt = &now
	}
	return sub, nil
}

// Active reports whether the subscription's payment has completed.
func (s *Subscription) Active() bool {
	return s.PaymentStatus == PaymentStatusCompleted
}

// Complete records the external payment confirmation for a pending subscription.
func (s *Subscription) Complete(at time.Time) error {
	if s.Active() {
		return ErrAlreadyActive
	}
	at = at.UTC()
	s.PaymentStatus = PaymentStatusCompleted
	s.ActivatedAt = &at
	return nil
}
