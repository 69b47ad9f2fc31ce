package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/domain"
)

// Type names a lifecycle event.
type Type string

// Lifecycle event types.
const (
	TypeAccountRegistered      Type = "account.registered"
	TypeAccountEmailVerified   Type = "account.email_verified"
	TypeVerificationCodeIssued Type = "verification.code_issued"
	TypeSubscriptionCreated    Type = "subscription.created"
	TypeSubscriptionActivated  Type = "subscription.activated"
	TypeCreditsGranted         Type = "credits.granted"
	TypeCreditsConsumed        Type = "credits.consumed"
)

// LifecycleEvent records a state change of one account.
type LifecycleEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	Type      Type      `json:"type"`
	AccountID uuid.UUID `json:"account_id"`

	// Payload contains the type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	CreatedAt time.Time `json:"created_at"`
}

// NewLifecycleEvent creates an event of the given type with payload encoded as JSON.
func NewLifecycleEvent(eventType Type, accountID uuid.UUID, payload any) (*LifecycleEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	return &LifecycleEvent{
		ID:        uuid.New(),
		Type:      eventType,
		AccountID: accountID,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *LifecycleEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// AccountPayload accompanies account.* and verification.* events.
// It never carries the verification code itself.
type AccountPayload struct {
	Email string `json:"email"`
	State string `json:"state"`
}

// SubscriptionPayload accompanies subscription.* events.
type SubscriptionPayload struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	PlanID         string    `json:"plan_id"`
	PaymentMethod  string    `json:"payment_method"`
	PaymentStatus  string    `json:"payment_status"`
}

// CreditsPayload accompanies credits.* events. Amount is the consumed amount
// for credits.consumed; Granted is set for credits.granted.
type CreditsPayload struct {
	Amount       int              `json:"amount,omitempty"`
	Granted      *domain.Tranches `json:"granted,omitempty"`
	BalanceTotal int              `json:"balance_total"`
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *LifecycleEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *LifecycleEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *LifecycleEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *LifecycleEvent) error {
	return f(ctx, event)
}
