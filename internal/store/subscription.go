package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/domain"
)

// SubscriptionMutation mutates a subscription in place. Returning an error
// aborts the update.
type SubscriptionMutation func(sub *domain.Subscription) error

// SubscriptionStore defines the interface for subscription persistence.
type SubscriptionStore interface {
	// Create saves a new subscription.
	// Returns ErrInvalidEntity if the owning account does not exist.
	Create(ctx context.Context, sub *domain.Subscription) error

	// GetByID retrieves a subscription.
	// Returns ErrSubscriptionNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error)

	// ListByAccount returns an account's subscriptions, oldest first.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Subscription, error)

	// Update applies fn to the stored subscription under its lock and persists the result.
	// Returns ErrSubscriptionNotFound if it does not exist, or fn's error.
	Update(ctx context.Context, id uuid.UUID, fn SubscriptionMutation) (*domain.Subscription, error)

	// Delete removes a subscription whose activation could not be completed.
	// Returns ErrSubscriptionNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a store that runs its statements on tx. A nil tx, or a
	// backend without SQL transactions, returns the store itself.
	WithTx(tx *sql.Tx) SubscriptionStore
}
