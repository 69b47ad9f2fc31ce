package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/domain"
)

// CreditMutation mutates a credit balance in place. Returning an error aborts
// the update and leaves every tranche unchanged.
type CreditMutation func(balance *domain.CreditBalance) error

// CreditStore persists per-account credit balances.
type CreditStore interface {
	// Get returns the balance of an account.
	// Returns ErrCreditsNotFound if no credits were ever granted to it.
	Get(ctx context.Context, accountID uuid.UUID) (*domain.CreditBalance, error)

	// Update applies fn to the account's balance under the account's credit
	// lock and persists the result. A missing balance starts at zero, so the
	// first grant creates the record.
	Update(ctx context.Context, accountID uuid.UUID, fn CreditMutation) (*domain.CreditBalance, error)

	// WithTx returns a store that runs its statements on tx. A nil tx, or a
	// backend without SQL transactions, returns the store itself.
	WithTx(tx *sql.Tx) CreditStore
}
