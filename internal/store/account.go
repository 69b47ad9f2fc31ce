package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/domain"
)

// AccountMutation mutates an account in place. Returning an error aborts the
// update and leaves the stored account unchanged.
type AccountMutation func(account *domain.Account) error

// AccountStore defines the interface for account persistence.
type AccountStore interface {
	// Create saves a new account.
	// Returns ErrEmailExists if an account with the same email (exact match) exists.
	Create(ctx context.Context, account *domain.Account) error

	// GetByID retrieves an account by its unique ID.
	// Returns ErrAccountNotFound if the account does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	// GetByEmail retrieves an account by its exact email address.
	// Returns ErrAccountNotFound if the account does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)

	// Update applies fn to the stored account while holding the account's lock
	// and persists the result. The email and ID may not be changed by fn.
	// On a store bound by WithTx the lock is held until the transaction ends.
	// When fn leaves the account unchanged nothing is written.
	// Returns ErrAccountNotFound if the account does not exist, or fn's error.
	Update(ctx context.Context, id uuid.UUID, fn AccountMutation) (*domain.Account, error)

	// Delete removes an account. It exists to undo a registration whose
	// follow-up steps failed. Returns ErrAccountNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a store that runs its statements on tx. A nil tx, or a
	// backend without SQL transactions, returns the store itself.
	WithTx(tx *sql.Tx) AccountStore
}
