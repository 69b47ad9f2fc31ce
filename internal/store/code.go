package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/phrazzld/enroll-api/internal/domain"
)

// CodeStore holds at most one verification code per email.
type CodeStore interface {
	// Put stores code for code.Email, replacing any previous one. A positive
	// ttl makes the code unreadable once it has elapsed; zero keeps it forever.
	Put(ctx context.Context, code *domain.VerificationCode, ttl time.Duration) error

	// Get returns the live code for email.
	// Returns ErrCodeNotFound if there is none or it has expired.
	Get(ctx context.Context, email string) (*domain.VerificationCode, error)

	// Redeem atomically compares the stored code with code and deletes it when
	// they match. Returns ErrCodeNotFound if there is no live code and
	// ErrMismatch (leaving the code in place) if they differ.
	Redeem(ctx context.Context, email, code string) error

	// Delete removes any code stored for email. Deleting a missing code is not an error.
	Delete(ctx context.Context, email string) error

	// WithTx returns a store that runs its statements on tx. A nil tx, or a
	// backend without SQL transactions, returns the store itself.
	WithTx(tx *sql.Tx) CodeStore
}
