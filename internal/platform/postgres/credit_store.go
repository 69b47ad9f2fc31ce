package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/store"
)

// PostgresCreditStore implements store.CreditStore on PostgreSQL.
type PostgresCreditStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.CreditStore = (*PostgresCreditStore)(nil)

// NewPostgresCreditStore creates a credit balance store.
func NewPostgresCreditStore(db store.DBTX, logger *slog.Logger) *PostgresCreditStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCreditStore{
		db:     db,
		logger: logger.With(slog.String("component", "credit_store")),
	}
}

// WithTx implements store.CreditStore.WithTx.
func (s *PostgresCreditStore) WithTx(tx *sql.Tx) store.CreditStore {
	if tx == nil {
		return s
	}
	return &PostgresCreditStore{db: tx, logger: s.logger}
}

func scanBalance(row rowScanner) (*domain.CreditBalance, error) {
	var b domain.CreditBalance
	if err := row.Scan(&b.AccountID, &b.Current, &b.Monthly, &b.Bonus, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// Get implements store.CreditStore.Get.
func (s *PostgresCreditStore) Get(ctx context.Context, accountID uuid.UUID) (*domain.CreditBalance, error) {
	balance, err := scanBalance(s.db.QueryRowContext(ctx, `
		SELECT account_id, current, monthly, bonus, updated_at
		FROM credit_balances
		WHERE account_id = $1`, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCreditsNotFound
		}
		return nil, store.NewStoreError("credit balance", "get", "query failed", err)
	}
	return balance, nil
}

// Update implements store.CreditStore.Update. A zero row is inserted first so
// that the row lock also covers an account's first grant.
func (s *PostgresCreditStore) Update(
	ctx context.Context,
	accountID uuid.UUID,
	fn store.CreditMutation,
) (*domain.CreditBalance, error) {
	var updated *domain.CreditBalance

	err := inTx(ctx, s.db, func(ctx context.Context, q store.DBTX) error {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO credit_balances (account_id, current, monthly, bonus, updated_at)
			VALUES ($1, 0, 0, 0, $2)
			ON CONFLICT (account_id) DO NOTHING`,
			accountID, time.Now().UTC()); err != nil {
			return MapError(err)
		}

		current, err := scanBalance(q.QueryRowContext(ctx, `
			SELECT account_id, current, monthly, bonus, updated_at
			FROM credit_balances
			WHERE account_id = $1
			FOR NO KEY UPDATE`, accountID))
		if err != nil {
			return store.NewStoreError("credit balance", "update", "failed to lock row", err)
		}

		working := *current
		if err := fn(&working); err != nil {
			return err
		}
		if err := working.Tranches.Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
		working.AccountID = accountID
		working.UpdatedAt = time.Now().UTC()

		_, err = q.ExecContext(ctx, `
			UPDATE credit_balances
			SET current = $2, monthly = $3, bonus = $4, updated_at = $5
			WHERE account_id = $1`,
			accountID, working.Current, working.Monthly, working.Bonus, working.UpdatedAt)
		if err != nil {
			return MapError(err)
		}

		updated = &working
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
