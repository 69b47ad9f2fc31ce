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
	"github.com/phrazzld/enroll-api/internal/platform/logger"
	"github.com/phrazzld/enroll-api/internal/store"
)

const accountColumns = `id, full_name, email, national_id, phone, password_hash, state,
	marketing_opt_in, terms_accepted_at, privacy_accepted_at, created_at, updated_at`

// PostgresAccountStore implements store.AccountStore on PostgreSQL.
type PostgresAccountStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.AccountStore = (*PostgresAccountStore)(nil)

// NewPostgresAccountStore creates an account store over a connection pool or
// a transaction. If logger is nil, a default logger is used.
func NewPostgresAccountStore(db store.DBTX, logger *slog.Logger) *PostgresAccountStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAccountStore{
		db:     db,
		logger: logger.With(slog.String("component", "account_store")),
	}
}

// WithTx implements store.AccountStore.WithTx.
func (s *PostgresAccountStore) WithTx(tx *sql.Tx) store.AccountStore {
	if tx == nil {
		return s
	}
	return &PostgresAccountStore{db: tx, logger: s.logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var a domain.Account
	var state string
	err := row.Scan(
		&a.ID,
		&a.FullName,
		&a.Email,
		&a.NationalID,
		&a.Phone,
		&a.PasswordHash,
		&state,
		&a.MarketingOptIn,
		&a.TermsAcceptedAt,
		&a.PrivacyAcceptedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.State = domain.AccountState(state)
	return &a, nil
}

// Create implements store.AccountStore.Create.
func (s *PostgresAccountStore) Create(ctx context.Context, account *domain.Account) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		account.ID,
		account.FullName,
		account.Email,
		account.NationalID,
		account.Phone,
		account.PasswordHash,
		string(account.State),
		account.MarketingOptIn,
		account.TermsAcceptedAt,
		account.PrivacyAcceptedAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		if store.IsDuplicateError(mapped) {
			log.Debug("account email already exists", slog.String("account_id", account.ID.String()))
			return mapped
		}
		log.Error("failed to create account",
			slog.String("error", err.Error()),
			slog.String("account_id", account.ID.String()))
		return mapped
	}

	log.Debug("account created", slog.String("account_id", account.ID.String()))
	return nil
}

// GetByID implements store.AccountStore.GetByID.
func (s *PostgresAccountStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAccountNotFound
		}
		return nil, store.NewStoreError("account", "get", "query failed", err)
	}
	return account, nil
}

// GetByEmail implements store.AccountStore.GetByEmail.
func (s *PostgresAccountStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAccountNotFound
		}
		return nil, store.NewStoreError("account", "get", "query by email failed", err)
	}
	return account, nil
}

// Update implements store.AccountStore.Update.
func (s *PostgresAccountStore) Update(
	ctx context.Context,
	id uuid.UUID,
	fn store.AccountMutation,
) (*domain.Account, error) {
	var updated *domain.Account

	err := inTx(ctx, s.db, func(ctx context.Context, q store.DBTX) error {
		current, err := scanAccount(q.QueryRowContext(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR NO KEY UPDATE`, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrAccountNotFound
			}
			return store.NewStoreError("account", "update", "failed to lock row", err)
		}

		working := *current
		if err := fn(&working); err != nil {
			return err
		}
		if working == *current {
			updated = current
			return nil
		}
		if working.ID != current.ID || working.Email != current.Email {
			return fmt.Errorf("%w: account id and email are immutable", store.ErrInvalidEntity)
		}
		working.UpdatedAt = time.Now().UTC()

		_, err = q.ExecContext(ctx, `
			UPDATE accounts
			SET full_name = $2, phone = $3, password_hash = $4, state = $5,
				marketing_opt_in = $6, updated_at = $7
			WHERE id = $1`,
			working.ID,
			working.FullName,
			working.Phone,
			working.PasswordHash,
			string(working.State),
			working.MarketingOptIn,
			working.UpdatedAt,
		)
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

// Delete implements store.AccountStore.Delete.
func (s *PostgresAccountStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to delete account",
			slog.String("error", err.Error()),
			slog.String("account_id", id.String()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrAccountNotFound)
}
