package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/store"
)

// PostgresCodeStore implements store.CodeStore on PostgreSQL.
type PostgresCodeStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

var _ store.CodeStore = (*PostgresCodeStore)(nil)

// NewPostgresCodeStore creates a verification code store.
func NewPostgresCodeStore(db store.DBTX, logger *slog.Logger) *PostgresCodeStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCodeStore{
		db:     db,
		logger: logger.With(slog.String("component", "code_store")),
		now:    time.Now,
	}
}

// WithTx implements store.CodeStore.WithTx.
func (s *PostgresCodeStore) WithTx(tx *sql.Tx) store.CodeStore {
	if tx == nil {
		return s
	}
	return &PostgresCodeStore{db: tx, logger: s.logger, now: s.now}
}

// Put implements store.CodeStore.Put.
func (s *PostgresCodeStore) Put(ctx context.Context, code *domain.VerificationCode, ttl time.Duration) error {
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: code.IssuedAt.Add(ttl), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_codes (email, code, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET code = EXCLUDED.code, issued_at = EXCLUDED.issued_at, expires_at = EXCLUDED.expires_at`,
		code.Email, code.Code, code.IssuedAt, expiresAt)
	if err != nil {
		return store.NewStoreError("verification code", "put", "upsert failed", MapError(err))
	}
	return nil
}

// Get implements store.CodeStore.Get.
func (s *PostgresCodeStore) Get(ctx context.Context, email string) (*domain.VerificationCode, error) {
	var code domain.VerificationCode
	err := s.db.QueryRowContext(ctx, `
		SELECT email, code, issued_at
		FROM verification_codes
		WHERE email = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		email, s.now().UTC()).Scan(&code.Email, &code.Code, &code.IssuedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCodeNotFound
		}
		return nil, store.NewStoreError("verification code", "get", "query failed", err)
	}
	return &code, nil
}

// Redeem implements store.CodeStore.Redeem. The conditional DELETE is the
// atomic step; the follow-up read only decides which error to report.
func (s *PostgresCodeStore) Redeem(ctx context.Context, email, code string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM verification_codes
		WHERE email = $1 AND code = $2 AND (expires_at IS NULL OR expires_at > $3)`,
		email, code, s.now().UTC())
	if err != nil {
		return store.NewStoreError("verification code", "redeem", "delete failed", err)
	}

	redeemed, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if redeemed > 0 {
		return nil
	}

	if _, err := s.Get(ctx, email); err != nil {
		return err
	}
	return store.ErrMismatch
}

// Delete implements store.CodeStore.Delete.
func (s *PostgresCodeStore) Delete(ctx context.Context, email string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM verification_codes WHERE email = $1`, email); err != nil {
		return store.NewStoreError("verification code", "delete", "delete failed", err)
	}
	return nil
}
