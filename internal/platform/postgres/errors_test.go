package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/enroll-api/internal/platform/postgres"
	"github.com/phrazzld/enroll-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func newPgError(code, constraint string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "accounts",
		ColumnName:     "email",
		ConstraintName: constraint,
	}
}

// mockResult implements sql.Result for testing
type mockResult struct {
	rowsAffected int64
	err          error
}

func (m mockResult) LastInsertId() (int64, error) { return 0, m.err }
func (m mockResult) RowsAffected() (int64, error) { return m.rowsAffected, m.err }

func TestMapError(t *testing.T) {
	t.Parallel()

	plain := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"email unique", newPgError("23505", "accounts_email_key"), store.ErrEmailExists},
		{"other unique", newPgError("23505", "subscriptions_pkey"), store.ErrDuplicate},
		{"foreign key", newPgError("23503", "subscriptions_account_id_fkey"), store.ErrInvalidEntity},
		{"check", newPgError("23514", "credit_balances_bonus_check"), store.ErrInvalidEntity},
		{"not null", newPgError("23502", ""), store.ErrInvalidEntity},
		{"wrapped", fmt.Errorf("exec: %w", newPgError("23503", "fk")), store.ErrInvalidEntity},
		{"unmapped", plain, plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := postgres.MapError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestMapErrorDoesNotLeakQueryDetails(t *testing.T) {
	pgErr := newPgError("23503", "subscriptions_account_id_fkey")
	pgErr.Detail = `Key (account_id)=(1b4e28ba-2fa1-11d2-883f-0016d3cca427) is not present`

	got := postgres.MapError(pgErr)
	assert.NotContains(t, got.Error(), "1b4e28ba")
	assert.Contains(t, got.Error(), "subscriptions_account_id_fkey")
}

func TestViolationPredicates(t *testing.T) {
	t.Parallel()

	unique := newPgError("23505", "accounts_email_key")
	fk := newPgError("23503", "fk")

	assert.True(t, postgres.IsUniqueViolation(unique))
	assert.True(t, postgres.IsUniqueViolation(fmt.Errorf("wrapped: %w", unique)))
	assert.False(t, postgres.IsUniqueViolation(fk))
	assert.False(t, postgres.IsUniqueViolation(errors.New("23505")))

	assert.True(t, postgres.IsForeignKeyViolation(fk))
	assert.False(t, postgres.IsForeignKeyViolation(unique))
	assert.False(t, postgres.IsForeignKeyViolation(nil))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	assert.NoError(t, postgres.CheckRowsAffected(mockResult{rowsAffected: 1}, store.ErrAccountNotFound))
	assert.ErrorIs(t,
		postgres.CheckRowsAffected(mockResult{rowsAffected: 0}, store.ErrAccountNotFound),
		store.ErrAccountNotFound)
	assert.Error(t, postgres.CheckRowsAffected(mockResult{err: errors.New("driver")}, store.ErrAccountNotFound))
	assert.Error(t, postgres.CheckRowsAffected(nil, store.ErrAccountNotFound))
}
