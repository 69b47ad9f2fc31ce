package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/platform/postgres"
	"github.com/phrazzld/enroll-api/internal/service"
	"github.com/phrazzld/enroll-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	balanceCols      = []string{"account_id", "current", "monthly", "bonus", "updated_at"}
	subscriptionCols = []string{
		"id", "account_id", "plan_id", "payment_method", "payment_status", "created_at", "activated_at",
	}
)

// newSingleConnDB returns a mock pool that hands out one connection, so any
// statement issued outside the running transaction blocks until ctx expires.
func newSingleConnDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newSubscriptionService(db *sql.DB) service.SubscriptionService {
	accounts := postgres.NewPostgresAccountStore(db, nil)
	credits := postgres.NewPostgresCreditStore(db, nil)
	ledger := service.NewCreditLedger(credits, accounts, nil, nil, nil)
	return service.NewSubscriptionService(
		accounts,
		postgres.NewPostgresSubscriptionStore(db, nil),
		store.NewSQLTransactor(db),
		ledger,
		domain.DefaultPlans(),
		nil, nil, nil)
}

// expectGrant queues the credit statements of a first grant.
func expectGrant(mock sqlmock.Sqlmock, accountID uuid.UUID) {
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credit_balances")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FOR NO KEY UPDATE")).
		WillReturnRows(sqlmock.NewRows(balanceCols).AddRow(accountID.String(), 0, 0, 0, time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE credit_balances")).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestActivate_CompletesOnSingleConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	db, mock := newSingleConnDB(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1 FOR NO KEY UPDATE")).
		WithArgs(id.String()).
		WillReturnRows(accountRow(id, domain.AccountStateEmailVerified))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subscriptions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectGrant(mock, id)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts")).
		WithArgs(id.String(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			string(domain.AccountStateSubscribed), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	activation, err := newSubscriptionService(db).Activate(ctx, id, "basic", domain.PaymentMethodCreditCard)
	require.NoError(t, err)
	assert.True(t, activation.SubscriptionActive)
	assert.Equal(t, domain.AccountStateSubscribed, activation.AccountState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivate_RollsBackEverythingWhenAccountWriteFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	db, mock := newSingleConnDB(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1 FOR NO KEY UPDATE")).
		WillReturnRows(accountRow(id, domain.AccountStateEmailVerified))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subscriptions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectGrant(mock, id)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := newSubscriptionService(db).Activate(ctx, id, "basic", domain.PaymentMethodCreditCard)
	require.Error(t, err)
	// The grant and the subscription insert share the rolled back transaction;
	// nothing was committed on its own.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletePayment_CompletesOnSingleConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	db, mock := newSingleConnDB(t)
	accountID, subID := uuid.New(), uuid.New()
	pendingRow := func() *sqlmock.Rows {
		return sqlmock.NewRows(subscriptionCols).AddRow(
			subID.String(), accountID.String(), "pro", "pix", "pending_pix", time.Now(), nil)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions WHERE id = $1")).
		WillReturnRows(pendingRow())
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1 FOR NO KEY UPDATE")).
		WillReturnRows(accountRow(accountID, domain.AccountStateEmailVerified))
	mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions WHERE id = $1 FOR NO KEY UPDATE")).
		WillReturnRows(pendingRow())
	expectGrant(mock, accountID)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subscriptions")).
		WithArgs(subID.String(), "pro", "pix", "completed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	activation, err := newSubscriptionService(db).CompletePayment(ctx, subID)
	require.NoError(t, err)
	assert.True(t, activation.SubscriptionActive)
	assert.Equal(t, domain.AccountStateSubscribed, activation.AccountState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx(t *testing.T) {
	db, mock := newSingleConnDB(t)
	accounts := postgres.NewPostgresAccountStore(db, nil)

	assert.Same(t, accounts, accounts.WithTx(nil))

	mock.ExpectBegin()
	mock.ExpectRollback()
	tx, err := db.Begin()
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()
	assert.NotSame(t, accounts, accounts.WithTx(tx))
}

func TestAccountStore_UpdateWithoutChangesSkipsWrite(t *testing.T) {
	db, mock := newSingleConnDB(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR NO KEY UPDATE")).
		WillReturnRows(accountRow(id, domain.AccountStatePendingVerification))
	mock.ExpectCommit()

	account, err := postgres.NewPostgresAccountStore(db, nil).Update(context.Background(), id,
		func(*domain.Account) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatePendingVerification, account.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStores_WrapQueryFailures(t *testing.T) {
	db, mock := newSingleConnDB(t)
	base := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1")).WillReturnError(base)

	_, err := postgres.NewPostgresAccountStore(db, nil).GetByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, base)

	var storeErr *store.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "account", storeErr.Entity)
	assert.Equal(t, "get", storeErr.Operation)
	assert.False(t, store.IsNotFoundError(err))
}
