package service_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/events"
	"github.com/phrazzld/enroll-api/internal/platform/memory"
	"github.com/phrazzld/enroll-api/internal/service"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingLedger is a CreditLedger whose grants always fail.
type failingLedger struct {
	service.CreditLedger
	err error
}

func (l failingLedger) Grant(context.Context, uuid.UUID, domain.Tranches) (*domain.CreditBalance, error) {
	return nil, l.err
}

func (l failingLedger) WithTx(*sql.Tx) service.CreditLedger {
	return l
}

func TestSubscriptionService_ActivateCompletedPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	account := f.registerVerified(t, "jane@x.com")
	pro := domain.DefaultPlans()["pro"]

	activation, err := f.subs.Activate(ctx, account.ID, "pro", domain.PaymentMethodCreditCard)
	require.NoError(t, err)

	assert.True(t, activation.SubscriptionCreated)
	assert.True(t, activation.SubscriptionActive)
	assert.Equal(t, domain.AccountStateSubscribed, activation.AccountState)
	assert.Equal(t, domain.PaymentStatusCompleted, activation.Subscription.PaymentStatus)
	require.NotNil(t, activation.Subscription.ActivatedAt)
	assert.Equal(t, pro, activation.Plan)

	balance, err := f.ledger.Balance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, pro.Grant, balance.Tranches)

	stored, err := f.accounts.LookupByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStateSubscribed, stored.State)

	assert.Equal(t, 1, f.recorder.count(events.TypeSubscriptionCreated))
	assert.Equal(t, 1, f.recorder.count(events.TypeSubscriptionActivated))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Subscriptions.WithLabelValues("pro", "completed")))

	_, err = f.subs.Activate(ctx, account.ID, "basic", domain.PaymentMethodCreditCard)
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)
}

func TestSubscriptionService_ActivatePendingPayment(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		method domain.PaymentMethod
		status domain.PaymentStatus
	}{
		{domain.PaymentMethodPix, domain.PaymentStatusPendingPix},
		{domain.PaymentMethodBoleto, domain.PaymentStatusPendingBoleto},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			f := newFixture(t)
			account := f.registerVerified(t, "jane@x.com")

			activation, err := f.subs.Activate(ctx, account.ID, "basic", tt.method)
			require.NoError(t, err)

			assert.True(t, activation.SubscriptionCreated)
			assert.False(t, activation.SubscriptionActive)
			assert.Equal(t, tt.status, activation.Subscription.PaymentStatus)
			assert.Nil(t, activation.Subscription.ActivatedAt)
			assert.Equal(t, domain.AccountStateEmailVerified, activation.AccountState)

			balance, err := f.ledger.Balance(ctx, account.ID)
			require.NoError(t, err)
			assert.Zero(t, balance.Total())
			assert.Equal(t, 0, f.recorder.count(events.TypeSubscriptionActivated))
			assert.Equal(t, 0, f.recorder.count(events.TypeCreditsGranted))
		})
	}
}

func TestSubscriptionService_ActivateRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("pending verification creates nothing", func(t *testing.T) {
		f := newFixture(t)
		account := f.register(t, "jane@x.com")

		for _, method := range []domain.PaymentMethod{
			domain.PaymentMethodCreditCard,
			domain.PaymentMethodPix,
			domain.PaymentMethodBoleto,
		} {
			_, err := f.subs.Activate(ctx, account.ID, "basic", method)
			assert.ErrorIs(t, err, domain.ErrUnverifiedEmail)
		}

		subs, err := f.subs.ListByAccount(ctx, account.ID)
		require.NoError(t, err)
		assert.Empty(t, subs)
	})

	t.Run("unknown account", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.subs.Activate(ctx, uuid.New(), "basic", domain.PaymentMethodCreditCard)
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})

	t.Run("unknown plan", func(t *testing.T) {
		f := newFixture(t)
		account := f.registerVerified(t, "jane@x.com")
		_, err := f.subs.Activate(ctx, account.ID, "platinum", domain.PaymentMethodCreditCard)
		assert.ErrorIs(t, err, domain.ErrUnknownPlan)
	})

	t.Run("invalid payment method", func(t *testing.T) {
		f := newFixture(t)
		account := f.registerVerified(t, "jane@x.com")
		_, err := f.subs.Activate(ctx, account.ID, "basic", domain.PaymentMethod("cash"))
		assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

		subs, err := f.subs.ListByAccount(ctx, account.ID)
		require.NoError(t, err)
		assert.Empty(t, subs)
	})
}

func TestSubscriptionService_ActivateDiscardsSubscriptionWhenGrantFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	account := f.registerVerified(t, "jane@x.com")

	subs := service.NewSubscriptionService(
		f.repo.Accounts(), f.repo.Subscriptions(), nil,
		failingLedger{err: errors.New("ledger offline")},
		domain.DefaultPlans(), nil, nil, nil)

	_, err := subs.Activate(ctx, account.ID, "basic", domain.PaymentMethodCreditCard)
	require.Error(t, err)

	stored, err := f.accounts.LookupByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStateEmailVerified, stored.State)

	list, err := subs.ListByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSubscriptionService_CompletePayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	account := f.registerVerified(t, "jane@x.com")
	basic := domain.DefaultPlans()["basic"]

	pending, err := f.subs.Activate(ctx, account.ID, "basic", domain.PaymentMethodPix)
	require.NoError(t, err)

	completed, err := f.subs.CompletePayment(ctx, pending.Subscription.ID)
	require.NoError(t, err)
	assert.True(t, completed.SubscriptionActive)
	assert.Equal(t, domain.PaymentStatusCompleted, completed.Subscription.PaymentStatus)
	assert.Equal(t, domain.PaymentMethodPix, completed.Subscription.PaymentMethod)
	require.NotNil(t, completed.Subscription.ActivatedAt)
	assert.Equal(t, domain.AccountStateSubscribed, completed.AccountState)

	_, err = f.subs.CompletePayment(ctx, pending.Subscription.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)

	balance, err := f.ledger.Balance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, basic.Grant, balance.Tranches, "credits are granted exactly once")
	assert.Equal(t, 1, f.recorder.count(events.TypeSubscriptionActivated))

	_, err = f.subs.CompletePayment(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestSubscriptionService_CompletePaymentLeavesSubscriptionPendingWhenGrantFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	account := f.registerVerified(t, "jane@x.com")

	pending, err := f.subs.Activate(ctx, account.ID, "basic", domain.PaymentMethodBoleto)
	require.NoError(t, err)

	broken := service.NewSubscriptionService(
		f.repo.Accounts(), f.repo.Subscriptions(), nil,
		failingLedger{err: errors.New("ledger offline")},
		domain.DefaultPlans(), nil, nil, nil)
	_, err = broken.CompletePayment(ctx, pending.Subscription.ID)
	require.Error(t, err)

	sub, err := f.repo.Subscriptions().GetByID(ctx, pending.Subscription.ID)
	require.NoError(t, err)
	assert.False(t, sub.Active())

	stored, err := f.accounts.LookupByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStateEmailVerified, stored.State)

	// The working ledger can still complete it afterwards.
	_, err = f.subs.CompletePayment(ctx, pending.Subscription.ID)
	assert.NoError(t, err)
}

func TestSubscriptionService_ConcurrentCompletionGrantsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	account := f.registerVerified(t, "jane@x.com")
	premium := domain.DefaultPlans()["premium"]

	pending, err := f.subs.Activate(ctx, account.ID, "premium", domain.PaymentMethodPix)
	require.NoError(t, err)

	var succeeded, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.subs.CompletePayment(ctx, pending.Subscription.ID)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrAlreadyActive):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(15), rejected.Load())

	balance, err := f.ledger.Balance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, premium.Grant, balance.Tranches)
}

func TestSubscriptionService_ListByAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	account := f.registerVerified(t, "jane@x.com")

	first, err := f.subs.Activate(ctx, account.ID, "basic", domain.PaymentMethodBoleto)
	require.NoError(t, err)
	second, err := f.subs.Activate(ctx, account.ID, "pro", domain.PaymentMethodPix)
	require.NoError(t, err)

	subs, err := f.subs.ListByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	ids := []uuid.UUID{subs[0].ID, subs[1].ID}
	assert.ElementsMatch(t, []uuid.UUID{first.Subscription.ID, second.Subscription.ID}, ids)

	_, err = f.subs.ListByAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSubscriptionService_WorksWithoutEmitter(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	ledger := service.NewCreditLedger(repo.Credits(), repo.Accounts(), nil, nil, nil)
	subs := service.NewSubscriptionService(
		repo.Accounts(), repo.Subscriptions(), nil, ledger, domain.DefaultPlans(), nil, nil, nil)

	account, err := domain.NewAccount(validRegistration("jane@x.com"), "hash")
	require.NoError(t, err)
	require.NoError(t, account.TransitionTo(domain.AccountStateEmailVerified))
	require.NoError(t, repo.Accounts().Create(ctx, account))

	activation, err := subs.Activate(ctx, account.ID, "basic", domain.PaymentMethodCreditCard)
	require.NoError(t, err)
	assert.True(t, activation.SubscriptionActive)
}
